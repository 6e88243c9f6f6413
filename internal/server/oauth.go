package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/chrisrogers37/shuffify-sub000/internal/services"
)

// Exchanger trades an authorization code for an authenticated session.
// Satisfied by [services.SpotifyService].
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*services.Session, error)
}

// LoginResult contains the outcome of one authorization flow.
type LoginResult struct {
	Session *services.Session
	err     error
}

func (l *LoginResult) Error() error {
	return l.err
}

// CallbackHandler handles the OAuth2 authorization code callback.
// Implements the [Handler] interface for registration with a [Router].
type CallbackHandler struct {
	exchanger   Exchanger
	state       string
	resultChan  chan LoginResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewCallbackHandler creates a callback handler bound to an expected state
// token. The state token should be cryptographically random for CSRF protection.
func NewCallbackHandler(exchanger Exchanger, state string) *CallbackHandler {
	return &CallbackHandler{
		exchanger:  exchanger,
		state:      state,
		resultChan: make(chan LoginResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP handles the OAuth callback request.
//
// Validates the state parameter, exchanges the authorization code for a
// session, and sends the result through the result channel.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Only handle the callback once
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	state := r.URL.Query().Get("state")
	if state != h.state {
		err := fmt.Errorf("invalid state parameter")
		h.send(LoginResult{err: err})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		err := fmt.Errorf("authorization failed: %s - %s", errParam, errDesc)
		h.send(LoginResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	session, err := h.exchanger.Exchange(r.Context(), code)
	if err != nil {
		h.send(LoginResult{err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.send(LoginResult{Session: session})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Authorization Successful</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`)
}

// send delivers the login result through the channel (only once).
func (h *CallbackHandler) send(result LoginResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the channel carrying the flow's single outcome.
//
// The channel receives exactly one result and is then closed.
func (h *CallbackHandler) Result() <-chan LoginResult {
	return h.resultChan
}
