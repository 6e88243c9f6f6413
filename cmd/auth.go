package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/chrisrogers37/shuffify-sub000/internal/models"
	"github.com/chrisrogers37/shuffify-sub000/internal/server"
	"github.com/chrisrogers37/shuffify-sub000/internal/services"
	"github.com/chrisrogers37/shuffify-sub000/internal/shared"
)

const authTimeout = 2 * time.Minute

// AuthLogin runs the OAuth2 authorization flow against Spotify and stores the
// resulting refresh token encrypted under the configured master secret.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	a, err := r.bootstrap(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	session, err := r.doOAuth(ctx, a)
	if err != nil {
		return err
	}

	if session.RefreshToken == "" {
		return fmt.Errorf("%w: authorization returned no refresh token", shared.ErrCredential)
	}

	profile, err := a.spotify.WithToken(session.Token).CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch profile: %w", err)
	}

	user, err := a.users.GetBySpotifyID(profile.ID)
	if errors.Is(err, shared.ErrNotFound) {
		user = models.NewUser(profile.ID, profile.DisplayName)
		if err := a.users.Create(user); err != nil {
			return fmt.Errorf("failed to save account: %w", err)
		}
	} else if err != nil {
		return err
	} else if user.DisplayName() != profile.DisplayName {
		user.SetDisplayName(profile.DisplayName)
		if err := a.users.Update(user); err != nil {
			r.logger.Warn("failed to update display name", "error", err)
		}
	}

	ciphertext, err := a.cipher.Encrypt(session.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to seal credential: %w", err)
	}
	if err := a.users.UpdateRefreshToken(user.ID(), ciphertext); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	r.logger.Info("authentication successful", "spotify_id", profile.ID)
	r.writePlain("✓ Logged in as %s (%s)\n", profile.DisplayName, profile.ID)
	return nil
}

// AuthStatus reports the stored account and whether its credential is usable.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	a, err := r.bootstrap(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := r.activeUser(a)
	if err != nil {
		return err
	}

	r.writePlain("Account: %s (%s)\n", user.DisplayName(), user.SpotifyID())

	if user.EncryptedRefreshToken() == "" {
		r.writePlain("Credential: ✗ none on file, run `shuffify auth login`\n")
		return nil
	}
	if _, err := a.cipher.Decrypt(user.EncryptedRefreshToken()); err != nil {
		r.writePlain("Credential: ✗ cannot be decrypted with the configured master secret\n")
		return nil
	}

	r.writePlain("Credential: ✓ on file\n")
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server.
func (r *Runner) doOAuth(ctx context.Context, a *app) (*services.Session, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, err
	}

	authURL := a.spotify.GetAuthURL(state)
	callbackHandler := server.NewCallbackHandler(a.spotify, state)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(callbackHandler)

	serverAddr := fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting login callback server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.LoginResult

	select {
	case result = <-callbackHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("authorization timed out after %v", authTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Session == nil {
		return nil, fmt.Errorf("no session received")
	}

	return result.Session, nil
}
