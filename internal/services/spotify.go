// Spotify API implementation of [Client]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/chrisrogers37/shuffify-sub000/internal/shared"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// BatchSize is the Spotify API limit on URIs per add/replace request.
	BatchSize = 100

	maxAttempts = 3
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

type owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type trackRef struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Owner  owner    `json:"owner"`
	Public bool     `json:"public"`
	Tracks trackRef `json:"tracks"`
	URI    string   `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents one page of a playlist's tracks.
type SpotifyPaginatedTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

// SpotifyService implements [Client] and [TokenRefresher] for the Spotify Web API.
// Uses [oauth2] for authentication and rate-limits outgoing calls.
type SpotifyService struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	sleep      func(time.Duration)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(clientID, clientSecret, redirectURI string) (*SpotifyService, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing spotify client credentials", shared.ErrInvalidConfig)
	}
	if redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Limit(8), 8),
		baseURL:    spotifyBaseURL,
		sleep:      time.Sleep,
	}, nil
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token session.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*Session, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	return &Session{Token: token, RefreshToken: token.RefreshToken}, nil
}

// WithToken returns a copy of the service authenticated with the given token.
func (s *SpotifyService) WithToken(token *oauth2.Token) *SpotifyService {
	clone := *s
	clone.token = token
	return &clone
}

// RefreshAccess implements [TokenRefresher]. The returned refresh token is
// the rotated value when Spotify issues one, otherwise the input.
func (s *SpotifyService) RefreshAccess(ctx context.Context, refreshToken string) (Client, string, error) {
	if refreshToken == "" {
		return nil, "", fmt.Errorf("%w: empty refresh token", shared.ErrRefreshFailed)
	}

	source := s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	stored := refreshToken
	if token.RefreshToken != "" {
		stored = token.RefreshToken
	}

	return s.WithToken(token), stored, nil
}

// CurrentUser retrieves the authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "GET", "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Playlist retrieves playlist metadata by ID.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*Playlist, error) {
	var sp SpotifyPlaylist
	endpoint := fmt.Sprintf("/playlists/%s", playlistID)
	if err := s.doRequest(ctx, "GET", endpoint, nil, &sp); err != nil {
		return nil, err
	}

	return &Playlist{
		ID:         sp.ID,
		Name:       sp.Name,
		OwnerID:    sp.Owner.ID,
		TrackCount: sp.Tracks.Total,
		Public:     sp.Public,
		URI:        sp.URI,
	}, nil
}

// PlaylistTracks retrieves all tracks of a playlist, following pagination.
// Local (un-URI'd) items are skipped.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]Track, error) {
	var all []Track
	offset := 0

	for {
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", playlistID, BatchSize, offset)

		var page SpotifyPaginatedTracks
		if err := s.doRequest(ctx, "GET", endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.URI == "" {
				continue
			}
			track := Track{
				ID:       item.Track.ID,
				URI:      item.Track.URI,
				Title:    item.Track.Name,
				Album:    item.Track.Album.Name,
				Duration: item.Track.DurationMS / 1000,
				AddedAt:  item.AddedAt,
			}
			if len(item.Track.Artists) > 0 {
				track.Artist = item.Track.Artists[0].Name
			}
			all = append(all, track)
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += BatchSize
	}

	return all, nil
}

// AddTracks appends track URIs to a playlist in API-sized batches.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)

	for start := 0; start < len(uris); start += BatchSize {
		end := min(start+BatchSize, len(uris))
		body := map[string]any{"uris": uris[start:end]}
		if err := s.doRequest(ctx, "POST", endpoint, body, nil); err != nil {
			return err
		}
	}

	return nil
}

// ReplaceTracks replaces a playlist's contents with the given ordering.
// The first batch goes through PUT (which clears the playlist); the
// remainder is appended in order.
func (s *SpotifyService) ReplaceTracks(ctx context.Context, playlistID string, uris []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)

	first := min(BatchSize, len(uris))
	body := map[string]any{"uris": uris[:first]}
	if err := s.doRequest(ctx, "PUT", endpoint, body, nil); err != nil {
		return err
	}

	if len(uris) > first {
		return s.AddTracks(ctx, playlistID, uris[first:])
	}
	return nil
}

// doRequest performs an authenticated HTTP request to the Spotify API with
// rate limiting and bounded retries on 429/5xx responses.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: not authenticated", shared.ErrCredential)
	}

	apiURL := s.baseURL + endpoint

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrRemoteAPI, err)
		}

		var reader *bytes.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		} else {
			reader = bytes.NewReader(nil)
		}

		req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", shared.ErrRemoteAPI, err)
			s.backoff(resp, attempt)
			continue
		}

		retry, err := s.handleResponse(resp, result)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
		s.backoff(resp, attempt)
	}

	return lastErr
}

// handleResponse decodes a successful body into result and maps error
// statuses onto the shared taxonomy. The bool reports retryability.
func (s *SpotifyService) handleResponse(resp *http.Response, result any) (bool, error) {
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if result != nil {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				return false, fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return false, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, fmt.Errorf("%w: status 404", shared.ErrPlaylistNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, fmt.Errorf("%w: status 429", shared.ErrRateLimited)
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("%w: status %d", shared.ErrRemoteAPI, resp.StatusCode)
	default:
		return false, fmt.Errorf("%w: status %d", shared.ErrRemoteAPI, resp.StatusCode)
	}
}

// backoff waits before a retry, honoring Retry-After when the server sent one.
func (s *SpotifyService) backoff(resp *http.Response, attempt int) {
	wait := time.Duration(attempt) * time.Second
	if resp != nil {
		if after := resp.Header.Get("Retry-After"); after != "" {
			if secs, err := strconv.Atoi(after); err == nil && secs > 0 && secs <= 30 {
				wait = time.Duration(secs) * time.Second
			}
		}
	}
	s.sleep(wait)
}
