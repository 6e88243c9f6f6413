// package services defines the client used to talk to the Spotify Web API
package services

import (
	"context"

	"golang.org/x/oauth2"
)

// Client defines the playlist operations the job executor needs from the
// remote service. [SpotifyService] is the production implementation; tests
// substitute fakes.
type Client interface {
	// Playlist retrieves playlist metadata by ID.
	Playlist(ctx context.Context, playlistID string) (*Playlist, error)

	// PlaylistTracks retrieves every track of a playlist, following pagination.
	PlaylistTracks(ctx context.Context, playlistID string) ([]Track, error)

	// AddTracks appends track URIs to a playlist, batched to the API limit.
	AddTracks(ctx context.Context, playlistID string, uris []string) error

	// ReplaceTracks replaces a playlist's contents with the given URI ordering.
	ReplaceTracks(ctx context.Context, playlistID string, uris []string) error
}

// TokenRefresher exchanges a long-lived refresh token for a short-lived
// access session, surfacing a rotated refresh token when the remote service
// issues one.
type TokenRefresher interface {
	// RefreshAccess returns an authenticated Client plus the refresh token to
	// store, which equals the input when no rotation occurred.
	RefreshAccess(ctx context.Context, refreshToken string) (Client, string, error)
}

// Playlist represents a Spotify playlist's metadata.
type Playlist struct {
	ID         string
	Name       string
	OwnerID    string
	TrackCount int
	Public     bool
	URI        string
}

// Track represents one track inside a playlist.
type Track struct {
	ID       string
	URI      string // stable identifier used for dedup and reordering
	Title    string
	Artist   string
	Album    string
	Duration int // seconds
	AddedAt  string
}

// Session bundles an access token with the refresh token that produced it.
type Session struct {
	Token        *oauth2.Token
	RefreshToken string
}
