package models

import (
	"fmt"
	"time"
)

// User represents a Spotify account known to the application.
//
// The encrypted refresh token is an opaque ciphertext blob written by the
// login callback and, on rotation, by the job executor. It is empty until
// the user has completed an interactive login at least once.
type User struct {
	id                    string
	spotifyID             string
	displayName           string
	encryptedRefreshToken string
	createdAt             time.Time
	updatedAt             time.Time
}

// NewUser creates a new User for the given Spotify account id.
func NewUser(spotifyID, displayName string) *User {
	now := time.Now()
	return &User{
		spotifyID:   spotifyID,
		displayName: displayName,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (u *User) ID() string            { return u.id }
func (u *User) SpotifyID() string     { return u.spotifyID }
func (u *User) DisplayName() string   { return u.displayName }
func (u *User) CreatedAt() time.Time  { return u.createdAt }
func (u *User) UpdatedAt() time.Time  { return u.updatedAt }

// EncryptedRefreshToken returns the stored ciphertext, empty when the user
// has never logged in.
func (u *User) EncryptedRefreshToken() string { return u.encryptedRefreshToken }

func (u *User) SetID(id string)                 { u.id = id }
func (u *User) SetDisplayName(name string)      { u.displayName = name }
func (u *User) SetCreatedAt(t time.Time)        { u.createdAt = t }
func (u *User) SetUpdatedAt(t time.Time)        { u.updatedAt = t }
func (u *User) SetEncryptedRefreshToken(c string) { u.encryptedRefreshToken = c }

// Validate checks that the user has the required identity fields.
func (u *User) Validate() error {
	if u.spotifyID == "" {
		return fmt.Errorf("user requires a spotify_id")
	}
	return nil
}
