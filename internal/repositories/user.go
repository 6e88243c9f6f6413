package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/chrisrogers37/shuffify-sub000/internal/models"
	"github.com/chrisrogers37/shuffify-sub000/internal/shared"
)

// UserRepository persists [models.User] records, including the encrypted
// refresh token blob written by the login callback and the executor.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database with a generated ID
func (r *UserRepository) Create(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id := shared.GenerateID()
	user.SetID(id)

	query := `
		INSERT INTO users (id, spotify_id, display_name, encrypted_refresh_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	token := sql.NullString{String: user.EncryptedRefreshToken(), Valid: user.EncryptedRefreshToken() != ""}
	_, err := r.db.Exec(query, id, user.SpotifyID(), user.DisplayName(), token, user.CreatedAt(), user.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by ID
func (r *UserRepository) Get(id string) (*models.User, error) {
	query := `
		SELECT id, spotify_id, display_name, encrypted_refresh_token, created_at, updated_at
		FROM users
		WHERE id = ?
	`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetBySpotifyID retrieves a user by their Spotify account id
func (r *UserRepository) GetBySpotifyID(spotifyID string) (*models.User, error) {
	query := `
		SELECT id, spotify_id, display_name, encrypted_refresh_token, created_at, updated_at
		FROM users
		WHERE spotify_id = ?
	`
	return r.scanOne(r.db.QueryRow(query, spotifyID))
}

// List retrieves every user, most recently authenticated first.
func (r *UserRepository) List() ([]*models.User, error) {
	query := `
		SELECT id, spotify_id, display_name, encrypted_refresh_token, created_at, updated_at
		FROM users
		ORDER BY updated_at DESC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var (
			id          string
			spotifyID   string
			displayName string
			token       sql.NullString
			createdAt   time.Time
			updatedAt   time.Time
		)
		if err := rows.Scan(&id, &spotifyID, &displayName, &token, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		user := models.NewUser(spotifyID, displayName)
		user.SetID(id)
		user.SetCreatedAt(createdAt)
		user.SetUpdatedAt(updatedAt)
		if token.Valid {
			user.SetEncryptedRefreshToken(token.String)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// Update modifies an existing user's display name and credential
func (r *UserRepository) Update(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	user.SetUpdatedAt(now)

	token := sql.NullString{String: user.EncryptedRefreshToken(), Valid: user.EncryptedRefreshToken() != ""}

	query := `
		UPDATE users
		SET display_name = ?, encrypted_refresh_token = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, user.DisplayName(), token, now, user.ID())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s: %w", user.ID(), shared.ErrNotFound)
	}

	return nil
}

// UpdateRefreshToken overwrites the stored credential ciphertext for a user.
//
// Both the login callback and the executor funnel credential writes through
// here so there is a single encrypt-then-persist sequence.
func (r *UserRepository) UpdateRefreshToken(id, ciphertext string) error {
	query := `
		UPDATE users
		SET encrypted_refresh_token = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, ciphertext, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s: %w", id, shared.ErrNotFound)
	}

	return nil
}

// scanOne scans a single row into a [models.User]
func (r *UserRepository) scanOne(row *sql.Row) (*models.User, error) {
	var (
		id          string
		spotifyID   string
		displayName string
		token       sql.NullString
		createdAt   time.Time
		updatedAt   time.Time
	)

	err := row.Scan(&id, &spotifyID, &displayName, &token, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user := models.NewUser(spotifyID, displayName)
	user.SetID(id)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	if token.Valid {
		user.SetEncryptedRefreshToken(token.String)
	}

	return user, nil
}
