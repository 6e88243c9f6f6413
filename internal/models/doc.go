// Package models defines the persistent entities of the scheduled
// operations engine: users with their encrypted Spotify credential,
// schedules describing recurring raid/reorder jobs, and the append-only
// job execution audit trail.
//
// Models carry their own validation; repositories in
// internal/repositories handle persistence.
package models
