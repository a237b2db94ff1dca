// Package repository declares the storage interfaces the service layer
// depends on. The sqlite subpackage implements them; tests use in-memory
// fakes. Services only ever see these interfaces, never a concrete DB.
package repository

import (
	"context"

	"github.com/rafid/habit-tracker/internal/model"
)

// UserRepository is the durable user store behind the identity resolver.
type UserRepository interface {
	// FindOrCreate looks up a user by user.GitHubID. If absent, it inserts
	// the given record (with an empty activity track) and fills in the
	// generated ID and timestamps. If present, it loads the STORED record
	// into user, leaving the stored profile fields untouched — a repeat
	// login never overwrites name/email/avatar from a possibly stale
	// provider profile.
	//
	// Returns apperror.ErrConflict (wrapped) when a different user already
	// holds the same email.
	FindOrCreate(ctx context.Context, user *model.User) error

	// GetUserByID retrieves a user (including the activity track) by
	// internal ID. Returns apperror.ErrNotFound (wrapped) when absent.
	GetUserByID(ctx context.Context, id string) (*model.User, error)

	// RecordActivity accumulates a day's counters into the user's track.
	// day is a YYYY-MM-DD date key.
	RecordActivity(ctx context.Context, userID, day string, delta model.DailyActivity) error
}
