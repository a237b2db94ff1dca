// Package model defines the data structures used throughout the application.
package model

import "time"

// DailyActivity is one day's worth of editing counters, accumulated by the
// editor extension and reported to the server.
//
// The counters are deltas summed over the day — the extension sends whatever
// it measured since its last report and the server adds it in.
type DailyActivity struct {
	LinesCreated      int `json:"linesCreated"      db:"lines_created"`
	LinesDeleted      int `json:"linesDeleted"      db:"lines_deleted"`
	TotalLinesChanged int `json:"totalLinesChanged" db:"total_lines_changed"`
	FilesCreated      int `json:"filesCreated"      db:"files_created"`
	FilesDeleted      int `json:"filesDeleted"      db:"files_deleted"`
}

// User represents a registered user account.
//
// GitHub OAuth is the identity provider, so the primary external identifier
// is the GitHub user ID. We still generate our own internal string ID (xid)
// to avoid tying primary keys to a third party's numbering scheme.
//
// WHY IS GitHubID NEVER UPDATED?
// GitHub guarantees the ID is stable for the lifetime of the account, and the
// UNIQUE constraint on github_id in the DB ensures one GitHub account maps to
// exactly one row. The profile fields (Name, Email, AvatarURL) are captured at
// first login and deliberately left alone on later logins — see
// UserRepository.FindOrCreate.
//
// WHY Email string (not *string)?
// GitHub returns the primary public email, which can be empty if the user has
// hidden it. We use an empty string as the zero value; the repository stores
// NULL for empty so the UNIQUE constraint only applies when an email is present.
type User struct {
	ID        string                   `json:"id"        db:"id"`
	GitHubID  int64                    `json:"userId"    db:"github_id"` // GitHub's numeric user ID
	Name      string                   `json:"name"      db:"name"`      // Display name, falls back to login
	Email     string                   `json:"email"     db:"email"`     // Primary public email (may be empty)
	AvatarURL string                   `json:"image"     db:"avatar_url"`
	Track     map[string]DailyActivity `json:"track"` // date key (YYYY-MM-DD) → counters
	CreatedAt time.Time                `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time                `json:"updatedAt" db:"updated_at"`
}
