package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/rafid/habit-tracker/internal/apperror"
	"github.com/rafid/habit-tracker/internal/model"
	"github.com/rafid/habit-tracker/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// FindOrCreate looks up a user by GitHub ID, inserting a fresh record when
// none exists.
//
// NO FIELD SYNC ON REPEAT LOGIN:
// When the user already exists we load the STORED row into the caller's
// struct and change nothing. The name/email/avatar captured at first login
// stay as they are even if the incoming GitHub profile differs — a stale or
// partially-hidden provider profile must never clobber the record.
//
// RACE ON FIRST LOGIN:
// Two concurrent first logins for the same GitHub ID both miss the initial
// SELECT and both try to INSERT. The UNIQUE constraint on github_id lets
// exactly one succeed; the loser retries as a lookup and observes the row
// the winner created. A duplicate email, on the other hand, is a genuine
// conflict with a DIFFERENT user and surfaces as apperror.ErrConflict.
func (db *DB) FindOrCreate(ctx context.Context, user *model.User) error {
	if found, err := db.loadByGitHubID(ctx, user); err != nil {
		return err
	} else if found {
		return nil
	}

	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Track == nil {
		user.Track = map[string]model.DailyActivity{}
	}

	// Store NULL for a hidden email so the UNIQUE constraint ignores it.
	var email sql.NullString
	if user.Email != "" {
		email = sql.NullString{String: user.Email, Valid: true}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, github_id, name, email, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.GitHubID,
		user.Name,
		email,
		user.AvatarURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err == nil {
		return nil
	}

	switch {
	case isUniqueViolation(err, "users.github_id"):
		// Lost the creation race — the row exists now, read it.
		if found, lookupErr := db.loadByGitHubID(ctx, user); lookupErr != nil {
			return lookupErr
		} else if found {
			return nil
		}
		return fmt.Errorf("sqlite: user vanished after github_id conflict (githubID=%d)", user.GitHubID)

	case isUniqueViolation(err, "users.email"):
		return apperror.Conflict("user", fmt.Sprintf("email %s already registered", user.Email))

	default:
		return fmt.Errorf("sqlite: inserting user (githubID=%d): %w", user.GitHubID, err)
	}
}

// loadByGitHubID fills user from the stored row for user.GitHubID.
// Returns (false, nil) when no such row exists.
func (db *DB) loadByGitHubID(ctx context.Context, user *model.User) (bool, error) {
	var (
		u     model.User
		email sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, github_id, name, email, avatar_url, created_at, updated_at
		 FROM users WHERE github_id = ?`,
		user.GitHubID,
	).Scan(&u.ID, &u.GitHubID, &u.Name, &email, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	u.Email = email.String
	track, err := db.loadTrack(ctx, u.ID)
	if err != nil {
		return false, err
	}
	u.Track = track

	*user = u
	return true, nil
}

// GetUserByID retrieves a user, including the activity track, by internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var (
		u     model.User
		email sql.NullString
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, github_id, name, email, avatar_url, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.GitHubID, &u.Name, &email, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	u.Email = email.String

	track, err := db.loadTrack(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Track = track

	return &u, nil
}

// RecordActivity accumulates one day's counters for a user.
//
// The UPSERT adds the delta into the existing row, so repeated reports over
// the course of a day pile up instead of overwriting each other.
func (db *DB) RecordActivity(ctx context.Context, userID, day string, delta model.DailyActivity) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO activity_days
			(user_id, day, lines_created, lines_deleted, total_lines_changed, files_created, files_deleted)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, day) DO UPDATE SET
			lines_created       = lines_created + excluded.lines_created,
			lines_deleted       = lines_deleted + excluded.lines_deleted,
			total_lines_changed = total_lines_changed + excluded.total_lines_changed,
			files_created       = files_created + excluded.files_created,
			files_deleted       = files_deleted + excluded.files_deleted`,
		userID, day,
		delta.LinesCreated,
		delta.LinesDeleted,
		delta.TotalLinesChanged,
		delta.FilesCreated,
		delta.FilesDeleted,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return apperror.NotFound("user", userID)
		}
		return fmt.Errorf("sqlite: recording activity for user %s on %s: %w", userID, day, err)
	}
	return nil
}

// loadTrack reads all activity rows for a user into the track map.
func (db *DB) loadTrack(ctx context.Context, userID string) (map[string]model.DailyActivity, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT day, lines_created, lines_deleted, total_lines_changed, files_created, files_deleted
		 FROM activity_days WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading track for user %s: %w", userID, err)
	}
	defer rows.Close()

	track := map[string]model.DailyActivity{}
	for rows.Next() {
		var (
			day string
			a   model.DailyActivity
		)
		if err := rows.Scan(&day, &a.LinesCreated, &a.LinesDeleted, &a.TotalLinesChanged, &a.FilesCreated, &a.FilesDeleted); err != nil {
			return nil, fmt.Errorf("sqlite: scanning activity row: %w", err)
		}
		track[day] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating activity rows: %w", err)
	}

	return track, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on the
// given column. modernc.org/sqlite surfaces constraint errors as
// "constraint failed: UNIQUE constraint failed: users.email" — string
// matching on the qualified column name is the pragmatic way to tell which
// constraint fired.
func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}
