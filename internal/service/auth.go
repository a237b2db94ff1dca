// Package service — authentication and activity business logic.
//
// AuthService sits between the HTTP handlers and the repository/auth
// utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT)
//
// KEY RESPONSIBILITIES:
//   - Orchestrate the GitHub OAuth callback: find-or-create the user, issue a token
//   - Turn a presented bearer token into a user record — or a plain
//     "unauthenticated" outcome, never an error, for anything malformed
//   - Stay free of HTTP concerns so it tests with fakes
package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/rafid/habit-tracker/internal/apperror"
	"github.com/rafid/habit-tracker/internal/auth"
	"github.com/rafid/habit-tracker/internal/model"
	"github.com/rafid/habit-tracker/internal/repository"
)

// AuthService handles the authentication business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users  repository.UserRepository → read/write user records
//   - tokens *auth.TokenService        → issue/verify JWTs
//   - logger *slog.Logger              → structured logging
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the callback
// handler can build the relay redirect in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginGitHub handles the GitHub OAuth callback.
//
// After the handler exchanges the code for a GitHubUser profile, this:
//
//  1. Finds or creates the user record keyed by the GitHub ID. An existing
//     record is returned exactly as stored — no profile sync (see
//     UserRepository.FindOrCreate).
//  2. Issues a JWT carrying the user's internal ID.
//
// A duplicate-email conflict comes back as an error wrapping
// apperror.ErrConflict; the handler shows it as a failed sign-in, it is
// never swallowed.
func (s *AuthService) LoginGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Name:      ghUser.DisplayName(),
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
	}

	if err := s.users.FindOrCreate(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: resolving user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("name", user.Name),
	)

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %s: %w", user.ID, err)
	}

	return &AuthResult{
		User:  user,
		Token: token,
	}, nil
}

// AuthenticateToken turns a presented bearer token into a user record.
//
// The three steps the /me endpoint needs, in order:
//  1. Verify the token (signature, expiry, issuer)
//  2. Look up the user the token's subject names
//  3. Return the record
//
// Every failure — tampered token, expired token, deleted user — comes back
// as (nil, false). No error return: this sits on the hot path of every
// authenticated request and arbitrary client input must only ever degrade
// to "unauthenticated".
func (s *AuthService) AuthenticateToken(ctx context.Context, token string) (*model.User, bool) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, false
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		// A valid token for a vanished user: log it, it shouldn't happen
		// outside of manual DB surgery, but still degrade cleanly.
		s.logger.Warn("valid token for unknown user", slog.String("userID", userID))
		return nil, false
	}

	return user, true
}

// dayKey matches the YYYY-MM-DD date keys used in the activity track.
var dayKey = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// RecordActivity validates a day key and accumulates the delta into the
// user's track.
func (s *AuthService) RecordActivity(ctx context.Context, userID, day string, delta model.DailyActivity) error {
	if !dayKey.MatchString(day) {
		return apperror.ValidationFailed("day", "day must be a YYYY-MM-DD date key")
	}

	if err := s.users.RecordActivity(ctx, userID, day, delta); err != nil {
		return fmt.Errorf("service/auth: recording activity for user %s: %w", userID, err)
	}
	return nil
}
