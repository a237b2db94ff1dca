package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/xid"

	"github.com/rafid/habit-tracker/internal/auth"
	"github.com/rafid/habit-tracker/internal/service"
)

// AuthHandler manages the GitHub OAuth login flow and the /me endpoint.
//
// HANDLER RESPONSIBILITIES:
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → receive the code, exchange it, hand the token to
//     the extension's local relay via a browser redirect
//   - HandleMe             → resolve the bearer token to a user profile
//
// THE RELAY REDIRECT:
// The client that needs the token is an editor extension — a separate local
// process that cannot receive an HTTP redirect itself. The callback therefore
// bounces the user's BROWSER to http://127.0.0.1:<relay-port>/auth/<token>,
// where the extension's single-use listener picks the token up and stores it.
// The redirect chain is the only synchronization in the whole flow.
type AuthHandler struct {
	github   *auth.GitHubProvider
	authSvc  *service.AuthService
	relayURL string // base URL of the extension's local relay, e.g. http://127.0.0.1:54321
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(
	github *auth.GitHubProvider,
	authSvc *service.AuthService,
	relayURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		github:   github,
		authSvc:  authSvc,
		relayURL: strings.TrimSuffix(relayURL, "/"),
		logger:   logger,
	}
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github
//
// A random state value is sent along because GitHub echoes it back, but the
// callback does not validate it — the token is only ever delivered to a
// listener on the user's own loopback interface, and state validation is an
// explicit non-goal of this deployment.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx
//
// FLOW:
//  1. Exchange the code for a GitHub user profile
//  2. Find-or-create the user record
//  3. Issue a JWT
//  4. Redirect the browser to the extension's local relay carrying the token
//
// Exchange and persistence failures are the two genuinely unrecoverable
// outcomes of an attempt — they surface as a user-visible error page and are
// not retried.
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	// User denied authorization on GitHub's page
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam),
		)
		h.failPage(w, "GitHub authorization was denied.")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		h.failPage(w, "Signing in with GitHub failed. Please try again.")
		return
	}

	result, err := h.authSvc.LoginGitHub(r.Context(), ghUser)
	if err != nil {
		// Covers the duplicate-email conflict too: logged, surfaced as a
		// failed sign-in, never a crash.
		h.logger.Error("auth callback: login failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		h.failPage(w, "Signing in with GitHub failed. Please try again.")
		return
	}

	// Hand the token to the extension's relay. The token travels in the URL
	// path, matching the relay's GET /auth/{token} route.
	http.Redirect(w, r,
		fmt.Sprintf("%s/auth/%s", h.relayURL, url.PathEscape(result.Token)),
		http.StatusSeeOther,
	)
}

// meResponse is the three-way /me payload. User is one of:
//   - the user record (valid token for an existing user)
//   - null            (header present but token invalid or user unknown)
//   - "unauthorized"  (no Authorization header at all)
type meResponse struct {
	User any `json:"user"`
}

// HandleMe returns the profile for the presented bearer token.
//
// HTTP: GET /me  with  Authorization: Bearer <token>
//
// This deliberately does NOT sit behind RequireAuth: the response must
// distinguish "no auth header" from "header present but invalid", and a
// middleware that 401s on both would flatten them. Every branch is a
// data-driven 200 — nothing a client sends here can produce an error path.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	token, headerPresent := auth.BearerToken(r)
	if !headerPresent {
		writeJSON(w, http.StatusOK, meResponse{User: "unauthorized"})
		return
	}

	user, ok := h.authSvc.AuthenticateToken(r.Context(), token)
	if !ok {
		writeJSON(w, http.StatusOK, meResponse{User: nil})
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: user})
}

// failPage renders a minimal human-readable failure page. The viewer is a
// person mid-sign-in in a real browser tab, not an API client.
func (h *AuthHandler) failPage(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusBadGateway)
	fmt.Fprintf(w, "<h1>%s</h1><p>You can close this tab.</p>", message)
}
