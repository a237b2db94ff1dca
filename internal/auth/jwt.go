// Package auth provides JWT token issuance/verification and the GitHub OAuth
// exchange for the habit tracker API.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. The editor extension opens a browser at /auth/github → redirected to GitHub
// 2. GitHub calls back /auth/github/callback with a code
// 3. Server exchanges the code for a GitHub profile, finds-or-creates the user
// 4. Server issues a JWT and redirects the browser to the extension's local
//    relay: http://127.0.0.1:<relay-port>/auth/<token>
// 5. The relay persists the token; the extension sends it as
//    "Authorization: Bearer <token>" on later API calls
//
// WHY JWT?
// JWT is stateless — the server stores no session table. Everything needed
// (userID, expiry) is inside the signed token, and the HMAC signature ensures
// nobody can alter it without the secret. Verification is a pure computation,
// no DB lookup, which keeps it on the hot path of every request safely.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned by Verify for every way a token can be bad:
// tampered signature, undecodable payload, wrong algorithm, wrong issuer,
// missing subject, or expiry. Callers only ever need to know "valid or not" —
// they degrade to an unauthenticated result, never distinguish the cause.
var ErrInvalidToken = errors.New("auth: invalid token")

// tokenLifetime matches the original deployment: the editor extension
// re-authenticates rarely, so tokens live a year. Staleness is caught here at
// verification time; the client-side store never prunes.
const tokenLifetime = 365 * 24 * time.Hour

const issuer = "habit-tracker"

// TokenService handles JWT creation and verification.
//
// It holds the HMAC secret used to sign and verify tokens. The secret is
// injected configuration — there is deliberately no default anywhere, and
// startup fails without it (a weak literal baked into the source would make
// every deployment forgeable).
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. jwt.RegisteredClaims carries the standard fields;
// we use "sub" (Subject) to store the internal user ID.
type claims struct {
	jwt.RegisteredClaims
}

// Issue creates and signs a JWT for the given userID, expiring one year out.
//
// Signing algorithm: HS256 (HMAC-SHA256) — symmetric, same key signs and
// verifies. Fine for a single-issuer deployment like this one.
func (s *TokenService) Issue(userID string) (string, error) {
	return s.IssueWithDuration(userID, tokenLifetime)
}

// IssueWithDuration creates a token with a custom expiry duration.
// Tests use it to mint already-expired tokens.
func (s *TokenService) IssueWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify parses and checks a JWT string, returning the userID from the "sub"
// claim when the token is valid.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired
//   - Issuer matches (prevents tokens minted by other apps)
//   - Algorithm is HS256 (prevents algorithm confusion attacks — without
//     WithValidMethods an attacker could present an alg:"none" token)
//
// Every failure comes back as a wrapped ErrInvalidToken. Verify never panics
// on malformed input — arbitrary bytes off the wire land here, and the /me
// handler turns any error into a plain unauthenticated response.
func (s *TokenService) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: expired", ErrInvalidToken)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: bad claims", ErrInvalidToken)
	}

	if c.Subject == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}

	return c.Subject, nil
}
