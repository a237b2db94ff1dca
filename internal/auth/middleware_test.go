package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name        string
		header      string // "" means no Authorization header at all
		wantToken   string
		wantPresent bool
	}{
		{
			name:        "no header",
			header:      "",
			wantToken:   "",
			wantPresent: false,
		},
		{
			name:        "well-formed bearer",
			header:      "Bearer abc.def.ghi",
			wantToken:   "abc.def.ghi",
			wantPresent: true,
		},
		{
			name:        "lowercase scheme",
			header:      "bearer abc.def.ghi",
			wantToken:   "abc.def.ghi",
			wantPresent: true,
		},
		{
			name:        "wrong scheme",
			header:      "Basic dXNlcjpwYXNz",
			wantToken:   "",
			wantPresent: true,
		},
		{
			name:        "scheme without token",
			header:      "Bearer",
			wantToken:   "",
			wantPresent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			token, present := BearerToken(r)
			if token != tt.wantToken || present != tt.wantPresent {
				t.Errorf("BearerToken() = (%q, %v), want (%q, %v)",
					token, present, tt.wantToken, tt.wantPresent)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Issue("user-777")

	// The protected handler records the userID it saw in the context
	var gotUserID string
	protected := RequireAuth(ts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("valid token passes through", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/activity", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		protected.ServeHTTP(w, r)

		if w.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
		}
		if gotUserID != "user-777" {
			t.Errorf("userID in context = %q, want %q", gotUserID, "user-777")
		}
	})

	t.Run("missing token is rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/activity", nil)
		w := httptest.NewRecorder()

		protected.ServeHTTP(w, r)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("tampered token is rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/activity", nil)
		r.Header.Set("Authorization", "Bearer "+token[:len(token)-3]+"xxx")
		w := httptest.NewRecorder()

		protected.ServeHTTP(w, r)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}
