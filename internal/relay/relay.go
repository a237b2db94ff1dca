// Package relay bridges a browser redirect into the extension process.
//
// THE PROBLEM IT SOLVES:
// After the OAuth callback, the server has a signed token but the only thing
// it can reach is the user's BROWSER — the extension is a separate local
// process with no inbound channel. The relay is that channel: a single-use
// HTTP listener on a fixed loopback port. The server redirects the browser
// to http://127.0.0.1:<port>/auth/<token>; the relay stores the token and
// shuts itself down.
//
// LIFECYCLE:
//
//	Idle → Binding → Listening → Received → Closed
//	         ↓ (port in use)
//	       Idle  (ErrBind returned to the caller, no automatic retry)
//
// Exactly one delivery is accepted per Start: once a well-formed token
// arrives, the socket closes and stays closed until the next Start. A
// malformed request gets an error page and leaves the listener open. An
// unfulfilled listener waits indefinitely — there is deliberately no
// timeout; Dispose exists for the owner to reclaim it.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

// ErrBind means the fixed local port could not be bound — usually a second
// extension instance, or a leftover process, already owns it. The attempt is
// abandoned; the caller decides whether to tell the user or try again.
var ErrBind = errors.New("relay: cannot bind local port")

// State is the relay's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateBinding
	StateListening
	StateReceived
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBinding:
		return "binding"
	case StateListening:
		return "listening"
	case StateReceived:
		return "received"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TokenSink receives the delivered token. *tokenstore.Store satisfies it.
type TokenSink interface {
	Set(token string) error
}

// Relay is the single-use local callback listener.
//
// The composition root owns exactly one Relay and keeps it for the life of
// the process — there is no module-level singleton. "At most one active
// listener" falls out of the state check in Start, not out of the mutex: the
// mutex only exists because the HTTP handler runs on the server's goroutine
// while Start/Status/Dispose run on the caller's.
type Relay struct {
	port    int
	store   TokenSink
	openURL func(url string) error
	logger  *slog.Logger

	mu    sync.Mutex
	state State
	srv   *http.Server
	done  chan struct{} // closed once per lifetime, when a token lands
}

// New creates a Relay bound (eventually) to the given loopback port.
// openURL is the host environment's "open external URL" capability; pass
// DefaultOpenURL outside of tests.
func New(port int, store TokenSink, openURL func(string) error, logger *slog.Logger) *Relay {
	return &Relay{
		port:    port,
		store:   store,
		openURL: openURL,
		logger:  logger,
		state:   StateIdle,
	}
}

// Start binds the port, begins listening, and opens the browser at
// providerURL (the server's /auth/github entry point).
//
// Calling Start while already listening is a no-op — a user double-clicking
// sign-in must not open a second socket. After a completed or disposed
// lifetime, Start arms a fresh one.
func (r *Relay) Start(providerURL string) error {
	r.mu.Lock()
	switch r.state {
	case StateListening, StateBinding, StateReceived:
		r.mu.Unlock()
		return nil
	}
	r.state = StateBinding
	r.mu.Unlock()

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", r.port))
	if err != nil {
		r.mu.Lock()
		r.state = StateIdle
		r.mu.Unlock()
		return fmt.Errorf("%w: port %d: %v", ErrBind, r.port, err)
	}

	router := chi.NewRouter()
	router.Get("/auth/{token}", r.handleToken)
	// Everything else — including /auth/ with the token segment missing —
	// answers with an error page and leaves the listener open.
	router.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writePage(w, http.StatusBadRequest, "something went wrong")
	})

	srv := &http.Server{Handler: router}
	done := make(chan struct{})

	r.mu.Lock()
	if r.state != StateBinding {
		// Disposed while binding — give the port back and stay down.
		r.mu.Unlock()
		ln.Close()
		return nil
	}
	r.state = StateListening
	r.srv = srv
	r.done = done
	r.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			r.logger.Error("relay: serve failed", slog.String("error", err.Error()))
		}
	}()

	// Closer: once the token lands, stop accepting and let the in-flight
	// confirmation response finish. Shutdown (not Close) so the browser tab
	// actually renders "you can close this now".
	go func() {
		<-done
		if err := srv.Shutdown(context.Background()); err != nil && err != http.ErrServerClosed {
			r.logger.Warn("relay: shutdown", slog.String("error", err.Error()))
		}
		r.mu.Lock()
		if r.done == done { // a later Start may have armed a new lifetime already
			r.state = StateClosed
		}
		r.mu.Unlock()
	}()

	r.logger.Info("relay listening", slog.Int("port", r.port))

	if err := r.openURL(providerURL); err != nil {
		// The listener is up and will catch the token whenever the user
		// reaches the provider, so a failed browser launch is not fatal.
		r.logger.Warn("relay: opening browser failed — visit the URL manually",
			slog.String("url", providerURL),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// handleToken is the one real route: GET /auth/{token}.
//
// Order matters here: the token is persisted BEFORE the confirmation page is
// written and before the socket starts closing. If the store write fails the
// listener stays open so the user can retry the redirect.
func (r *Relay) handleToken(w http.ResponseWriter, req *http.Request) {
	token := chi.URLParam(req, "token")
	if token == "" {
		writePage(w, http.StatusBadRequest, "something went wrong")
		return
	}

	r.mu.Lock()
	if r.state != StateListening {
		// A second delivery racing the shutdown of the first.
		r.mu.Unlock()
		writePage(w, http.StatusConflict, "already signed in — you can close this")
		return
	}

	if err := r.store.Set(token); err != nil {
		r.mu.Unlock()
		r.logger.Error("relay: storing token failed", slog.String("error", err.Error()))
		writePage(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	r.state = StateReceived
	done := r.done
	r.mu.Unlock()

	r.logger.Info("relay: token received and stored")
	writePage(w, http.StatusOK, "auth was successful, you can close this now")

	close(done)
}

// Status returns the relay's current state.
func (r *Relay) Status() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Dispose force-closes an active listener without waiting for a token.
// Safe to call in any state; afterwards Start may be called again.
func (r *Relay) Dispose() {
	r.mu.Lock()
	srv := r.srv
	done := r.done
	// Only an unfulfilled lifetime still owns its done channel; once a token
	// landed, the handler has closed it.
	wasListening := r.state == StateListening
	r.srv = nil
	r.state = StateClosed
	r.mu.Unlock()

	if wasListening && done != nil {
		close(done)
	}
	if srv != nil {
		srv.Close()
	}
}

func writePage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<h1>%s</h1>", message)
}
