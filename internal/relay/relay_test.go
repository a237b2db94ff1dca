package relay

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// recordingSink is an in-memory TokenSink that can simulate one write failure.
type recordingSink struct {
	mu       sync.Mutex
	tokens   []string
	failNext bool
}

func (s *recordingSink) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return fmt.Errorf("disk full")
	}
	s.tokens = append(s.tokens, token)
	return nil
}

func (s *recordingSink) stored() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

// freePort grabs an ephemeral port the kernel considers free right now.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// newTestRelay wires a Relay on a free port with a recording sink and a
// browser opener that just counts invocations.
func newTestRelay(t *testing.T) (*Relay, *recordingSink, *int) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	sink := &recordingSink{}
	opens := 0
	r := New(freePort(t), sink, func(string) error {
		opens++
		return nil
	}, logger)
	t.Cleanup(r.Dispose)
	return r, sink, &opens
}

func get(t *testing.T, port int, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d%s", port, path))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	return resp, string(body)
}

func waitForState(t *testing.T, r *Relay, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return r.Status() == want },
		2*time.Second, 10*time.Millisecond,
		"relay never reached state %s (now %s)", want, r.Status())
}

// =========================================================================
// START / BIND
// =========================================================================

func TestStart_ListensAndOpensBrowser(t *testing.T) {
	r, _, opens := newTestRelay(t)

	require.NoError(t, r.Start("http://localhost:3002/auth/github"))

	assert.Equal(t, StateListening, r.Status())
	assert.Equal(t, 1, *opens, "browser should open once on a successful bind")
}

func TestStart_WhileListeningIsNoOp(t *testing.T) {
	r, _, opens := newTestRelay(t)

	require.NoError(t, r.Start("http://localhost:3002/auth/github"))
	// Double-clicked sign-in: no second socket, no second browser tab
	require.NoError(t, r.Start("http://localhost:3002/auth/github"))

	assert.Equal(t, StateListening, r.Status())
	assert.Equal(t, 1, *opens)
}

func TestStart_PortInUse(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	port := freePort(t)

	// Occupy the port so the relay's bind fails
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	defer ln.Close()

	opened := false
	r := New(port, &recordingSink{}, func(string) error { opened = true; return nil }, logger)

	err = r.Start("http://localhost:3002/auth/github")
	require.ErrorIs(t, err, ErrBind)
	assert.Equal(t, StateIdle, r.Status(), "a failed bind returns to idle")
	assert.False(t, opened, "browser must not open when binding failed")

	// The caller may retry manually: free the port and Start again
	ln.Close()
	require.NoError(t, r.Start("http://localhost:3002/auth/github"))
	r.Dispose()
}

// =========================================================================
// TOKEN DELIVERY
// =========================================================================

func TestDelivery_StoresTokenThenCloses(t *testing.T) {
	r, sink, _ := newTestRelay(t)
	require.NoError(t, r.Start("http://localhost:3002/auth/github"))

	resp, body := get(t, r.port, "/auth/tok-abc123")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "auth was successful")

	assert.Equal(t, []string{"tok-abc123"}, sink.stored())

	// Single-use: the socket closes after the first well-formed delivery
	waitForState(t, r, StateClosed)
	_, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/auth/tok-second", r.port))
	require.Error(t, err, "a second delivery must find the socket closed")
	assert.Equal(t, []string{"tok-abc123"}, sink.stored())
}

func TestDelivery_MalformedRequestKeepsListening(t *testing.T) {
	r, sink, _ := newTestRelay(t)
	require.NoError(t, r.Start("http://localhost:3002/auth/github"))

	// Missing token segment and unrelated paths: error page, still listening
	for _, path := range []string{"/auth/", "/auth", "/", "/favicon.ico"} {
		resp, body := get(t, r.port, path)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "path %s", path)
		assert.Contains(t, body, "something went wrong")
	}
	assert.Equal(t, StateListening, r.Status())
	assert.Empty(t, sink.stored())

	// A well-formed delivery still completes the lifetime
	resp, _ := get(t, r.port, "/auth/tok-late")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"tok-late"}, sink.stored())
	waitForState(t, r, StateClosed)
}

func TestDelivery_StoreFailureKeepsListening(t *testing.T) {
	r, sink, _ := newTestRelay(t)
	sink.failNext = true
	require.NoError(t, r.Start("http://localhost:3002/auth/github"))

	// Persistence failed — respond with an error, stay open for a retry
	resp, _ := get(t, r.port, "/auth/tok-1")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, StateListening, r.Status())

	// Retry succeeds
	resp, _ = get(t, r.port, "/auth/tok-1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"tok-1"}, sink.stored())
	waitForState(t, r, StateClosed)
}

func TestRestart_AfterCompletedLifetime(t *testing.T) {
	r, sink, opens := newTestRelay(t)

	require.NoError(t, r.Start("http://localhost:3002/auth/github"))
	get(t, r.port, "/auth/tok-first")
	waitForState(t, r, StateClosed)

	// A new Start arms a fresh single-use lifetime on the same port
	require.NoError(t, r.Start("http://localhost:3002/auth/github"))
	assert.Equal(t, 2, *opens)

	resp, _ := get(t, r.port, "/auth/tok-second")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"tok-first", "tok-second"}, sink.stored())
	waitForState(t, r, StateClosed)
}

func TestDispose_Idle(t *testing.T) {
	r, _, _ := newTestRelay(t)
	// Dispose before any Start must not panic
	r.Dispose()
	assert.Equal(t, StateClosed, r.Status())
}

func TestTokenWithJWTShape(t *testing.T) {
	r, sink, _ := newTestRelay(t)
	require.NoError(t, r.Start("http://localhost:3002/auth/github"))

	// Real tokens are dotted JWTs — make sure the path segment survives intact
	token := "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiI0MiJ9.c2ln"
	resp, _ := get(t, r.port, "/auth/"+token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, sink.stored(), 1)
	assert.True(t, strings.Count(sink.stored()[0], ".") == 2, "token mangled: %q", sink.stored()[0])
	waitForState(t, r, StateClosed)
}
