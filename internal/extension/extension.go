// Package extension is the editor-side composition of the auth pipeline.
//
// The presentation layer (a webview, out of scope here) talks to this
// process over a message channel — modeled as JSON lines on stdio. It sends
// commands, we reply with results. Only two commands exist:
//
//	{"command":"signIn"}   → start the relay listener and open the browser
//	{"command":"getToken"} → read the stored bearer token
//
// Commands are a closed set: decoding produces a CommandKind and dispatch
// handles every kind explicitly, with unknown kinds answered by a typed
// error reply rather than silently ignored.
package extension

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// CommandKind enumerates the messages the presentation layer can send.
type CommandKind string

const (
	CommandSignIn   CommandKind = "signIn"
	CommandGetToken CommandKind = "getToken"
)

// Command is one inbound message.
type Command struct {
	Command CommandKind `json:"command"`
}

// Reply is the outbound answer to a Command.
type Reply struct {
	Command CommandKind `json:"command"`
	OK      bool        `json:"ok"`
	Token   string      `json:"token,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Listener is the slice of the relay the dispatcher needs.
type Listener interface {
	Start(providerURL string) error
}

// TokenSource is the slice of the token store the dispatcher needs.
type TokenSource interface {
	Get() (string, error)
}

// Service dispatches presentation-layer commands to the relay and the
// token store.
type Service struct {
	listener   Listener
	tokens     TokenSource
	apiBaseURL string
	logger     *slog.Logger
}

func NewService(listener Listener, tokens TokenSource, apiBaseURL string, logger *slog.Logger) *Service {
	return &Service{
		listener:   listener,
		tokens:     tokens,
		apiBaseURL: apiBaseURL,
		logger:     logger,
	}
}

// Handle executes a single command and returns its reply.
//
// Every branch produces a Reply — including the failure ones. A bind error
// on signIn is the one failure the user has to see: it comes back as an
// error reply for the presentation layer to show, and nothing is retried
// automatically.
func (s *Service) Handle(cmd Command) Reply {
	switch cmd.Command {
	case CommandSignIn:
		if err := s.listener.Start(s.apiBaseURL + "/auth/github"); err != nil {
			s.logger.Error("sign-in failed", slog.String("error", err.Error()))
			return Reply{Command: cmd.Command, OK: false, Error: err.Error()}
		}
		return Reply{Command: cmd.Command, OK: true}

	case CommandGetToken:
		token, err := s.tokens.Get()
		if err != nil {
			s.logger.Error("reading token failed", slog.String("error", err.Error()))
			return Reply{Command: cmd.Command, OK: false, Error: err.Error()}
		}
		return Reply{Command: cmd.Command, OK: true, Token: token}

	default:
		return Reply{Command: cmd.Command, OK: false, Error: fmt.Sprintf("unknown command %q", cmd.Command)}
	}
}

// Run reads JSON-line commands from in and writes JSON-line replies to out
// until in is exhausted. Undecodable lines get an error reply too — garbage
// on the channel must never kill the loop.
func (s *Service) Run(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var cmd Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			if err := enc.Encode(Reply{OK: false, Error: "malformed command: " + err.Error()}); err != nil {
				return fmt.Errorf("extension: writing reply: %w", err)
			}
			continue
		}

		if err := enc.Encode(s.Handle(cmd)); err != nil {
			return fmt.Errorf("extension: writing reply: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("extension: reading commands: %w", err)
	}
	return nil
}
