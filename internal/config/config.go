// Package config loads configuration from environment variables.
//
// Both binaries load a .env file first (via godotenv in main) and then parse
// the environment into a typed struct with caarlos0/env. Struct tags declare
// defaults and required fields in one place, so main.go stays free of
// os.Getenv boilerplate.
//
// THE SIGNING SECRET HAS NO DEFAULT.
// JWT_SECRET is marked required,notEmpty — a server started without it exits
// immediately instead of falling back to some literal that every copy of the
// binary would share.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Server is the configuration for cmd/server.
type Server struct {
	Port   int    `env:"PORT" envDefault:"3002"`
	DBPath string `env:"DB_PATH" envDefault:"data/habits.db"`

	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`

	GitHubClientID     string `env:"GITHUB_CLIENT_ID,required,notEmpty"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET,required,notEmpty"`
	// Defaulted from Port in LoadServer when unset — it depends on another
	// field, which env tags can't express.
	GitHubCallbackURL string `env:"GITHUB_CALLBACK_URL"`

	// Where the callback handler redirects the browser after issuing a token.
	// Must match the relay port the extension listens on.
	RelayURL string `env:"RELAY_URL" envDefault:"http://127.0.0.1:54321"`
}

// Extension is the configuration for cmd/extension.
type Extension struct {
	// Base URL of the habit tracker API server.
	APIBaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:3002"`

	// Fixed local port the callback relay binds. The server's RELAY_URL must
	// point at the same port.
	RelayPort int `env:"RELAY_PORT" envDefault:"54321"`

	// Directory holding the extension's persistent state (the token slot).
	StateDir string `env:"STATE_DIR" envDefault:".habit-tracker"`
}

// LoadServer parses the server configuration from the environment.
func LoadServer() (*Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}
	return &cfg, nil
}

// LoadExtension parses the extension configuration from the environment.
func LoadExtension() (*Extension, error) {
	var cfg Extension
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
