package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Server holds the embed backend configuration.
type Server struct {
	Port int    `envconfig:"PORT" default:"3000"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`

	// Public URL of the embedded chat frame. Its origin is the origin
	// every frame message is scoped to.
	EmbedURL string `envconfig:"EMBED_URL" default:"http://127.0.0.1:3000/widget/embed"`

	JWTSecret string `envconfig:"WIDGET_JWT_SECRET" required:"true"`
	ViewsDir  string `envconfig:"VIEWS_DIR" default:"./views"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON  bool   `envconfig:"LOG_JSON" default:"false"`

	// YAML list of mailboxes loaded at startup.
	MailboxesFile string `envconfig:"MAILBOXES_FILE" default:""`

	// Optional mailbox created at startup for local testing.
	SeedMailbox    string `envconfig:"SEED_MAILBOX" default:""`
	SeedHMACSecret string `envconfig:"SEED_HMAC_SECRET" default:""`
}

// Load loads server configuration from environment variables
func Load() (*Server, error) {
	var cfg Server
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Server) error {
	if cfg.Port <= 0 {
		return fmt.Errorf("PORT must be greater than 0")
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("WIDGET_JWT_SECRET is required")
	}
	if cfg.EmbedURL == "" {
		return fmt.Errorf("EMBED_URL is required")
	}
	if cfg.SeedMailbox != "" && cfg.SeedHMACSecret == "" {
		return fmt.Errorf("SEED_HMAC_SECRET is required when SEED_MAILBOX is set")
	}
	return nil
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
