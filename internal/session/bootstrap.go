package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v5"

	"github.com/pelusa-v/pelusa-widget/internal/config"
	"github.com/pelusa-v/pelusa-widget/internal/logging"
)

const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 200 * time.Millisecond
)

// Creator issues a single session request.
type Creator interface {
	CreateSession(ctx context.Context, cfg config.Widget, currentURL string) (*Session, error)
}

// Bootstrapper runs the session handshake with bounded retry.
type Bootstrapper struct {
	creator  Creator
	attempts uint
	delay    time.Duration
	logger   *slog.Logger
}

type BootstrapOption func(*Bootstrapper)

func WithAttempts(n uint) BootstrapOption {
	return func(b *Bootstrapper) { b.attempts = n }
}

func WithRetryDelay(d time.Duration) BootstrapOption {
	return func(b *Bootstrapper) { b.delay = d }
}

func WithLogger(logger *slog.Logger) BootstrapOption {
	return func(b *Bootstrapper) { b.logger = logger }
}

func NewBootstrapper(creator Creator, opts ...BootstrapOption) *Bootstrapper {
	b := &Bootstrapper{
		creator:  creator,
		attempts: DefaultAttempts,
		delay:    DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.OrDefault(b.logger)
	return b
}

// IsConfigError reports whether err comes from config validation
// rather than the network.
func IsConfigError(err error) bool {
	return errors.Is(err, config.ErrInvalidConfig) || errors.Is(err, config.ErrMissingAuth)
}

// CreateSessionWithRetry attempts the handshake up to the configured
// number of times with a fixed delay, stopping at the first success.
// Config errors abort immediately. Failures are logged here; the
// returned error is for callers that want to branch on it.
func (b *Bootstrapper) CreateSessionWithRetry(ctx context.Context, cfg config.Widget, currentURL string) (*Session, error) {
	var sess *Session
	attempt := 0
	err := retry.New(
		retry.Attempts(b.attempts),
		retry.Delay(b.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool { return !IsConfigError(err) }),
	).Do(func() error {
		attempt++
		s, err := b.creator.CreateSession(ctx, cfg, currentURL)
		if err != nil {
			if !IsConfigError(err) {
				b.logger.Warn("session attempt failed", "attempt", attempt, "error", err)
			}
			return err
		}
		sess = s
		return nil
	})
	if err != nil {
		if IsConfigError(err) {
			b.logger.Error("invalid widget config, missing required fields", "mailbox_slug", cfg.MailboxSlug, "error", err)
			return nil, err
		}
		b.logger.Error(fmt.Sprintf("failed to create helper session after %d attempts", attempt), "error", err)
		return nil, err
	}
	return sess, nil
}
