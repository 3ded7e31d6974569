package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"

	"github.com/pelusa-v/pelusa-widget/internal/auth"
	"github.com/pelusa-v/pelusa-widget/internal/config"
	"github.com/pelusa-v/pelusa-widget/internal/handlers"
	"github.com/pelusa-v/pelusa-widget/internal/inbox"
	"github.com/pelusa-v/pelusa-widget/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogJSON)

	store := inbox.NewStore(nil)
	if cfg.MailboxesFile != "" {
		n, err := store.LoadMailboxes(cfg.MailboxesFile)
		if err != nil {
			logger.Error("failed to load mailboxes", "error", err)
			os.Exit(1)
		}
		logger.Info("loaded mailboxes", "count", n, "file", cfg.MailboxesFile)
	}
	if cfg.SeedMailbox != "" {
		if err := store.AddMailbox(inbox.Mailbox{
			Slug:        cfg.SeedMailbox,
			HMACSecret:  cfg.SeedHMACSecret,
			DisplayMode: inbox.DisplayAlways,
		}); err != nil {
			logger.Error("failed to seed mailbox", "error", err)
			os.Exit(1)
		}
	}

	embed, err := url.Parse(cfg.EmbedURL)
	if err != nil || embed.Path == "" {
		logger.Error("invalid embed url", "url", cfg.EmbedURL, "error", err)
		os.Exit(1)
	}

	app := fiber.New(fiber.Config{
		Views:                 html.New(cfg.ViewsDir, ".html"),
		DisableStartupMessage: true,
	})
	handlers.New(store, auth.NewSessions(cfg.JWTSecret, nil),
		handlers.WithLogger(logger),
		handlers.WithEmbed(embed.Path, cfg.EmbedURL),
	).Register(app)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	logger.Info("embed backend listening", "addr", cfg.Addr(), "embed", cfg.EmbedURL)
	if err := app.Listen(cfg.Addr()); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
