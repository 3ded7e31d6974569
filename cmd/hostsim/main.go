// Command hostsim runs the widget against a host page file and prints
// the decorated page. It connects to a running embed backend for the
// session handshake and the chat frame.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/pelusa-v/pelusa-widget/internal/auth"
	"github.com/pelusa-v/pelusa-widget/internal/config"
	"github.com/pelusa-v/pelusa-widget/internal/logging"
	"github.com/pelusa-v/pelusa-widget/internal/page"
	"github.com/pelusa-v/pelusa-widget/internal/session"
	"github.com/pelusa-v/pelusa-widget/internal/storage"
	"github.com/pelusa-v/pelusa-widget/internal/widget"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	pagePath   string
	pageURL    string
	configPath string
	embedURL   string
	dbPath     string
	hmacSecret string
	logLevel   string
	wait       time.Duration
	actions    []string
}

func parseFlags(args []string) (options, error) {
	var o options
	flagSet := pflag.NewFlagSet("hostsim", pflag.ContinueOnError)
	flagSet.StringVar(&o.pagePath, "page", "", "host page HTML file (default: empty page)")
	flagSet.StringVar(&o.pageURL, "url", "https://host.example/", "URL the host page is served from")
	flagSet.StringVar(&o.configPath, "config", "", "widget config YAML file (required)")
	flagSet.StringVar(&o.embedURL, "embed-url", "http://127.0.0.1:3000/widget/embed", "chat frame URL")
	flagSet.StringVar(&o.dbPath, "db", "", "sqlite file for persisted widget state (default: in memory)")
	flagSet.StringVar(&o.hmacSecret, "hmac-secret", "", "sign the config email with this mailbox secret")
	flagSet.StringVar(&o.logLevel, "log-level", "info", "log level")
	flagSet.DurationVar(&o.wait, "wait", 5*time.Second, "how long to wait for the session handshake")
	flagSet.StringSliceVar(&o.actions, "action", nil,
		"actions to run in order: show, hide, toggle, minimize, maximize, toggle-minimize, prompt:<text>, guide:<text>")

	if err := flagSet.Parse(args); err != nil {
		return o, err
	}
	if o.configPath == "" {
		return o, fmt.Errorf("--config is required")
	}
	return o, nil
}

func run(args []string) error {
	o, err := parseFlags(args)
	if err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	logger := logging.New(o.logLevel, false)
	ctx := logging.AddToContext(context.Background(), logger)

	cfg, err := config.LoadWidget(o.configPath)
	if err != nil {
		return err
	}
	if o.hmacSecret != "" && cfg.Email != "" {
		ha, err := auth.GenerateHelperAuth(cfg.Email, o.hmacSecret, time.Now())
		if err != nil {
			return err
		}
		cfg.EmailHash, cfg.Timestamp = ha.EmailHash, ha.Timestamp
	}

	p, err := loadPage(o.pagePath, o.pageURL)
	if err != nil {
		return err
	}

	var store storage.Store = storage.NewMemory()
	if o.dbPath != "" {
		origin, err := session.Origin(o.pageURL)
		if err != nil {
			return err
		}
		db, err := storage.OpenSQLite(o.dbPath, origin)
		if err != nil {
			return err
		}
		defer db.Close()
		store = db
	}

	steps, err := parseActions(o.actions)
	if err != nil {
		return err
	}

	w, err := widget.Init(ctx, cfg, widget.Options{
		Page:          p,
		EmbedURL:      o.embedURL,
		Store:         store,
		Screenshotter: widget.MarkupScreenshotter{},
	})
	if err != nil {
		return err
	}
	defer widget.Destroy()

	select {
	case <-w.Ready():
	case <-time.After(o.wait):
		logger.Warn("session handshake still pending", "wait", o.wait)
	}
	for _, step := range steps {
		step()
		w.Sync()
	}

	fmt.Println(p.OuterHTML())
	return nil
}

func loadPage(path, url string) (*page.Page, error) {
	if path == "" {
		return page.New(url), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer f.Close()
	return page.Parse(f, url)
}

// parseActions maps action names to calls on the current widget.
func parseActions(names []string) ([]func(), error) {
	steps := make([]func(), 0, len(names))
	for _, name := range names {
		verb, arg, _ := strings.Cut(name, ":")
		switch verb {
		case "show":
			steps = append(steps, widget.Show)
		case "hide":
			steps = append(steps, widget.Hide)
		case "toggle":
			steps = append(steps, widget.Toggle)
		case "minimize":
			steps = append(steps, widget.Minimize)
		case "maximize":
			steps = append(steps, widget.Maximize)
		case "toggle-minimize":
			steps = append(steps, widget.ToggleMinimize)
		case "prompt":
			text := arg
			steps = append(steps, func() { widget.SendPrompt(&text) })
		case "guide":
			if arg == "" {
				return nil, fmt.Errorf("action %q: guide needs a prompt", name)
			}
			steps = append(steps, func() { widget.StartGuide(arg) })
		default:
			return nil, fmt.Errorf("unknown action %q", name)
		}
	}
	return steps, nil
}
