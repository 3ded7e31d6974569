// Package widget is the embeddable helpdesk widget: it decorates a
// host page with an overlay, a lazily created chat frame, attribute
// bindings and notification bubbles, and keeps them in sync with a
// session from the embed backend.
package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/net/html"

	"github.com/pelusa-v/pelusa-widget/internal/bindings"
	"github.com/pelusa-v/pelusa-widget/internal/clock"
	"github.com/pelusa-v/pelusa-widget/internal/config"
	"github.com/pelusa-v/pelusa-widget/internal/frame"
	"github.com/pelusa-v/pelusa-widget/internal/logging"
	"github.com/pelusa-v/pelusa-widget/internal/notify"
	"github.com/pelusa-v/pelusa-widget/internal/page"
	"github.com/pelusa-v/pelusa-widget/internal/session"
	"github.com/pelusa-v/pelusa-widget/internal/storage"
)

var (
	// ErrNoInstance is returned when no widget has been initialized.
	ErrNoInstance = errors.New("widget not initialized")
	// ErrInvalidOptions reports missing embedding options.
	ErrInvalidOptions = errors.New("invalid widget options")
)

// Options are the embedding environment of a widget. Page and EmbedURL
// are required; everything else has a default.
type Options struct {
	Page     *page.Page
	EmbedURL string

	Opener frame.Opener // websocket by default
	Store  storage.Store
	// Creator and Reporter default to a session.Client for EmbedURL.
	Creator       session.Creator
	Reporter      notify.Reporter
	Screenshotter Screenshotter // nil answers SCREENSHOT with null

	Clock            clock.Clock
	Logger           *slog.Logger
	BootstrapOptions []session.BootstrapOption
}

func (o *Options) setDefaults(ctx context.Context) error {
	if o.Page == nil {
		return fmt.Errorf("%w: page is required", ErrInvalidOptions)
	}
	if o.EmbedURL == "" {
		return fmt.Errorf("%w: embed url is required", ErrInvalidOptions)
	}
	if o.Logger == nil {
		o.Logger = logging.FromContext(ctx)
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Opener == nil {
		o.Opener = frame.SocketOpener{Logger: o.Logger}
	}
	if o.Store == nil {
		o.Store = storage.NewMemory()
	}
	if o.Creator == nil || o.Reporter == nil {
		client, err := session.NewClient(o.EmbedURL, nil)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
		if o.Creator == nil {
			o.Creator = client
		}
		if o.Reporter == nil {
			o.Reporter = client
		}
	}
	return nil
}

// Widget is one widget instance. Its exported methods are safe for
// concurrent use; all state lives on the instance's event loop.
type Widget struct {
	cfg    config.Widget
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	loop   *eventLoop

	ready     chan struct{}
	readyOnce sync.Once
	destroyed sync.Once
	onDestroy func(*Widget)

	// Owned by the loop.
	channel  *frame.Channel
	state    *storage.State
	binder   *bindings.Binder
	notifier *notify.Manager

	style        *html.Node
	overlay      *html.Node
	loading      *html.Node
	wrapper      *html.Node
	iframe       *html.Node
	toggleButton *html.Node
	icon         *html.Node
	offClick     []func()
	elements     []page.Interactive

	visible       bool
	minimized     bool
	hasBeenOpened bool
	restored      bool

	token        string
	showWidget   bool
	conversation string
}

// New builds a widget and starts its setup in the background. The
// returned widget is usable immediately; Ready is closed once the
// session handshake and state restore have finished.
func New(ctx context.Context, cfg config.Widget, opts Options) (*Widget, error) {
	if err := opts.setDefaults(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &Widget{
		cfg:    cfg,
		opts:   opts,
		logger: opts.Logger.With("mailbox", cfg.MailboxSlug),
		ctx:    ctx,
		cancel: cancel,
		loop:   newEventLoop(opts.Clock),
		ready:  make(chan struct{}),
	}
	channel, err := frame.NewChannel(opts.EmbedURL, opts.Opener, w, w.logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	w.channel = channel
	w.channel.OnCreate(w.onFrameCreated)
	w.state = storage.NewState(opts.Store, w.logger)
	w.binder = bindings.New(opts.Page, w, w.logger)
	w.notifier = notify.New(ctx, notify.Options{
		Page:     opts.Page,
		Loop:     w.loop,
		Reporter: opts.Reporter,
		Host:     conversationOpener{w},
		Logger:   w.logger,
	})

	go w.loop.Start()
	w.loop.post(w.setup)
	return w, nil
}

func (w *Widget) Ready() <-chan struct{} { return w.ready }

func (w *Widget) markReady() { w.readyOnce.Do(func() { close(w.ready) }) }

// Sync waits until the event loop is idle, including tasks queued by
// the tasks it waited on.
func (w *Widget) Sync() {
	for {
		idle := false
		if !w.loop.call(func() { idle = w.loop.pending() == 0 }) || idle {
			return
		}
	}
}

// setup builds the page furniture, then bootstraps the session off
// the loop and finishes on it.
func (w *Widget) setup() {
	p := w.opts.Page
	w.injectStyles()
	w.createOverlay()
	w.createLoadingOverlay()
	w.createWrapper()
	w.notifier.Mount(w.showWidget)
	w.binder.Start()
	w.offClick = append(w.offClick, p.OnClick(w.overlay, w.Hide))

	bootstrapper := session.NewBootstrapper(w.opts.Creator,
		append([]session.BootstrapOption{session.WithLogger(w.logger)}, w.opts.BootstrapOptions...)...)
	currentURL := p.URL()
	go func() {
		sess, err := bootstrapper.CreateSessionWithRetry(w.ctx, w.cfg, currentURL)
		if !w.loop.post(func() {
			if err == nil && sess != nil {
				w.applySession(sess)
			}
			w.restore()
			w.markReady()
		}) {
			w.markReady()
		}
	}()
}

func (w *Widget) injectStyles() {
	p := w.opts.Page
	w.style = p.CreateElement("style", classStyle)
	p.SetText(w.style, stylesheet)
	p.Append(p.Head(), w.style)
}

func (w *Widget) createOverlay() {
	p := w.opts.Page
	w.overlay = p.CreateElement("div", classOverlay)
	p.Append(p.Body(), w.overlay)
}

func (w *Widget) createLoadingOverlay() {
	p := w.opts.Page
	w.loading = p.CreateElement("div", classLoading)
	w.loading.AppendChild(p.CreateElement("div", classSpinner))
}

func (w *Widget) createWrapper() {
	p := w.opts.Page
	w.wrapper = p.CreateElement("div", classWrapper)
	w.wrapper.AppendChild(w.loading)
	p.Append(p.Body(), w.wrapper)
}

// applySession records the handshake result. The token is set once
// and never replaced.
func (w *Widget) applySession(sess *session.Session) {
	if w.token != "" || sess.Token == "" {
		return
	}
	w.token = sess.Token
	w.notifier.SetToken(sess.Token)
	w.setShowWidget(sess.ShowWidget)
	w.notifier.Reveal(sess.Notifications)
}

func (w *Widget) setShowWidget(show bool) {
	w.showWidget = show
	if show {
		w.addHelperIcon()
	}
	w.notifier.SetWithWidget(show)
}

// restore reapplies persisted state after a successful handshake.
func (w *Widget) restore() {
	if w.token == "" {
		return
	}
	wasVisible := w.state.Visible()
	if wasVisible {
		w.restored = true
		w.showInternal(false)
	}
	if slug := w.state.Conversation(); slug != "" && wasVisible && !w.cfg.IsAnonymous() {
		w.conversation = slug
	}
}

// Destroy removes everything the widget added to the page and stops
// its loop. Further calls are no-ops.
func (w *Widget) Destroy() {
	w.destroyed.Do(func() {
		w.loop.call(w.teardown)
		w.loop.stop()
		w.cancel()
		w.markReady()
		if w.onDestroy != nil {
			w.onDestroy(w)
		}
	})
}

func (w *Widget) teardown() {
	p := w.opts.Page
	w.binder.Stop()
	w.notifier.Unmount()
	for _, off := range w.offClick {
		off()
	}
	w.offClick = nil
	for _, n := range []*html.Node{w.wrapper, w.overlay, w.toggleButton, w.icon, w.style} {
		if n != nil {
			p.Remove(n)
		}
	}
	if err := w.channel.Close(); err != nil {
		w.logger.Warn("failed to close widget frame", "error", err)
	}
}

// Snapshot is a point-in-time view of the widget's state.
type Snapshot struct {
	Visible       bool
	Minimized     bool
	HasBeenOpened bool
	HasSession    bool
	ShowWidget    bool
	Conversation  string
	FrameState    frame.State
	Pending       int
}

func (w *Widget) Snapshot() Snapshot {
	var s Snapshot
	w.loop.call(func() {
		s = Snapshot{
			Visible:       w.visible,
			Minimized:     w.minimized,
			HasBeenOpened: w.hasBeenOpened,
			HasSession:    w.token != "",
			ShowWidget:    w.showWidget,
			Conversation:  w.conversation,
			FrameState:    w.channel.State(),
			Pending:       w.channel.Pending(),
		}
	})
	return s
}

type conversationOpener struct{ w *Widget }

func (c conversationOpener) OpenConversation(slug string) { c.w.openConversation(slug) }
