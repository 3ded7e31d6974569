// Package notify renders pending-notification bubbles next to the
// widget and reports what the user did with them.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"golang.org/x/net/html"

	"github.com/pelusa-v/pelusa-widget/internal/clock"
	"github.com/pelusa-v/pelusa-widget/internal/logging"
	"github.com/pelusa-v/pelusa-widget/internal/page"
	"github.com/pelusa-v/pelusa-widget/internal/session"
)

const (
	InitialDelay  = 2 * time.Second
	StaggerDelay  = 800 * time.Millisecond
	RevealDelay   = 100 * time.Millisecond
	RemovalDelay  = 300 * time.Millisecond
	ReportTimeout = 10 * time.Second

	ClassContainer  = "notification-container"
	ClassWithWidget = "with-widget"
	ClassBubble     = "notification-bubble"
	ClassMessage    = "message"
	ClassClose      = "close-button"
	ClassVisible    = "visible"
	ClassHiding     = "hiding"
	ClassHasPending = "has-notification"
)

// Loop runs work on the widget's event loop.
type Loop interface {
	Post(fn func())
	After(d time.Duration, fn func())
}

// Reporter tells the backend what happened to a notification.
type Reporter interface {
	UpdateNotificationStatus(ctx context.Context, token string, id int64, status session.Status) error
}

// Host is the widget side of a bubble click.
type Host interface {
	OpenConversation(slug string)
}

type bubble struct {
	node    *html.Node
	message *html.Node
	id      int64
	hiding  bool
	off     func()
}

// Manager owns the notification container and its bubbles. Apart from
// Post-wrapped click handlers, every method must run on the loop.
type Manager struct {
	ctx      context.Context
	page     *page.Page
	loop     Loop
	reporter Reporter
	host     Host
	logger   *slog.Logger

	token     string
	container *html.Node
	icon      *html.Node
	bubbles   map[string]*bubble
}

type Options struct {
	Page     *page.Page
	Loop     Loop
	Reporter Reporter
	Host     Host
	Logger   *slog.Logger
}

func New(ctx context.Context, opts Options) *Manager {
	return &Manager{
		ctx:      ctx,
		page:     opts.Page,
		loop:     opts.Loop,
		reporter: opts.Reporter,
		host:     opts.Host,
		logger:   logging.OrDefault(opts.Logger),
		bubbles:  map[string]*bubble{},
	}
}

// Mount creates the bubble container once.
func (m *Manager) Mount(withWidget bool) {
	if m.container != nil {
		return
	}
	m.container = m.page.CreateElement("div", ClassContainer)
	if withWidget {
		m.page.AddClass(m.container, ClassWithWidget)
	}
	m.page.Append(m.page.Body(), m.container)
}

func (m *Manager) Container() *html.Node { return m.container }

// SetWithWidget shifts the container when the helper icon is present.
func (m *Manager) SetWithWidget(on bool) {
	if m.container == nil {
		return
	}
	if on {
		m.page.AddClass(m.container, ClassWithWidget)
	} else {
		m.page.RemoveClass(m.container, ClassWithWidget)
	}
}

func (m *Manager) SetIcon(icon *html.Node) {
	m.icon = icon
	if icon != nil && len(m.bubbles) > 0 {
		m.page.AddClass(icon, ClassHasPending)
	}
}

func (m *Manager) SetToken(token string) { m.token = token }

// Count reports how many bubbles exist, including ones animating out.
func (m *Manager) Count() int { return len(m.bubbles) }

func (m *Manager) Bubble(slug string) (*html.Node, bool) {
	b, ok := m.bubbles[slug]
	if !ok {
		return nil, false
	}
	return b.node, true
}

// Reveal schedules the staggered reveal of a bootstrap batch: after
// InitialDelay the newest notification shows first, then each older
// one StaggerDelay later.
func (m *Manager) Reveal(notifications []session.Notification) {
	if len(notifications) == 0 {
		return
	}
	batch := make([]session.Notification, 0, len(notifications))
	for i := len(notifications) - 1; i >= 0; i-- {
		batch = append(batch, notifications[i])
	}
	m.loop.After(InitialDelay, func() {
		for i, n := range batch {
			n := n
			m.loop.After(time.Duration(i)*StaggerDelay, func() {
				m.Show(n.Text, n.ConversationSlug, n.ID)
			})
		}
	})
}

// Show creates or reuses the bubble for conversationSlug and fades it
// in.
func (m *Manager) Show(text, conversationSlug string, id int64) {
	if m.container == nil {
		return
	}
	b, ok := m.bubbles[conversationSlug]
	if !ok {
		b = m.createBubble(conversationSlug)
		m.bubbles[conversationSlug] = b
	}
	b.id = id
	if b.hiding {
		b.hiding = false
		m.page.RemoveClass(b.node, ClassHiding)
	}
	if m.icon != nil {
		m.page.AddClass(m.icon, ClassHasPending)
	}
	m.page.SetText(b.message, text)

	m.loop.After(RevealDelay, func() {
		if !b.hiding {
			m.page.AddClass(b.node, ClassVisible)
		}
	})
}

// Hide fades the bubble out and removes it after RemovalDelay.
func (m *Manager) Hide(conversationSlug string) {
	b, ok := m.bubbles[conversationSlug]
	if !ok || b.hiding {
		return
	}
	b.hiding = true
	m.page.RemoveClass(b.node, ClassVisible)
	m.page.AddClass(b.node, ClassHiding)

	m.loop.After(RemovalDelay, func() {
		if cur, ok := m.bubbles[conversationSlug]; !ok || cur != b || !b.hiding {
			return
		}
		m.page.Remove(b.node)
		b.off()
		delete(m.bubbles, conversationSlug)
		if m.icon != nil && len(m.bubbles) == 0 {
			m.page.RemoveClass(m.icon, ClassHasPending)
		}
	})
}

func (m *Manager) HideAll() {
	for _, slug := range lo.Keys(m.bubbles) {
		m.Hide(slug)
	}
}

// Unmount drops every bubble and the container immediately.
func (m *Manager) Unmount() {
	m.HideAll()
	for slug, b := range m.bubbles {
		m.page.Remove(b.node)
		b.off()
		delete(m.bubbles, slug)
	}
	if m.icon != nil {
		m.page.RemoveClass(m.icon, ClassHasPending)
	}
	if m.container != nil {
		m.page.Remove(m.container)
		m.container = nil
	}
}

func (m *Manager) createBubble(conversationSlug string) *bubble {
	node := m.page.CreateElement("div", ClassBubble)
	message := m.page.CreateElement("div", ClassMessage)
	closeBtn := m.page.CreateElement("button", ClassClose)
	node.AppendChild(message)
	node.AppendChild(closeBtn)
	m.page.Append(m.container, node)

	b := &bubble{node: node, message: message}
	offMessage := m.page.OnClick(message, func() {
		m.loop.Post(func() {
			m.report(b.id, session.StatusRead)
			m.Hide(conversationSlug)
			m.host.OpenConversation(conversationSlug)
		})
	})
	offClose := m.page.OnClick(closeBtn, func() {
		m.loop.Post(func() {
			m.report(b.id, session.StatusDismissed)
			m.Hide(conversationSlug)
		})
	})
	b.off = func() { offMessage(); offClose() }
	return b
}

// report sends the status in the background; the UI never waits on it.
func (m *Manager) report(id int64, status session.Status) {
	if m.reporter == nil {
		return
	}
	token := m.token
	go func() {
		// Reports outlive the widget: a destroy must not abort one in flight.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(m.ctx), ReportTimeout)
		defer cancel()
		if err := m.reporter.UpdateNotificationStatus(ctx, token, id, status); err != nil {
			m.logger.Error("failed to update notification status", "id", id, "status", status, "error", err)
		}
	}()
}

// Inline is a Loop for callers that already run single-threaded: Post
// runs immediately and After schedules on the clock.
type Inline struct {
	Clock clock.Clock
}

func (l Inline) Post(fn func()) { fn() }

func (l Inline) After(d time.Duration, fn func()) { l.Clock.AfterFunc(d, fn) }
