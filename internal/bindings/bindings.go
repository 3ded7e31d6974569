// Package bindings connects host page elements carrying data-helper-*
// attributes to the widget, both at setup and as elements appear later.
package bindings

import (
	"log/slog"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/net/html"

	"github.com/pelusa-v/pelusa-widget/internal/logging"
	"github.com/pelusa-v/pelusa-widget/internal/page"
)

const (
	AttrPrompt         = "data-helper-prompt"
	AttrPromptSent     = "data-helper-prompt-sent"
	AttrToggle         = "data-helper-toggle"
	AttrOpen           = "data-helper-open"
	AttrStartGuide     = "data-helper-start-guide"
	AttrStartGuideSent = "data-helper-start-guide-sent"
)

// Target is what bound elements act on.
type Target interface {
	SendPrompt(text *string)
	StartGuide(prompt string)
	Show()
	Toggle()
	IsVisible() bool
}

type kind int

const (
	kindPrompt kind = iota
	kindToggle
	kindStartGuide
)

var attrByKind = map[kind]string{
	kindPrompt:     AttrPrompt,
	kindToggle:     AttrToggle,
	kindStartGuide: AttrStartGuide,
}

type binding struct {
	node *html.Node
	kind kind
}

// Binder owns the click listeners and the page watcher. Each element
// is bound at most once per attribute.
type Binder struct {
	page   *page.Page
	target Target
	logger *slog.Logger

	mu      sync.Mutex
	bound   map[binding]func()
	toggles []*html.Node
	stop    func()
}

func New(p *page.Page, target Target, logger *slog.Logger) *Binder {
	return &Binder{
		page:   p,
		target: target,
		logger: logging.OrDefault(logger),
		bound:  map[binding]func(){},
	}
}

// Start binds the elements already in the page and subscribes to
// elements appended afterwards.
func (b *Binder) Start() {
	for k, attr := range attrByKind {
		for _, n := range b.page.FindByAttr(attr) {
			b.bind(n, k)
		}
	}
	stop := b.page.Watch(b.scan)

	b.mu.Lock()
	b.stop = stop
	b.mu.Unlock()
}

// Stop disconnects the page watcher and removes every click listener
// the binder added. A later Start binds from scratch.
func (b *Binder) Stop() {
	b.mu.Lock()
	stop := b.stop
	removers := lo.Values(b.bound)
	b.stop = nil
	b.bound = map[binding]func(){}
	b.toggles = nil
	b.mu.Unlock()
	if stop != nil {
		stop()
	}
	for _, remove := range removers {
		if remove != nil {
			remove()
		}
	}
}

// BindToggle binds an element the widget created itself (the helper
// icon) as a toggle element.
func (b *Binder) BindToggle(n *html.Node) {
	b.bind(n, kindToggle)
}

// SyncOpen writes the open state onto every bound toggle element that
// is still in the document.
func (b *Binder) SyncOpen(open bool) {
	b.mu.Lock()
	toggles := append([]*html.Node(nil), b.toggles...)
	b.mu.Unlock()

	val := boolAttr(open)
	for _, n := range toggles {
		if b.page.Attached(n) {
			b.page.SetAttr(n, AttrOpen, val)
		}
	}
}

// scan binds an appended subtree, including its root.
func (b *Binder) scan(added *html.Node) {
	if added.Type != html.ElementNode {
		return
	}
	for k, attr := range attrByKind {
		for _, n := range b.page.FindByAttrWithin(added, attr) {
			b.bind(n, k)
		}
	}
}

func (b *Binder) bind(n *html.Node, k kind) {
	key := binding{node: n, kind: k}
	b.mu.Lock()
	if _, ok := b.bound[key]; ok {
		b.mu.Unlock()
		return
	}
	b.bound[key] = nil
	if k == kindToggle {
		b.toggles = append(b.toggles, n)
	}
	b.mu.Unlock()

	var remove func()
	switch k {
	case kindPrompt:
		remove = b.page.OnClick(n, func() { b.onPrompt(n) })
	case kindToggle:
		remove = b.page.OnClick(n, func() { b.onToggle(n) })
	case kindStartGuide:
		remove = b.page.OnClick(n, func() { b.onStartGuide(n) })
	}

	b.mu.Lock()
	if _, ok := b.bound[key]; ok {
		b.bound[key] = remove
		remove = nil
	}
	b.mu.Unlock()
	// Stopped while binding.
	if remove != nil {
		remove()
	}
	b.logger.Debug("bound widget element", "tag", n.Data, "attr", attrByKind[k])
}

func (b *Binder) onPrompt(n *html.Node) {
	if prompt, _ := b.page.Attr(n, AttrPrompt); prompt != "" {
		b.target.SendPrompt(&prompt)
		b.page.SetAttr(n, AttrPromptSent, "true")
	}
	b.target.Show()
}

func (b *Binder) onToggle(n *html.Node) {
	b.target.Toggle()
	b.page.SetAttr(n, AttrOpen, boolAttr(b.target.IsVisible()))
}

func (b *Binder) onStartGuide(n *html.Node) {
	prompt, _ := b.page.Attr(n, AttrStartGuide)
	if prompt == "" {
		return
	}
	b.target.StartGuide(prompt)
	b.page.SetAttr(n, AttrStartGuideSent, "true")
	b.target.Show()
}

func boolAttr(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
