// Package page models the host page the widget is embedded into: an
// HTML tree with click listeners and a source of "element appeared"
// events for content inserted after setup.
//
// Every method is safe for concurrent use. Listener and watcher
// callbacks run on the caller's goroutine after the page lock is
// released; clicks do not bubble.
package page

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page is an HTML document plus the event plumbing the widget needs.
type Page struct {
	mu  sync.Mutex
	url string

	doc  *html.Node
	head *html.Node
	body *html.Node

	listeners  map[*html.Node][]listener
	nextListen int
	watchers   map[int]func(*html.Node)
	nextWatch  int
}

type listener struct {
	id int
	fn func()
}

// New returns an empty document served from url.
func New(url string) *Page {
	p, err := Parse(strings.NewReader("<!DOCTYPE html><html><head></head><body></body></html>"), url)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse builds a Page from markup.
func Parse(r io.Reader, url string) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse host page: %w", err)
	}
	p := &Page{
		url:       url,
		doc:       doc,
		listeners: map[*html.Node][]listener{},
		watchers:  map[int]func(*html.Node){},
	}
	walk(doc, func(n *html.Node) bool {
		switch n.DataAtom {
		case atom.Head:
			if p.head == nil {
				p.head = n
			}
		case atom.Body:
			if p.body == nil {
				p.body = n
			}
		}
		return true
	})
	if p.head == nil || p.body == nil {
		return nil, fmt.Errorf("parse host page: missing head or body")
	}
	return p, nil
}

func (p *Page) URL() string { return p.url }

func (p *Page) Head() *html.Node { return p.head }

func (p *Page) Body() *html.Node { return p.body }

// CreateElement returns a detached element with the given classes.
func (p *Page) CreateElement(tag string, classes ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	if len(classes) > 0 {
		n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: strings.Join(classes, " ")})
	}
	return n
}

// Append attaches child under parent and notifies watchers.
func (p *Page) Append(parent, child *html.Node) {
	p.mu.Lock()
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	parent.AppendChild(child)
	watchers := p.snapshotWatchers()
	p.mu.Unlock()

	for _, fn := range watchers {
		fn(child)
	}
}

func (p *Page) Remove(n *html.Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func (p *Page) Attached(n *html.Node) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == p.doc {
			return true
		}
	}
	return false
}

// FindByAttr returns every element in the document carrying attr.
func (p *Page) FindByAttr(attr string) []*html.Node {
	return p.FindByAttrWithin(p.doc, attr)
}

// FindByAttrWithin returns root (if it matches) and every matching
// descendant, in document order.
func (p *Page) FindByAttrWithin(root *html.Node, attr string) []*html.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && hasAttr(n, attr) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// FindByClass returns the elements carrying class under root.
func (p *Page) FindByClass(root *html.Node, class string) []*html.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && hasClass(n, class) {
			out = append(out, n)
		}
		return true
	})
	return out
}

func (p *Page) Attr(n *html.Node, key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return attr(n, key)
}

func (p *Page) HasAttr(n *html.Node, key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return hasAttr(n, key)
}

func (p *Page) SetAttr(n *html.Node, key, val string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	setAttr(n, key, val)
}

func (p *Page) HasClass(n *html.Node, class string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return hasClass(n, class)
}

func (p *Page) AddClass(n *html.Node, classes ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	current := classList(n)
	for _, c := range classes {
		if !lo.Contains(current, c) {
			current = append(current, c)
		}
	}
	setAttr(n, "class", strings.Join(current, " "))
}

func (p *Page) RemoveClass(n *html.Node, classes ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	current := classList(n)
	kept := current[:0]
	for _, c := range current {
		if !lo.Contains(classes, c) {
			kept = append(kept, c)
		}
	}
	setAttr(n, "class", strings.Join(kept, " "))
}

// SetText replaces n's children with a single text node.
func (p *Page) SetText(n *html.Node, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func (p *Page) Text(n *html.Node) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return textOf(n)
}

// OnClick registers fn to run whenever n is clicked. The returned
// func removes it again.
func (p *Page) OnClick(n *html.Node, fn func()) (remove func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextListen
	p.nextListen++
	p.listeners[n] = append(p.listeners[n], listener{id: id, fn: fn})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		kept := lo.Reject(p.listeners[n], func(l listener, _ int) bool { return l.id == id })
		if len(kept) == 0 {
			delete(p.listeners, n)
			return
		}
		p.listeners[n] = kept
	}
}

func (p *Page) ListenerCount(n *html.Node) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners[n])
}

// Click runs n's click listeners in registration order.
func (p *Page) Click(n *html.Node) {
	p.mu.Lock()
	fns := lo.Map(p.listeners[n], func(l listener, _ int) func() { return l.fn })
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Watch subscribes fn to every element appended to the document. The
// returned func disconnects it.
func (p *Page) Watch(fn func(added *html.Node)) (stop func()) {
	p.mu.Lock()
	id := p.nextWatch
	p.nextWatch++
	p.watchers[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.watchers, id)
		p.mu.Unlock()
	}
}

func (p *Page) WatcherCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.watchers)
}

func (p *Page) OuterHTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var buf bytes.Buffer
	for c := p.doc.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

func (p *Page) snapshotWatchers() []func(*html.Node) {
	out := make([]func(*html.Node), 0, len(p.watchers))
	for i := 0; i < p.nextWatch; i++ {
		if fn, ok := p.watchers[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func classList(n *html.Node) []string {
	for _, a := range n.Attr {
		if a.Key == "class" {
			return strings.Fields(a.Val)
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	return lo.Contains(classList(n), class)
}
