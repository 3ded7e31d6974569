package page

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// describedAttrs are the attributes kept in an element description.
var describedAttrs = []string{
	"title", "type", "name", "role", "tabindex", "aria-label",
	"placeholder", "value", "alt", "aria-expanded",
}

const maxDescribedText = 100

// Interactive is an element a user could click, numbered in document
// order.
type Interactive struct {
	Index       int
	Description string
	Node        *html.Node
}

func (p *Page) Title() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var title string
	walk(p.head, func(n *html.Node) bool {
		if title == "" && n.Type == html.ElementNode && n.DataAtom == atom.Title {
			title = strings.TrimSpace(textOf(n))
			return false
		}
		return title == ""
	})
	return title
}

// Interactive lists the clickable elements of the body in document
// order. Subtrees rooted at any of skip are left out.
func (p *Page) Interactive(skip ...*html.Node) []Interactive {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Interactive
	walk(p.body, func(n *html.Node) bool {
		if lo.Contains(skip, n) {
			return false
		}
		if isInteractive(n) {
			out = append(out, Interactive{Index: len(out), Description: describe(n), Node: n})
		}
		return true
	})
	return out
}

// ClickableList renders elements one per line as "[index]<tag ...>text</tag>".
func ClickableList(elements []Interactive) string {
	lines := lo.Map(elements, func(e Interactive, _ int) string {
		return fmt.Sprintf("[%d]%s", e.Index, e.Description)
	})
	return strings.Join(lines, "\n")
}

func isInteractive(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.A, atom.Button, atom.Select, atom.Textarea:
		return true
	case atom.Input:
		t, _ := attr(n, "type")
		return t != "hidden"
	}
	return hasAttr(n, "role") || hasAttr(n, "onclick")
}

func describe(n *html.Node) string {
	var b strings.Builder
	b.WriteString("<" + n.Data)
	for _, key := range describedAttrs {
		if v, ok := attr(n, key); ok && v != "" {
			fmt.Fprintf(&b, " %s=%q", key, v)
		}
	}
	b.WriteString(">")
	text := strings.Join(strings.Fields(textOf(n)), " ")
	if len(text) > maxDescribedText {
		text = text[:maxDescribedText] + "..."
	}
	b.WriteString(text)
	b.WriteString("</" + n.Data + ">")
	return b.String()
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}
