package bindings

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/pelusa-widget/internal/logging"
	"github.com/pelusa-v/pelusa-widget/internal/page"
)

type fakeTarget struct {
	mu      sync.Mutex
	visible bool
	prompts []*string
	guides  []string
	shows   int
	toggles int
}

func (f *fakeTarget) SendPrompt(text *string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, text)
}

func (f *fakeTarget) StartGuide(prompt string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guides = append(f.guides, prompt)
}

func (f *fakeTarget) Show() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shows++
	f.visible = true
}

func (f *fakeTarget) Toggle() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles++
	f.visible = !f.visible
}

func (f *fakeTarget) IsVisible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible
}

const markup = `<!DOCTYPE html><html><head></head><body>
<button id="ask" data-helper-prompt="Where is my order?">Ask</button>
<button id="empty" data-helper-prompt="">Help</button>
<a id="toggle" data-helper-toggle>Chat</a>
<button id="guide" data-helper-start-guide="Set up payouts">Guide me</button>
</body></html>`

func setup(t *testing.T) (*page.Page, *fakeTarget, *Binder) {
	t.Helper()
	p, err := page.Parse(strings.NewReader(markup), "https://shop.example.com/")
	require.NoError(t, err)
	target := &fakeTarget{}
	b := New(p, target, logging.Discard())
	b.Start()
	t.Cleanup(b.Stop)
	return p, target, b
}

func TestPromptClickSendsAndMarks(t *testing.T) {
	p, target, _ := setup(t)
	nodes := p.FindByAttr(AttrPrompt)
	require.Len(t, nodes, 2)

	p.Click(nodes[0])
	require.Len(t, target.prompts, 1)
	assert.Equal(t, "Where is my order?", *target.prompts[0])
	assert.Equal(t, 1, target.shows)
	sent, _ := p.Attr(nodes[0], AttrPromptSent)
	assert.Equal(t, "true", sent)

	p.Click(nodes[1])
	assert.Len(t, target.prompts, 1, "empty prompt only shows the widget")
	assert.Equal(t, 2, target.shows)
	assert.False(t, p.HasAttr(nodes[1], AttrPromptSent))
}

func TestToggleClickReflectsOpenState(t *testing.T) {
	p, target, _ := setup(t)
	el := p.FindByAttr(AttrToggle)[0]

	p.Click(el)
	open, _ := p.Attr(el, AttrOpen)
	assert.Equal(t, "true", open)

	p.Click(el)
	open, _ = p.Attr(el, AttrOpen)
	assert.Equal(t, "false", open)
	assert.Equal(t, 2, target.toggles)
}

func TestStartGuideClick(t *testing.T) {
	p, target, _ := setup(t)
	el := p.FindByAttr(AttrStartGuide)[0]
	p.Click(el)
	assert.Equal(t, []string{"Set up payouts"}, target.guides)
	assert.Equal(t, 1, target.shows)
	sent, _ := p.Attr(el, AttrStartGuideSent)
	assert.Equal(t, "true", sent)
}

func TestAppendedElementsAreBound(t *testing.T) {
	p, target, _ := setup(t)

	wrapper := p.CreateElement("div")
	btn := p.CreateElement("button")
	p.SetAttr(btn, AttrPrompt, "Refund please")
	wrapper.AppendChild(btn)
	tog := p.CreateElement("span")
	p.SetAttr(tog, AttrToggle, "")
	p.Append(p.Body(), wrapper)
	p.Append(p.Body(), tog)

	p.Click(btn)
	require.Len(t, target.prompts, 1)
	assert.Equal(t, "Refund please", *target.prompts[0])

	p.Click(tog)
	assert.Equal(t, 1, target.toggles)
}

func TestElementsAreNeverDoubleBound(t *testing.T) {
	p, _, _ := setup(t)
	el := p.FindByAttr(AttrToggle)[0]
	assert.Equal(t, 1, p.ListenerCount(el))

	// re-appending an already bound element must not add a listener
	p.Append(p.Body(), el)
	assert.Equal(t, 1, p.ListenerCount(el))
}

func TestStopDisconnectsWatcher(t *testing.T) {
	p, target, b := setup(t)
	assert.Equal(t, 1, p.WatcherCount())
	b.Stop()
	assert.Equal(t, 0, p.WatcherCount())

	btn := p.CreateElement("button")
	p.SetAttr(btn, AttrPrompt, "late")
	p.Append(p.Body(), btn)
	p.Click(btn)
	assert.Empty(t, target.prompts)
}

func TestSyncOpenUpdatesAttachedToggles(t *testing.T) {
	p, _, b := setup(t)
	icon := p.CreateElement("div", "helper-widget-icon")
	p.Append(p.Body(), icon)
	b.BindToggle(icon)
	link := p.FindByAttr(AttrToggle)[0]

	b.SyncOpen(true)
	v, _ := p.Attr(icon, AttrOpen)
	assert.Equal(t, "true", v)
	v, _ = p.Attr(link, AttrOpen)
	assert.Equal(t, "true", v)

	p.Remove(icon)
	b.SyncOpen(false)
	v, _ = p.Attr(icon, AttrOpen)
	assert.Equal(t, "true", v, "detached toggles are left alone")
	v, _ = p.Attr(link, AttrOpen)
	assert.Equal(t, "false", v)
}

func TestStopRemovesListeners(t *testing.T) {
	p, target, b := setup(t)
	toggle := p.FindByAttr(AttrToggle)[0]
	require.Equal(t, 1, p.ListenerCount(toggle))

	b.Stop()
	assert.Equal(t, 0, p.ListenerCount(toggle))
	p.Click(toggle)
	assert.Zero(t, target.toggles)
	assert.False(t, p.HasAttr(toggle, AttrOpen))

	// a later start binds each element exactly once again
	b.Start()
	b.Stop()
	b.Start()
	assert.Equal(t, 1, p.ListenerCount(toggle))
}
