package widget

import (
	"context"
	"sync"

	"github.com/pelusa-v/pelusa-widget/internal/config"
	"github.com/pelusa-v/pelusa-widget/internal/page"
)

// Registry enforces one active widget. The zero value is ready to use.
type Registry struct {
	mu       sync.Mutex
	instance *Widget
}

// Init creates the active widget, or returns the existing one without
// running setup again.
func (r *Registry) Init(ctx context.Context, cfg config.Widget, opts Options) (*Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.instance != nil {
		return r.instance, nil
	}
	w, err := New(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	w.onDestroy = r.release
	r.instance = w
	return w, nil
}

func (r *Registry) Current() (*Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.instance == nil {
		return nil, ErrNoInstance
	}
	return r.instance, nil
}

func (r *Registry) Destroy() {
	r.mu.Lock()
	w := r.instance
	r.mu.Unlock()
	if w != nil {
		w.Destroy()
	}
}

func (r *Registry) release(w *Widget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.instance == w {
		r.instance = nil
	}
}

func (r *Registry) with(fn func(*Widget)) {
	if w, err := r.Current(); err == nil {
		fn(w)
	}
}

var defaultRegistry = &Registry{}

// Init, Show, Hide and the rest act on the process-wide default
// registry. Without an active widget they do nothing.
func Init(ctx context.Context, cfg config.Widget, opts Options) (*Widget, error) {
	return defaultRegistry.Init(ctx, cfg, opts)
}

func Current() (*Widget, error) { return defaultRegistry.Current() }

func Show() { defaultRegistry.with((*Widget).Show) }

func Hide() { defaultRegistry.with((*Widget).Hide) }

func Toggle() { defaultRegistry.with((*Widget).Toggle) }

func Minimize() { defaultRegistry.with((*Widget).Minimize) }

func Maximize() { defaultRegistry.with((*Widget).Maximize) }

func ToggleMinimize() { defaultRegistry.with((*Widget).ToggleMinimize) }

func SendPrompt(text *string) {
	defaultRegistry.with(func(w *Widget) { w.SendPrompt(text) })
}

func StartGuide(prompt string) {
	defaultRegistry.with(func(w *Widget) { w.StartGuide(prompt) })
}

// ClickableElements returns nil without an active widget.
func ClickableElements() []page.Interactive {
	var out []page.Interactive
	defaultRegistry.with(func(w *Widget) { out = w.ClickableElements() })
	return out
}

func Destroy() { defaultRegistry.Destroy() }
