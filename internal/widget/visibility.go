package widget

import (
	"strconv"
	"strings"

	"github.com/pelusa-v/pelusa-widget/internal/frame"
)

const defaultIconColor = "#222"

func (w *Widget) Show() { w.loop.call(w.show) }

func (w *Widget) Hide() { w.loop.call(w.hide) }

func (w *Widget) Toggle() { w.loop.call(w.toggle) }

func (w *Widget) Minimize() { w.loop.call(w.minimize) }

func (w *Widget) Maximize() { w.loop.call(w.maximize) }

func (w *Widget) ToggleMinimize() {
	w.loop.call(func() {
		if w.minimized {
			w.maximize()
		} else {
			w.minimize()
		}
	})
}

// IsVisible reports the current visibility. A destroyed widget is
// never visible.
func (w *Widget) IsVisible() bool {
	var visible bool
	w.loop.call(func() { visible = w.visible })
	return visible
}

// SendPrompt queues a PROMPT for the frame and opens the widget. A nil
// text is sent as null.
func (w *Widget) SendPrompt(text *string) {
	w.loop.call(func() {
		w.sendPrompt(text)
		w.show()
	})
}

// StartGuide asks the frame to start a guided session for prompt.
func (w *Widget) StartGuide(prompt string) {
	w.loop.call(func() { w.send(frame.ActionStartGuide, prompt) })
}

func (w *Widget) show() { w.showInternal(true) }

// showInternal opens the widget. Restores pass materialize=false so
// the toggle button is left alone.
func (w *Widget) showInternal(materialize bool) {
	if err := w.channel.EnsureFrame(); err != nil {
		w.logger.Error("failed to create widget frame", "error", err)
	}
	if w.wrapper == nil || w.overlay == nil || w.visible {
		return
	}
	p := w.opts.Page
	p.AddClass(w.wrapper, classVisible)
	if !w.minimized {
		p.AddClass(w.overlay, classVisible)
	}
	if w.channel.State() != frame.StateReady {
		w.showLoading()
	}
	w.visible = true
	w.state.SetVisible(true)
	w.binder.SyncOpen(true)

	if materialize && !w.hasBeenOpened {
		w.hasBeenOpened = true
		w.createToggleButton()
	}
	if w.toggleButton != nil {
		p.RemoveClass(w.toggleButton, classVisible)
		if w.minimized {
			p.AddClass(w.toggleButton, classWithMinimizedWidget)
		}
	}
}

func (w *Widget) hide() {
	if w.wrapper == nil || w.overlay == nil || !w.visible {
		return
	}
	p := w.opts.Page
	p.RemoveClass(w.wrapper, classVisible, classMinimized)
	p.RemoveClass(w.overlay, classVisible)
	w.hideLoading()
	w.visible = false
	w.minimized = false
	w.state.SetVisible(false)
	w.binder.SyncOpen(false)

	// A restored widget was never opened by the user; its first close
	// is when the fallback entry point appears.
	if w.restored && !w.hasBeenOpened {
		w.hasBeenOpened = true
		w.createToggleButton()
	}
	if w.hasBeenOpened && w.toggleButton != nil && w.toggleButtonAllowed() {
		p.AddClass(w.toggleButton, classVisible)
		p.RemoveClass(w.toggleButton, classWithMinimizedWidget)
	}
}

func (w *Widget) toggle() {
	if w.visible {
		w.hide()
	} else {
		w.show()
	}
	w.binder.SyncOpen(w.visible)
}

func (w *Widget) minimize() {
	if w.wrapper == nil || !w.visible {
		return
	}
	p := w.opts.Page
	p.AddClass(w.wrapper, classMinimized)
	p.RemoveClass(w.overlay, classVisible)
	w.minimized = true
	if w.toggleButton != nil {
		p.AddClass(w.toggleButton, classWithMinimizedWidget)
	}
}

func (w *Widget) maximize() {
	if w.wrapper == nil || !w.visible {
		return
	}
	p := w.opts.Page
	p.RemoveClass(w.wrapper, classMinimized)
	p.AddClass(w.overlay, classVisible)
	w.minimized = false
	if w.toggleButton != nil {
		p.RemoveClass(w.toggleButton, classWithMinimizedWidget)
	}
}

// toggleButtonAllowed is the fallback entry point policy: an explicit
// override wins, otherwise the button only stands in for a missing
// helper icon.
func (w *Widget) toggleButtonAllowed() bool {
	if w.cfg.ShowToggleButton != nil {
		return *w.cfg.ShowToggleButton
	}
	return !w.showWidget
}

func (w *Widget) createToggleButton() {
	if w.toggleButton != nil || !w.toggleButtonAllowed() {
		return
	}
	p := w.opts.Page
	w.toggleButton = p.CreateElement("button", classToggleButton)
	w.offClick = append(w.offClick, p.OnClick(w.toggleButton, w.Show))
	p.Append(p.Body(), w.toggleButton)
}

func (w *Widget) showLoading() { w.opts.Page.AddClass(w.loading, classVisible) }

func (w *Widget) hideLoading() { w.opts.Page.RemoveClass(w.loading, classVisible) }

// addHelperIcon creates the auto-displayed launcher once.
func (w *Widget) addHelperIcon() {
	if w.icon != nil {
		return
	}
	p := w.opts.Page
	color := w.cfg.IconColor
	if color == "" {
		color = defaultIconColor
	}
	glyph := "#FFFFFF"
	if isLightColor(color) {
		glyph = "#000000"
	}

	w.icon = p.CreateElement("button", classIcon)
	p.SetAttr(w.icon, "style", "background-color: "+color)
	hand := p.CreateElement("svg", classHandIcon)
	p.SetAttr(hand, "fill", glyph)
	w.icon.AppendChild(hand)
	p.Append(p.Body(), w.icon)

	w.binder.BindToggle(w.icon)
	w.notifier.SetIcon(w.icon)
}

// isLightColor reports whether a #rrggbb color has perceived luminance
// above one half. Shorthand and malformed colors count as dark.
func isLightColor(color string) bool {
	hex := strings.TrimPrefix(color, "#")
	if len(hex) < 6 {
		return false
	}
	var rgb [3]float64
	for i := range rgb {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return false
		}
		rgb[i] = float64(v)
	}
	luminance := (0.299*rgb[0] + 0.587*rgb[1] + 0.114*rgb[2]) / 255
	return luminance > 0.5
}
