package widget

import (
	"errors"

	"github.com/samber/lo"
	"golang.org/x/net/html"

	"github.com/pelusa-v/pelusa-widget/internal/frame"
	"github.com/pelusa-v/pelusa-widget/internal/page"
)

var errMissingIndex = errors.New("click element: index is required")

// handleRequest answers a frame request. Replies go to the frame
// origin only and never wait for READY.
func (w *Widget) handleRequest(p frame.Payload) {
	switch p.Action {
	case frame.ActionFetchPageDetails:
		w.respond(p.RequestID, w.fetchPageDetails())
	case frame.ActionClickElement:
		var content frame.ClickContent
		if err := p.Decode(&content); err != nil {
			w.respondError(p.RequestID, err)
			return
		}
		if content.Index == nil {
			w.respondError(p.RequestID, errMissingIndex)
			return
		}
		w.clickElement(p.RequestID, *content.Index)
	default:
		w.logger.Debug("unhandled frame request", "action", p.Action)
		w.respond(p.RequestID, nil)
	}
}

// fetchPageDetails snapshots the clickable elements of the host page.
// CLICK_ELEMENT indexes refer to the latest snapshot.
func (w *Widget) fetchPageDetails() frame.PageDetails {
	p := w.opts.Page
	w.elements = w.interactive()
	return frame.PageDetails{
		CurrentPageDetails: frame.PageInfo{URL: p.URL(), Title: p.Title()},
		ClickableElements:  page.ClickableList(w.elements),
		InteractiveElements: lo.Map(w.elements, func(e page.Interactive, _ int) frame.InteractiveElement {
			return frame.InteractiveElement{Index: e.Index, Description: e.Description}
		}),
	}
}

// interactive lists the host's clickable elements, leaving out
// everything the widget added.
func (w *Widget) interactive() []page.Interactive {
	own := lo.Compact([]*html.Node{
		w.overlay, w.wrapper, w.toggleButton, w.icon, w.notifier.Container(),
	})
	return w.opts.Page.Interactive(own...)
}

// clickElement clicks off the loop: host listeners may call back into
// the widget's public API.
func (w *Widget) clickElement(requestID string, index int) {
	e, ok := lo.Find(w.elements, func(e page.Interactive) bool { return e.Index == index })
	if !ok || !w.opts.Page.Attached(e.Node) {
		w.respond(requestID, false)
		return
	}
	p := w.opts.Page
	go func() {
		p.Click(e.Node)
		w.loop.post(func() { w.respond(requestID, true) })
	}()
}

func (w *Widget) respond(requestID string, response any) {
	p, err := frame.NewResponse(requestID, response)
	if err != nil {
		w.respondError(requestID, err)
		return
	}
	if err := w.channel.Respond(p); err != nil {
		w.logger.Error("failed to answer frame request", "request_id", requestID, "error", err)
	}
}

func (w *Widget) respondError(requestID string, err error) {
	if err := w.channel.Respond(frame.ErrorResponse(requestID, err)); err != nil {
		w.logger.Error("failed to answer frame request", "request_id", requestID, "error", err)
	}
}

// ClickableElements lists the clickable elements of the host page in
// document order, excluding the widget's own nodes.
func (w *Widget) ClickableElements() []page.Interactive {
	var out []page.Interactive
	w.loop.call(func() { out = w.interactive() })
	return out
}
