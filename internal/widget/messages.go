package widget

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/pelusa-v/pelusa-widget/internal/frame"
	"github.com/pelusa-v/pelusa-widget/internal/page"
)

const screenshotTimeout = 15 * time.Second

// Screenshotter captures the host page for the frame.
type Screenshotter interface {
	Screenshot(ctx context.Context, p *page.Page) (string, error)
}

// MarkupScreenshotter "captures" the page as a data URL of its
// rendered markup. Useful where no pixel renderer exists.
type MarkupScreenshotter struct{}

func (MarkupScreenshotter) Screenshot(_ context.Context, p *page.Page) (string, error) {
	return "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(p.OuterHTML())), nil
}

// Deliver hands an inbound frame message to the event loop.
func (w *Widget) Deliver(origin string, data []byte) {
	w.loop.post(func() { w.handleMessage(origin, data) })
}

func (w *Widget) handleMessage(origin string, data []byte) {
	payload, ok := w.channel.Accept(origin, data)
	if !ok {
		w.logger.Debug("ignored foreign frame message", "origin", origin)
		return
	}
	if payload.IsRequest() {
		w.handleRequest(payload)
		return
	}
	switch payload.Action {
	case frame.ActionReady:
		w.onFrameReady()
	case frame.ActionClose:
		w.hide()
	case frame.ActionMinimize:
		w.minimize()
	case frame.ActionConversationUpdate:
		var content frame.ConversationContent
		if err := payload.Decode(&content); err != nil {
			w.logger.Warn("malformed conversation update", "error", err)
			return
		}
		w.updateConversation(content.ConversationSlug)
	case frame.ActionScreenshot:
		w.takeScreenshot()
	default:
		w.logger.Debug("unhandled frame action", "action", payload.Action)
	}
}

func (w *Widget) onFrameCreated() {
	p := w.opts.Page
	w.iframe = p.CreateElement("iframe", classIframe)
	p.SetAttr(w.iframe, "src", w.channel.Src())
	if w.wrapper != nil {
		p.Append(w.wrapper, w.iframe)
	}
	w.showLoading()
}

// onFrameReady runs once per frame: CONFIG goes out first, then the
// queued backlog, then the restored conversation.
func (w *Widget) onFrameReady() {
	if !w.channel.MarkReady() {
		return
	}
	w.hideLoading()
	w.send(frame.ActionConfig, w.frameConfig())
	w.channel.Flush()
	if w.conversation != "" {
		w.send(frame.ActionOpenConversation, frame.ConversationContent{ConversationSlug: w.conversation})
	}
}

func (w *Widget) frameConfig() frame.ConfigContent {
	content := frame.ConfigContent{
		Config:     w.cfg,
		PageHTML:   w.opts.Page.OuterHTML(),
		CurrentURL: w.opts.Page.URL(),
	}
	if w.token != "" {
		token := w.token
		content.SessionToken = &token
	}
	return content
}

func (w *Widget) updateConversation(slug string) {
	if slug == "" {
		return
	}
	w.conversation = slug
	if !w.cfg.IsAnonymous() {
		w.state.SetConversation(slug)
	}
}

func (w *Widget) sendPrompt(text *string) {
	if text == nil {
		w.send(frame.ActionPrompt, nil)
		return
	}
	w.send(frame.ActionPrompt, *text)
}

func (w *Widget) openConversation(slug string) {
	w.show()
	w.send(frame.ActionOpenConversation, frame.ConversationContent{ConversationSlug: slug})
}

func (w *Widget) send(action frame.Action, content any) {
	payload, err := frame.NewPayload(action, content)
	if err != nil {
		w.logger.Error("failed to encode frame message", "action", action, "error", err)
		return
	}
	w.channel.Send(payload)
}

// takeScreenshot captures off the loop and replies with the image, or
// null when capture is unavailable or fails.
func (w *Widget) takeScreenshot() {
	shooter := w.opts.Screenshotter
	if shooter == nil {
		w.send(frame.ActionScreenshot, nil)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(w.ctx, screenshotTimeout)
		defer cancel()
		image, err := shooter.Screenshot(ctx, w.opts.Page)
		w.loop.post(func() {
			if err != nil {
				w.logger.Error("failed to take screenshot", "error", err)
				w.send(frame.ActionScreenshot, nil)
				return
			}
			w.send(frame.ActionScreenshot, image)
		})
	}()
}
