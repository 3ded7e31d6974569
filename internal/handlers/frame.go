package handlers

import (
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/pelusa-v/pelusa-widget/internal/auth"
	"github.com/pelusa-v/pelusa-widget/internal/frame"
	"github.com/pelusa-v/pelusa-widget/internal/inbox"
)

// EmbedHandler GET /widget/embed
// A websocket upgrade becomes the frame's message channel; a plain
// request gets the frame page.
func (h *Handler) EmbedHandler(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(h.FrameSocketHandler)(c)
	}
	return c.Render("embed", fiber.Map{
		"MessageType": frame.MessageType,
	})
}

// HostPageHandler GET /?mailbox=
func (h *Handler) HostPageHandler(c *fiber.Ctx) error {
	return c.Render("host", fiber.Map{
		"EmbedURL": h.embedURL,
		"Mailbox":  c.Query("mailbox"),
	})
}

// FrameSocketHandler speaks the frame side of the widget protocol:
// READY on connect, CONVERSATION_UPDATE once a prompt starts one.
func (h *Handler) FrameSocketHandler(c *websocket.Conn) {
	fs := &frameSession{
		store:    h.store,
		sessions: h.sessions,
		logger:   h.logger.With("frame", c.RemoteAddr().String()),
	}
	client := frame.NewClient(c.Headers(fiber.HeaderOrigin), c, fs)
	fs.client = client
	go client.WritePump()
	fs.send(frame.Bare(frame.ActionReady))
	client.ReadPump()
}

type poster interface {
	PostMessage(data []byte, targetOrigin string) error
}

// frameSession is one connected frame. Deliver runs on the read pump
// only, so its fields need no lock.
type frameSession struct {
	store    *inbox.Store
	sessions *auth.Sessions
	logger   *slog.Logger
	client   poster

	claims       *auth.Claims
	conversation string
}

func (fs *frameSession) Deliver(_ string, data []byte) {
	p, err := frame.Parse(data)
	if err != nil {
		return
	}
	switch p.Action {
	case frame.ActionConfig:
		fs.configure(p)
	case frame.ActionPrompt, frame.ActionStartGuide:
		var text string
		if p.IsNull() || p.Decode(&text) != nil || text == "" {
			return
		}
		fs.prompt(text)
	case frame.ActionOpenConversation:
		var cc frame.ConversationContent
		if err := p.Decode(&cc); err != nil || fs.claims == nil {
			return
		}
		if _, err := fs.store.Conversation(fs.claims.Owner(), cc.ConversationSlug); err != nil {
			fs.logger.Warn("unknown conversation", "slug", cc.ConversationSlug)
			return
		}
		fs.conversation = cc.ConversationSlug
		fs.store.MarkRead(fs.claims.Owner(), cc.ConversationSlug)
	case frame.ActionScreenshot:
		fs.logger.Debug("received screenshot", "empty", p.IsNull())
	}
}

func (fs *frameSession) configure(p frame.Payload) {
	var cc frame.ConfigContent
	if err := p.Decode(&cc); err != nil {
		fs.logger.Warn("invalid frame config", "error", err)
		return
	}
	if cc.SessionToken == nil {
		fs.logger.Info("frame configured without a session")
		return
	}
	claims, err := fs.sessions.Verify(*cc.SessionToken)
	if err != nil {
		fs.logger.Warn("frame session rejected", "error", err)
		return
	}
	fs.claims = claims
}

func (fs *frameSession) prompt(text string) {
	if fs.claims == nil {
		fs.logger.Warn("prompt before session config")
		return
	}
	if fs.conversation == "" {
		conv := fs.store.StartConversation(fs.claims.MailboxSlug, fs.claims.Owner())
		fs.conversation = conv.Slug
	}
	if err := fs.store.AppendMessage(fs.conversation, inbox.RoleCustomer, text); err != nil {
		fs.logger.Error("failed to append message", "slug", fs.conversation, "error", err)
		return
	}
	payload, err := frame.NewPayload(frame.ActionConversationUpdate, frame.ConversationContent{ConversationSlug: fs.conversation})
	if err != nil {
		return
	}
	fs.send(payload)
}

func (fs *frameSession) send(p frame.Payload) {
	data, err := frame.Encode(p)
	if err != nil {
		fs.logger.Error("failed to encode frame message", "action", p.Action, "error", err)
		return
	}
	if err := fs.client.PostMessage(data, frame.AnyOrigin); err != nil {
		fs.logger.Warn("failed to post frame message", "action", p.Action, "error", err)
	}
}
