// Package handlers is the embed backend's HTTP surface: widget session
// issuance, notification status reports, the conversation list and
// the chat frame itself.
package handlers

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pelusa-v/pelusa-widget/internal/auth"
	"github.com/pelusa-v/pelusa-widget/internal/inbox"
)

const claimsKey = "widgetClaims"

type Handler struct {
	store    *inbox.Store
	sessions *auth.Sessions
	logger   *slog.Logger
	now      func() time.Time

	embedPath string
	embedURL  string
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option { return func(h *Handler) { h.logger = l } }

func WithClock(now func() time.Time) Option { return func(h *Handler) { h.now = now } }

// WithEmbed sets where the chat frame is served and the public URL
// host pages load it from.
func WithEmbed(path, url string) Option {
	return func(h *Handler) { h.embedPath, h.embedURL = path, url }
}

func New(store *inbox.Store, sessions *auth.Sessions, opts ...Option) *Handler {
	h := &Handler{
		store:     store,
		sessions:  sessions,
		logger:    slog.Default(),
		now:       time.Now,
		embedPath: "/widget/embed",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route on app.
func (h *Handler) Register(app *fiber.App) {
	api := app.Group("/api/widget", cors)
	api.Post("/session", h.CreateSessionHandler)
	api.Patch("/notification/:id", h.requireSession, h.NotificationStatusHandler)
	api.Get("/conversations", h.requireSession, h.InboxHandler)
	api.Post("/conversations/:slug/read", h.requireSession, h.MarkReadHandler)

	app.Get(h.embedPath, h.EmbedHandler)
	app.Get("/", h.HostPageHandler)
}

func cors(c *fiber.Ctx) error {
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	c.Set(fiber.HeaderAccessControlAllowHeaders, "Content-Type, Authorization")
	c.Set(fiber.HeaderAccessControlAllowMethods, "GET, POST, PATCH, OPTIONS")
	if c.Method() == fiber.MethodOptions {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.Next()
}

// requireSession verifies the bearer session token and stores its
// claims for the next handler.
func (h *Handler) requireSession(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return unauthorized(c, "Missing authorization header")
	}
	claims, err := h.sessions.Verify(token)
	if err != nil {
		return unauthorized(c, "Invalid session token")
	}
	if _, ok := h.store.Mailbox(claims.MailboxSlug); !ok {
		return unauthorized(c, "Mailbox not found")
	}
	c.Locals(claimsKey, claims)
	return c.Next()
}

func sessionClaims(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(claimsKey).(*auth.Claims)
	return claims
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
