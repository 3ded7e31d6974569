package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/pelusa-v/pelusa-widget/internal/inbox"
	"github.com/pelusa-v/pelusa-widget/internal/session"
)

// NotificationStatusHandler PATCH /api/widget/notification/:id
func (h *Handler) NotificationStatusHandler(c *fiber.Ctx) error {
	claims := sessionClaims(c)
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return badRequest(c, "Invalid notification id")
	}
	var req session.StatusRequest
	if err := c.BodyParser(&req); err != nil || !req.Status.Valid() {
		return badRequest(c, "Invalid status")
	}
	err = h.store.UpdateNotificationStatus(claims.MailboxSlug, claims.Owner(), id, req.Status)
	if errors.Is(err, inbox.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notification not found"})
	}
	if err != nil {
		return badRequest(c, err.Error())
	}
	return c.JSON(fiber.Map{"success": true})
}

// InboxHandler GET /api/widget/conversations
func (h *Handler) InboxHandler(c *fiber.Ctx) error {
	return c.JSON(h.store.GetInbox(sessionClaims(c).Owner()))
}

// MarkReadHandler POST /api/widget/conversations/:slug/read
func (h *Handler) MarkReadHandler(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if slug == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	h.store.MarkRead(sessionClaims(c).Owner(), slug)
	return c.SendStatus(fiber.StatusNoContent)
}
