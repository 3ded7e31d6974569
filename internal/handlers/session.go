package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pelusa-v/pelusa-widget/internal/auth"
	"github.com/pelusa-v/pelusa-widget/internal/inbox"
	"github.com/pelusa-v/pelusa-widget/internal/session"
)

// CreateSessionHandler POST /api/widget/session
func (h *Handler) CreateSessionHandler(c *fiber.Ctx) error {
	var req session.CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request parameters")
	}
	mailbox, ok := h.store.Mailbox(req.MailboxSlug)
	if req.MailboxSlug == "" || !ok {
		return badRequest(c, "Invalid mailbox")
	}

	var customer *inbox.Customer
	if req.Email != "" {
		if req.Timestamp == 0 || req.EmailHash == "" {
			return badRequest(c, "Email authentication fields missing")
		}
		err := auth.VerifyEmailHash(mailbox.HMACSecret, req.Email, req.Timestamp, req.EmailHash, h.now())
		switch {
		case errors.Is(err, auth.ErrTimestampSkew):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"valid": false, "error": "Timestamp is too far in the past"})
		case err != nil:
			h.logger.Info("rejected widget session", "mailbox", mailbox.Slug, "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"valid": false, "error": "Invalid HMAC signature"})
		}

		if req.CustomerMetadata != nil {
			h.store.UpsertCustomer(mailbox.Slug, req.Email, req.CustomerMetadata)
		}
		if cust, ok := h.store.Customer(mailbox.Slug, req.Email); ok {
			customer = &cust
		}
	}

	showWidget := inbox.ShowWidget(mailbox, customer)
	token, claims, err := h.sessions.Issue(auth.SessionRequest{
		MailboxSlug:  mailbox.Slug,
		Email:        req.Email,
		ShowWidget:   showWidget,
		IsWhitelabel: mailbox.IsWhitelabel,
		Title:        mailbox.Name,
		CurrentToken: req.CurrentToken,
	})
	if err != nil {
		h.logger.Error("failed to issue widget session", "mailbox", mailbox.Slug, "error", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	var notifications []session.Notification
	if customer != nil {
		notifications = h.store.TakeUnsent(mailbox.Slug, claims.Owner())
	}
	h.logger.Debug("issued widget session",
		"mailbox", mailbox.Slug, "anonymous", claims.IsAnonymous, "show_widget", showWidget,
		"notifications", len(notifications))

	return c.JSON(session.CreateResponse{
		Valid:         true,
		Token:         token,
		ShowWidget:    showWidget,
		Notifications: notifications,
	})
}
