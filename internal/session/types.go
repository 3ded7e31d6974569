package session

import "github.com/pelusa-v/pelusa-widget/internal/config"

// Status is a notification's lifecycle state.
type Status string

const (
	StatusUnread    Status = "unread"
	StatusRead      Status = "read"
	StatusDismissed Status = "dismissed"
)

// Valid reports whether s is a status a client may report.
func (s Status) Valid() bool {
	return s == StatusRead || s == StatusDismissed
}

// Notification is a pending message for one conversation, delivered
// once in the bootstrap response.
type Notification struct {
	ID               int64  `json:"id"`
	Text             string `json:"text"`
	ConversationSlug string `json:"conversationSlug"`
	Status           Status `json:"status"`
}

// CreateRequest is the body of POST /api/widget/session.
type CreateRequest struct {
	MailboxSlug string `json:"mailboxSlug"`
	CurrentURL  string `json:"currentURL"`

	Email            string                   `json:"email,omitempty"`
	EmailHash        string                   `json:"emailHash,omitempty"`
	Timestamp        int64                    `json:"timestamp,omitempty"`
	CustomerMetadata *config.CustomerMetadata `json:"customerMetadata,omitempty"`
	CurrentToken     string                   `json:"currentToken,omitempty"`
}

// CreateResponse is the success body of POST /api/widget/session.
type CreateResponse struct {
	Valid         bool           `json:"valid"`
	Token         string         `json:"token"`
	ShowWidget    bool           `json:"showWidget"`
	Notifications []Notification `json:"notifications,omitempty"`
}

// StatusRequest is the body of PATCH /api/widget/notification/:id.
type StatusRequest struct {
	Status Status `json:"status"`
}

// Session is the bootstrap result held by the widget. The token lives
// in memory only.
type Session struct {
	Token         string
	ShowWidget    bool
	Notifications []Notification
}
