package inbox

import (
	"github.com/pelusa-v/pelusa-widget/internal/session"
)

// DisplayMode decides which customers see the helper icon.
type DisplayMode string

const (
	DisplayOff          DisplayMode = "off"
	DisplayAlways       DisplayMode = "always"
	DisplayRevenueBased DisplayMode = "revenue_based"
)

type Mailbox struct {
	Slug        string      `json:"slug" yaml:"slug"`
	Name        string      `json:"name" yaml:"name"`
	HMACSecret  string      `json:"-" yaml:"hmac_secret"`
	DisplayMode DisplayMode `json:"displayMode" yaml:"display_mode"`
	// MinValue is in whole currency units; customer values are cents.
	MinValue     *float64 `json:"minValue,omitempty" yaml:"min_value,omitempty"`
	IsWhitelabel bool     `json:"isWhitelabel" yaml:"whitelabel"`
}

type Customer struct {
	MailboxSlug string            `json:"mailboxSlug"`
	Email       string            `json:"email"`
	Name        string            `json:"name,omitempty"`
	Value       *float64          `json:"value,omitempty"`
	Links       map[string]string `json:"links,omitempty"`
}

type notification struct {
	session.Notification
	mailbox string
	owner   string
	sent    bool
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

type Message struct {
	Role Role   `json:"role"`
	Body string `json:"body"`
	Ts   int64  `json:"ts"`
}

type Conversation struct {
	Slug        string    `json:"slug"`
	MailboxSlug string    `json:"mailboxSlug"`
	Owner       string    `json:"owner"`
	Messages    []Message `json:"messages"`
}

// Preview is one row of an owner's conversation list.
type Preview struct {
	Slug     string `json:"slug"`
	LastBody string `json:"lastBody"`
	LastTs   int64  `json:"lastTs"`
	Unread   int    `json:"unread"`
}
