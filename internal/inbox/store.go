// Package inbox is the embed backend's in-memory store: mailboxes,
// their customers, pending notifications and widget conversations.
package inbox

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pelusa-v/pelusa-widget/internal/config"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidMailbox = errors.New("invalid mailbox")
)

type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	mailboxes     map[string]*Mailbox
	customers     map[string]map[string]*Customer // mailbox -> email -> customer
	notifications map[int64]*notification
	nextID        int64
	conversations map[string]*Conversation
	previews      map[string]map[string]*Preview // owner -> slug -> preview
}

func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:           now,
		mailboxes:     map[string]*Mailbox{},
		customers:     map[string]map[string]*Customer{},
		notifications: map[int64]*notification{},
		conversations: map[string]*Conversation{},
		previews:      map[string]map[string]*Preview{},
	}
}

// AddMailbox registers or replaces a mailbox.
func (s *Store) AddMailbox(m Mailbox) error {
	m.Slug = strings.TrimSpace(m.Slug)
	if m.Slug == "" {
		return fmt.Errorf("%w: slug is required", ErrInvalidMailbox)
	}
	if m.DisplayMode == "" {
		m.DisplayMode = DisplayOff
	}
	switch m.DisplayMode {
	case DisplayOff, DisplayAlways, DisplayRevenueBased:
	default:
		return fmt.Errorf("%w: unknown display mode %q", ErrInvalidMailbox, m.DisplayMode)
	}
	if m.Name == "" {
		m.Name = m.Slug
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mailboxes[m.Slug] = &m
	return nil
}

func (s *Store) Mailbox(slug string) (Mailbox, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mailboxes[slug]
	if !ok {
		return Mailbox{}, false
	}
	return *m, true
}

// UpsertCustomer applies the metadata fields that are present and
// returns the stored customer.
func (s *Store) UpsertCustomer(mailbox, email string, meta *config.CustomerMetadata) Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	byEmail, ok := s.customers[mailbox]
	if !ok {
		byEmail = map[string]*Customer{}
		s.customers[mailbox] = byEmail
	}
	c, ok := byEmail[email]
	if !ok {
		c = &Customer{MailboxSlug: mailbox, Email: email}
		byEmail[email] = c
	}
	if meta != nil {
		if meta.Name != nil {
			c.Name = *meta.Name
		}
		if meta.Value != nil {
			v := *meta.Value
			c.Value = &v
		}
		if meta.Links != nil {
			c.Links = make(map[string]string, len(meta.Links))
			for k, v := range meta.Links {
				c.Links[k] = v
			}
		}
	}
	return *c
}

func (s *Store) Customer(mailbox, email string) (Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[mailbox][email]
	if !ok {
		return Customer{}, false
	}
	return *c, true
}

// ShowWidget decides icon eligibility. Anonymous visitors (nil
// customer) only qualify when the mailbox always shows the widget.
func ShowWidget(m Mailbox, c *Customer) bool {
	switch m.DisplayMode {
	case DisplayAlways:
		return true
	case DisplayRevenueBased:
		if c == nil || c.Value == nil || m.MinValue == nil {
			return false
		}
		return *c.Value/100 >= *m.MinValue
	default:
		return false
	}
}
