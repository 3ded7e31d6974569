package inbox

import (
	"fmt"
	"sort"

	"github.com/pelusa-v/pelusa-widget/internal/session"
)

// AddNotification queues text for owner about a conversation. It is
// delivered by the next TakeUnsent for that owner.
func (s *Store) AddNotification(mailbox, owner, conversationSlug, text string) session.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	n := &notification{
		Notification: session.Notification{
			ID:               s.nextID,
			Text:             text,
			ConversationSlug: conversationSlug,
			Status:           session.StatusUnread,
		},
		mailbox: mailbox,
		owner:   owner,
	}
	s.notifications[n.ID] = n
	return n.Notification
}

// TakeUnsent returns owner's undelivered notifications, oldest first,
// and marks them sent.
func (s *Store) TakeUnsent(mailbox, owner string) []session.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []session.Notification
	for _, n := range s.notifications {
		if n.sent || n.mailbox != mailbox || n.owner != owner {
			continue
		}
		n.sent = true
		out = append(out, n.Notification)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateNotificationStatus records a read or dismissed report. Only the
// owner of the notification may update it.
func (s *Store) UpdateNotificationStatus(mailbox, owner string, id int64, status session.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid notification status %q", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.mailbox != mailbox || n.owner != owner {
		return fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	n.Status = status
	return nil
}

func (s *Store) Notification(id int64) (session.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return session.Notification{}, false
	}
	return n.Notification, true
}
