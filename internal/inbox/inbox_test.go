package inbox

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/pelusa-widget/internal/config"
	"github.com/pelusa-v/pelusa-widget/internal/session"
)

func newStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(func() time.Time { return now })
	require.NoError(t, s.AddMailbox(Mailbox{Slug: "acme", Name: "Acme Support", HMACSecret: "s", DisplayMode: DisplayAlways}))
	return s, &now
}

func TestAddMailboxValidates(t *testing.T) {
	s := NewStore(nil)
	assert.ErrorIs(t, s.AddMailbox(Mailbox{}), ErrInvalidMailbox)
	assert.ErrorIs(t, s.AddMailbox(Mailbox{Slug: "x", DisplayMode: "sometimes"}), ErrInvalidMailbox)

	require.NoError(t, s.AddMailbox(Mailbox{Slug: " x "}))
	m, ok := s.Mailbox("x")
	require.True(t, ok)
	assert.Equal(t, DisplayOff, m.DisplayMode)
	assert.Equal(t, "x", m.Name)
}

func TestShowWidget(t *testing.T) {
	minValue := 50.0
	rich, poor := 7500.0, 1200.0
	tests := []struct {
		name string
		mode DisplayMode
		c    *Customer
		want bool
	}{
		{"off", DisplayOff, &Customer{Value: &rich}, false},
		{"always anonymous", DisplayAlways, nil, true},
		{"revenue anonymous", DisplayRevenueBased, nil, false},
		{"revenue above threshold", DisplayRevenueBased, &Customer{Value: &rich}, true},
		{"revenue below threshold", DisplayRevenueBased, &Customer{Value: &poor}, false},
		{"revenue without value", DisplayRevenueBased, &Customer{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Mailbox{Slug: "acme", DisplayMode: tt.mode, MinValue: &minValue}
			assert.Equal(t, tt.want, ShowWidget(m, tt.c))
		})
	}
}

func TestUpsertCustomerKeepsAbsentFields(t *testing.T) {
	s, _ := newStore(t)
	name, value := "Ana", 4200.0
	s.UpsertCustomer("acme", "ana@example.com", &config.CustomerMetadata{Name: &name, Value: &value})
	c := s.UpsertCustomer("acme", "ana@example.com", &config.CustomerMetadata{Links: map[string]string{"CRM": "https://crm/ana"}})

	assert.Equal(t, "Ana", c.Name)
	require.NotNil(t, c.Value)
	assert.Equal(t, 4200.0, *c.Value)
	assert.Equal(t, "https://crm/ana", c.Links["CRM"])

	_, ok := s.Customer("other", "ana@example.com")
	assert.False(t, ok)
}

func TestTakeUnsentDeliversOnce(t *testing.T) {
	s, _ := newStore(t)
	a := s.AddNotification("acme", "ana@example.com", "c1", "first")
	b := s.AddNotification("acme", "ana@example.com", "c2", "second")
	s.AddNotification("acme", "bob@example.com", "c3", "not yours")

	got := s.TakeUnsent("acme", "ana@example.com")
	assert.Equal(t, []int64{a.ID, b.ID}, lo.Map(got, func(n session.Notification, _ int) int64 { return n.ID }))
	assert.Empty(t, s.TakeUnsent("acme", "ana@example.com"))
	assert.Len(t, s.TakeUnsent("acme", "bob@example.com"), 1)
}

func TestUpdateNotificationStatus(t *testing.T) {
	s, _ := newStore(t)
	n := s.AddNotification("acme", "ana@example.com", "c1", "hi")

	require.NoError(t, s.UpdateNotificationStatus("acme", "ana@example.com", n.ID, session.StatusRead))
	got, ok := s.Notification(n.ID)
	require.True(t, ok)
	assert.Equal(t, session.StatusRead, got.Status)

	assert.ErrorIs(t, s.UpdateNotificationStatus("acme", "bob@example.com", n.ID, session.StatusDismissed), ErrNotFound)
	assert.ErrorIs(t, s.UpdateNotificationStatus("acme", "ana@example.com", 999, session.StatusRead), ErrNotFound)
	assert.Error(t, s.UpdateNotificationStatus("acme", "ana@example.com", n.ID, session.StatusUnread))
}

func TestConversationsAndInbox(t *testing.T) {
	s, now := newStore(t)
	first := s.StartConversation("acme", "ana@example.com")
	*now = now.Add(time.Minute)
	second := s.StartConversation("acme", "ana@example.com")
	assert.NotEqual(t, first.Slug, second.Slug)

	*now = now.Add(time.Minute)
	require.NoError(t, s.AppendMessage(first.Slug, RoleCustomer, "help"))
	require.NoError(t, s.AppendMessage(first.Slug, RoleAgent, "on it"))
	assert.ErrorIs(t, s.AppendMessage("missing", RoleAgent, "x"), ErrNotFound)

	list := s.GetInbox("ana@example.com")
	require.Len(t, list, 2)
	assert.Equal(t, first.Slug, list[0].Slug)
	assert.Equal(t, "on it", list[0].LastBody)
	assert.Equal(t, 1, list[0].Unread)

	s.MarkRead("ana@example.com", first.Slug)
	assert.Equal(t, 0, s.GetInbox("ana@example.com")[0].Unread)

	conv, err := s.Conversation("ana@example.com", first.Slug)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2)
	_, err = s.Conversation("bob@example.com", first.Slug)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadMailboxes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailboxes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- slug: acme
  name: Acme Support
  hmac_secret: s1
  display_mode: revenue_based
  min_value: 50
- slug: globex
  hmac_secret: s2
  whitelabel: true
`), 0o600))

	s := NewStore(nil)
	n, err := s.LoadMailboxes(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	acme, ok := s.Mailbox("acme")
	require.True(t, ok)
	assert.Equal(t, DisplayRevenueBased, acme.DisplayMode)
	assert.Equal(t, "s1", acme.HMACSecret)
	require.NotNil(t, acme.MinValue)
	assert.Equal(t, 50.0, *acme.MinValue)

	globex, _ := s.Mailbox("globex")
	assert.True(t, globex.IsWhitelabel)
	assert.Equal(t, DisplayOff, globex.DisplayMode)

	require.NoError(t, os.WriteFile(path, []byte("- slug: bad\n  display_mode: never\n"), 0o600))
	_, err = s.LoadMailboxes(path)
	assert.ErrorIs(t, err, ErrInvalidMailbox)
}
