package inbox

import (
	"fmt"
	"sort"

	"github.com/oklog/ulid/v2"
)

func (s *Store) ensurePreviews(owner string) map[string]*Preview {
	p, ok := s.previews[owner]
	if !ok {
		p = map[string]*Preview{}
		s.previews[owner] = p
	}
	return p
}

// StartConversation opens a conversation for owner with a fresh slug.
func (s *Store) StartConversation(mailbox, owner string) Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &Conversation{
		Slug:        ulid.Make().String(),
		MailboxSlug: mailbox,
		Owner:       owner,
	}
	s.conversations[c.Slug] = c
	s.ensurePreviews(owner)[c.Slug] = &Preview{Slug: c.Slug, LastTs: s.now().Unix()}
	return *c
}

// AppendMessage adds a message and updates the owner's preview. Agent
// replies count as unread for the owner.
func (s *Store) AppendMessage(slug string, role Role, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[slug]
	if !ok {
		return fmt.Errorf("conversation %s: %w", slug, ErrNotFound)
	}
	ts := s.now().Unix()
	c.Messages = append(c.Messages, Message{Role: role, Body: body, Ts: ts})

	prev, ok := s.ensurePreviews(c.Owner)[slug]
	if !ok {
		prev = &Preview{Slug: slug}
		s.previews[c.Owner][slug] = prev
	}
	prev.LastBody, prev.LastTs = body, ts
	if role == RoleAgent {
		prev.Unread++
	}
	return nil
}

// Conversation returns a copy of the conversation if owner holds it.
func (s *Store) Conversation(owner, slug string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[slug]
	if !ok || c.Owner != owner {
		return Conversation{}, fmt.Errorf("conversation %s: %w", slug, ErrNotFound)
	}
	cp := *c
	cp.Messages = append([]Message(nil), c.Messages...)
	return cp, nil
}

// GetInbox lists owner's conversations, most recent first.
func (s *Store) GetInbox(owner string) []Preview {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]Preview, 0, len(s.previews[owner]))
	for _, p := range s.previews[owner] {
		list = append(list, *p)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].LastTs == list[j].LastTs {
			return list[i].Slug > list[j].Slug
		}
		return list[i].LastTs > list[j].LastTs
	})
	return list
}

func (s *Store) MarkRead(owner, slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.previews[owner][slug]; ok {
		p.Unread = 0
	}
}
