package inbox

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadMailboxes reads a YAML list of mailboxes and adds each to s.
func (s *Store) LoadMailboxes(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read mailboxes: %w", err)
	}
	var list []Mailbox
	if err := yaml.Unmarshal(data, &list); err != nil {
		return 0, fmt.Errorf("parse mailboxes %s: %w", path, err)
	}
	for _, m := range list {
		if err := s.AddMailbox(m); err != nil {
			return 0, fmt.Errorf("mailbox %q: %w", m.Slug, err)
		}
	}
	return len(list), nil
}
