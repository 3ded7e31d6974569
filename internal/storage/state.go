package storage

import (
	"log/slog"

	"github.com/pelusa-v/pelusa-widget/internal/logging"
)

// Key names as seen by host-page scripts.
const (
	VisibilityKey   = "helper_widget_visible"
	ConversationKey = "helper_widget_conversation"
)

// State reads and writes the two persisted widget slots. Store errors
// are logged and treated as "absent"; they never reach the host page.
type State struct {
	store  Store
	logger *slog.Logger
}

func NewState(store Store, logger *slog.Logger) *State {
	return &State{store: store, logger: logging.OrDefault(logger)}
}

// Visible reports the persisted visibility flag.
func (s *State) Visible() bool {
	v, ok, err := s.store.Get(VisibilityKey)
	if err != nil {
		s.logger.Error("failed to read widget visibility", "error", err)
		return false
	}
	return ok && v == "true"
}

func (s *State) SetVisible(visible bool) {
	v := "false"
	if visible {
		v = "true"
	}
	if err := s.store.Set(VisibilityKey, v); err != nil {
		s.logger.Error("failed to persist widget visibility", "error", err)
	}
}

// Conversation returns the persisted conversation slug, or "" if none.
func (s *State) Conversation() string {
	v, _, err := s.store.Get(ConversationKey)
	if err != nil {
		s.logger.Error("failed to read widget conversation", "error", err)
		return ""
	}
	return v
}

func (s *State) SetConversation(slug string) {
	if err := s.store.Set(ConversationKey, slug); err != nil {
		s.logger.Error("failed to persist widget conversation", "error", err)
	}
}
