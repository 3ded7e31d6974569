package frame

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pelusa-v/pelusa-widget/internal/config"
)

// MessageType tags every envelope of this protocol so unrelated
// cross-frame traffic is ignored.
const MessageType = "HELPER_WIDGET_MESSAGE"

type Action string

const (
	// host -> frame
	ActionConfig           Action = "CONFIG"
	ActionPrompt           Action = "PROMPT"
	ActionStartGuide       Action = "START_GUIDE"
	ActionOpenConversation Action = "OPEN_CONVERSATION"

	// frame -> host
	ActionReady              Action = "READY"
	ActionClose              Action = "CLOSE"
	ActionMinimize           Action = "MINIMIZE"
	ActionConversationUpdate Action = "CONVERSATION_UPDATE"

	// either direction: request from the frame, image reply from the host
	ActionScreenshot Action = "SCREENSHOT"

	// frame -> host requests, answered by a payload carrying responseId
	ActionFetchPageDetails Action = "FETCH_PAGE_DETAILS"
	ActionClickElement     Action = "CLICK_ELEMENT"
)

var ErrNotProtocol = errors.New("not a widget protocol message")

type Envelope struct {
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

// Payload is either an action message or, when RequestID or
// ResponseID is set, one half of a request/response exchange.
type Payload struct {
	Action  Action          `json:"action,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`

	RequestID  string          `json:"requestId,omitempty"`
	ResponseID string          `json:"responseId,omitempty"`
	Response   json.RawMessage `json:"response,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// ConfigContent is sent once, right after the frame reports READY.
type ConfigContent struct {
	Config       config.Widget `json:"config"`
	SessionToken *string       `json:"sessionToken"`
	PageHTML     string        `json:"pageHTML"`
	CurrentURL   string        `json:"currentURL"`
}

type ConversationContent struct {
	ConversationSlug string `json:"conversationSlug"`
}

// PageDetails answers FETCH_PAGE_DETAILS.
type PageDetails struct {
	CurrentPageDetails  PageInfo             `json:"currentPageDetails"`
	ClickableElements   string               `json:"clickableElements"`
	InteractiveElements []InteractiveElement `json:"interactiveElements"`
}

type PageInfo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type InteractiveElement struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
}

type ClickContent struct {
	Index *int `json:"index"`
}

// NewPayload encodes content (nil encodes as JSON null).
func NewPayload(action Action, content any) (Payload, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return Payload{}, fmt.Errorf("encode %s content: %w", action, err)
	}
	return Payload{Action: action, Content: raw}, nil
}

func Bare(action Action) Payload {
	return Payload{Action: action}
}

// NewRequest builds a request the peer answers with a matching
// responseId.
func NewRequest(requestID string, action Action, content any) (Payload, error) {
	p, err := NewPayload(action, content)
	if err != nil {
		return Payload{}, err
	}
	p.RequestID = requestID
	return p, nil
}

// NewResponse answers requestID with response (nil encodes as null).
func NewResponse(requestID string, response any) (Payload, error) {
	raw, err := json.Marshal(response)
	if err != nil {
		return Payload{}, fmt.Errorf("encode response to %s: %w", requestID, err)
	}
	return Payload{ResponseID: requestID, Response: raw}, nil
}

func ErrorResponse(requestID string, err error) Payload {
	return Payload{ResponseID: requestID, Error: err.Error()}
}

func (p Payload) IsRequest() bool { return p.RequestID != "" }

// DecodeResponse unmarshals the response into v, or returns the
// error the peer reported.
func (p Payload) DecodeResponse(v any) error {
	if p.Error != "" {
		return errors.New(p.Error)
	}
	if len(p.Response) == 0 {
		return nil
	}
	return json.Unmarshal(p.Response, v)
}

// Decode unmarshals content into v. Missing content leaves v untouched.
func (p Payload) Decode(v any) error {
	if len(p.Content) == 0 {
		return nil
	}
	return json.Unmarshal(p.Content, v)
}

// IsNull reports whether the payload carries no content or JSON null.
func (p Payload) IsNull() bool {
	return len(p.Content) == 0 || string(p.Content) == "null"
}

func Encode(p Payload) ([]byte, error) {
	return json.Marshal(Envelope{Type: MessageType, Payload: p})
}

// Parse decodes data and checks the protocol tag.
func Parse(data []byte) (Payload, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrNotProtocol, err)
	}
	if env.Type != MessageType {
		return Payload{}, ErrNotProtocol
	}
	return env.Payload, nil
}
