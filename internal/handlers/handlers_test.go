package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/pelusa-widget/internal/auth"
	"github.com/pelusa-v/pelusa-widget/internal/config"
	"github.com/pelusa-v/pelusa-widget/internal/frame"
	"github.com/pelusa-v/pelusa-widget/internal/inbox"
	"github.com/pelusa-v/pelusa-widget/internal/logging"
	"github.com/pelusa-v/pelusa-widget/internal/session"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	app      *fiber.App
	store    *inbox.Store
	sessions *auth.Sessions
}

func newFixture(t *testing.T, mode inbox.DisplayMode) *fixture {
	t.Helper()
	now := func() time.Time { return epoch }
	store := inbox.NewStore(now)
	minValue := 100.0
	require.NoError(t, store.AddMailbox(inbox.Mailbox{
		Slug: "acme", Name: "Acme Support", HMACSecret: "mailbox-secret",
		DisplayMode: mode, MinValue: &minValue,
	}))
	sessions := auth.NewSessions("jwt-secret", now)

	app := fiber.New(fiber.Config{Views: html.New("../../views", ".html")})
	New(store, sessions, WithClock(now), WithLogger(logging.Discard()),
		WithEmbed("/widget/embed", "http://127.0.0.1:3000/widget/embed")).Register(app)
	return &fixture{app: app, store: store, sessions: sessions}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func signed(email string, at time.Time) session.CreateRequest {
	ha, _ := auth.GenerateHelperAuth(email, "mailbox-secret", at)
	return session.CreateRequest{MailboxSlug: "acme", Email: ha.Email, Timestamp: ha.Timestamp, EmailHash: ha.EmailHash}
}

func TestCreateSessionAnonymous(t *testing.T) {
	f := newFixture(t, inbox.DisplayAlways)
	resp, body := f.do(t, fiber.MethodPost, "/api/widget/session", "", session.CreateRequest{MailboxSlug: "acme"})

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, true, body["showWidget"])
	assert.Nil(t, body["notifications"])

	claims, err := f.sessions.Verify(body["token"].(string))
	require.NoError(t, err)
	assert.True(t, claims.IsAnonymous)
	assert.Equal(t, "Acme Support", claims.Title)
}

func TestCreateSessionRejections(t *testing.T) {
	f := newFixture(t, inbox.DisplayAlways)
	tampered := signed("ana@example.com", epoch)
	tampered.EmailHash = "deadbeef"

	tests := []struct {
		name   string
		req    session.CreateRequest
		status int
		msg    string
	}{
		{"no mailbox", session.CreateRequest{}, fiber.StatusBadRequest, "Invalid mailbox"},
		{"unknown mailbox", session.CreateRequest{MailboxSlug: "nope"}, fiber.StatusBadRequest, "Invalid mailbox"},
		{"email without hash", session.CreateRequest{MailboxSlug: "acme", Email: "ana@example.com"}, fiber.StatusBadRequest, "Email authentication fields missing"},
		{"stale timestamp", signed("ana@example.com", epoch.Add(-2*time.Hour)), fiber.StatusUnauthorized, "Timestamp is too far in the past"},
		{"bad hash", tampered, fiber.StatusUnauthorized, "Invalid HMAC signature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, fiber.MethodPost, "/api/widget/session", "", tt.req)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestCreateSessionIdentifiedDeliversNotificationsOnce(t *testing.T) {
	f := newFixture(t, inbox.DisplayRevenueBased)
	f.store.AddNotification("acme", "ana@example.com", "c1", "We replied")

	value := 25000.0
	req := signed("ana@example.com", epoch.Add(-time.Minute))
	req.CustomerMetadata = &config.CustomerMetadata{Value: &value}

	resp, body := f.do(t, fiber.MethodPost, "/api/widget/session", "", req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["showWidget"])
	require.Len(t, body["notifications"], 1)

	_, body = f.do(t, fiber.MethodPost, "/api/widget/session", "", req)
	assert.Nil(t, body["notifications"])
}

func TestCreateSessionRevenueBelowThreshold(t *testing.T) {
	f := newFixture(t, inbox.DisplayRevenueBased)
	value := 500.0
	req := signed("bob@example.com", epoch)
	req.CustomerMetadata = &config.CustomerMetadata{Value: &value}

	_, body := f.do(t, fiber.MethodPost, "/api/widget/session", "", req)
	assert.Equal(t, false, body["showWidget"])
}

func TestPreflight(t *testing.T) {
	f := newFixture(t, inbox.DisplayAlways)
	resp, _ := f.do(t, fiber.MethodOptions, "/api/widget/notification/1", "", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "Content-Type, Authorization", resp.Header.Get(fiber.HeaderAccessControlAllowHeaders))
}

func TestNotificationStatus(t *testing.T) {
	f := newFixture(t, inbox.DisplayAlways)
	n := f.store.AddNotification("acme", "ana@example.com", "c1", "hi")
	token, _, err := f.sessions.Issue(auth.SessionRequest{MailboxSlug: "acme", Email: "ana@example.com"})
	require.NoError(t, err)
	other, _, err := f.sessions.Issue(auth.SessionRequest{MailboxSlug: "acme", Email: "bob@example.com"})
	require.NoError(t, err)
	path := fmt.Sprintf("/api/widget/notification/%d", n.ID)

	resp, _ := f.do(t, fiber.MethodPatch, path, "", session.StatusRequest{Status: session.StatusRead})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodPatch, path, "garbage", session.StatusRequest{Status: session.StatusRead})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodPatch, path, other, session.StatusRequest{Status: session.StatusRead})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodPatch, path, token, session.StatusRequest{Status: "archived"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body := f.do(t, fiber.MethodPatch, path, token, session.StatusRequest{Status: session.StatusDismissed})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	got, _ := f.store.Notification(n.ID)
	assert.Equal(t, session.StatusDismissed, got.Status)
}

func TestInboxAndMarkRead(t *testing.T) {
	f := newFixture(t, inbox.DisplayAlways)
	conv := f.store.StartConversation("acme", "ana@example.com")
	require.NoError(t, f.store.AppendMessage(conv.Slug, inbox.RoleAgent, "hello"))
	token, _, err := f.sessions.Issue(auth.SessionRequest{MailboxSlug: "acme", Email: "ana@example.com"})
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodGet, "/api/widget/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	var list []inbox.Preview
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].Unread)

	resp, _ = f.do(t, fiber.MethodPost, "/api/widget/conversations/"+conv.Slug+"/read", token, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, f.store.GetInbox("ana@example.com")[0].Unread)
}

func TestViews(t *testing.T) {
	f := newFixture(t, inbox.DisplayAlways)

	resp, err := f.app.Test(httptest.NewRequest(fiber.MethodGet, "/widget/embed", nil))
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), frame.MessageType)

	resp, err = f.app.Test(httptest.NewRequest(fiber.MethodGet, "/?mailbox=acme", nil))
	require.NoError(t, err)
	raw, _ = io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), `data-mailbox="acme"`)
	assert.Contains(t, string(raw), "data-helper-prompt")
}

type recordingPoster struct{ sent []frame.Payload }

func (r *recordingPoster) PostMessage(data []byte, target string) error {
	p, err := frame.Parse(data)
	if err != nil {
		return err
	}
	r.sent = append(r.sent, p)
	return nil
}

func encode(t *testing.T, action frame.Action, content any) []byte {
	t.Helper()
	p, err := frame.NewPayload(action, content)
	require.NoError(t, err)
	data, err := frame.Encode(p)
	require.NoError(t, err)
	return data
}

func TestFrameSessionPromptStartsConversation(t *testing.T) {
	f := newFixture(t, inbox.DisplayAlways)
	token, claims, err := f.sessions.Issue(auth.SessionRequest{MailboxSlug: "acme"})
	require.NoError(t, err)

	out := &recordingPoster{}
	fs := &frameSession{store: f.store, sessions: f.sessions, logger: logging.Discard(), client: out}

	fs.Deliver("", encode(t, frame.ActionPrompt, "too early"))
	assert.Empty(t, out.sent)

	fs.Deliver("", encode(t, frame.ActionConfig, frame.ConfigContent{SessionToken: &token}))
	fs.Deliver("", encode(t, frame.ActionPrompt, "help"))
	fs.Deliver("", encode(t, frame.ActionPrompt, "still there?"))
	fs.Deliver("", []byte(`{"type":"other"}`))

	require.Len(t, out.sent, 2)
	var cc frame.ConversationContent
	require.NoError(t, out.sent[0].Decode(&cc))
	assert.Equal(t, frame.ActionConversationUpdate, out.sent[0].Action)

	conv, err := f.store.Conversation(claims.Owner(), cc.ConversationSlug)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2)
}

func TestFrameSessionOpenConversation(t *testing.T) {
	f := newFixture(t, inbox.DisplayAlways)
	token, claims, err := f.sessions.Issue(auth.SessionRequest{MailboxSlug: "acme", Email: "ana@example.com"})
	require.NoError(t, err)
	conv := f.store.StartConversation("acme", claims.Owner())
	require.NoError(t, f.store.AppendMessage(conv.Slug, inbox.RoleAgent, "reply"))

	fs := &frameSession{store: f.store, sessions: f.sessions, logger: logging.Discard(), client: &recordingPoster{}}
	fs.Deliver("", encode(t, frame.ActionConfig, frame.ConfigContent{SessionToken: &token}))
	fs.Deliver("", encode(t, frame.ActionOpenConversation, frame.ConversationContent{ConversationSlug: conv.Slug}))

	assert.Equal(t, conv.Slug, fs.conversation)
	assert.Equal(t, 0, f.store.GetInbox(claims.Owner())[0].Unread)

	fs.Deliver("", encode(t, frame.ActionOpenConversation, frame.ConversationContent{ConversationSlug: "someone-else"}))
	assert.Equal(t, conv.Slug, fs.conversation)
}
