package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/pelusa-widget/internal/config"
	"github.com/pelusa-v/pelusa-widget/internal/logging"
)

func TestOrigin(t *testing.T) {
	o, err := Origin("https://help.example.com:8443/widget/embed?x=1")
	require.NoError(t, err)
	assert.Equal(t, "https://help.example.com:8443", o)

	_, err = Origin("/widget/embed")
	assert.Error(t, err)
}

func TestNewCreateRequestOmitsIdentityForAnonymous(t *testing.T) {
	name := "Jo"
	cfg := config.Widget{MailboxSlug: "acme", CustomerMetadata: &config.CustomerMetadata{Name: &name}}
	req := NewCreateRequest(cfg, "https://shop.test/")
	assert.Equal(t, "acme", req.MailboxSlug)
	assert.Equal(t, "https://shop.test/", req.CurrentURL)
	assert.Empty(t, req.Email)
	assert.Nil(t, req.CustomerMetadata)

	cfg.Email, cfg.EmailHash, cfg.Timestamp = "jo@shop.test", "abc", 42
	req = NewCreateRequest(cfg, "https://shop.test/")
	assert.Equal(t, "jo@shop.test", req.Email)
	assert.Equal(t, "abc", req.EmailHash)
	assert.Equal(t, int64(42), req.Timestamp)
	require.NotNil(t, req.CustomerMetadata)
}

func TestClientCreateSession(t *testing.T) {
	var got CreateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/widget/session", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(CreateResponse{
			Valid:      true,
			Token:      "t1",
			ShowWidget: true,
			Notifications: []Notification{
				{ID: 7, Text: "We replied", ConversationSlug: "c7", Status: StatusUnread},
			},
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/widget/embed", srv.Client())
	require.NoError(t, err)

	sess, err := client.CreateSession(context.Background(), config.Widget{MailboxSlug: "acme"}, "https://shop.test/cart")
	require.NoError(t, err)
	assert.Equal(t, "t1", sess.Token)
	assert.True(t, sess.ShowWidget)
	require.Len(t, sess.Notifications, 1)
	assert.Equal(t, "c7", sess.Notifications[0].ConversationSlug)
	assert.Equal(t, "acme", got.MailboxSlug)
	assert.Equal(t, "https://shop.test/cart", got.CurrentURL)
}

func TestClientCreateSessionRejectsNonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Invalid mailbox"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	require.NoError(t, err)
	_, err = client.CreateSession(context.Background(), config.Widget{MailboxSlug: "nope"}, "https://shop.test/")
	require.ErrorIs(t, err, ErrSessionRejected)
}

func TestClientCreateSessionValidatesBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits.Add(1) }))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	require.NoError(t, err)
	_, err = client.CreateSession(context.Background(), config.Widget{MailboxSlug: "acme", Email: "a@b.co"}, "")
	require.ErrorIs(t, err, config.ErrMissingAuth)
	assert.Zero(t, hits.Load())
}

func TestClientUpdateNotificationStatus(t *testing.T) {
	var auth, path string
	var body StatusRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	require.NoError(t, err)
	require.NoError(t, client.UpdateNotificationStatus(context.Background(), "t1", 12, StatusDismissed))
	assert.Equal(t, "Bearer t1", auth)
	assert.Equal(t, "/api/widget/notification/12", path)
	assert.Equal(t, StatusDismissed, body.Status)
}

type scriptedCreator struct {
	calls   int
	results []error
}

func (s *scriptedCreator) CreateSession(ctx context.Context, cfg config.Widget, currentURL string) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		s.calls++
		return nil, err
	}
	i := s.calls
	s.calls++
	if i < len(s.results) && s.results[i] != nil {
		return nil, s.results[i]
	}
	return &Session{Token: "tok"}, nil
}

func TestBootstrapperStopsOnFirstSuccess(t *testing.T) {
	creator := &scriptedCreator{results: []error{errors.New("boom"), nil}}
	b := NewBootstrapper(creator, WithRetryDelay(time.Millisecond), WithLogger(logging.Discard()))

	sess, err := b.CreateSessionWithRetry(context.Background(), config.Widget{MailboxSlug: "acme"}, "")
	require.NoError(t, err)
	assert.Equal(t, "tok", sess.Token)
	assert.Equal(t, 2, creator.calls)
}

func TestBootstrapperGivesUpAfterThreeAttempts(t *testing.T) {
	fail := errors.New("offline")
	creator := &scriptedCreator{results: []error{fail, fail, fail, fail}}
	b := NewBootstrapper(creator, WithRetryDelay(time.Millisecond), WithLogger(logging.Discard()))

	sess, err := b.CreateSessionWithRetry(context.Background(), config.Widget{MailboxSlug: "acme"}, "")
	require.Error(t, err)
	assert.Nil(t, sess)
	assert.Equal(t, 3, creator.calls)
}

func TestBootstrapperDoesNotRetryConfigErrors(t *testing.T) {
	creator := &scriptedCreator{}
	b := NewBootstrapper(creator, WithRetryDelay(time.Millisecond), WithLogger(logging.Discard()))

	_, err := b.CreateSessionWithRetry(context.Background(), config.Widget{}, "")
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.True(t, IsConfigError(err))
	assert.Equal(t, 1, creator.calls)
}

func TestBootstrapperDefaultDelayIsFixed(t *testing.T) {
	fail := errors.New("offline")
	creator := &scriptedCreator{results: []error{fail, fail, fail}}
	b := NewBootstrapper(creator, WithLogger(logging.Discard()))

	start := time.Now()
	_, err := b.CreateSessionWithRetry(context.Background(), config.Widget{MailboxSlug: "acme"}, "")
	require.Error(t, err)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 2*DefaultRetryDelay)
	assert.Less(t, elapsed, 2*time.Second)
}
