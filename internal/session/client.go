// Package session performs the widget's authenticated handshake with
// the embed backend and reports notification status changes.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pelusa-v/pelusa-widget/internal/config"
)

// ErrSessionRejected reports a non-success response from the backend.
var ErrSessionRejected = errors.New("session creation failed")

// Client talks to the embed backend's widget API.
type Client struct {
	origin string
	http   *http.Client
}

// NewClient targets the origin of embedURL. A nil httpClient gets a
// client with a 10s timeout.
func NewClient(embedURL string, httpClient *http.Client) (*Client, error) {
	origin, err := Origin(embedURL)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{origin: origin, http: httpClient}, nil
}

// Origin returns scheme://host[:port] of raw.
func Origin(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse embed url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("embed url %q is not absolute", raw)
	}
	return u.Scheme + "://" + u.Host, nil
}

// NewCreateRequest builds the session request for cfg. Identity fields
// are included only for authenticated configs.
func NewCreateRequest(cfg config.Widget, currentURL string) CreateRequest {
	req := CreateRequest{MailboxSlug: cfg.MailboxSlug, CurrentURL: currentURL}
	if !cfg.IsAnonymous() {
		req.Email = cfg.Email
		req.EmailHash = cfg.EmailHash
		req.Timestamp = cfg.Timestamp
		req.CustomerMetadata = cfg.CustomerMetadata
	}
	return req
}

// CreateSession validates cfg and issues one session request.
func (c *Client) CreateSession(ctx context.Context, cfg config.Widget, currentURL string) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(NewCreateRequest(cfg, currentURL))
	if err != nil {
		return nil, fmt.Errorf("encode session request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.origin+"/api/widget/session", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrSessionRejected, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out CreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode session response: %w", err)
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%w: response carried no token", ErrSessionRejected)
	}
	return &Session{Token: out.Token, ShowWidget: out.ShowWidget, Notifications: out.Notifications}, nil
}

// UpdateNotificationStatus reports a read or dismissal. Only success
// or failure is consumed.
func (c *Client) UpdateNotificationStatus(ctx context.Context, token string, id int64, status Status) error {
	body, err := json.Marshal(StatusRequest{Status: status})
	if err != nil {
		return err
	}
	endpoint := c.origin + "/api/widget/notification/" + strconv.FormatInt(id, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("notification status request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification %d status update: unexpected status %d", id, resp.StatusCode)
	}
	return nil
}
