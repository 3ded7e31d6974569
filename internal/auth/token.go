package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	AnonymousTTL  = 7 * 24 * time.Hour
	IdentifiedTTL = 12 * time.Hour
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the widget session payload.
type Claims struct {
	jwt.RegisteredClaims
	MailboxSlug        string `json:"mailboxSlug"`
	Email              string `json:"email,omitempty"`
	ShowWidget         bool   `json:"showWidget"`
	IsAnonymous        bool   `json:"isAnonymous"`
	IsWhitelabel       bool   `json:"isWhitelabel"`
	AnonymousSessionID string `json:"anonymousSessionId,omitempty"`
	Title              string `json:"title,omitempty"`
}

// Owner identifies whose conversations and notifications a session
// may touch.
func (c *Claims) Owner() string {
	if c.IsAnonymous {
		return "anon:" + c.AnonymousSessionID
	}
	return c.Email
}

// Sessions issues and verifies session tokens signed with HS256.
type Sessions struct {
	secret []byte
	now    func() time.Time
}

func NewSessions(secret string, now func() time.Time) *Sessions {
	if now == nil {
		now = time.Now
	}
	return &Sessions{secret: []byte(secret), now: now}
}

// SessionRequest describes the token to issue. CurrentToken, when
// valid for the same mailbox, keeps an anonymous visitor's session id.
type SessionRequest struct {
	MailboxSlug  string
	Email        string
	ShowWidget   bool
	IsWhitelabel bool
	Title        string
	CurrentToken string
}

func (s *Sessions) Issue(req SessionRequest) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		MailboxSlug:  req.MailboxSlug,
		Email:        req.Email,
		ShowWidget:   req.ShowWidget,
		IsAnonymous:  req.Email == "",
		IsWhitelabel: req.IsWhitelabel,
		Title:        req.Title,
	}
	ttl := IdentifiedTTL
	if claims.IsAnonymous {
		ttl = AnonymousTTL
		claims.AnonymousSessionID = s.carriedSessionID(req)
		if claims.AnonymousSessionID == "" {
			claims.AnonymousSessionID = uuid.NewString()
		}
	}
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return signed, claims, nil
}

func (s *Sessions) carriedSessionID(req SessionRequest) string {
	if req.CurrentToken == "" {
		return ""
	}
	prev, err := s.Verify(req.CurrentToken)
	if err != nil || prev.MailboxSlug != req.MailboxSlug {
		return ""
	}
	return prev.AnonymousSessionID
}

func (s *Sessions) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	// Expiry is checked below against s.now rather than the package clock.
	parser := jwt.Parser{
		ValidMethods:         []string{jwt.SigningMethodHS256.Alg()},
		SkipClaimsValidation: true,
	}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !claims.VerifyExpiresAt(s.now(), true) {
		return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
	}
	if claims.MailboxSlug == "" {
		return nil, fmt.Errorf("%w: missing mailbox", ErrInvalidToken)
	}
	return claims, nil
}
