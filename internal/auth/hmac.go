// Package auth proves customer identity to the embed backend: HMAC
// email hashes computed by host backends, and the widget session
// tokens issued in exchange.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ClockSkewTolerance bounds how far an auth timestamp may drift from
// the server clock.
const ClockSkewTolerance = time.Hour

var (
	ErrInvalidEmail    = errors.New("invalid email")
	ErrMissingSecret   = errors.New("hmac secret is required")
	ErrTimestampSkew   = errors.New("timestamp is too far from server time")
	ErrInvalidEmailMAC = errors.New("invalid HMAC signature")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// HelperAuth is what a host backend hands to the widget config.
type HelperAuth struct {
	Email     string `json:"email"`
	Timestamp int64  `json:"timestamp"`
	EmailHash string `json:"emailHash"`
}

// EmailHash is hex(HMAC-SHA256(secret, "email:timestamp")), with the
// timestamp in Unix milliseconds.
func EmailHash(secret, email string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(email + ":" + strconv.FormatInt(timestamp, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// GenerateHelperAuth signs email at now. Host backends call this and
// pass the result to the page; the secret never leaves the server.
func GenerateHelperAuth(email, secret string, now time.Time) (HelperAuth, error) {
	if secret == "" {
		return HelperAuth{}, ErrMissingSecret
	}
	if !emailPattern.MatchString(email) {
		return HelperAuth{}, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	ts := now.UnixMilli()
	return HelperAuth{Email: email, Timestamp: ts, EmailHash: EmailHash(secret, email, ts)}, nil
}

// VerifyEmailHash checks a submitted hash against secret and rejects
// timestamps outside ClockSkewTolerance of now.
func VerifyEmailHash(secret, email string, timestamp int64, hash string, now time.Time) error {
	if secret == "" {
		return ErrMissingSecret
	}
	skew := now.Sub(time.UnixMilli(timestamp))
	if skew < 0 {
		skew = -skew
	}
	if skew > ClockSkewTolerance {
		return ErrTimestampSkew
	}
	want := EmailHash(secret, email, timestamp)
	if !hmac.Equal([]byte(want), []byte(hash)) {
		return ErrInvalidEmailMAC
	}
	return nil
}
