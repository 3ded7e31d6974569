package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig reports a widget config missing required fields.
	ErrInvalidConfig = errors.New("invalid widget config")
	// ErrMissingAuth reports an email without its hash and timestamp.
	ErrMissingAuth = errors.New("email authentication fields missing")
)

// CustomerMetadata describes the customer to the helpdesk.
type CustomerMetadata struct {
	Name  *string           `json:"name,omitempty" yaml:"name,omitempty"`
	Value *float64          `json:"value,omitempty" yaml:"value,omitempty"`
	Links map[string]string `json:"links,omitempty" yaml:"links,omitempty"`
}

// Widget is the caller-supplied widget configuration. It is never
// modified after Init.
type Widget struct {
	MailboxSlug string `json:"mailbox_slug" yaml:"mailbox_slug"`

	// Email, EmailHash and Timestamp come together: the hash is
	// HMAC-SHA256("email:timestamp") computed by the host's backend.
	Email     string `json:"email,omitempty" yaml:"email,omitempty"`
	EmailHash string `json:"email_hash,omitempty" yaml:"email_hash,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`

	CustomerMetadata *CustomerMetadata `json:"customer_metadata,omitempty" yaml:"customer_metadata,omitempty"`
	IconColor        string            `json:"icon_color,omitempty" yaml:"icon_color,omitempty"`

	// nil leaves the decision to the server eligibility flag.
	ShowToggleButton *bool `json:"show_toggle_button,omitempty" yaml:"show_toggle_button,omitempty"`
}

// IsAnonymous reports whether the config identifies no customer.
func (w Widget) IsAnonymous() bool {
	return w.Email == ""
}

// Validate checks the fields a session request needs.
func (w Widget) Validate() error {
	if w.MailboxSlug == "" {
		return fmt.Errorf("%w: mailbox_slug is required", ErrInvalidConfig)
	}
	if !w.IsAnonymous() && (w.EmailHash == "" || w.Timestamp == 0) {
		return fmt.Errorf("%w: email_hash and timestamp are required with email", ErrMissingAuth)
	}
	return nil
}

// LoadWidget reads a YAML widget config file.
func LoadWidget(path string) (Widget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Widget{}, fmt.Errorf("read widget config: %w", err)
	}
	var w Widget
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Widget{}, fmt.Errorf("parse widget config %s: %w", path, err)
	}
	return w, nil
}
