// Package frame owns the embedded chat frame: the envelope protocol,
// the queue that holds outbound messages until the frame reports
// READY, and the transports that carry messages to it.
package frame

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/pelusa-v/pelusa-widget/internal/logging"
	"github.com/pelusa-v/pelusa-widget/internal/session"
)

var (
	ErrOriginMismatch = errors.New("target origin does not match frame origin")
	ErrFrameClosed    = errors.New("frame closed")
)

// Window is the frame's content window: the outbound half of the
// message channel.
type Window interface {
	PostMessage(data []byte, targetOrigin string) error
}

// Sink receives inbound messages together with the sender's origin.
type Sink interface {
	Deliver(origin string, data []byte)
}

// Opener creates the embedded frame for src. Messages the frame sends
// back arrive on sink.
type Opener interface {
	Open(src string, sink Sink) (Window, error)
}

type State int

const (
	StateNoFrame State = iota
	StateCreated
	StateReady
)

func (s State) String() string {
	switch s {
	case StateNoFrame:
		return "no-frame"
	case StateCreated:
		return "frame-created-not-ready"
	case StateReady:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Channel is the host side of the frame protocol. It is driven from a
// single goroutine (the widget's event loop) and is not safe for
// concurrent use.
type Channel struct {
	src    string
	origin string
	opener Opener
	sink   Sink
	logger *slog.Logger

	state    State
	window   Window
	queue    Queue
	onCreate func()
}

// NewChannel prepares a channel for the frame at src. No frame exists
// until the first Send or EnsureFrame.
func NewChannel(src string, opener Opener, sink Sink, logger *slog.Logger) (*Channel, error) {
	origin, err := session.Origin(src)
	if err != nil {
		return nil, err
	}
	return &Channel{
		src:    src,
		origin: origin,
		opener: opener,
		sink:   sink,
		logger: logging.OrDefault(logger),
	}, nil
}

// OnCreate registers a hook run right after the frame is created.
func (c *Channel) OnCreate(fn func()) { c.onCreate = fn }

func (c *Channel) Origin() string { return c.origin }

func (c *Channel) Src() string { return c.src }

func (c *Channel) State() State { return c.state }

func (c *Channel) Pending() int { return c.queue.Len() }

// EnsureFrame creates the frame if none exists yet. A frame is never
// re-created once it exists.
func (c *Channel) EnsureFrame() error {
	if c.state != StateNoFrame {
		return nil
	}
	w, err := c.opener.Open(c.src, c.sink)
	if err != nil {
		return fmt.Errorf("open frame %s: %w", c.src, err)
	}
	c.window = w
	c.state = StateCreated
	if c.onCreate != nil {
		c.onCreate()
	}
	return nil
}

// Send dispatches p when the frame is ready, otherwise queues it and
// makes sure a frame is on its way.
func (c *Channel) Send(p Payload) {
	if c.state == StateReady && c.window != nil {
		c.post(p)
		return
	}
	c.queue.Push(p)
	if c.state == StateNoFrame {
		if err := c.EnsureFrame(); err != nil {
			c.logger.Error("failed to create widget frame", "error", err)
		}
	}
}

// MarkReady records the frame's READY signal. It returns false for
// duplicates.
func (c *Channel) MarkReady() bool {
	if c.state == StateReady || c.window == nil {
		return false
	}
	c.state = StateReady
	return true
}

// Flush drains the queue front to back. Payloads sent while flushing
// are dispatched directly since the channel is already ready.
func (c *Channel) Flush() {
	for {
		p, ok := c.queue.Pop()
		if !ok {
			return
		}
		c.Send(p)
	}
}

// Accept validates an inbound message. Both the protocol tag and the
// sender origin must match before anything is dispatched.
func (c *Channel) Accept(origin string, data []byte) (Payload, bool) {
	if origin != c.origin {
		return Payload{}, false
	}
	p, err := Parse(data)
	if err != nil {
		return Payload{}, false
	}
	return p, true
}

// Respond posts a reply to a frame request straight to the frame,
// bypassing the READY queue. Requests only arrive from an existing
// frame, so a missing window means the frame is gone.
func (c *Channel) Respond(p Payload) error {
	if c.window == nil {
		return ErrFrameClosed
	}
	data, err := Encode(p)
	if err != nil {
		return err
	}
	return c.window.PostMessage(data, c.origin)
}

// Close releases the transport, if it holds one.
func (c *Channel) Close() error {
	if closer, ok := c.window.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Channel) post(p Payload) {
	data, err := Encode(p)
	if err != nil {
		c.logger.Error("failed to encode frame message", "action", p.Action, "error", err)
		return
	}
	if err := c.window.PostMessage(data, c.origin); err != nil {
		c.logger.Error("failed to post frame message", "action", p.Action, "error", err)
	}
}
