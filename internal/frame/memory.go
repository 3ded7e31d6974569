package frame

import (
	"fmt"
	"sync"

	"github.com/pelusa-v/pelusa-widget/internal/session"
)

// MemoryOpener creates in-process frames. Tests and embedders use it
// to play the frame side of the protocol without a transport.
type MemoryOpener struct {
	mu      sync.Mutex
	windows []*MemoryWindow
	err     error
}

// FailWith makes subsequent Open calls fail with err.
func (o *MemoryOpener) FailWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *MemoryOpener) Open(src string, sink Sink) (Window, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	origin, err := session.Origin(src)
	if err != nil {
		return nil, err
	}
	w := &MemoryWindow{src: src, origin: origin, sink: sink}
	o.windows = append(o.windows, w)
	return w, nil
}

func (o *MemoryOpener) Opened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.windows)
}

// Last returns the most recently created frame, or nil.
func (o *MemoryOpener) Last() *MemoryWindow {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.windows) == 0 {
		return nil
	}
	return o.windows[len(o.windows)-1]
}

// MemoryWindow records what the host posts and lets the caller post
// back as the frame.
type MemoryWindow struct {
	src    string
	origin string
	sink   Sink

	mu       sync.Mutex
	received []Payload
}

func (w *MemoryWindow) Src() string { return w.src }

func (w *MemoryWindow) Origin() string { return w.origin }

func (w *MemoryWindow) PostMessage(data []byte, targetOrigin string) error {
	if targetOrigin != w.origin {
		return fmt.Errorf("%w: %q != %q", ErrOriginMismatch, targetOrigin, w.origin)
	}
	p, err := Parse(data)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.received = append(w.received, p)
	w.mu.Unlock()
	return nil
}

func (w *MemoryWindow) Received() []Payload {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Payload(nil), w.received...)
}

func (w *MemoryWindow) Actions() []Action {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Action, len(w.received))
	for i, p := range w.received {
		out[i] = p.Action
	}
	return out
}

func (w *MemoryWindow) Reply(p Payload) error {
	return w.ReplyFrom(w.origin, p)
}

// ReplyFrom posts p to the host claiming the given origin.
func (w *MemoryWindow) ReplyFrom(origin string, p Payload) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	w.sink.Deliver(origin, data)
	return nil
}

// ReplyRaw posts raw bytes to the host as the frame.
func (w *MemoryWindow) ReplyRaw(data []byte) {
	w.sink.Deliver(w.origin, data)
}

// Response returns the host's reply to requestID.
func (w *MemoryWindow) Response(requestID string) (Payload, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.received {
		if p.ResponseID == requestID {
			return p, true
		}
	}
	return Payload{}, false
}
