package frame

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"

	"github.com/pelusa-v/pelusa-widget/internal/logging"
	"github.com/pelusa-v/pelusa-widget/internal/session"
)

// AnyOrigin as a target origin skips the origin check. Only the frame
// side uses it; the host always targets the exact frame origin.
const AnyOrigin = "*"

type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// Client is one end of a frame websocket. Inbound messages go to the
// sink tagged with the peer origin; outbound messages are buffered on
// Send and written by WritePump. A dialing client has no Conn yet and
// buffers until the dial completes.
type Client struct {
	Id     string
	Origin string
	Conn   ConnLike
	Send   chan []byte

	sink Sink

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
}

func NewClient(origin string, conn ConnLike, sink Sink) *Client {
	return &Client{
		Id:     uuid.NewString(),
		Origin: origin,
		Conn:   conn,
		Send:   make(chan []byte, 16),
		sink:   sink,
	}
}

func (c *Client) ReadPump() {
	defer c.Close()
	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}
		c.sink.Deliver(c.Origin, data)
	}
}

func (c *Client) WritePump() {
	for data := range c.Send {
		_ = c.Conn.WriteMessage(websocket.TextMessage, data)
	}
}

// PostMessage queues data for the peer. It never blocks: a full
// buffer is reported as an error.
func (c *Client) PostMessage(data []byte, targetOrigin string) error {
	if targetOrigin != AnyOrigin && targetOrigin != c.Origin {
		return fmt.Errorf("%w: %q != %q", ErrOriginMismatch, targetOrigin, c.Origin)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrFrameClosed
	}
	select {
	case c.Send <- data:
		return nil
	default:
		return fmt.Errorf("frame client %s: send buffer full", c.Id)
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.Send)
	if c.cancel != nil {
		c.cancel()
	}
	conn := c.Conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// connect dials in the background and starts the pumps once the
// socket is up. A failed dial closes the client.
func (c *Client) connect(ctx context.Context, dialer *websocket.Dialer, wsURL string, header http.Header, logger *slog.Logger) {
	conn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("failed to dial frame", "url", wsURL, "error", err)
		}
		_ = c.Close()
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.Conn = conn
	c.mu.Unlock()

	logger.Debug("frame connected", "id", c.Id, "url", wsURL)
	go c.WritePump()
	c.ReadPump()
}

// SocketOpener opens frames over websocket: the frame at
// https://host/path is reached at wss://host/path. Open returns at
// once; the dial runs in the background like an iframe load.
type SocketOpener struct {
	Dialer *websocket.Dialer
	Header http.Header
	Logger *slog.Logger
}

func (o SocketOpener) Open(src string, sink Sink) (Window, error) {
	origin, err := session.Origin(src)
	if err != nil {
		return nil, err
	}
	wsURL, err := SocketURL(src)
	if err != nil {
		return nil, err
	}
	dialer := o.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(origin, nil, sink)
	client.cancel = cancel
	go client.connect(ctx, dialer, wsURL, o.Header, logging.OrDefault(o.Logger))
	return client, nil
}

// SocketURL maps an http(s) frame URL to its ws(s) endpoint.
func SocketURL(src string) (string, error) {
	u, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse frame url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("frame url %q: unsupported scheme %q", src, u.Scheme)
	}
	return u.String(), nil
}
