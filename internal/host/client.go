package host

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tOgg1/chatsync/internal/events"
	"github.com/tOgg1/chatsync/internal/logging"
)

const (
	defaultDialTimeout    = 2 * time.Second
	defaultRequestTimeout = 10 * time.Second
)

// Config configures a Client.
type Config struct {
	// Addr is a unix socket path or host:port.
	Addr string

	// DialTimeout bounds connection attempts.
	DialTimeout time.Duration

	// RequestTimeout bounds a single call when the context has no deadline.
	RequestTimeout time.Duration

	// Publisher receives push events. Optional.
	Publisher events.Publisher
}

// Client multiplexes calls and push events over one connection. It redials
// on the next call after the connection drops.
type Client struct {
	cfg    Config
	logger zerolog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	conn    net.Conn
	writer  *bufio.Writer
	pending map[string]chan reply
	closed  bool
}

type reply struct {
	frame Frame
	err   error
}

// NewClient creates a client. No connection is made until the first call
// or Connect.
func NewClient(cfg Config) *Client {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	return &Client{
		cfg:     cfg,
		logger:  logging.Component("host-client"),
		pending: make(map[string]chan reply),
	}
}

// Connect dials the host if not already connected.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.ensureConn(ctx)
	return err
}

// Close drops the connection and fails outstanding calls.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Call sends one request and decodes a successful result into out. A
// result with success false becomes a *HostError; connection problems and
// timeouts become a *TransportError.
func (c *Client) Call(ctx context.Context, channel Channel, args any, out any) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	req := Request{ID: uuid.NewString(), Channel: channel}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("encode %s args: %w", channel, err)
		}
		req.Args = raw
	}

	conn, err := c.ensureConn(ctx)
	if err != nil {
		return &TransportError{Channel: channel, Op: "dial", Err: err}
	}

	replyCh := make(chan reply, 1)
	c.mu.Lock()
	c.pending[req.ID] = replyCh
	writer := c.writer
	c.mu.Unlock()
	defer c.forget(req.ID)
	if writer == nil {
		return &TransportError{Channel: channel, Op: "write", Err: ErrClosed}
	}

	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	err = WriteJSONLine(writer, req)
	c.writeMu.Unlock()
	if err != nil {
		c.dropConn(conn, err)
		return &TransportError{Channel: channel, Op: "write", Err: err}
	}

	var frame Frame
	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return &TransportError{Channel: channel, Op: "call", Err: errTimeout}
		}
		return &TransportError{Channel: channel, Op: "call", Err: ctx.Err()}
	case r := <-replyCh:
		if r.err != nil {
			return &TransportError{Channel: channel, Op: "read", Err: r.err}
		}
		frame = r.frame
	}

	if frame.Error != nil {
		return &HostError{Channel: channel, Code: frame.Error.Code, Message: formatWireErr(frame.Error)}
	}

	var env Envelope
	if len(frame.Result) > 0 {
		if err := decodeJSON(frame.Result, &env); err != nil {
			return &TransportError{Channel: channel, Op: "decode", Err: err}
		}
	}
	if !env.Success {
		return &HostError{Channel: channel, Message: env.Failure()}
	}
	if out != nil && len(frame.Result) > 0 {
		if err := decodeJSON(frame.Result, out); err != nil {
			return &TransportError{Channel: channel, Op: "decode", Err: err}
		}
	}
	return nil
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) ensureConn(ctx context.Context) (net.Conn, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.conn != nil {
		conn := c.conn
		c.mu.Unlock()
		return conn, nil
	}
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		_ = conn.Close()
		return nil, ErrClosed
	}
	if c.conn != nil {
		// Lost a dial race; keep the first connection.
		_ = conn.Close()
		return c.conn, nil
	}
	c.conn = conn
	c.writer = bufio.NewWriter(conn)
	go c.readLoop(conn)

	c.logger.Debug().Str("addr", c.cfg.Addr).Msg("connected to host")
	return conn, nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	if c.cfg.Addr == "" {
		return nil, fmt.Errorf("host address is not configured")
	}
	dialer := &net.Dialer{Timeout: c.cfg.DialTimeout}
	network, address := SplitAddr(c.cfg.Addr)
	return dialer.DialContext(ctx, network, address)
}

// SplitAddr maps a configured address to a network and address. A unix://
// prefix or a path-like address selects a unix socket.
func SplitAddr(addr string) (string, string) {
	addr = strings.TrimSpace(addr)
	if path, ok := strings.CutPrefix(addr, "unix://"); ok {
		return "unix", path
	}
	if looksLikeUnixSocket(addr) {
		return "unix", addr
	}
	return "tcp", addr
}

func (c *Client) readLoop(conn net.Conn) {
	reader := bufio.NewReaderSize(conn, 64*1024)
	for {
		line, err := ReadLine(reader)
		if err != nil {
			c.dropConn(conn, err)
			return
		}
		if len(line) == 0 {
			continue
		}

		var frame Frame
		if err := json.Unmarshal(line, &frame); err != nil {
			c.logger.Warn().Err(err).Msg("invalid host frame")
			continue
		}

		if frame.Event != "" {
			c.publish(frame)
			continue
		}

		c.mu.Lock()
		replyCh, ok := c.pending[frame.ID]
		c.mu.Unlock()
		if !ok {
			c.logger.Debug().Str("request_id", frame.ID).Msg("dropping response for unknown request")
			continue
		}
		deliver(replyCh, reply{frame: frame})
	}
}

func (c *Client) publish(frame Frame) {
	if c.cfg.Publisher == nil {
		return
	}
	var keys struct {
		ChatID         string `json:"chatId"`
		ConversationID string `json:"conversationId"`
	}
	_ = json.Unmarshal(frame.Payload, &keys)

	c.cfg.Publisher.Publish(context.Background(), events.Event{
		Name:           events.Name(frame.Event),
		ConversationID: conversationKey(keys.ChatID, keys.ConversationID),
		Payload:        frame.Payload,
		ReceivedAt:     time.Now(),
	})
}

// dropConn forgets conn and fails every call waiting on it.
func (c *Client) dropConn(conn net.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.writer = nil
	pending := c.pending
	c.pending = make(map[string]chan reply)
	closed := c.closed
	c.mu.Unlock()

	_ = conn.Close()
	if cause == nil {
		cause = ErrClosed
	}
	for _, ch := range pending {
		deliver(ch, reply{err: cause})
	}
	if !closed {
		c.logger.Warn().Err(cause).Msg("host connection lost")
	}
}

// deliver hands r to a waiting call. Each call takes at most one reply.
func deliver(ch chan reply, r reply) {
	select {
	case ch <- r:
	default:
	}
}

func looksLikeUnixSocket(addr string) bool {
	if strings.HasPrefix(addr, "/") {
		return true
	}
	if strings.HasPrefix(addr, "./") {
		return true
	}
	return strings.HasSuffix(addr, ".sock") && !strings.Contains(addr, ":")
}
