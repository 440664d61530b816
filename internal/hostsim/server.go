package hostsim

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tOgg1/chatsync/internal/events"
	"github.com/tOgg1/chatsync/internal/host"
)

// Server exposes a Host over newline-delimited JSON. Each connection gets
// responses to its own requests and every push.
type Server struct {
	host *Host

	mu    sync.Mutex
	conns map[*serverConn]struct{}
}

type serverConn struct {
	conn    net.Conn
	writeMu sync.Mutex
	writer  *bufio.Writer
}

func (c *serverConn) send(frame host.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return host.WriteJSONLine(c.writer, frame)
}

// NewServer wires a server to h's pushes.
func NewServer(h *Host) *Server {
	s := &Server{host: h, conns: make(map[*serverConn]struct{})}
	h.OnPush(s.broadcast)
	return s
}

// Listen opens a unix socket for a path-like address and TCP otherwise.
// A stale socket file is removed first.
func Listen(addr string) (net.Listener, error) {
	network, address := host.SplitAddr(addr)
	if address == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	if network == "unix" {
		if err := os.Remove(address); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}
	return net.Listen(network, address)
}

// Serve accepts connections until ctx is done or the listener fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		_ = ln.Close()
		s.closeAll()
		return nil
	})

	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			sc := s.track(conn)
			g.Go(func() error {
				s.serveConn(ctx, sc)
				return nil
			})
		}
	})

	return g.Wait()
}

func (s *Server) track(conn net.Conn) *serverConn {
	sc := &serverConn{conn: conn, writer: bufio.NewWriter(conn)}
	s.mu.Lock()
	s.conns[sc] = struct{}{}
	s.mu.Unlock()
	return sc
}

func (s *Server) untrack(sc *serverConn) {
	s.mu.Lock()
	delete(s.conns, sc)
	s.mu.Unlock()
	_ = sc.conn.Close()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for sc := range s.conns {
		conns = append(conns, sc)
	}
	s.mu.Unlock()
	for _, sc := range conns {
		_ = sc.conn.Close()
	}
}

func (s *Server) serveConn(ctx context.Context, sc *serverConn) {
	defer s.untrack(sc)
	logger := s.host.logger.With().Str("remote", sc.conn.RemoteAddr().String()).Logger()

	reader := bufio.NewReader(sc.conn)
	for {
		line, err := host.ReadLine(reader)
		if err != nil {
			return
		}
		if len(line) == 0 {
			continue
		}

		var req host.Request
		if err := json.Unmarshal(line, &req); err != nil {
			_ = sc.send(host.Frame{Error: &host.WireError{Code: "bad_request", Message: "invalid request"}})
			continue
		}

		frame := host.Frame{ID: req.ID}
		result, wireErr := s.host.Handle(ctx, req)
		switch {
		case wireErr != nil:
			frame.Error = wireErr
		default:
			raw, err := json.Marshal(result)
			if err != nil {
				frame.Error = &host.WireError{Code: "internal", Message: err.Error()}
			} else {
				frame.Result = raw
			}
		}
		if err := sc.send(frame); err != nil {
			logger.Debug().Err(err).Msg("write failed")
			return
		}
	}
}

func (s *Server) broadcast(name events.Name, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.host.logger.Warn().Err(err).Str("event", string(name)).Msg("push encode failed")
		return
	}
	frame := host.Frame{Event: string(name), Payload: raw}

	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for sc := range s.conns {
		conns = append(conns, sc)
	}
	s.mu.Unlock()

	for _, sc := range conns {
		if err := sc.send(frame); err != nil {
			_ = sc.conn.Close()
		}
	}
}
