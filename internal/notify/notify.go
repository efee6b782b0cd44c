// Package notify forwards inserted hand ids to a HUD listener over TCP.
// Delivery is best effort: failures are logged and never escalated.
package notify

import (
	"fmt"
	"log/slog"
	"net"
	"time"
)

const dialTimeout = 2 * time.Second

// Sender writes newline-terminated decimal hand ids to a listener. The
// connection is dialed lazily and redialed after a write failure.
type Sender struct {
	addr string
	conn net.Conn
}

// NewSender returns a sender for addr; an empty addr disables sending.
func NewSender(addr string) *Sender {
	return &Sender{addr: addr}
}

// Enabled reports whether a target address is configured.
func (s *Sender) Enabled() bool {
	return s != nil && s.addr != ""
}

// SendHandID forwards one hand id. Errors are logged, never returned as
// fatal to the import.
func (s *Sender) SendHandID(id int64) {
	if !s.Enabled() {
		return
	}
	if s.conn == nil {
		conn, err := net.DialTimeout("tcp", s.addr, dialTimeout)
		if err != nil {
			slog.Warn("hud notify dial failed", "addr", s.addr, "err", err)
			return
		}
		s.conn = conn
	}
	if _, err := fmt.Fprintf(s.conn, "%d\n", id); err != nil {
		slog.Warn("hud notify write failed", "addr", s.addr, "err", err)
		_ = s.conn.Close()
		s.conn = nil
	}
}

// Close shuts the connection down.
func (s *Sender) Close() {
	if s != nil && s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}
