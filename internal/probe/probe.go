package probe

import (
	"context"
	"net"
	"time"

	"mcsweep/internal/model"
)

// Prober answers whether a TCP connection to host:port can be opened.
type Prober interface {
	Reachable(ctx context.Context, host string, port uint16) bool
}

// TCP is a connect-only reachability check.
type TCP struct {
	Timeout time.Duration
	dialer  net.Dialer
}

// NewTCP returns a TCP prober bounded by timeout.
func NewTCP(timeout time.Duration) *TCP {
	return &TCP{Timeout: timeout}
}

// Reachable reports whether the handshake completed inside the timeout.
// Every failure, including a refused connection, is simply false.
func (p *TCP) Reachable(ctx context.Context, host string, port uint16) bool {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	conn, err := p.dialer.DialContext(ctx, "tcp", model.JoinHostPort(host, port))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Func adapts a plain function to Prober.
type Func func(ctx context.Context, host string, port uint16) bool

func (f Func) Reachable(ctx context.Context, host string, port uint16) bool {
	return f(ctx, host, port)
}
