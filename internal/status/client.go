package status

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"mcsweep/internal/model"
)

// DefaultProtocol is the protocol number sent in the handshake. Servers answer
// status requests for any version, so an old value is fine.
const DefaultProtocol = 47

// ErrMalformed is returned when the status response is not the expected JSON.
var ErrMalformed = errors.New("status: malformed response")

// Client runs the Server List Ping exchange.
type Client struct {
	Timeout  time.Duration
	Protocol int32
	MaxSize  int

	dialer net.Dialer
}

// NewClient returns a client whose whole round trip is bounded by timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		Timeout:  timeout,
		Protocol: DefaultProtocol,
		MaxSize:  MaxPacketSize,
	}
}

// Query connects to host:port, requests the status and decodes it. The
// returned record has no platform tag or discovery time.
func (c *Client) Query(ctx context.Context, host string, port uint16) (model.StatusRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", model.JoinHostPort(host, port))
	if err != nil {
		return model.StatusRecord{}, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := writePacket(conn, 0x00, handshake(c.Protocol, host, port)); err != nil {
		return model.StatusRecord{}, fmt.Errorf("status: handshake: %w", err)
	}
	if err := writePacket(conn, 0x00, nil); err != nil {
		return model.StatusRecord{}, fmt.Errorf("status: request: %w", err)
	}

	limit := c.MaxSize
	if limit <= 0 || limit > MaxPacketSize {
		limit = MaxPacketSize
	}
	id, body, err := readPacket(bufio.NewReader(conn), limit)
	if err != nil {
		return model.StatusRecord{}, err
	}
	if id != 0x00 {
		return model.StatusRecord{}, fmt.Errorf("%w: 0x%02x", ErrUnexpectedID, id)
	}
	raw, err := readString(body)
	if err != nil {
		return model.StatusRecord{}, err
	}

	rec, err := Decode(raw)
	if err != nil {
		return model.StatusRecord{}, err
	}
	rec.Address = host
	rec.Port = port
	return rec, nil
}

// Decode extracts the record fields from a status JSON document.
func Decode(raw string) (model.StatusRecord, error) {
	if !gjson.Valid(raw) {
		return model.StatusRecord{}, ErrMalformed
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return model.StatusRecord{}, ErrMalformed
	}
	version := doc.Get("version")
	if !version.Exists() {
		return model.StatusRecord{}, fmt.Errorf("%w: missing version", ErrMalformed)
	}

	return model.StatusRecord{
		Version:       version.Get("name").String(),
		Protocol:      int(version.Get("protocol").Int()),
		OnlinePlayers: int(doc.Get("players.online").Int()),
		MaxPlayers:    int(doc.Get("players.max").Int()),
		MOTD:          CleanMOTD(flatten(doc.Get("description"))),
	}, nil
}

// flatten renders a chat component (plain string, object with text/extra,
// or an array of either) to its plain text.
func flatten(v gjson.Result) string {
	var sb strings.Builder
	var walk func(gjson.Result)
	walk = func(r gjson.Result) {
		switch {
		case r.Type == gjson.String:
			sb.WriteString(r.String())
		case r.IsArray():
			r.ForEach(func(_, el gjson.Result) bool {
				walk(el)
				return true
			})
		case r.IsObject():
			sb.WriteString(r.Get("text").String())
			if extra := r.Get("extra"); extra.IsArray() {
				walk(extra)
			}
		}
	}
	walk(v)
	return sb.String()
}

// CleanMOTD drops section-sign formatting codes and surrounding whitespace.
func CleanMOTD(s string) string {
	if !strings.ContainsRune(s, '§') {
		return strings.TrimSpace(s)
	}
	var sb strings.Builder
	sb.Grow(len(s))
	skip := false
	for _, r := range s {
		if skip {
			skip = false
			continue
		}
		if r == '§' {
			skip = true
			continue
		}
		sb.WriteRune(r)
	}
	return strings.TrimSpace(sb.String())
}
