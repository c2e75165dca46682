package status

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer answers one status exchange per connection with resp.
func fakeServer(t *testing.T, resp func(net.Conn)) (string, uint16) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				br := bufio.NewReader(c)
				if id, _, err := readPacket(br, MaxPacketSize); err != nil || id != 0 {
					return
				}
				if id, _, err := readPacket(br, MaxPacketSize); err != nil || id != 0 {
					return
				}
				resp(c)
			}(c)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), uint16(addr.Port)
}

func respondJSON(doc string) func(net.Conn) {
	return func(c net.Conn) {
		var buf bytes.Buffer
		putString(&buf, doc)
		_ = writePacket(c, 0x00, buf.Bytes())
	}
}

func TestClient_Query(t *testing.T) {
	host, port := fakeServer(t, respondJSON(`{
		"version": {"name": "Paper 1.20.4", "protocol": 765},
		"players": {"max": 100, "online": 7},
		"description": {"text": "§aHello ", "extra": [{"text": "§lworld"}, "!"]}
	}`))

	c := NewClient(2 * time.Second)
	rec, err := c.Query(context.Background(), host, port)
	require.NoError(t, err)

	assert.Equal(t, host, rec.Address)
	assert.Equal(t, port, rec.Port)
	assert.Equal(t, "Paper 1.20.4", rec.Version)
	assert.Equal(t, 765, rec.Protocol)
	assert.Equal(t, 7, rec.OnlinePlayers)
	assert.Equal(t, 100, rec.MaxPlayers)
	assert.Equal(t, "Hello world!", rec.MOTD)
	assert.Empty(t, rec.PlatformTag)
}

func TestClient_Oversized(t *testing.T) {
	host, port := fakeServer(t, respondJSON(`{"version":{"name":"x"},"description":"`+string(bytes.Repeat([]byte("a"), 4096))+`"}`))

	c := NewClient(2 * time.Second)
	c.MaxSize = 1024
	_, err := c.Query(context.Background(), host, port)
	assert.ErrorIs(t, err, ErrPacketTooLarge)
}

func TestClient_WrongPacketID(t *testing.T) {
	host, port := fakeServer(t, func(c net.Conn) {
		_ = writePacket(c, 0x01, []byte{0, 0, 0, 0, 0, 0, 0, 1})
	})

	_, err := NewClient(2*time.Second).Query(context.Background(), host, port)
	assert.ErrorIs(t, err, ErrUnexpectedID)
}

func TestClient_SilentServerTimesOut(t *testing.T) {
	host, port := fakeServer(t, func(c net.Conn) {
		time.Sleep(500 * time.Millisecond)
	})

	start := time.Now()
	_, err := NewClient(100*time.Millisecond).Query(context.Background(), host, port)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		motd    string
		version string
		wantErr bool
	}{
		{"plain description", `{"version":{"name":"1.8.9"},"description":"  §6Survival  "}`, "Survival", "1.8.9", false},
		{"component array", `{"version":{"name":"Forge"},"description":[{"text":"a"},{"text":"b","extra":["c"]}]}`, "abc", "Forge", false},
		{"no description", `{"version":{"name":"1.21"}}`, "", "1.21", false},
		{"missing version", `{"description":"x"}`, "", "", true},
		{"not json", `hello`, "", "", true},
		{"array document", `[1,2]`, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Decode(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.motd, rec.MOTD)
			assert.Equal(t, tt.version, rec.Version)
		})
	}
}

func TestVarIntNegative(t *testing.T) {
	var buf bytes.Buffer
	putVarInt(&buf, -1)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}, buf.Bytes())
}
