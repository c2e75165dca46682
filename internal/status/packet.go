package status

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
)

// MaxPacketSize is the largest packet the protocol allows (a 3-byte VarInt length).
const MaxPacketSize = 1<<21 - 1

var (
	ErrPacketTooLarge = errors.New("status: packet exceeds size limit")
	ErrUnexpectedID   = errors.New("status: unexpected packet id")
)

// putVarInt appends a protocol VarInt. Negative values use their 32-bit
// two's complement, which is what the wire format expects.
func putVarInt(buf *bytes.Buffer, v int32) {
	buf.Write(varint.ToUvarint(uint64(uint32(v))))
}

func putString(buf *bytes.Buffer, s string) {
	putVarInt(buf, int32(len(s)))
	buf.WriteString(s)
}

// writePacket frames payload as [length][id][payload].
func writePacket(w io.Writer, id int32, payload []byte) error {
	var body bytes.Buffer
	putVarInt(&body, id)
	body.Write(payload)

	var frame bytes.Buffer
	putVarInt(&frame, int32(body.Len()))
	frame.Write(body.Bytes())

	_, err := w.Write(frame.Bytes())
	return err
}

// readPacket reads one frame and returns its id and the bytes after the id.
func readPacket(r *bufio.Reader, limit int) (int32, []byte, error) {
	n, err := varint.ReadUvarint(r)
	if err != nil {
		return 0, nil, fmt.Errorf("status: read length: %w", err)
	}
	if n == 0 {
		return 0, nil, fmt.Errorf("status: empty packet")
	}
	if n > uint64(limit) {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, n)
	}

	frame := make([]byte, n)
	if _, err := io.ReadFull(r, frame); err != nil {
		return 0, nil, fmt.Errorf("status: read body: %w", err)
	}

	id, size, err := varint.FromUvarint(frame)
	if err != nil {
		return 0, nil, fmt.Errorf("status: read id: %w", err)
	}
	return int32(id), frame[size:], nil
}

// readString decodes a length-prefixed UTF-8 string from the start of b.
func readString(b []byte) (string, error) {
	n, size, err := varint.FromUvarint(b)
	if err != nil {
		return "", fmt.Errorf("status: read string length: %w", err)
	}
	b = b[size:]
	if n > uint64(len(b)) {
		return "", fmt.Errorf("status: string length %d exceeds packet", n)
	}
	return string(b[:n]), nil
}

// handshake builds the payload that switches the connection to the status state.
func handshake(protocol int32, host string, port uint16) []byte {
	var buf bytes.Buffer
	putVarInt(&buf, protocol)
	putString(&buf, host)
	var p [2]byte
	binary.BigEndian.PutUint16(p[:], port)
	buf.Write(p[:])
	putVarInt(&buf, 1)
	return buf.Bytes()
}
