package model

import (
	"net"
	"strconv"
)

// JoinHostPort formats an IPv4 address and port for dialing.
func JoinHostPort(addr string, port uint16) string {
	return net.JoinHostPort(addr, strconv.Itoa(int(port)))
}
