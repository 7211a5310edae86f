package server

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddrPartsExtractsIPv4AndPort(t *testing.T) {
	addr := &net.UDPAddr{IP: net.ParseIP("203.0.113.7"), Port: 7777}
	ip, port, ok := addrParts(addr)
	require.True(t, ok)
	require.Equal(t, [4]byte{203, 0, 113, 7}, ip)
	require.Equal(t, uint16(7777), port)
}

func TestAddrPartsRejectsIPv6(t *testing.T) {
	addr := &net.UDPAddr{IP: net.ParseIP("2001:db8::1"), Port: 7777}
	_, _, ok := addrParts(addr)
	require.False(t, ok, "IPv6 source addresses have no 4-byte form for the handshake cookie")
}
