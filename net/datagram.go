package net

import "github.com/samp-server-go/netcore/bitio"

// DatagramHeader is the 6-bit prefix common to every UDP datagram, ahead
// of either the handshake header or the packet-notify header.
type DatagramHeader struct {
	SessionID   uint8 // 2 bits
	ClientID    uint8 // 3 bits
	IsHandshake bool
}

// Write emits the header in wire order.
func (h DatagramHeader) Write(w *bitio.Writer) {
	w.Write(2, uint64(h.SessionID))
	w.Write(3, uint64(h.ClientID))
	w.WriteBit(h.IsHandshake)
}

// ReadDatagramHeader is the inverse of DatagramHeader.Write.
func ReadDatagramHeader(r *bitio.Reader) (DatagramHeader, error) {
	var h DatagramHeader
	sessionID, err := r.Read(2)
	if err != nil {
		return h, err
	}
	h.SessionID = uint8(sessionID)
	clientID, err := r.Read(3)
	if err != nil {
		return h, err
	}
	h.ClientID = uint8(clientID)
	isHandshake, err := r.ReadBit()
	if err != nil {
		return h, err
	}
	h.IsHandshake = isHandshake
	return h, nil
}

// PostHandshakeMinBytes is the datagram length, including the 6-bit
// prefix, at or below which a post-handshake datagram is dropped as a
// truncated keep-alive; only longer datagrams become a Receive event.
const PostHandshakeMinBytes = 12
