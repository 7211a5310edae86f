package server

import (
	"net"

	"github.com/samp-server-go/netcore/bitio"
	netpkg "github.com/samp-server-go/netcore/net"
	"github.com/samp-server-go/netcore/net/connection"
	"github.com/samp-server-go/netcore/net/handshake"
	"github.com/samp-server-go/netcore/world"
	"golang.org/x/time/rate"
)

// allowHandshake rate-limits InitialPacket/Response processing per
// source address: a stateless cookie responder is a classic
// amplification target, so replies are bounded with a token bucket per
// golang.org/x/time/rate.
func (s *Server) allowHandshake(addr *net.UDPAddr) bool {
	key := addr.IP.String()
	s.limiterMu.Lock()
	lim, ok := s.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(s.cfg.HandshakeRate), s.cfg.HandshakeBurst)
		s.limiters[key] = lim
	}
	s.limiterMu.Unlock()
	return lim.Allow()
}

func addrParts(addr *net.UDPAddr) (ip [4]byte, port uint16, ok bool) {
	v4 := addr.IP.To4()
	if v4 == nil {
		return ip, 0, false
	}
	copy(ip[:], v4)
	return ip, uint16(addr.Port), true
}

// handleHandshake dispatches one is_handshake=1 datagram. r has already
// consumed the 6-bit datagram prefix.
func (s *Server) handleHandshake(data []byte, r *bitio.Reader, dHeader netpkg.DatagramHeader, addr *net.UDPAddr) {
	if !s.allowHandshake(addr) {
		return
	}

	hHeader, err := handshake.ReadHeader(r)
	if err != nil {
		s.log.WithError(err).Debug("malformed handshake header")
		return
	}

	ip, port, ok := addrParts(addr)
	if !ok {
		s.log.WithField("addr", addr).Debug("non-IPv4 handshake source, dropping")
		return
	}

	switch hHeader.PacketType {
	case handshake.InitialPacket:
		s.replyChallenge(dHeader, addr, ip, port)
	case handshake.Response:
		s.completeHandshake(r, dHeader, addr, ip, port)
	default:
		s.log.WithField("packet_type", hHeader.PacketType).Debug("unhandled handshake packet type, dropping")
	}
}

func handshakeDatagramWriter(dHeader netpkg.DatagramHeader, packetType handshake.PacketType) *bitio.Writer {
	w := bitio.NewWriter()
	outer := netpkg.DatagramHeader{SessionID: dHeader.SessionID, ClientID: dHeader.ClientID, IsHandshake: true}
	outer.Write(w)
	inner := handshake.Header{
		MinVersion:           handshake.MinVersion,
		CurVersion:           handshake.MinVersion,
		PacketType:           packetType,
		LocalNetworkVersion:  handshake.LocalNetworkVersion,
		LocalNetworkFeatures: handshake.LocalNetworkFeatures,
	}
	inner.Write(w)
	return w
}

func (s *Server) replyChallenge(dHeader netpkg.DatagramHeader, addr *net.UDPAddr, ip [4]byte, port uint16) {
	body, err := handshake.BuildChallenge(s.secret, ip, port)
	if err != nil {
		s.log.WithError(err).Error("building handshake challenge")
		return
	}
	w := handshakeDatagramWriter(dHeader, handshake.Challenge)
	if err := handshake.EncodeChallengeBody(w, body); err != nil {
		s.log.WithError(err).Error("encoding handshake challenge body")
		return
	}
	s.send(addr, w.Bytes())
}

// completeHandshake verifies the client's echoed cookie and, on match,
// allocates the connection and replies with Ack. A mismatch is dropped
// silently — this stage has no per-address state to tear down yet.
func (s *Server) completeHandshake(r *bitio.Reader, dHeader netpkg.DatagramHeader, addr *net.UDPAddr, ip [4]byte, port uint16) {
	body, err := handshake.DecodeResponseBody(r)
	if err != nil {
		s.log.WithError(err).Debug("malformed handshake response body")
		return
	}
	if !handshake.VerifyResponse(s.secret, body, ip, port) {
		s.log.WithField("addr", addr).Debug("handshake cookie mismatch, dropping")
		return
	}

	key := sessionKey{addr: addr.String(), sessionID: dHeader.SessionID, clientID: dHeader.ClientID}
	s.sessionsMu.Lock()
	_, exists := s.sessions[key]
	s.sessionsMu.Unlock()
	if exists {
		// Response retransmit for an already-established session: reply
		// with Ack again without reallocating connection state.
		s.replyAck(dHeader, addr, body.Cookie)
		return
	}

	serverOutSeq, clientInSeq := handshake.InitialSequences(body.Cookie)
	playerIndex := nextPlayerID.Add(1)

	w := world.New(s.cfg.MapName)
	w.Log = s.log
	game, err := s.newGame(w)
	if err != nil {
		s.log.WithError(err).Error("constructing game mode for new connection")
		return
	}

	conn := connection.New(dHeader.SessionID, dHeader.ClientID, playerIndex, serverOutSeq, clientInSeq, game)
	sess := newSession(key, addr, conn, w, s.cfg.InboundQueue)
	s.registerSession(key, sess)
	s.startSession(sess)

	s.log.WithFields(map[string]interface{}{
		"session":      key,
		"player_index": playerIndex,
	}).Info("connection established")

	s.replyAck(dHeader, addr, body.Cookie)
}

func (s *Server) replyAck(dHeader netpkg.DatagramHeader, addr *net.UDPAddr, cookie []byte) {
	w := handshakeDatagramWriter(dHeader, handshake.Ack)
	if err := handshake.EncodeAckBody(w, cookie); err != nil {
		s.log.WithError(err).Error("encoding handshake ack body")
		return
	}
	s.send(addr, w.Bytes())
}
