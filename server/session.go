package server

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/samp-server-go/netcore/bitio"
	netpkg "github.com/samp-server-go/netcore/net"
	"github.com/samp-server-go/netcore/net/channel"
	"github.com/samp-server-go/netcore/net/connection"
	"github.com/samp-server-go/netcore/replication"
	"github.com/samp-server-go/netcore/world"
)

// session is the per-connection state driven by exactly one goroutine
// (runSession): its world, game mode, and connection state are never
// touched from any other goroutine.
type session struct {
	key     sessionKey
	addr    *net.UDPAddr
	conn    *connection.Connection
	world   *world.World
	inbound chan []byte
	done    chan struct{}

	pending []replication.IncomingRPC

	lastSeenUnixNano atomic.Int64
}

func newSession(key sessionKey, addr *net.UDPAddr, conn *connection.Connection, w *world.World, inboundQueue int) *session {
	sess := &session{
		key:     key,
		addr:    addr,
		conn:    conn,
		world:   w,
		inbound: make(chan []byte, inboundQueue),
		done:    make(chan struct{}),
	}
	sess.touch()
	return sess
}

func (sess *session) touch() {
	sess.lastSeenUnixNano.Store(time.Now().UnixNano())
}

func (sess *session) lastSeen() time.Time {
	return time.Unix(0, sess.lastSeenUnixNano.Load())
}

func (sess *session) stop() {
	select {
	case <-sess.done:
	default:
		close(sess.done)
	}
}

func (sess *session) drainIncoming() []replication.IncomingRPC {
	out := sess.pending
	sess.pending = nil
	return out
}

func (s *Server) startSession(sess *session) {
	s.wg.Add(1)
	go s.runSession(sess)
}

func (s *Server) runSession(sess *session) {
	defer s.wg.Done()
	defer s.removeSession(sess.key)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-sess.done:
			return
		case data := <-sess.inbound:
			s.safeHandleDatagram(sess, data)
		case <-ticker.C:
			s.safeTick(sess)
		}
	}
}

// safeHandleDatagram and safeTick each recover from a panic so a bug
// processing one connection's data cannot cross a goroutine boundary
// and take the whole process down: the connection is torn down,
// everything else keeps running.
func (s *Server) safeHandleDatagram(sess *session, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("session", sess.key).Errorf("recovered panic handling datagram: %v", r)
			sess.stop()
		}
	}()
	if err := s.handleDatagram(sess, data); err != nil {
		s.log.WithError(err).WithField("session", sess.key).Debug("datagram rejected")
	}
}

func (s *Server) safeTick(sess *session) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("session", sess.key).Errorf("recovered panic during tick: %v", r)
			sess.stop()
		}
	}()
	incoming := sess.drainIncoming()
	datagram, err := sess.world.Tick(sess.conn, toWorldBindings(sess.conn.SortedBindings()), incoming)
	if err != nil {
		s.log.WithError(err).WithField("session", sess.key).Error("tick failed")
		return
	}
	if datagram != nil {
		s.send(sess.addr, datagram)
	}
}

func toWorldBindings(in []connection.ActorBinding) []world.ActorChannelBinding {
	out := make([]world.ActorChannelBinding, len(in))
	for i, b := range in {
		out[i] = world.ActorChannelBinding{ChannelID: b.ChannelID, ActorGUID: b.ActorGUID}
	}
	return out
}

// handleDatagram parses one post-handshake datagram: the packet-notify
// header, the fixed packet-info field, then bunches until the sentinel
// recovered via BitsFromTerminatedStream.
func (s *Server) handleDatagram(sess *session, data []byte) error {
	r := bitio.NewReader(data)
	if _, err := netpkg.ReadDatagramHeader(r); err != nil {
		return err
	}

	usedBits, err := bitio.BitsFromTerminatedStream(data)
	if err != nil {
		return err
	}

	header, _, err := netpkg.ReadHeader(r)
	if err != nil {
		return err
	}

	delta := sess.conn.PacketNotify.Update(header)
	if delta <= 0 {
		// Stale or duplicate packet: already folded into the ack state by
		// Update, nothing further to apply from its body.
		return nil
	}

	// packet info: jitter_valid(1) + jitter(10) + frame_time_valid(1) +
	// frame_time(8) = 20 bits, unused in this profile (mirrors
	// world.PackDatagram's write side).
	if _, err := r.Read(20); err != nil {
		return err
	}

	for r.BitPosition() < uint64(usedBits) {
		bunch, err := netpkg.DecodeBunch(r, header.Seq)
		if err != nil {
			return err
		}
		if err := s.handleBunch(sess, bunch); err != nil {
			s.log.WithError(err).WithField("session", sess.key).Debug("bunch rejected")
		}
	}
	return nil
}

func (s *Server) handleBunch(sess *session, b *netpkg.Bunch) error {
	if b.ChIndex == channel.IndexControl {
		return s.handleControlBunch(sess, b)
	}

	ch, ok := sess.conn.ActorChannels[b.ChIndex]
	if !ok {
		return fmt.Errorf("server: bunch for unknown actor channel %d", b.ChIndex)
	}
	merged, accepted := ch.ReceivedRawBunch(b)
	if !accepted || merged == nil {
		return nil
	}
	return s.handleActorBunch(sess, b.ChIndex, merged)
}

// controlReply is satisfied by every control-channel response message
// (ChallengeMessage, WelcomeMessage): enough to encode and send it
// immediately rather than waiting for the next tick.
type controlReply interface {
	Encode(w *bitio.Writer)
}

func (s *Server) replyOnControlChannel(sess *session, msg controlReply) error {
	w := bitio.NewWriter()
	msg.Encode(w)
	bunches := sess.conn.ControlChannel.DrainOutbound(w.Bytes(), int(w.BitLength()))
	datagram, err := sess.world.PackDatagram(sess.conn, bunches)
	if err != nil {
		return err
	}
	s.send(sess.addr, datagram)
	return nil
}

func (s *Server) handleControlBunch(sess *session, b *netpkg.Bunch) error {
	merged, accepted := sess.conn.ControlChannel.ReceivedRawBunch(b)
	if !accepted || merged == nil {
		return nil
	}

	r := bitio.NewReader(merged.Payload)
	id, err := channel.PeekMessageID(r)
	if err != nil {
		return err
	}

	switch id {
	case channel.MsgHello:
		msg, err := channel.DecodeHelloMessage(r)
		if err != nil {
			return err
		}
		return s.replyOnControlChannel(sess, sess.conn.HandleHello(msg))

	case channel.MsgNetspeed:
		msg, err := channel.DecodeNetspeedMessage(r)
		if err != nil {
			return err
		}
		sess.conn.HandleNetspeed(msg)
		return nil

	case channel.MsgLogin:
		msg, err := channel.DecodeLoginMessage(r)
		if err != nil {
			return err
		}
		welcome, err := sess.conn.HandleLogin(msg, s.cfg.MapName, s.cfg.GameName, "")
		if err != nil {
			return err
		}
		return s.replyOnControlChannel(sess, welcome)

	case channel.MsgJoin:
		if _, err := channel.DecodeJoinMessage(r); err != nil {
			return err
		}
		return sess.conn.HandleJoin()

	default:
		return fmt.Errorf("server: unhandled control message id %d", id)
	}
}

// handleActorBunch reads every content block packed into the bunch: the
// actor's own archetype block plus one per changed sub-object, mirroring
// buildChannelPayload's write-side loop.
func (s *Server) handleActorBunch(sess *session, channelID uint32, merged *netpkg.Bunch) error {
	actorGUID, ok := sess.conn.Bindings[channelID]
	if !ok {
		return fmt.Errorf("server: actor channel %d has no bound actor", channelID)
	}

	lookup := sess.world.LookupForActor(actorGUID)
	r := bitio.NewReader(merged.Payload)
	for r.BitPosition() < uint64(merged.BunchDataBits) {
		rpcs, err := replication.ReadIncomingContentBlock(r, lookup)
		if err != nil {
			if errors.Is(err, replication.ErrServerRepLayoutUnsupported) {
				s.log.WithField("channel", channelID).Debug("client sent has_rep_layout content, ignoring")
				continue
			}
			return err
		}
		sess.pending = append(sess.pending, rpcs...)
	}
	return nil
}
