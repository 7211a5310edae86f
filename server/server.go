// Package server owns the UDP socket, the stateless handshake responder,
// and the per-connection goroutines that drive the connection state
// machine and the world's per-tick replication pass.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samp-server-go/netcore/bitio"
	netpkg "github.com/samp-server-go/netcore/net"
	"github.com/samp-server-go/netcore/net/connection"
	"github.com/samp-server-go/netcore/net/handshake"
	"github.com/samp-server-go/netcore/world"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// nextPlayerID is the process-global player-index allocator, shared by
// every connection. It starts so the first Add(1) yields 256, the
// lowest player index this protocol profile hands out.
var nextPlayerID = newPlayerIDCounter()

func newPlayerIDCounter() *atomic.Uint32 {
	var v atomic.Uint32
	v.Store(255)
	return &v
}

// GameMode is the connection login callback set a game-mode
// implementation provides.
type GameMode = connection.GameCallbacks

// GameModeFactory builds one GameMode instance bound to w. Called once
// per accepted connection: the world, its GUID cache, and its object
// map belong to that connection alone, and so does the game mode
// object built on top of it.
type GameModeFactory func(w *world.World) (GameMode, error)

type sessionKey struct {
	addr      string
	sessionID uint8
	clientID  uint8
}

type outboundDatagram struct {
	addr *net.UDPAddr
	data []byte
}

// Config is the subset of internal/config.ServerConfig the server needs
// directly; passed in rather than imported wholesale so tests can build
// one without viper.
type Config struct {
	Listen         string
	InboundQueue   int
	SendQueue      int
	TickInterval   time.Duration
	HandshakeRate  float64
	HandshakeBurst int
	IdleTimeout    time.Duration
	MapName        string
	GameName       string
}

// Server owns the UDP socket and the full set of live sessions.
type Server struct {
	cfg     Config
	log     *logrus.Logger
	newGame GameModeFactory

	conn   *net.UDPConn
	secret *handshake.Secret

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	sessionsMu sync.Mutex
	sessions   map[sessionKey]*session

	sendCh chan outboundDatagram

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Server that calls newGame once per accepted connection to
// build its game mode. The handshake secret is generated once here and
// never changes afterward; every connection's handshake reads the same
// value without locking.
func New(cfg Config, newGame GameModeFactory, log *logrus.Logger) (*Server, error) {
	secret, err := handshake.NewSecret()
	if err != nil {
		return nil, fmt.Errorf("server: generating handshake secret: %w", err)
	}
	return &Server{
		cfg:      cfg,
		log:      log,
		newGame:  newGame,
		secret:   secret,
		limiters: make(map[string]*rate.Limiter),
		sessions: make(map[sessionKey]*session),
		sendCh:   make(chan outboundDatagram, cfg.SendQueue),
	}, nil
}

// Run binds the UDP socket and blocks, serving until ctx is canceled or
// Stop is called.
func (s *Server) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("server: resolving listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("server: binding UDP socket: %w", err)
	}
	s.conn = conn

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.log.WithField("listen", s.cfg.Listen).Info("server listening")

	s.wg.Add(3)
	go s.readLoop()
	go s.writeLoop()
	go s.idleCleanupLoop()

	<-s.ctx.Done()
	s.conn.Close()
	s.wg.Wait()
	return nil
}

// Stop cancels the server's context, unblocking Run.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Server) readLoop() {
	defer s.wg.Done()
	buf := make([]byte, 2048)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.log.WithError(err).Debug("udp read error")
				continue
			}
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		s.dispatch(data, addr)
	}
}

func (s *Server) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case out := <-s.sendCh:
			if _, err := s.conn.WriteToUDP(out.data, out.addr); err != nil {
				s.log.WithError(err).Debug("udp write error")
			}
		}
	}
}

// send enqueues a datagram for the writer goroutine; only that goroutine
// ever calls WriteToUDP.
func (s *Server) send(addr *net.UDPAddr, data []byte) {
	select {
	case s.sendCh <- outboundDatagram{addr: addr, data: data}:
	default:
		s.log.Warn("send queue full, dropping outbound datagram")
	}
}

// dispatch routes one received datagram: handshake packets are handled
// inline (no per-connection state exists yet), post-handshake datagrams
// are pushed onto the owning session's inbound channel.
func (s *Server) dispatch(data []byte, addr *net.UDPAddr) {
	r := bitio.NewReader(data)
	header, err := netpkg.ReadDatagramHeader(r)
	if err != nil {
		s.log.WithError(err).Debug("short datagram, dropping")
		return
	}

	if header.IsHandshake {
		s.handleHandshake(data, r, header, addr)
		return
	}

	if len(data) <= netpkg.PostHandshakeMinBytes {
		return
	}

	key := sessionKey{addr: addr.String(), sessionID: header.SessionID, clientID: header.ClientID}
	s.sessionsMu.Lock()
	sess, ok := s.sessions[key]
	s.sessionsMu.Unlock()
	if !ok {
		s.log.WithField("session", key).Debug("datagram for unknown session, dropping")
		return
	}

	sess.touch()
	select {
	case sess.inbound <- data:
	default:
		s.log.WithField("session", key).Warn("session inbound queue full, dropping datagram")
	}
}

func (s *Server) registerSession(key sessionKey, sess *session) {
	s.sessionsMu.Lock()
	s.sessions[key] = sess
	s.sessionsMu.Unlock()
}

func (s *Server) removeSession(key sessionKey) {
	s.sessionsMu.Lock()
	delete(s.sessions, key)
	s.sessionsMu.Unlock()
}

// idleCleanupLoop prunes sessions that have not forwarded a datagram in
// IdleTimeout. This is a transport-layer decision only: the connection
// state machine itself never times out on its own.
func (s *Server) idleCleanupLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.pruneIdleSessions()
		}
	}
}

func (s *Server) pruneIdleSessions() {
	cutoff := time.Now().Add(-s.cfg.IdleTimeout)
	var stale []*session
	s.sessionsMu.Lock()
	for key, sess := range s.sessions {
		if sess.lastSeen().Before(cutoff) {
			delete(s.sessions, key)
			stale = append(stale, sess)
		}
	}
	s.sessionsMu.Unlock()
	for _, sess := range stale {
		s.log.WithField("session", sess.key).Info("closing idle session")
		sess.stop()
	}
}
