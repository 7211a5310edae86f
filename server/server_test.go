package server

import (
	"testing"
	"time"

	"github.com/samp-server-go/netcore/internal/logging"
	"github.com/samp-server-go/netcore/net/channel"
	"github.com/samp-server-go/netcore/net/connection"
	"github.com/samp-server-go/netcore/netguid"
	"github.com/samp-server-go/netcore/world"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	factory := func(w *world.World) (GameMode, error) { return stubGameMode{}, nil }
	srv, err := New(Config{
		SendQueue:   8,
		IdleTimeout: time.Minute,
	}, factory, logging.New(logrus.ErrorLevel))
	require.NoError(t, err)
	return srv
}

type stubGameMode struct{}

func (stubGameMode) PreLogin(*connection.Connection, channel.LoginMessage) error { return nil }
func (stubGameMode) Login(*connection.Connection) (netguid.GUID, error)          { return 0, nil }
func (stubGameMode) PostLogin(*connection.Connection)                            {}

func TestNewGeneratesDistinctHandshakeSecretsPerServer(t *testing.T) {
	a := newTestServer(t)
	b := newTestServer(t)
	require.NotEqual(t, a.secret, b.secret)
}

func TestPruneIdleSessionsRemovesOnlyStaleSessions(t *testing.T) {
	srv := newTestServer(t)

	fresh := &session{key: sessionKey{addr: "fresh"}, done: make(chan struct{})}
	fresh.touch()
	stale := &session{key: sessionKey{addr: "stale"}, done: make(chan struct{})}
	stale.lastSeenUnixNano.Store(time.Now().Add(-time.Hour).UnixNano())

	srv.registerSession(fresh.key, fresh)
	srv.registerSession(stale.key, stale)

	srv.pruneIdleSessions()

	srv.sessionsMu.Lock()
	_, freshStillThere := srv.sessions[fresh.key]
	_, staleStillThere := srv.sessions[stale.key]
	srv.sessionsMu.Unlock()

	require.True(t, freshStillThere)
	require.False(t, staleStillThere)

	select {
	case <-stale.done:
	default:
		t.Fatal("pruneIdleSessions should have stopped the stale session")
	}
}

func TestRegisterAndRemoveSession(t *testing.T) {
	srv := newTestServer(t)
	key := sessionKey{addr: "a", sessionID: 1, clientID: 2}
	sess := &session{key: key, done: make(chan struct{})}

	srv.registerSession(key, sess)
	srv.sessionsMu.Lock()
	_, ok := srv.sessions[key]
	srv.sessionsMu.Unlock()
	require.True(t, ok)

	srv.removeSession(key)
	srv.sessionsMu.Lock()
	_, ok = srv.sessions[key]
	srv.sessionsMu.Unlock()
	require.False(t, ok)
}
