package gamemode

import (
	"testing"

	"github.com/samp-server-go/netcore/internal/logging"
	"github.com/samp-server-go/netcore/net/channel"
	"github.com/samp-server-go/netcore/net/connection"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/samp-server-go/netcore/world"
)

func newTestGameMode(t *testing.T) (*GameMode, *world.World) {
	t.Helper()
	w := world.New("maps/test")
	gm, err := New(w, logging.New(logrus.ErrorLevel))
	require.NoError(t, err)
	return gm, w
}

func TestNewRegistersGameStateAndWorldDataLayersSingletons(t *testing.T) {
	gm, w := newTestGameMode(t)
	require.NotZero(t, gm.gameStateGUID)
	require.NotZero(t, gm.worldDataLayersGUID)
	require.Contains(t, w.Objects, gm.gameStateGUID)
	require.Contains(t, w.Objects, gm.worldDataLayersGUID)
}

func TestPreLoginRejectsEmptyUniqueID(t *testing.T) {
	gm, _ := newTestGameMode(t)
	conn := connection.New(1, 0, 256, 10, 10, gm)
	err := gm.PreLogin(conn, channel.LoginMessage{UniqueID: ""})
	require.Error(t, err)
}

func TestLoginSpawnsDistinctActorAndArchetypeGUIDs(t *testing.T) {
	gm, w := newTestGameMode(t)
	conn := connection.New(1, 0, 256, 10, 10, gm)
	objectsBefore := len(w.Objects)

	actorGUID, err := gm.Login(conn)
	require.NoError(t, err)
	require.NotZero(t, actorGUID)

	// Every dynamic spawn allocates two fresh dynamic GUIDs: the actor
	// itself and its archetype sub-object never share a GUID.
	require.Len(t, w.Objects, objectsBefore+2, "actor and archetype should be registered under two distinct GUIDs")
	entryObj, ok := w.Objects[actorGUID]
	require.True(t, ok)
	require.True(t, entryObj.IsEmpty(), "dynamic actor's own object should be the null layout")
}

func TestPostLoginBindsFixedActorChannels(t *testing.T) {
	gm, _ := newTestGameMode(t)
	conn := connection.New(1, 0, 256, 10, 10, gm)

	_, err := gm.Login(conn)
	require.NoError(t, err)
	conn.OpenActorChannel(connection.GameStateChannelID)
	conn.OpenActorChannel(connection.WorldDataLayersChannelID)
	gm.PostLogin(conn)

	require.Equal(t, gm.gameStateGUID, conn.Bindings[connection.GameStateChannelID])
	require.Equal(t, gm.worldDataLayersGUID, conn.Bindings[connection.WorldDataLayersChannelID])
}

func TestNextSpawnPointRotatesThroughTable(t *testing.T) {
	first := nextSpawnPoint()
	for i := 1; i < len(defaultSpawnPoints); i++ {
		nextSpawnPoint()
	}
	wrapped := nextSpawnPoint()
	require.Equal(t, first, wrapped)
}
