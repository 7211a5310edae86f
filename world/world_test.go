package world

import (
	"testing"

	"github.com/samp-server-go/netcore/bitio"
	"github.com/samp-server-go/netcore/net/channel"
	"github.com/samp-server-go/netcore/net/connection"
	"github.com/samp-server-go/netcore/netguid"
	"github.com/samp-server-go/netcore/replication"
	"github.com/stretchr/testify/require"
)

type testActorLayout struct {
	health replication.IntProperty[uint32]
}

func newTestActorLayout(health uint32) *testActorLayout {
	return &testActorLayout{health: replication.NewIntProperty[uint32](1, 32, health)}
}

func (t *testActorLayout) RepLayoutChanged() bool        { return t.health.IsChanged() }
func (t *testActorLayout) CustomPropertiesChanged() bool { return false }
func (t *testActorLayout) AcknowledgeChanges()           { t.health.AcknowledgeChanges() }
func (t *testActorLayout) MaxRepIndex() uint32           { return 1 }
func (t *testActorLayout) IsEmpty() bool                 { return false }
func (t *testActorLayout) SerializeCustomProperties(full bool) []replication.CustomPropertyPayload {
	return nil
}
func (t *testActorLayout) SerializeLayoutProperties(w *bitio.Writer, full bool) {
	replication.WriteLayoutProperties(w, []replication.LayoutProperty{&t.health}, full)
}
func (t *testActorLayout) GetHandlerFunc(uint32) (RpcServerHandler, bool) { return nil, false }
func (t *testActorLayout) OnChannelOpen(*World, netguid.GUID) []byte     { return nil }

type fakeCallbacks struct{}

func (fakeCallbacks) PreLogin(*connection.Connection, channel.LoginMessage) error { return nil }
func (fakeCallbacks) Login(*connection.Connection) (netguid.GUID, error)          { return 0, nil }
func (fakeCallbacks) PostLogin(*connection.Connection)                           {}

func TestSpawnStaticActorRegistersObjectsAndHierarchy(t *testing.T) {
	w := New("maps/test")
	actorGUID := w.RegisterHierarchyForStaticObjects([]string{"Level", "Level.PlayerState"})
	sub := w.RegisterHierarchyForStaticObjects([]string{"Level", "Level.PlayerState", "Level.PlayerState.Inventory"})

	layout := newTestActorLayout(100)
	subLayout := newTestActorLayout(0)
	w.SpawnStaticActor(actorGUID, layout, []SubObject{{GUID: sub, Layout: subLayout}})

	require.Equal(t, ObjectLayout(layout), w.Objects[actorGUID])
	require.Equal(t, ObjectLayout(subLayout), w.Objects[sub])
	require.Equal(t, actorGUID, w.ownerActorGUID(sub))
}

func TestTickProducesSpawnBunchThenQuiescesUntilChanged(t *testing.T) {
	w := New("maps/test")
	actorGUID := w.RegisterHierarchyForStaticObjects([]string{"Level", "Level.PlayerState"})
	layout := newTestActorLayout(100)
	w.SpawnStaticActor(actorGUID, layout, nil)

	conn := connection.New(1, 0, 0, 10, 10, fakeCallbacks{})
	ch := conn.OpenActorChannel(6)
	bindings := []ActorChannelBinding{{ChannelID: 6, ActorGUID: actorGUID}}

	datagram, err := w.Tick(conn, bindings, nil)
	require.NoError(t, err)
	require.NotNil(t, datagram, "expected a datagram on the spawn tick")
	require.True(t, ch.HasOpened(), "expected channel to be marked opened after its first bunch")

	// Nothing changed since AcknowledgeChanges() ran at the end of the
	// spawn tick, so a second tick with no bindings change must be empty.
	datagram, err = w.Tick(conn, bindings, nil)
	require.NoError(t, err)
	require.Nil(t, datagram, "expected no datagram when nothing changed")

	layout.health.SetValue(50)
	datagram, err = w.Tick(conn, bindings, nil)
	require.NoError(t, err)
	require.NotNil(t, datagram, "expected a datagram once a property changed")
}
