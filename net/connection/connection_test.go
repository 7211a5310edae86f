package connection

import (
	"errors"
	"testing"

	"github.com/samp-server-go/netcore/net/channel"
	"github.com/samp-server-go/netcore/netguid"
	"github.com/stretchr/testify/require"
)

type fakeCallbacks struct {
	preLoginErr error
	loginGUID   netguid.GUID
	loginErr    error
	postLogin   bool
}

func (f *fakeCallbacks) PreLogin(*Connection, channel.LoginMessage) error { return f.preLoginErr }
func (f *fakeCallbacks) Login(*Connection) (netguid.GUID, error) {
	return f.loginGUID, f.loginErr
}
func (f *fakeCallbacks) PostLogin(*Connection) { f.postLogin = true }

func TestNewSeedsInitialReliableCounters(t *testing.T) {
	cb := &fakeCallbacks{}
	conn := New(1, 0, 0, 0x2000, 0x1000, cb)

	require.Equal(t, uint16(0x1000&0x3FF), conn.InitInReliable)
	require.Equal(t, uint16(0x2000&0x3FF), conn.InitOutReliable)
	require.NotNil(t, conn.ControlChannel)
	require.Equal(t, uint16(0x1000), conn.PacketNotify.InSeq)
	require.Equal(t, uint16(0x2000), conn.PacketNotify.OutSeq)
}

func TestHandleHelloReturnsFixedChallenge(t *testing.T) {
	conn := New(1, 0, 0, 10, 10, &fakeCallbacks{})
	got := conn.HandleHello(channel.HelloMessage{})
	require.Equal(t, FixedChallenge, got.Challenge)
}

func TestHandleLoginRejectedPreLogin(t *testing.T) {
	cb := &fakeCallbacks{preLoginErr: errors.New("banned")}
	conn := New(1, 0, 0, 10, 10, cb)
	_, err := conn.HandleLogin(channel.LoginMessage{UniqueID: "abc"}, "map", "game", "")
	require.Error(t, err)
	require.Empty(t, conn.UniqueID, "UniqueID should not be cached on rejection")
}

func TestHandleLoginWelcomesOnSuccess(t *testing.T) {
	cb := &fakeCallbacks{}
	conn := New(1, 0, 0, 10, 10, cb)
	welcome, err := conn.HandleLogin(channel.LoginMessage{UniqueID: "player-1"}, "airport", "Airport DM", "")
	require.NoError(t, err)
	require.Equal(t, "player-1", conn.UniqueID)
	require.Equal(t, "airport", welcome.Map)
	require.Equal(t, "Airport DM", welcome.GameName)
}

func TestHandleJoinSpawnsControllerAndOpensActorChannels(t *testing.T) {
	cb := &fakeCallbacks{loginGUID: netguid.GUID(42)}
	conn := New(1, 0, 0, 10, 10, cb)

	require.NoError(t, conn.HandleJoin())
	require.Equal(t, netguid.GUID(42), conn.PlayerController)
	require.True(t, cb.postLogin, "expected PostLogin to be invoked")

	ids := conn.SortedActorChannelIDs()
	require.Equal(t, []uint32{GameStateChannelID, WorldDataLayersChannelID}, ids)

	// A second Join is a no-op: Login must not be invoked again.
	cb.loginGUID = netguid.GUID(999)
	require.NoError(t, conn.HandleJoin())
	require.Equal(t, netguid.GUID(42), conn.PlayerController, "PlayerController must not change on repeat Join")
}

func TestBindActorChannelSortedBindings(t *testing.T) {
	conn := New(1, 0, 0, 10, 10, &fakeCallbacks{})
	conn.BindActorChannel(7, netguid.GUID(200))
	conn.BindActorChannel(6, netguid.GUID(100))

	require.Equal(t, []ActorBinding{
		{ChannelID: 6, ActorGUID: netguid.GUID(100)},
		{ChannelID: 7, ActorGUID: netguid.GUID(200)},
	}, conn.SortedBindings())
}
