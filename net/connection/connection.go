// Package connection assembles the packet-notify engine, the control
// channel and a connection's actor channels into the per-client state
// created once a stateless handshake completes.
package connection

import (
	"fmt"
	"sort"

	"github.com/samp-server-go/netcore/net"
	"github.com/samp-server-go/netcore/net/channel"
	"github.com/samp-server-go/netcore/netguid"
)

// FixedChallenge is the challenge string sent in response to Hello in
// this protocol profile.
const FixedChallenge = "8B69DF87"

// Fixed actor-channel ids opened after a successful Join.
const (
	GameStateChannelID       uint32 = 6
	WorldDataLayersChannelID uint32 = 7
)

// GameCallbacks is the upward interface a Connection invokes at each
// stage of the control-channel login sequence. Implementations live in
// the game-mode layer.
type GameCallbacks interface {
	PreLogin(conn *Connection, login channel.LoginMessage) error
	Login(conn *Connection) (netguid.GUID, error)
	PostLogin(conn *Connection)
}

// Connection tracks one client's session state: its reliability engine,
// control and actor channels, and login progress.
type Connection struct {
	// SessionID and ClientID are the 2-bit/3-bit halves of the 5-bit
	// identifier every datagram carries alongside the remote UDP address,
	// assigned by the server at Connect time.
	SessionID uint8
	ClientID  uint8
	// PlayerIndex is the process-wide player id the server assigns from
	// its NEXT_PLAYER_ID counter at Connect time (the first is 256).
	PlayerIndex uint32

	ControlChannel *channel.Channel
	ActorChannels  map[uint32]*channel.Channel

	PlayerController netguid.GUID
	CurrentNetSpeed  uint32
	UniqueID         string

	PacketNotify *net.PacketNotify

	InitInReliable  uint16
	InitOutReliable uint16

	// SendQueue holds raw encoded datagrams awaiting the socket writer.
	SendQueue [][]byte

	// Bindings maps an opened actor channel id to the world actor GUID it
	// replicates. Gameplay populates this (typically from PostLogin) via
	// BindActorChannel — the replication core itself has no notion of
	// which global actor a fixed channel id like GameStateChannelID
	// refers to.
	Bindings map[uint32]netguid.GUID

	callbacks GameCallbacks
}

// ActorBinding pairs an actor channel id with the actor GUID it
// replicates, as returned by SortedBindings.
type ActorBinding struct {
	ChannelID uint32
	ActorGUID netguid.GUID
}

// BindActorChannel records that channelID replicates actorGUID.
func (c *Connection) BindActorChannel(channelID uint32, actorGUID netguid.GUID) {
	if c.Bindings == nil {
		c.Bindings = make(map[uint32]netguid.GUID)
	}
	c.Bindings[channelID] = actorGUID
}

// SortedBindings returns the connection's actor-channel bindings ordered
// by channel id, for a deterministic per-tick drive order.
func (c *Connection) SortedBindings() []ActorBinding {
	out := make([]ActorBinding, 0, len(c.Bindings))
	for id, guid := range c.Bindings {
		out = append(out, ActorBinding{ChannelID: id, ActorGUID: guid})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out
}

// New builds a Connection from the sequence numbers agreed during the
// handshake. Channel 0 (control) and every actor channel inherit the
// same initial (in_reliable, out_reliable) seeds.
func New(sessionID, clientID uint8, playerIndex uint32, serverOutSeq, clientInSeq uint16, callbacks GameCallbacks) *Connection {
	initIn := clientInSeq & 0x3FF
	initOut := serverOutSeq & 0x3FF

	pn := &net.PacketNotify{}
	pn.Init(clientInSeq, serverOutSeq)

	return &Connection{
		SessionID:       sessionID,
		ClientID:        clientID,
		PlayerIndex:     playerIndex,
		ControlChannel:  channel.New(channel.IndexControl, channel.NameControlChannel, initIn, initOut),
		ActorChannels:   make(map[uint32]*channel.Channel),
		PacketNotify:    pn,
		InitInReliable:  initIn,
		InitOutReliable: initOut,
		callbacks:       callbacks,
	}
}

// OpenActorChannel creates and registers an actor channel at id, seeded
// with the connection's initial reliable counters.
func (c *Connection) OpenActorChannel(id uint32) *channel.Channel {
	ch := channel.New(id, channel.NameActorChannel, c.InitInReliable, c.InitOutReliable)
	c.ActorChannels[id] = ch
	return ch
}

// SortedActorChannelIDs returns the actor-channel ids in ascending
// order, matching the original's BTreeMap iteration order so per-tick
// output stays deterministic.
func (c *Connection) SortedActorChannelIDs() []uint32 {
	ids := make([]uint32, 0, len(c.ActorChannels))
	for id := range c.ActorChannels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Enqueue appends a raw encoded datagram to the send queue for the
// socket writer to drain.
func (c *Connection) Enqueue(datagram []byte) {
	c.SendQueue = append(c.SendQueue, datagram)
}

// HandleHello responds to a received Hello with the fixed Challenge.
func (c *Connection) HandleHello(_ channel.HelloMessage) channel.ChallengeMessage {
	return channel.ChallengeMessage{Challenge: FixedChallenge}
}

// HandleNetspeed stores the client's requested send rate.
func (c *Connection) HandleNetspeed(msg channel.NetspeedMessage) {
	c.CurrentNetSpeed = msg.Rate
}

// HandleLogin invokes pre_login; on success it caches UniqueID and
// returns the Welcome message to send back.
func (c *Connection) HandleLogin(msg channel.LoginMessage, mapName, gameName, redirectURL string) (channel.WelcomeMessage, error) {
	if err := c.callbacks.PreLogin(c, msg); err != nil {
		return channel.WelcomeMessage{}, fmt.Errorf("connection: pre-login rejected: %w", err)
	}
	c.UniqueID = msg.UniqueID
	return channel.WelcomeMessage{Map: mapName, GameName: gameName, RedirectURL: redirectURL}, nil
}

// HandleJoin runs the player-controller spawn sequence the first time a
// Join is received, opening the fixed game-state and world-data-layers
// actor channels. A second Join on an already-joined connection is a
// no-op.
func (c *Connection) HandleJoin() error {
	if c.PlayerController.IsValid() {
		return nil
	}
	guid, err := c.callbacks.Login(c)
	if err != nil {
		return fmt.Errorf("connection: login failed: %w", err)
	}
	c.PlayerController = guid
	c.OpenActorChannel(GameStateChannelID)
	c.OpenActorChannel(WorldDataLayersChannelID)
	c.callbacks.PostLogin(c)
	return nil
}
