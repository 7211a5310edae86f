package gamemode

import (
	"github.com/samp-server-go/netcore/bitio"
	"github.com/samp-server-go/netcore/netguid"
	"github.com/samp-server-go/netcore/replication"
	"github.com/samp-server-go/netcore/world"
)

const repPlayerCount = 1

// GameState is a singleton actor of one connection's world, bound to that
// connection's GameStateChannelID; each game mode creates its own
// instance, replicating counters the client needs regardless of which
// player owns the channel.
type GameState struct {
	playerCount replication.IntProperty[uint32]
}

// NewGameState returns a GameState with no players counted yet.
func NewGameState() *GameState {
	return &GameState{playerCount: replication.NewIntProperty[uint32](repPlayerCount, 32, 0)}
}

// SetPlayerCount updates the replicated connected-player count.
func (g *GameState) SetPlayerCount(n uint32) {
	g.playerCount.SetValue(n)
}

func (g *GameState) RepLayoutChanged() bool        { return g.playerCount.IsChanged() }
func (g *GameState) CustomPropertiesChanged() bool { return false }
func (g *GameState) AcknowledgeChanges()           { g.playerCount.AcknowledgeChanges() }
func (g *GameState) MaxRepIndex() uint32           { return repPlayerCount }
func (g *GameState) IsEmpty() bool                 { return false }
func (g *GameState) SerializeCustomProperties(full bool) []replication.CustomPropertyPayload {
	return nil
}
func (g *GameState) SerializeLayoutProperties(w *bitio.Writer, full bool) {
	replication.WriteLayoutProperties(w, []replication.LayoutProperty{&g.playerCount}, full)
}
func (g *GameState) GetHandlerFunc(uint32) (world.RpcServerHandler, bool) { return nil, false }
func (g *GameState) OnChannelOpen(*world.World, netguid.GUID) []byte      { return nil }

const repActiveLayers = 1

// WorldDataLayers is a singleton actor of one connection's world, bound
// to that connection's WorldDataLayersChannelID, replicating which streamed
// world-partition layers are enabled. This profile never toggles them,
// so the bitmask is fixed at construction and the layout never changes
// after its spawn tick — an accurate, not a placeholder, empty steady
// state.
type WorldDataLayers struct {
	activeLayers replication.IntProperty[uint32]
}

// NewWorldDataLayers returns a WorldDataLayers with every bit in mask set.
func NewWorldDataLayers(mask uint32) *WorldDataLayers {
	return &WorldDataLayers{activeLayers: replication.NewIntProperty[uint32](repActiveLayers, 32, mask)}
}

func (w *WorldDataLayers) RepLayoutChanged() bool        { return w.activeLayers.IsChanged() }
func (w *WorldDataLayers) CustomPropertiesChanged() bool { return false }
func (w *WorldDataLayers) AcknowledgeChanges()           { w.activeLayers.AcknowledgeChanges() }
func (w *WorldDataLayers) MaxRepIndex() uint32           { return repActiveLayers }
func (w *WorldDataLayers) IsEmpty() bool                 { return false }
func (w *WorldDataLayers) SerializeCustomProperties(full bool) []replication.CustomPropertyPayload {
	return nil
}
func (w *WorldDataLayers) SerializeLayoutProperties(wr *bitio.Writer, full bool) {
	replication.WriteLayoutProperties(wr, []replication.LayoutProperty{&w.activeLayers}, full)
}
func (w *WorldDataLayers) GetHandlerFunc(uint32) (world.RpcServerHandler, bool) { return nil, false }
func (w *WorldDataLayers) OnChannelOpen(*world.World, netguid.GUID) []byte      { return nil }
