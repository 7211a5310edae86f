package gamemode

import (
	"github.com/samp-server-go/netcore/bitio"
	"github.com/samp-server-go/netcore/netguid"
	"github.com/samp-server-go/netcore/replication"
	"github.com/samp-server-go/netcore/world"
)

// Rep handles for PlayerState's layout properties.
const (
	repHealth = 1
	repArmour = 2
	repMoney  = 3
	repScore  = 4
	repSkin   = 5
)

// Server RPC rep_index PlayerState answers.
const rpcRespawn = 1

// PlayerState is the per-player replicated actor spawned at Login: the
// archetype sub-object carrying a player's gameplay-visible state. It
// implements world.ObjectLayout directly rather than going through a
// generated descriptor, since this core's only consumer is this one
// worked example.
type PlayerState struct {
	health replication.IntProperty[uint32]
	armour replication.IntProperty[uint32]
	money  replication.IntProperty[uint32]
	score  replication.IntProperty[uint32]
	skin   replication.IntProperty[uint32]

	spawn SpawnPoint
}

// NewPlayerState returns a PlayerState seeded at spawn with full health,
// no armour, and no money or score.
func NewPlayerState(spawn SpawnPoint) *PlayerState {
	return &PlayerState{
		health: replication.NewIntProperty[uint32](repHealth, 32, 100),
		armour: replication.NewIntProperty[uint32](repArmour, 32, 0),
		money:  replication.NewIntProperty[uint32](repMoney, 32, 0),
		score:  replication.NewIntProperty[uint32](repScore, 32, 0),
		skin:   replication.NewIntProperty[uint32](repSkin, 32, uint32(spawn.Skin)),
		spawn:  spawn,
	}
}

func (p *PlayerState) layoutProperties() []replication.LayoutProperty {
	return []replication.LayoutProperty{&p.health, &p.armour, &p.money, &p.score, &p.skin}
}

// RepLayoutChanged reports whether any layout property changed since the
// last AcknowledgeChanges.
func (p *PlayerState) RepLayoutChanged() bool {
	for _, prop := range p.layoutProperties() {
		if prop.IsChanged() {
			return true
		}
	}
	return false
}

// CustomPropertiesChanged is always false: PlayerState has no queued
// custom-property/RPC state of its own to flush, only layout properties.
func (p *PlayerState) CustomPropertiesChanged() bool { return false }

// AcknowledgeChanges clears every layout property's changed flag.
func (p *PlayerState) AcknowledgeChanges() {
	for _, prop := range p.layoutProperties() {
		prop.AcknowledgeChanges()
	}
}

// MaxRepIndex is the highest rep_index PlayerState declares, across both
// layout properties and RPC handlers.
func (p *PlayerState) MaxRepIndex() uint32 { return repSkin }

// IsEmpty is always false: PlayerState always has a rep layout to send.
func (p *PlayerState) IsEmpty() bool { return false }

func (p *PlayerState) SerializeCustomProperties(full bool) []replication.CustomPropertyPayload {
	return nil
}

func (p *PlayerState) SerializeLayoutProperties(w *bitio.Writer, full bool) {
	replication.WriteLayoutProperties(w, p.layoutProperties(), full)
}

// OnChannelOpen has nothing extra to append on spawn; the spawn bunch
// plus the first full content block already carry PlayerState's state.
func (p *PlayerState) OnChannelOpen(*world.World, netguid.GUID) []byte { return nil }

// GetHandlerFunc exposes PlayerState's one server RPC: Respawn, called
// by the client when the local player requests a respawn.
func (p *PlayerState) GetHandlerFunc(repIndex uint32) (world.RpcServerHandler, bool) {
	if repIndex == rpcRespawn {
		return p.handleRespawn, true
	}
	return nil, false
}

func (p *PlayerState) handleRespawn(ctx *world.RpcContext, payload []byte, bits int) error {
	p.health.SetValue(100)
	p.armour.SetValue(0)
	return nil
}

// Kill zeroes health, flagging the change for the next tick.
func (p *PlayerState) Kill() {
	p.health.SetValue(0)
}

// AddScore bumps score by delta, flagging the change for the next tick.
func (p *PlayerState) AddScore(delta int32) {
	p.score.SetValue(uint32(int32(p.score.Value()) + delta))
}
