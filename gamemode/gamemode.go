// Package gamemode is a worked example game mode: one PlayerState actor
// spawned at login, plus the two fixed singletons (GameState,
// WorldDataLayers) the connection binds its GameStateChannelID/
// WorldDataLayersChannelID to. It exercises server.GameMode and
// connection.GameCallbacks end to end without taking on gameplay-content
// breadth (vehicles, admin commands, chat commands) the original
// reference freeroam mode carried.
//
// The GUID cache, world, and object map all belong to one connection's
// cluster executor alone, and so does the game mode object built on top
// of them: a GameMode value is never touched by more than one
// connection's goroutine. New is the factory server.Server calls once
// per accepted connection; there is no cross-connection state to guard.
package gamemode

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/samp-server-go/netcore/net/channel"
	"github.com/samp-server-go/netcore/net/connection"
	"github.com/samp-server-go/netcore/netguid"
	"github.com/samp-server-go/netcore/world"
	"github.com/sirupsen/logrus"
)

// SpawnPoint is one candidate Los Santos spawn location, carried over
// from the original freeroam mode's hardcoded table.
type SpawnPoint struct {
	Position netguid.Vector
	Yaw      float64
	Skin     int
}

// defaultSpawnPoints mirrors the original freeroam mode's Los Santos
// spawn table (positions/skins only; the original's per-team split is
// dropped since this profile has no team gameplay).
var defaultSpawnPoints = []SpawnPoint{
	{Position: netguid.Vector{X: 1958.3783, Y: 1343.1572, Z: 15.3746}, Yaw: 270.1425, Skin: 0},
	{Position: netguid.Vector{X: 2199.6531, Y: 1393.3678, Z: 10.8203}, Yaw: 0.0000, Skin: 1},
	{Position: netguid.Vector{X: 2483.5977, Y: 1222.8304, Z: 10.8203}, Yaw: 181.8294, Skin: 2},
	{Position: netguid.Vector{X: 2495.0964, Y: 1687.7073, Z: 10.8203}, Yaw: 0.0000, Skin: 3},
	{Position: netguid.Vector{X: 2306.3252, Y: 2442.2158, Z: 10.8203}, Yaw: 94.3914, Skin: 4},
	{Position: netguid.Vector{X: 2197.4092, Y: 2487.7598, Z: 10.8203}, Yaw: 180.4898, Skin: 5},
	{Position: netguid.Vector{X: 1768.2111, Y: 2847.4736, Z: 10.8203}, Yaw: 270.0000, Skin: 6},
	{Position: netguid.Vector{X: 1457.4762, Y: 2773.4868, Z: 10.8203}, Yaw: 270.0000, Skin: 7},
}

// spawnCursor rotates new players through defaultSpawnPoints. It is the
// one piece of state this mode shares across connections, and it is
// just a counter — not part of any per-cluster world, object map, or
// GUID cache — so a process-global atomic is the right tool, the same
// way the server layer handles its player-index counter.
var spawnCursor atomic.Uint32

func nextSpawnPoint() SpawnPoint {
	i := spawnCursor.Add(1) - 1
	return defaultSpawnPoints[i%uint32(len(defaultSpawnPoints))]
}

// GameMode is the worked example implementation of connection.GameCallbacks,
// scoped to exactly one connection's world.
type GameMode struct {
	log        *logrus.Logger
	instanceID uuid.UUID

	world               *world.World
	gameStateGUID       netguid.GUID
	worldDataLayersGUID netguid.GUID
	gameState           *GameState
}

// New constructs a GameMode bound to w, registering the fixed singletons
// PostLogin will bind the connection's two fixed actor channels to. It
// is the server.GameModeFactory target, called once per accepted
// connection, before any control message for it is processed.
func New(w *world.World, log *logrus.Logger) (*GameMode, error) {
	g := &GameMode{log: log, instanceID: uuid.New(), world: w}

	gameStateGUID := w.Cache.AssignNewNetGUIDForDynamicObject("GameState")
	g.gameState = NewGameState()
	w.SpawnStaticActor(gameStateGUID, g.gameState, nil)
	g.gameStateGUID = gameStateGUID

	worldDataLayersGUID := w.Cache.AssignNewNetGUIDForDynamicObject("WorldDataLayers")
	w.SpawnStaticActor(worldDataLayersGUID, NewWorldDataLayers(0xFFFFFFFF), nil)
	g.worldDataLayersGUID = worldDataLayersGUID

	log.WithFields(logrus.Fields{"instance_id": g.instanceID}).Debug("game mode ready for new connection")
	return g, nil
}

// PreLogin validates the client's login credentials before HandleLogin
// commits them. This profile accepts any non-empty unique id.
func (g *GameMode) PreLogin(conn *connection.Connection, login channel.LoginMessage) error {
	if login.UniqueID == "" {
		return fmt.Errorf("gamemode: login rejected: empty unique id")
	}
	return nil
}

// Login spawns a fresh PlayerState dynamic actor and its archetype
// sub-object, both freshly-assigned dynamic GUIDs — self_guid and
// archetype_guid are never the same, nor a shared static "class" GUID —
// and returns the actor's own GUID as the connection's player
// controller.
func (g *GameMode) Login(conn *connection.Connection) (netguid.GUID, error) {
	spawn := nextSpawnPoint()
	rot := netguid.Rotator{Yaw: spawn.Yaw}

	actorGUID := g.world.Cache.AssignNewNetGUIDForDynamicObject("PlayerState")
	archetypeGUID := g.world.Cache.AssignNewNetGUIDForDynamicObject("PlayerState.Archetype")
	state := NewPlayerState(spawn)
	g.world.SpawnDynamicActor(actorGUID, archetypeGUID, state, spawn.Position, rot, nil)

	g.gameState.SetPlayerCount(1)

	g.log.WithFields(logrus.Fields{
		"player_index": conn.PlayerIndex,
		"actor_guid":   uint32(actorGUID),
		"unique_id":    conn.UniqueID,
	}).Info("player logged in")

	return actorGUID, nil
}

// PostLogin binds the connection's two fixed actor channels (opened by
// connection.Connection.HandleJoin just before calling this) to the
// singletons registered by New.
func (g *GameMode) PostLogin(conn *connection.Connection) {
	conn.BindActorChannel(connection.GameStateChannelID, g.gameStateGUID)
	conn.BindActorChannel(connection.WorldDataLayersChannelID, g.worldDataLayersGUID)
}
