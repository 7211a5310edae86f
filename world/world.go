// Package world owns the actor/object registry, the class hierarchy used
// to build GUID export chains, and the per-connection per-tick
// replication drive: dispatching incoming RPCs, ticking actor channels,
// and packing the results into outbound datagrams.
package world

import (
	"encoding/hex"
	"sort"

	"github.com/samp-server-go/netcore/bitio"
	"github.com/samp-server-go/netcore/internal/logging"
	"github.com/samp-server-go/netcore/net"
	"github.com/samp-server-go/netcore/net/channel"
	"github.com/samp-server-go/netcore/net/connection"
	"github.com/samp-server-go/netcore/netguid"
	"github.com/samp-server-go/netcore/replication"
	"github.com/sirupsen/logrus"
)

// PersistentLevelGUID is the fixed level GUID dynamic actors anchor their
// export chain and spawn-bunch level field to, in this profile.
const PersistentLevelGUID netguid.GUID = 3

// SpawnKind distinguishes the two spawn_actor constructors.
type SpawnKind int

const (
	SpawnStatic SpawnKind = iota
	SpawnDynamic
)

// RpcServerHandler processes one incoming RPC call.
type RpcServerHandler func(ctx *RpcContext, payload []byte, bits int) error

// RpcContext is the argument bundle handed to a server RPC handler.
type RpcContext struct {
	World      *World
	Connection *connection.Connection
	ActorGUID  netguid.GUID
	SelfGUID   netguid.GUID
}

// ObjectLayout is implemented by every spawned actor or sub-object: its
// replicated state (replication.RepLayout), its server RPC handler
// table, and a hook invoked the first time its owning channel opens.
//
// Queued outbound RPCs are not a separate notion here: a concrete
// ObjectLayout folds any pending RPC call into the same
// SerializeCustomProperties/CustomPropertiesChanged pair replication.RepLayout
// already defines, rather than widening that interface — so
// "any_sub_object_has_queued_rpc" collapses into the same changed-bit
// check as replicated property changes (see DESIGN.md).
type ObjectLayout interface {
	replication.RepLayout
	GetHandlerFunc(repIndex uint32) (RpcServerHandler, bool)
	OnChannelOpen(w *World, actorGUID netguid.GUID) []byte
}

// SubObject pairs a sub-object's GUID with its layout, supplied by the
// caller in the order it should be exported and serialized.
type SubObject struct {
	GUID   netguid.GUID
	Layout ObjectLayout
}

type actorEntry struct {
	guid          netguid.GUID
	archetypeGUID netguid.GUID
	kind          SpawnKind
	layout        ObjectLayout
	subObjects    []netguid.GUID

	pos           netguid.Vector
	posSerialized bool
	rot           netguid.Rotator
	rotSerialized bool
}

// World is the actor/object registry and replication driver for one map
// instance.
type World struct {
	MapName string

	Cache     *netguid.Cache
	Hierarchy *netguid.Hierarchy

	Log *logrus.Logger

	actors  map[netguid.GUID]*actorEntry
	Objects map[netguid.GUID]ObjectLayout

	subObjectOwner map[netguid.GUID]netguid.GUID
}

// New returns an empty World scoped to mapName.
func New(mapName string) *World {
	return &World{
		MapName:        mapName,
		Cache:          netguid.NewCache(mapName),
		Hierarchy:      netguid.NewHierarchy(),
		Log:            logging.New(logrus.InfoLevel),
		actors:         make(map[netguid.GUID]*actorEntry),
		Objects:        make(map[netguid.GUID]ObjectLayout),
		subObjectOwner: make(map[netguid.GUID]netguid.GUID),
	}
}

// RegisterHierarchyForStaticObjects walks pathNames outermost-first,
// assigning/retrieving static GUIDs and linking each inner entry as a
// child of the previous, returning the leaf GUID.
func (w *World) RegisterHierarchyForStaticObjects(pathNames []string) netguid.GUID {
	return w.Hierarchy.RegisterHierarchyForStaticObjects(w.Cache, pathNames)
}

func (w *World) registerSubObjects(owner netguid.GUID, entry *actorEntry, subObjects []SubObject) {
	for _, sub := range subObjects {
		entry.subObjects = append(entry.subObjects, sub.GUID)
		w.Objects[sub.GUID] = sub.Layout
		w.subObjectOwner[sub.GUID] = owner
		w.Hierarchy.SetParent(sub.GUID, owner)
	}
}

// SpawnStaticActor registers guid as a static actor whose own layout
// carries its replicated state directly; archetype_guid equals the
// actor's own GUID.
func (w *World) SpawnStaticActor(guid netguid.GUID, layout ObjectLayout, subObjects []SubObject) {
	entry := &actorEntry{guid: guid, archetypeGUID: guid, kind: SpawnStatic, layout: layout}
	w.actors[guid] = entry
	w.Objects[guid] = layout
	w.subObjectOwner[guid] = guid
	w.registerSubObjects(guid, entry, subObjects)
}

// SpawnDynamicActor registers guid as a dynamic actor spawned from
// archetype at pos/rot. The actor's own object uses an empty "null"
// layout; the archetype carries the real replicated state and is
// registered as the actor's first sub-object, so its export chain
// terminates at the actor.
func (w *World) SpawnDynamicActor(guid, archetypeGUID netguid.GUID, archetype ObjectLayout, pos netguid.Vector, rot netguid.Rotator, subObjects []SubObject) {
	entry := &actorEntry{
		guid:          guid,
		archetypeGUID: archetypeGUID,
		kind:          SpawnDynamic,
		layout:        nullLayout{},
		pos:           pos,
		posSerialized: true,
		rot:           rot,
		rotSerialized: rot.ShouldSerialize(),
	}
	w.actors[guid] = entry
	w.Objects[guid] = entry.layout
	w.subObjectOwner[guid] = guid
	w.registerSubObjects(guid, entry, []SubObject{{GUID: archetypeGUID, Layout: archetype}})
	w.registerSubObjects(guid, entry, subObjects)
}

func (w *World) ownerActorGUID(guid netguid.GUID) netguid.GUID {
	if owner, ok := w.subObjectOwner[guid]; ok {
		return owner
	}
	return guid
}

// nullLayout is the empty archetype a dynamic actor's own object uses:
// its real state lives on the archetype sub-object instead.
type nullLayout struct{}

func (nullLayout) RepLayoutChanged() bool        { return false }
func (nullLayout) CustomPropertiesChanged() bool { return false }
func (nullLayout) AcknowledgeChanges()           {}
func (nullLayout) MaxRepIndex() uint32           { return 0 }
func (nullLayout) IsEmpty() bool                 { return true }
func (nullLayout) SerializeCustomProperties(full bool) []replication.CustomPropertyPayload {
	return nil
}
func (nullLayout) SerializeLayoutProperties(w *bitio.Writer, full bool) {}
func (nullLayout) GetHandlerFunc(uint32) (RpcServerHandler, bool)       { return nil, false }
func (nullLayout) OnChannelOpen(*World, netguid.GUID) []byte            { return nil }

func objHasChanges(obj replication.RepLayout) bool {
	return obj.RepLayoutChanged() || obj.CustomPropertiesChanged()
}

// anyChanges implements the combined any_sub_object_has_changes /
// any_sub_object_has_queued_rpc predicate (see ObjectLayout's doc
// comment for why the two collapse into one check here): true if the
// actor's own object or any sub-object has a pending change.
func (w *World) anyChanges(entry *actorEntry) bool {
	if objHasChanges(entry.layout) {
		return true
	}
	for _, guid := range entry.subObjects {
		if objHasChanges(w.Objects[guid]) {
			return true
		}
	}
	return false
}

func writeSpawnBunch(w *bitio.Writer, entry *actorEntry) {
	entry.guid.WritePackedInt(w)
	if entry.kind != SpawnDynamic {
		return
	}
	entry.archetypeGUID.WritePackedInt(w)
	PersistentLevelGUID.WritePackedInt(w)
	w.WriteBit(entry.posSerialized)
	if entry.posSerialized {
		w.WriteBit(true) // bPosQuantized
		entry.pos.WritePacked(w, 10)
	}
	w.WriteBit(entry.rotSerialized)
	if entry.rotSerialized {
		entry.rot.Write(w)
	}
	w.WriteBit(false) // scale
	w.WriteBit(false) // velocity
}

func (w *World) exportChainFor(group *netguid.FieldExportGroup, seen map[netguid.GUID]bool, guid netguid.GUID) {
	for _, e := range w.Hierarchy.ExportGUID(w.Cache, guid) {
		if seen[e.GUID] {
			continue
		}
		seen[e.GUID] = true
		group.Fields = append(group.Fields, &netguid.FieldExport{
			GUID:         e.GUID,
			ShouldEncode: true,
			HasPath:      e.PathName != "",
			NoLoad:       e.NoLoad,
			PathName:     e.PathName,
		})
	}
}

// buildExportGroup collects the actor's own export chain anchor (itself
// for a static actor, PersistentLevelGUID for a dynamic one) plus every
// sub-object's chain, deduplicated.
func (w *World) buildExportGroup(entry *actorEntry) *netguid.FieldExportGroup {
	group := &netguid.FieldExportGroup{}
	seen := make(map[netguid.GUID]bool)

	anchor := entry.guid
	if entry.kind == SpawnDynamic {
		anchor = PersistentLevelGUID
	}
	w.exportChainFor(group, seen, anchor)
	for _, guid := range entry.subObjects {
		w.exportChainFor(group, seen, guid)
	}
	return group
}

// buildChannelPayload constructs the logical bunch payload for one actor
// channel tick: optional spawn bunch (on the channel's first tick), then
// content blocks for the archetype and every sub-object with pending
// changes. Returns ok=false when there is nothing to send and the
// channel has already spawned.
func (w *World) buildChannelPayload(ch *channel.Channel, entry *actorEntry) (payload []byte, bits int, exports *netguid.FieldExportGroup, ok bool) {
	spawning := !ch.HasOpened()
	if !spawning && !w.anyChanges(entry) {
		return nil, 0, nil, false
	}

	body := bitio.NewWriter()
	if spawning {
		writeSpawnBunch(body, entry)
		if hook := entry.layout.OnChannelOpen(w, entry.guid); len(hook) > 0 {
			body.WriteBytes(hook)
		}
	}

	replication.WriteContentBlock(body, entry.layout, true, netguid.Invalid, spawning)
	for _, guid := range entry.subObjects {
		obj := w.Objects[guid]
		if !spawning && !objHasChanges(obj) {
			continue
		}
		replication.WriteContentBlock(body, obj, false, guid, spawning)
	}

	entry.layout.AcknowledgeChanges()
	for _, guid := range entry.subObjects {
		w.Objects[guid].AcknowledgeChanges()
	}

	return body.Bytes(), int(body.BitLength()), w.buildExportGroup(entry), true
}

// ActorChannelBinding associates one of a connection's actor channels
// with the world actor it replicates.
type ActorChannelBinding struct {
	ChannelID uint32
	ActorGUID netguid.GUID
}

func (w *World) logMissingRPC(rpc replication.IncomingRPC, reason string) {
	if w.Log == nil {
		return
	}
	w.Log.WithFields(logging.Fields{
		"object_guid": uint32(rpc.ObjectGUID),
		"rep_index":   rpc.RepIndex,
		"reason":      reason,
	}).Warn(hex.Dump(rpc.Payload))
}

// dispatchIncomingRPCs looks up each incoming RPC's handler by rep_index
// and invokes it. A missing handler or object is logged (with a hex
// dump of the payload) but is not fatal.
func (w *World) dispatchIncomingRPCs(conn *connection.Connection, incoming []replication.IncomingRPC) {
	for _, rpc := range incoming {
		obj, ok := w.Objects[rpc.ObjectGUID]
		if !ok {
			w.logMissingRPC(rpc, "unknown object")
			continue
		}
		handler, ok := obj.GetHandlerFunc(rpc.RepIndex)
		if !ok {
			w.logMissingRPC(rpc, "no handler for rep_index")
			continue
		}
		ctx := &RpcContext{
			World:      w,
			Connection: conn,
			ActorGUID:  w.ownerActorGUID(rpc.ObjectGUID),
			SelfGUID:   rpc.ObjectGUID,
		}
		if err := handler(ctx, rpc.Payload, rpc.Bits); err != nil {
			w.logMissingRPC(rpc, err.Error())
		}
	}
}

// LookupForActor returns a replication.ObjectLookup bound to actorGUID,
// for use by replication.ReadIncomingContentBlock when decoding a bunch
// received on that actor's channel: an is_actor content block resolves
// to the actor's own archetype layout, a non-actor block to the
// referenced sub-object.
func (w *World) LookupForActor(actorGUID netguid.GUID) replication.ObjectLookup {
	return func(isActor bool, objectGUID netguid.GUID) (netguid.GUID, uint32, bool) {
		guid := actorGUID
		if !isActor {
			guid = objectGUID
		}
		obj, ok := w.Objects[guid]
		if !ok {
			return 0, 0, false
		}
		return guid, obj.MaxRepIndex(), true
	}
}

// Tick runs one connection's per-tick replication pass — dispatching
// incoming RPCs, building each bound channel's payload, then packing
// the result into a datagram — and returns nil if there is nothing to
// send.
func (w *World) Tick(conn *connection.Connection, bindings []ActorChannelBinding, incoming []replication.IncomingRPC) ([]byte, error) {
	w.dispatchIncomingRPCs(conn, incoming)

	sorted := append([]ActorChannelBinding{}, bindings...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ChannelID < sorted[j].ChannelID })

	var bunches []*net.Bunch
	for _, b := range sorted {
		ch, ok := conn.ActorChannels[b.ChannelID]
		if !ok {
			continue
		}
		entry, ok := w.actors[b.ActorGUID]
		if !ok {
			continue
		}
		payload, bits, exports, ok := w.buildChannelPayload(ch, entry)
		if !ok {
			continue
		}
		if exports != nil && len(exports.Fields) > 0 {
			ew := bitio.NewWriter()
			exports.Encode(ew)
			exportBunches := ch.DrainOutbound(ew.Bytes(), int(ew.BitLength()))
			for _, eb := range exportBunches {
				eb.HasPackageMapExports = true
			}
			bunches = append(bunches, exportBunches...)
		}
		bunches = append(bunches, ch.DrainOutbound(payload, bits)...)
	}

	if len(bunches) == 0 {
		return nil, nil
	}
	return w.PackDatagram(conn, bunches)
}

// PackDatagram assembles one outbound datagram: the 6-bit session
// prefix, the packet-notify header, the fixed packet-info marker, then
// every bunch passed in, trailing sentinel and byte alignment. No
// datagram size limit is applied: all bunches are written. Exported
// so the server layer can reuse it for control-channel replies that
// must go out immediately rather than wait for the next tick.
func (w *World) PackDatagram(conn *connection.Connection, bunches []*net.Bunch) ([]byte, error) {
	out := bitio.NewWriter()
	header := net.DatagramHeader{SessionID: conn.SessionID & 0x3, ClientID: conn.ClientID & 0x7, IsHandshake: false}
	header.Write(out)

	conn.PacketNotify.WriteHeader(out)

	out.WriteBit(true)
	out.Write(10, 0) // jitter, unused in this profile
	out.WriteBit(true)
	out.Write(8, 0) // frame time, unused in this profile

	for _, b := range bunches {
		b.Encode(out)
	}
	out.Terminate()
	conn.PacketNotify.CommitAndIncrementSeq()
	return out.Bytes(), nil
}
