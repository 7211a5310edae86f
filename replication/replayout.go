// Package replication implements the content-block wire format, the
// per-property change-tracking wrappers, and the fast-array serializer
// that together move actor and object state across an actor channel.
package replication

import (
	"errors"

	"github.com/samp-server-go/netcore/bitio"
	"github.com/samp-server-go/netcore/netguid"
)

// CustomPropertyPayload is one self-contained, sentinel-terminated,
// byte-aligned payload produced by SerializeCustomProperties, or a queued
// RPC encoded the same way.
type CustomPropertyPayload struct {
	RepIndex uint32
	Payload  []byte
	Bits     int
}

// RepLayout is implemented by each object-layout type (hand-written in
// this module) and exposes everything the content-block codec needs.
type RepLayout interface {
	RepLayoutChanged() bool
	CustomPropertiesChanged() bool
	AcknowledgeChanges()
	SerializeLayoutProperties(w *bitio.Writer, full bool)
	SerializeCustomProperties(full bool) []CustomPropertyPayload
	MaxRepIndex() uint32
	IsEmpty() bool
}

// ErrServerRepLayoutUnsupported is the policy-level error for a received
// content block that sets has_rep_layout — this core accepts rep-layout
// data only in the outbound direction.
var ErrServerRepLayoutUnsupported = errors.New("replication: server does not accept has_rep_layout content blocks")

// WriteContentBlock serializes one object's content block. isActor
// distinguishes the owning actor's own archetype from a sub-object;
// sub-objects additionally carry their object_guid and the always-true
// bStablyNamed bit.
func WriteContentBlock(w *bitio.Writer, layout RepLayout, isActor bool, objectGUID netguid.GUID, full bool) {
	hasRepLayout := !layout.IsEmpty() && (full || layout.RepLayoutChanged())
	w.WriteBit(hasRepLayout)
	w.WriteBit(isActor)
	if !isActor {
		objectGUID.WritePackedInt(w)
		w.WriteBit(true)
	}

	sub := bitio.NewWriter()
	if hasRepLayout {
		sub.WriteBit(false)
		layout.SerializeLayoutProperties(sub, full)
	}
	maxRepIndex := layout.MaxRepIndex()
	for _, cp := range layout.SerializeCustomProperties(full) {
		sub.WriteCompressedInt(cp.RepIndex, maxRepIndex+1)
		sub.WritePackedInt(uint32(cp.Bits))
		sub.WriteBits(cp.Payload, cp.Bits)
	}
	sub.Terminate()

	w.WritePackedInt(uint32(sub.BitLength()))
	w.WriteBits(sub.Bytes(), int(sub.BitLength()))
	w.WriteBit(true)
}

// IncomingRPC is one parsed (rep_index, payload) entry out of a received
// content block's custom-property/RPC stream.
type IncomingRPC struct {
	ObjectGUID netguid.GUID
	RepIndex   uint32
	Payload    []byte
	Bits       int
}

// ObjectLookup resolves an is_actor/object_guid pair (from an incoming
// content block header) to the object's canonical GUID and max_rep_index.
type ObjectLookup func(isActor bool, objectGUID netguid.GUID) (guid netguid.GUID, maxRepIndex uint32, found bool)

// ReadIncomingContentBlock reads one content block from an actor-channel
// bunch payload. has_rep_layout content from a client is rejected with
// ErrServerRepLayoutUnsupported (caller logs and continues per spec);
// objects with MaxRepIndex()==1 accept no RPCs and yield no entries.
func ReadIncomingContentBlock(r *bitio.Reader, lookup ObjectLookup) ([]IncomingRPC, error) {
	hasRepLayout, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	isActor, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	var objectGUID netguid.GUID
	if !isActor {
		objectGUID, err = netguid.ReadGUID(r)
		if err != nil {
			return nil, err
		}
		if _, err := r.ReadBit(); err != nil {
			return nil, err
		}
	}

	bitCount, err := r.ReadPackedInt()
	if err != nil {
		return nil, err
	}
	payload, err := r.ReadBits(int(bitCount))
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadBit(); err != nil {
		return nil, err
	}

	if hasRepLayout {
		return nil, ErrServerRepLayoutUnsupported
	}

	guid, maxRepIndex, found := lookup(isActor, objectGUID)
	if !found || maxRepIndex == 1 {
		return nil, nil
	}

	usedBits, err := bitio.BitsFromTerminatedStream(payload)
	if err != nil {
		return nil, err
	}
	sub := bitio.NewReader(payload)
	var out []IncomingRPC
	for sub.BitPosition() < uint64(usedBits) {
		repIndex, err := sub.ReadCompressedInt(maxRepIndex + 1)
		if err != nil {
			return nil, err
		}
		bits, err := sub.ReadPackedInt()
		if err != nil {
			return nil, err
		}
		data, err := sub.ReadBits(int(bits))
		if err != nil {
			return nil, err
		}
		out = append(out, IncomingRPC{ObjectGUID: guid, RepIndex: repIndex, Payload: data, Bits: int(bits)})
	}
	return out, nil
}
