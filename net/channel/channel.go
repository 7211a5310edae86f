// Package channel implements the reliable multiplexer layered on top of
// the bunch codec: the reliable-order gate, partial-bunch reassembly, and
// outbound chunking shared by the control channel and every actor channel.
package channel

import (
	"sort"

	"github.com/samp-server-go/netcore/bitio"
	"github.com/samp-server-go/netcore/net"
	"github.com/samp-server-go/netcore/netguid"
)

// IndexControl is the channel index always routed to the control channel.
const IndexControl = 0

// Hardcoded name indices used for ch_name, pinned from the original
// engine's channel table.
var (
	NameControlChannel = netguid.HardcodedName(255)
	NameActorChannel   = netguid.HardcodedName(102)
)

// Channel multiplexes one reliable substream of a connection.
type Channel struct {
	Index uint32
	Name  netguid.Name

	inReliable  uint16
	outReliable uint16

	pendingPartial []*net.Bunch

	openSent bool
}

// New returns a Channel seeded with the connection's initial reliable
// counters: control channel 0 and every actor channel inherit the same
// initial (in_reliable, out_reliable) pair.
func New(index uint32, name netguid.Name, initialInReliable, initialOutReliable uint16) *Channel {
	return &Channel{Index: index, Name: name, inReliable: initialInReliable, outReliable: initialOutReliable}
}

// HasOpened reports whether this channel has already emitted its first
// (control|open) bunch.
func (c *Channel) HasOpened() bool {
	return c.openSent
}

func (c *Channel) nextOutReliable() uint16 {
	c.outReliable = (c.outReliable + 1) & 1023
	return c.outReliable
}

// ReceivedRawBunch applies the reliable-order gate and, for partial
// bunches, buffers and attempts reassembly. It returns the logical
// bunches ready for dispatch (zero or one) and whether the bunch was
// accepted (false means it was dropped by the order gate).
func (c *Channel) ReceivedRawBunch(b *net.Bunch) (*net.Bunch, bool) {
	if b.Reliable {
		if b.ChSequence != 0 && b.ChSequence <= c.inReliable {
			return nil, false
		}
		if b.ChSequence != 0 {
			c.inReliable = b.ChSequence
		}
	}

	if !b.Partial {
		return b, true
	}

	c.pendingPartial = append(c.pendingPartial, b)
	sort.Slice(c.pendingPartial, func(i, j int) bool {
		return c.pendingPartial[i].ChSequence < c.pendingPartial[j].ChSequence
	})

	start, end, ok := nextPartialSequence(c.pendingPartial)
	if !ok {
		return nil, true
	}

	run := c.pendingPartial[start : end+1]
	merged := mergePartialRun(run)

	remaining := append([]*net.Bunch{}, c.pendingPartial[:start]...)
	remaining = append(remaining, c.pendingPartial[end+1:]...)
	c.pendingPartial = remaining

	return merged, true
}

// nextPartialSequence is a single forward pass over the sorted pending
// slice: startIndex resets whenever a partial_initial bunch is seen, a
// non-contiguous ch_sequence merely continues the scan without resetting
// startIndex, and a partial_final bunch whose sequence is still
// contiguous from startIndex ends the run.
func nextPartialSequence(pending []*net.Bunch) (start, end int, ok bool) {
	startIndex := -1
	var prevSeq uint16
	for i, b := range pending {
		if b.PartialInitial {
			startIndex = i
			prevSeq = b.ChSequence
			continue
		}
		if startIndex < 0 {
			continue
		}
		if b.ChSequence != prevSeq+1 {
			continue
		}
		prevSeq = b.ChSequence
		if b.PartialFinal {
			return startIndex, i, true
		}
	}
	return 0, 0, false
}

// mergePartialRun concatenates the payload bits of a contiguous partial
// run in order, ORs the control/open/close flags, and sums bunch_data_bits.
func mergePartialRun(run []*net.Bunch) *net.Bunch {
	merged := &net.Bunch{ChIndex: run[0].ChIndex, Reliable: true, ChSequence: run[len(run)-1].ChSequence}
	w := bitio.NewWriter()
	var total uint32
	for _, b := range run {
		merged.Control = merged.Control || b.Control
		merged.Open = merged.Open || b.Open
		merged.Close = merged.Close || b.Close
		if b.Close {
			merged.CloseReason = b.CloseReason
		}
		w.WriteBits(b.Payload, int(b.BunchDataBits))
		total += b.BunchDataBits
	}
	merged.BunchDataBits = total
	merged.Payload = w.Bytes()
	return merged
}

// Chunk is one slice produced by SplitBunchData.
type Chunk struct {
	Payload []byte
	Bits    int
}

// SplitBunchData slices a payload into MAX_DATA_BITS-sized chunks (the
// last chunk carries the remainder), or a single chunk when it already
// fits.
func SplitBunchData(payload []byte, bitLen int) []Chunk {
	if bitLen <= net.MaxDataBits {
		return []Chunk{{Payload: payload, Bits: bitLen}}
	}
	r := bitio.NewReader(payload)
	var chunks []Chunk
	remaining := bitLen
	for remaining > 0 {
		take := net.MaxDataBits
		if remaining < take {
			take = remaining
		}
		bits, err := r.ReadBits(take)
		if err != nil {
			break
		}
		chunks = append(chunks, Chunk{Payload: bits, Bits: take})
		remaining -= take
	}
	return chunks
}

// DrainOutbound splits payload into partial bunches, stamps ch_index and,
// since every produced bunch is reliable in this profile, ch_name and
// ch_sequence via next_out_reliable. The first bunch ever sent on the
// channel additionally carries control=open=true.
func (c *Channel) DrainOutbound(payload []byte, bitLen int) []*net.Bunch {
	chunks := SplitBunchData(payload, bitLen)
	n := len(chunks)
	bunches := make([]*net.Bunch, n)
	for i, chunk := range chunks {
		b := &net.Bunch{
			ChIndex:       c.Index,
			Reliable:      true,
			Payload:       chunk.Payload,
			BunchDataBits: uint32(chunk.Bits),
			ChName:        c.Name,
		}
		if n > 1 {
			b.Partial = true
			b.PartialInitial = i == 0
			b.PartialFinal = i == n-1
		}
		if i == 0 && !c.openSent {
			b.Control = true
			b.Open = true
			c.openSent = true
		}
		b.ChSequence = c.nextOutReliable()
		bunches[i] = b
	}
	return bunches
}
