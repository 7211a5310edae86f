package net

import "github.com/samp-server-go/netcore/bitio"

// SeqModulus is the modulus for the 14-bit packet sequence numbers.
const SeqModulus = 1 << 14

const (
	seqShift        = 18 // 4 (history word count bits) + 14 (ack seq width)
	ackSeqShift     = 4
	historyWordBits = 4
)

// SequenceHistory is a 256-entry delivery history organized as eight
// 32-bit words, each bit recording whether the packet that many steps
// back from the most recent was delivered.
type SequenceHistory [8]uint32

// AddDeliveryStatus shifts the whole history left by one (carrying
// between words) and feeds delivered into the new low bit.
func (h *SequenceHistory) AddDeliveryStatus(delivered bool) {
	carry := uint32(0)
	if delivered {
		carry = 1
	}
	for i := 0; i < 8; i++ {
		nextCarry := h[i] >> 31
		h[i] = h[i]<<1 | carry
		carry = nextCarry
	}
}

// IsDelivered reports the delivery bit at index (0 = most recent).
func (h SequenceHistory) IsDelivered(index int) bool {
	return h[index/32]&(1<<uint(index&31)) != 0
}

// PackedHeader is the 32-bit value placed at the start of every
// non-handshake packet.
type PackedHeader struct {
	Seq               uint16
	AckedSeq          uint16
	HistoryWordCount  int
}

// Pack encodes the header as a 32-bit value.
func (h PackedHeader) Pack() uint32 {
	return uint32(h.Seq)<<seqShift | uint32(h.AckedSeq)<<ackSeqShift | uint32(h.HistoryWordCount&0xF)
}

// UnpackHeader is the inverse of PackedHeader.Pack.
func UnpackHeader(v uint32) PackedHeader {
	return PackedHeader{
		Seq:              uint16(v >> seqShift & (SeqModulus - 1)),
		AckedSeq:         uint16(v >> ackSeqShift & (SeqModulus - 1)),
		HistoryWordCount: int(v & 0xF),
	}
}

func seqDiff(a, b uint16) int {
	return int(int32(a-b) << 18 >> 18)
}

// PacketNotify tracks the per-connection outgoing/incoming sequence
// numbers, the ack FIFO, and the 256-slot delivery history.
type PacketNotify struct {
	InSeq        uint16
	InAckSeq     uint16
	InAckSeqAck  uint16
	OutSeq       uint16
	OutAckSeq    uint16

	WaitingForFlushSeqAck uint16

	History SequenceHistory

	ackRecord []ackRecordEntry
}

type ackRecordEntry struct {
	outSeq   uint16
	inAckSeq uint16
}

// Init seeds the sequence state from the handshake-derived initial
// sequence numbers.
func (p *PacketNotify) Init(inSeq, outSeq uint16) {
	p.InSeq = inSeq
	p.InAckSeq = inSeq
	p.InAckSeqAck = inSeq
	p.OutSeq = outSeq
	p.OutAckSeq = outSeq - 1
	p.WaitingForFlushSeqAck = outSeq - 1
}

func (p *PacketNotify) willSequenceFitInSequenceHistory(seq uint16) bool {
	return seqDiff(seq, p.InAckSeqAck) >= 0 && seqDiff(seq, p.InAckSeqAck) <= 256
}

func (p *PacketNotify) currentSequenceHistoryLength() int {
	if seqDiff(p.InAckSeq, p.InAckSeqAck) >= 0 {
		d := seqDiff(p.InAckSeq, p.InAckSeqAck)
		if d > 256 {
			return 256
		}
		return d
	}
	return 256
}

// IsWaitingForSequenceHistoryFlush reports whether outbound data is
// blocked on the client acking the pending history window.
func (p *PacketNotify) IsWaitingForSequenceHistoryFlush() bool {
	return seqDiff(p.WaitingForFlushSeqAck, p.OutAckSeq) > 0
}

func (p *PacketNotify) getHasUnacknowledgedAcks() bool {
	n := p.currentSequenceHistoryLength()
	for i := 0; i < n; i++ {
		if p.History.IsDelivered(i) {
			return true
		}
	}
	return false
}

// updateInAckSeqAck advances in_ack_seq_ack using the ack FIFO: it pops
// the entry covering the newly-acked out_seq, or falls back to acked_seq
// directly when the FIFO underruns (observed to happen on keep-alives;
// see the decided Open Question in DESIGN.md).
func (p *PacketNotify) updateInAckSeqAck(ackCount int, ackedSeq uint16) uint16 {
	if ackCount <= len(p.ackRecord) {
		if ackCount > 1 {
			p.ackRecord = p.ackRecord[:len(p.ackRecord)-1]
		}
		entry := p.ackRecord[0]
		p.ackRecord = p.ackRecord[1:]
		if entry.outSeq == ackedSeq {
			return entry.inAckSeq
		}
	}
	return ackedSeq
}

// processReceivedAcks advances out_ack_seq/in_ack_seq_ack from a received
// acked_seq. It does not act on individual history bits beyond counting
// them, matching the shipped engine's own comment that it "does not
// currently act on those notifications".
func (p *PacketNotify) processReceivedAcks(ackedSeq uint16) {
	if seqDiff(ackedSeq, p.OutAckSeq) <= 0 {
		return
	}
	ackCount := seqDiff(ackedSeq, p.OutAckSeq)
	newInAckSeqAck := p.updateInAckSeqAck(ackCount, ackedSeq)
	if seqDiff(newInAckSeqAck, p.InAckSeqAck) > 0 {
		p.InAckSeqAck = newInAckSeqAck
	}
	p.OutAckSeq = ackedSeq
	if seqDiff(p.WaitingForFlushSeqAck, p.OutAckSeq) <= 0 {
		// already satisfied; nothing to adopt
	}
	if seqDiff(ackedSeq, p.WaitingForFlushSeqAck) > 0 {
		p.WaitingForFlushSeqAck = ackedSeq
	}
}

func (p *PacketNotify) setWaitForSequenceHistoryFlush() {
	p.WaitingForFlushSeqAck = p.OutSeq
}

// internalUpdate follows the engine's active (non-commented) path: the
// flush-resync branch is not implemented, so header.Seq always becomes
// the new InSeq and inSeqDelta is returned unchanged.
func (p *PacketNotify) internalUpdate(header PackedHeader, inSeqDelta int) int {
	if !p.IsWaitingForSequenceHistoryFlush() && !p.willSequenceFitInSequenceHistory(header.Seq) {
		if p.getHasUnacknowledgedAcks() {
			p.setWaitForSequenceHistoryFlush()
		} else {
			p.InAckSeqAck = header.Seq - 1
		}
	}
	p.InSeq = header.Seq
	return inSeqDelta
}

// AckSeq folds acked up through acked_seq into the delivery history,
// reporting delivery iff is_ack and we've exactly caught up to acked_seq.
func (p *PacketNotify) AckSeq(ackedSeq uint16, isAck bool) {
	for seqDiff(ackedSeq, p.InAckSeq) > 0 {
		p.InAckSeq++
		reportAcked := p.InAckSeq == ackedSeq && isAck
		p.History.AddDeliveryStatus(reportAcked)
	}
}

// Update processes a received packet header, returning the sequence delta
// to apply to higher-level accounting. header.AckedSeq acks our own
// outbound sends; header.Seq is the sender's outbound sequence.
func (p *PacketNotify) Update(header PackedHeader) int {
	delta := 0
	if seqDiff(header.Seq, p.InSeq) > 0 &&
		seqDiff(header.AckedSeq, p.OutAckSeq) >= 0 &&
		seqDiff(p.OutSeq, header.AckedSeq) >= 0 {
		delta = seqDiff(header.Seq, p.InSeq)
	}
	if delta > 0 {
		p.processReceivedAcks(header.AckedSeq)
		p.internalUpdate(header, delta)
	}
	p.AckSeq(header.Seq, true)
	return delta
}

// WriteHeader writes the packed header and delivery history for an
// outgoing packet.
func (p *PacketNotify) WriteHeader(w *bitio.Writer) {
	historyLen := p.currentSequenceHistoryLength()
	words := (historyLen + 31) / 32
	if words < 1 {
		words = 1
	}
	if words > 8 {
		words = 8
	}
	header := PackedHeader{Seq: p.OutSeq, AckedSeq: p.InAckSeq, HistoryWordCount: words - 1}
	w.Write(32, uint64(header.Pack()))
	for i := 0; i < words; i++ {
		w.Write(32, uint64(p.History[i]))
	}
}

// ReadHeader reads a packed header and its delivery history words.
func ReadHeader(r *bitio.Reader) (PackedHeader, SequenceHistory, error) {
	raw, err := r.Read(32)
	if err != nil {
		return PackedHeader{}, SequenceHistory{}, err
	}
	header := UnpackHeader(uint32(raw))
	words := header.HistoryWordCount + 1
	var hist SequenceHistory
	for i := 0; i < words; i++ {
		w, err := r.Read(32)
		if err != nil {
			return PackedHeader{}, SequenceHistory{}, err
		}
		hist[i] = uint32(w)
	}
	return header, hist, nil
}

// CommitAndIncrementSeq records the just-sent (out_seq, in_ack_seq) pair
// in the ack FIFO and advances out_seq.
func (p *PacketNotify) CommitAndIncrementSeq() {
	p.ackRecord = append(p.ackRecord, ackRecordEntry{outSeq: p.OutSeq, inAckSeq: p.InAckSeq})
	p.OutSeq++
}
