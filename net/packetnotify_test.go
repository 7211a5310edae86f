package net

import (
	"testing"

	"github.com/samp-server-go/netcore/bitio"
)

func TestSequenceHistoryShift(t *testing.T) {
	var h SequenceHistory
	h.AddDeliveryStatus(true)
	h.AddDeliveryStatus(false)
	h.AddDeliveryStatus(true)
	if !h.IsDelivered(0) {
		t.Errorf("expected most recent delivery bit set")
	}
	if h.IsDelivered(1) {
		t.Errorf("expected middle delivery bit clear")
	}
	if !h.IsDelivered(2) {
		t.Errorf("expected oldest delivery bit set")
	}
}

func TestPackedHeaderRoundTrip(t *testing.T) {
	h := PackedHeader{Seq: 1000, AckedSeq: 42, HistoryWordCount: 3}
	got := UnpackHeader(h.Pack())
	if got != h {
		t.Fatalf("header round trip mismatch: got %+v want %+v", got, h)
	}
}

func TestPacketNotifyInitSeedsSequences(t *testing.T) {
	var pn PacketNotify
	pn.Init(5, 10)
	if pn.InSeq != 5 || pn.InAckSeq != 5 || pn.InAckSeqAck != 5 {
		t.Fatalf("expected in-sequence state seeded to 5, got %+v", pn)
	}
	if pn.OutSeq != 10 {
		t.Fatalf("expected out seq seeded to 10, got %d", pn.OutSeq)
	}
}

func TestPacketNotifyHeaderRoundTrip(t *testing.T) {
	var pn PacketNotify
	pn.Init(0, 0)
	pn.AckSeq(3, true)

	w := bitio.NewWriter()
	pn.WriteHeader(w)
	r := bitio.NewReader(w.Bytes())
	header, hist, err := ReadHeader(r)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if header.Seq != pn.OutSeq || header.AckedSeq != pn.InAckSeq {
		t.Fatalf("header mismatch: got %+v", header)
	}
	if hist[0] != pn.History[0] {
		t.Errorf("history word 0 mismatch: got %#x want %#x", hist[0], pn.History[0])
	}
}

func TestPacketNotifyCommitAndIncrementSeq(t *testing.T) {
	var pn PacketNotify
	pn.Init(0, 0)
	start := pn.OutSeq
	pn.CommitAndIncrementSeq()
	if pn.OutSeq != start+1 {
		t.Fatalf("expected out seq to advance by 1, got %d -> %d", start, pn.OutSeq)
	}
	if len(pn.ackRecord) != 1 {
		t.Fatalf("expected one ack-fifo entry recorded, got %d", len(pn.ackRecord))
	}
}

func TestPacketNotifyUpdateAdvancesInSeq(t *testing.T) {
	var pn PacketNotify
	pn.Init(0, 0)
	pn.CommitAndIncrementSeq()

	header := PackedHeader{Seq: 1, AckedSeq: 0, HistoryWordCount: 0}
	delta := pn.Update(header)
	if delta != 1 {
		t.Fatalf("expected delta 1, got %d", delta)
	}
	if pn.InSeq != 1 {
		t.Fatalf("expected in seq to advance to 1, got %d", pn.InSeq)
	}
}
