package net

import (
	"testing"

	"github.com/samp-server-go/netcore/bitio"
	"github.com/samp-server-go/netcore/netguid"
)

func roundTripBunch(t *testing.T, b *Bunch, packetChSequence uint16) *Bunch {
	t.Helper()
	w := bitio.NewWriter()
	b.Encode(w)
	r := bitio.NewReader(w.Bytes())
	got, err := DecodeBunch(r, packetChSequence)
	if err != nil {
		t.Fatalf("DecodeBunch: %v", err)
	}
	return got
}

func TestBunchReliableRoundTrip(t *testing.T) {
	b := &Bunch{
		Reliable:   true,
		ChIndex:    7,
		ChSequence: 42,
		ChName:     netguid.HardcodedName(3),
		Payload:    []byte{0xAB, 0xCD},
	}
	b.BunchDataBits = 16
	got := roundTripBunch(t, b, 0)
	if got.ChIndex != 7 || got.ChSequence != 42 {
		t.Fatalf("reliable round trip mismatch: %+v", got)
	}
	if got.Payload[0] != 0xAB || got.Payload[1] != 0xCD {
		t.Errorf("payload mismatch: %v", got.Payload)
	}
}

func TestBunchOpenCarriesName(t *testing.T) {
	b := &Bunch{
		Open:    true,
		Control: true,
		ChIndex: 0,
		ChName:  netguid.CustomName("ActorChannel"),
	}
	got := roundTripBunch(t, b, 0)
	if !got.Open || !got.Control {
		t.Fatalf("expected control/open bits preserved: %+v", got)
	}
	if got.ChName.Str != "ActorChannel" {
		t.Errorf("expected ch_name round trip, got %+v", got.ChName)
	}
}

func TestBunchCloseReason(t *testing.T) {
	b := &Bunch{Control: true, Close: true, CloseReason: 5}
	got := roundTripBunch(t, b, 0)
	if !got.Close || got.CloseReason != 5 {
		t.Fatalf("expected close reason preserved, got %+v", got)
	}
}

func TestBunchPartialInheritsPacketSequence(t *testing.T) {
	b := &Bunch{
		ChIndex:        2,
		Partial:        true,
		PartialInitial: true,
	}
	got := roundTripBunch(t, b, 99)
	if got.ChSequence != 99 {
		t.Errorf("expected inherited ch_sequence 99, got %d", got.ChSequence)
	}
	if !got.PartialInitial || got.PartialFinal {
		t.Errorf("partial flags mismatch: %+v", got)
	}
}

func TestBunchPartialCustomExportsFinalRejected(t *testing.T) {
	b := &Bunch{ChIndex: 2, Partial: true, PartialCustomExportsFinal: true}
	w := bitio.NewWriter()
	b.Encode(w)
	r := bitio.NewReader(w.Bytes())
	_, err := DecodeBunch(r, 0)
	if err != ErrPartialCustomExportsFinal {
		t.Fatalf("expected ErrPartialCustomExportsFinal, got %v", err)
	}
}

func TestBunchNonReliableNonPartialSequenceZero(t *testing.T) {
	b := &Bunch{ChIndex: 1}
	got := roundTripBunch(t, b, 123)
	if got.ChSequence != 0 {
		t.Errorf("expected zero ch_sequence for non-reliable non-partial bunch, got %d", got.ChSequence)
	}
}
