// Package net implements the bunch codec and the packet-notify
// reliability engine shared by every channel on a connection.
package net

import (
	"errors"

	"github.com/samp-server-go/netcore/bitio"
	"github.com/samp-server-go/netcore/netguid"
)

// MaxDataBits is the largest payload a single bunch may carry before it
// must be split into partial bunches.
const MaxDataBits = 7616

// ErrPartialCustomExportsFinal is returned when a received bunch sets
// partial_custom_exports_final, a flag this profile never emits and does
// not implement receiving.
var ErrPartialCustomExportsFinal = errors.New("net: partial_custom_exports_final not implemented")

// Bunch is one logical unit of channel data.
type Bunch struct {
	Control bool
	Open    bool
	Close   bool

	// CloseReason is only meaningful when Close is set.
	CloseReason uint8

	IsReplicationPaused bool
	Reliable            bool
	ChIndex             uint32

	HasPackageMapExports bool
	HasMustBeMappedGuids bool

	Partial bool

	ChSequence uint16

	PartialInitial            bool
	PartialCustomExportsFinal bool
	PartialFinal              bool

	// ChName is only present on the wire when Reliable || Open.
	ChName netguid.Name

	BunchDataBits uint32
	Payload       []byte
}

// Encode writes b in the exact wire order.
func (b *Bunch) Encode(w *bitio.Writer) {
	w.WriteBit(b.Control)
	if b.Control {
		w.WriteBit(b.Open)
		w.WriteBit(b.Close)
		if b.Close {
			w.Write(4, uint64(b.CloseReason))
		}
	}
	w.WriteBit(b.IsReplicationPaused)
	w.WriteBit(b.Reliable)
	w.WritePackedInt(b.ChIndex)
	w.WriteBit(b.HasPackageMapExports)
	w.WriteBit(b.HasMustBeMappedGuids)
	w.WriteBit(b.Partial)

	if b.Reliable {
		w.Write(10, uint64(b.ChSequence))
	}

	if b.Partial {
		w.WriteBit(b.PartialInitial)
		w.WriteBit(b.PartialCustomExportsFinal)
		w.WriteBit(b.PartialFinal)
	}

	if b.Reliable || b.Open {
		b.ChName.Write(w)
	}

	w.Write(13, uint64(b.BunchDataBits))
	w.WriteBits(b.Payload, int(b.BunchDataBits))
}

// DecodeBunch is the inverse of Bunch.Encode. packetChSequence is the
// enclosing packet's sequence number, used as the inherited ch_sequence
// for non-reliable partial bunches.
func DecodeBunch(r *bitio.Reader, packetChSequence uint16) (*Bunch, error) {
	b := &Bunch{}
	control, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	b.Control = control
	if b.Control {
		open, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		b.Open = open
		closeBit, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		b.Close = closeBit
		if b.Close {
			reason, err := r.Read(4)
			if err != nil {
				return nil, err
			}
			b.CloseReason = uint8(reason)
		}
	}

	if b.IsReplicationPaused, err = r.ReadBit(); err != nil {
		return nil, err
	}
	if b.Reliable, err = r.ReadBit(); err != nil {
		return nil, err
	}
	chIndex, err := r.ReadPackedInt()
	if err != nil {
		return nil, err
	}
	b.ChIndex = chIndex
	if b.HasPackageMapExports, err = r.ReadBit(); err != nil {
		return nil, err
	}
	if b.HasMustBeMappedGuids, err = r.ReadBit(); err != nil {
		return nil, err
	}
	if b.Partial, err = r.ReadBit(); err != nil {
		return nil, err
	}

	switch {
	case b.Reliable:
		seq, err := r.Read(10)
		if err != nil {
			return nil, err
		}
		b.ChSequence = uint16(seq)
	case b.Partial:
		b.ChSequence = packetChSequence
	default:
		b.ChSequence = 0
	}

	if b.Partial {
		if b.PartialInitial, err = r.ReadBit(); err != nil {
			return nil, err
		}
		if b.PartialCustomExportsFinal, err = r.ReadBit(); err != nil {
			return nil, err
		}
		if b.PartialFinal, err = r.ReadBit(); err != nil {
			return nil, err
		}
		if b.PartialCustomExportsFinal {
			return nil, ErrPartialCustomExportsFinal
		}
	}

	if b.Reliable || b.Open {
		name, err := netguid.ReadName(r)
		if err != nil {
			return nil, err
		}
		b.ChName = name
	}

	dataBits, err := r.Read(13)
	if err != nil {
		return nil, err
	}
	b.BunchDataBits = uint32(dataBits)
	if b.BunchDataBits == 0 {
		return b, nil
	}
	payload, err := r.ReadBits(int(b.BunchDataBits))
	if err != nil {
		return nil, err
	}
	b.Payload = payload
	return b, nil
}
