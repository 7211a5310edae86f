// Package netguid implements the network GUID allocator, GUID→path cache,
// class hierarchy export chains, and the small value types (Name, Vector,
// Rotator) that flow through the replication wire format.
package netguid

import (
	"math"
	"math/bits"

	"github.com/samp-server-go/netcore/bitio"
)

// GUID is a 32-bit network-wide object identifier. Bit 0 distinguishes
// static (1, interned by path) from dynamic (0, per-instance) objects.
type GUID uint32

// Invalid is the zero GUID: never a valid assignment.
const Invalid GUID = 0

// Default is the sentinel GUID meaning "no object, but not an error".
const Default GUID = 1

// IsValid reports whether g is not the zero GUID.
func (g GUID) IsValid() bool { return g != Invalid }

// IsDefault reports whether g is the default sentinel.
func (g GUID) IsDefault() bool { return g == Default }

// IsStatic reports whether g was interned by path name.
func (g GUID) IsStatic() bool { return g&1 == 1 }

// IsDynamic reports whether g is a per-instance (non-interned) object.
func (g GUID) IsDynamic() bool { return g != Invalid && g&1 == 0 }

// WritePackedInt writes g as a packed int GUID field.
func (g GUID) WritePackedInt(w *bitio.Writer) {
	w.WritePackedInt(uint32(g))
}

// ReadGUID reads a packed-int-encoded GUID.
func ReadGUID(r *bitio.Reader) (GUID, error) {
	v, err := r.ReadPackedInt()
	return GUID(v), err
}

// Name is either an interned, engine-well-known index or an ad-hoc string
// plus a 32-bit "number" (the number is always 0 on the write path here;
// it exists for wire compatibility with clients that send a nonzero one).
type Name struct {
	Hardcoded bool
	Index     uint32
	Str       string
	Number    uint32
}

// HardcodedName constructs an interned Name.
func HardcodedName(index uint32) Name {
	return Name{Hardcoded: true, Index: index}
}

// CustomName constructs an ad-hoc Name.
func CustomName(s string) Name {
	return Name{Str: s}
}

// Write encodes n per the name write rule: hardcoded names write a packed
// int index; custom names write the string followed by a zero in_number.
func (n Name) Write(w *bitio.Writer) {
	w.WriteBit(n.Hardcoded)
	if n.Hardcoded {
		w.WritePackedInt(n.Index)
		return
	}
	w.WriteString(n.Str)
	w.Write(32, 0)
}

// ReadName is the inverse of Name.Write.
func ReadName(r *bitio.Reader) (Name, error) {
	hardcoded, err := r.ReadBit()
	if err != nil {
		return Name{}, err
	}
	if hardcoded {
		idx, err := r.ReadPackedInt()
		if err != nil {
			return Name{}, err
		}
		return HardcodedName(idx), nil
	}
	s, err := r.ReadString()
	if err != nil {
		return Name{}, err
	}
	num, err := r.Read(32)
	if err != nil {
		return Name{}, err
	}
	return Name{Str: s, Number: uint32(num)}, nil
}

// Vector is a three-axis double-precision position or offset.
type Vector struct {
	X, Y, Z float64
}

const maxValueToScale = 1 << 52
const maxScaledValue = 1 << 62

func roundFloatToInt(f float64) int64 {
	sign := 1.0
	if f < 0 {
		sign = -1.0
	}
	return int64(f + sign*0.5)
}

func bitsNeeded(v int64) int {
	return 65 - bits.LeadingZeros64(uint64(v^(v>>63)))
}

// WritePacked writes v using the per-axis quantized encoding: a scaled
// integer representation when it fits within 62 bits, otherwise three raw
// IEEE-754 doubles.
func (v Vector) WritePacked(w *bitio.Writer, scale float64) {
	sx, sy, sz := v.X*scale, v.Y*scale, v.Z*scale
	maxAbs := math.Max(math.Abs(sx), math.Max(math.Abs(sy), math.Abs(sz)))
	if maxAbs >= maxScaledValue {
		w.Write(7, 0x40)
		w.Write(64, math.Float64bits(v.X))
		w.Write(64, math.Float64bits(v.Y))
		w.Write(64, math.Float64bits(v.Z))
		return
	}
	minAbs := math.Min(math.Abs(sx), math.Min(math.Abs(sy), math.Abs(sz)))
	useScaled := minAbs < maxValueToScale
	var ix, iy, iz int64
	if useScaled {
		ix, iy, iz = roundFloatToInt(sx), roundFloatToInt(sy), roundFloatToInt(sz)
	} else {
		ix, iy, iz = roundFloatToInt(v.X), roundFloatToInt(v.Y), roundFloatToInt(v.Z)
	}
	bc := bitsNeeded(ix)
	if n := bitsNeeded(iy); n > bc {
		bc = n
	}
	if n := bitsNeeded(iz); n > bc {
		bc = n
	}
	header := uint64(bc)
	if useScaled {
		header |= 1 << 6
	}
	w.Write(7, header)
	mask := uint64(1)<<uint(bc) - 1
	w.Write(bc, uint64(ix)&mask)
	w.Write(bc, uint64(iy)&mask)
	w.Write(bc, uint64(iz)&mask)
}

// ReadPackedVector is the inverse of Vector.WritePacked.
func ReadPackedVector(r *bitio.Reader, scale float64) (Vector, error) {
	header, err := r.Read(7)
	if err != nil {
		return Vector{}, err
	}
	bc := int(header & 0x3F)
	extra := header>>6 != 0
	if bc == 0 {
		if extra {
			xb, err := r.Read(64)
			if err != nil {
				return Vector{}, err
			}
			yb, err := r.Read(64)
			if err != nil {
				return Vector{}, err
			}
			zb, err := r.Read(64)
			if err != nil {
				return Vector{}, err
			}
			return Vector{math.Float64frombits(xb), math.Float64frombits(yb), math.Float64frombits(zb)}, nil
		}
		xb, err := r.Read(32)
		if err != nil {
			return Vector{}, err
		}
		yb, err := r.Read(32)
		if err != nil {
			return Vector{}, err
		}
		zb, err := r.Read(32)
		if err != nil {
			return Vector{}, err
		}
		return Vector{
			float64(math.Float32frombits(uint32(xb))),
			float64(math.Float32frombits(uint32(yb))),
			float64(math.Float32frombits(uint32(zb))),
		}, nil
	}
	readAxis := func() (float64, error) {
		raw, err := r.Read(bc)
		if err != nil {
			return 0, err
		}
		signBit := int64(1) << uint(bc-1)
		val := (int64(raw) ^ signBit) - signBit
		if extra {
			return float64(val) / scale, nil
		}
		return float64(val), nil
	}
	x, err := readAxis()
	if err != nil {
		return Vector{}, err
	}
	y, err := readAxis()
	if err != nil {
		return Vector{}, err
	}
	z, err := readAxis()
	if err != nil {
		return Vector{}, err
	}
	return Vector{x, y, z}, nil
}

// Rotator is a three-axis orientation in degrees.
type Rotator struct {
	Pitch, Yaw, Roll float64
}

func roundToInt(v float64) int64 {
	v2 := v + 0.5
	i := int64(v2)
	if float64(i) > v2 {
		return i - 1
	}
	return i
}

func compressAxisToShort(angle float64) uint16 {
	return uint16(roundToInt(angle * 65536 / 360))
}

func decompressAxisFromShort(v uint16) float64 {
	return float64(v) * 360 / 65536
}

// ShouldSerialize reports whether any axis is outside [-0.1, 0.1].
func (r Rotator) ShouldSerialize() bool {
	const eps = 0.1
	inRange := func(v float64) bool { return v >= -eps && v <= eps }
	return !(inRange(r.Pitch) && inRange(r.Yaw) && inRange(r.Roll))
}

// Write encodes r as a presence bit plus a 16-bit compressed value for
// each nonzero axis, in pitch/yaw/roll order.
func (r Rotator) Write(w *bitio.Writer) {
	writeAxis := func(v float64) {
		q := compressAxisToShort(v)
		if q != 0 {
			w.WriteBit(true)
			w.Write(16, uint64(q))
		} else {
			w.WriteBit(false)
		}
	}
	writeAxis(r.Pitch)
	writeAxis(r.Yaw)
	writeAxis(r.Roll)
}

// ReadRotator is the inverse of Rotator.Write.
func ReadRotator(r *bitio.Reader) (Rotator, error) {
	readAxis := func() (float64, error) {
		present, err := r.ReadBit()
		if err != nil || !present {
			return 0, err
		}
		v, err := r.Read(16)
		if err != nil {
			return 0, err
		}
		return decompressAxisFromShort(uint16(v)), nil
	}
	pitch, err := readAxis()
	if err != nil {
		return Rotator{}, err
	}
	yaw, err := readAxis()
	if err != nil {
		return Rotator{}, err
	}
	roll, err := readAxis()
	if err != nil {
		return Rotator{}, err
	}
	return Rotator{pitch, yaw, roll}, nil
}
