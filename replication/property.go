package replication

import (
	"math"
	"math/bits"

	"github.com/samp-server-go/netcore/bitio"
	"github.com/samp-server-go/netcore/netguid"
)

// LayoutProperty is one handle-indexed field emitted by
// SerializeLayoutProperties.
type LayoutProperty interface {
	Handle() uint32
	IsChanged() bool
	WriteValue(w *bitio.Writer)
}

// WriteLayoutProperties emits each changed (or, when full, every) property
// as packed-int handle + value, terminated by a packed-int zero handle.
func WriteLayoutProperties(w *bitio.Writer, props []LayoutProperty, full bool) {
	for _, p := range props {
		if !full && !p.IsChanged() {
			continue
		}
		w.WritePackedInt(p.Handle())
		p.WriteValue(w)
	}
	w.WritePackedInt(0)
}

// Property is the generic change-tracking wrapper shared by every
// primitive replicated-property kind.
type Property[T comparable] struct {
	handle  uint32
	value   T
	changed bool
}

// NewProperty returns a Property with the given layout handle and initial
// value (not marked changed).
func NewProperty[T comparable](handle uint32, initial T) Property[T] {
	return Property[T]{handle: handle, value: initial}
}

func (p *Property[T]) Handle() uint32    { return p.handle }
func (p *Property[T]) Value() T          { return p.value }
func (p *Property[T]) IsChanged() bool   { return p.changed }
func (p *Property[T]) AcknowledgeChanges() { p.changed = false }

// SetValue updates the value, flipping changed iff it actually differs.
func (p *Property[T]) SetValue(v T) {
	if v != p.value {
		p.value = v
		p.changed = true
	}
}

type integer interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64
}

// IntProperty wraps a fixed-width integer property. Width is the wire
// bit count (8/16/32/64).
type IntProperty[T integer] struct {
	Property[T]
	Width int
}

func NewIntProperty[T integer](handle uint32, width int, initial T) IntProperty[T] {
	return IntProperty[T]{Property: NewProperty(handle, initial), Width: width}
}

func (p *IntProperty[T]) WriteValue(w *bitio.Writer) {
	w.Write(p.Width, uint64(p.value))
}

// BoolProperty wraps a single-bit flag.
type BoolProperty struct {
	Property[bool]
}

func NewBoolProperty(handle uint32, initial bool) BoolProperty {
	return BoolProperty{Property: NewProperty(handle, initial)}
}

func (p *BoolProperty) WriteValue(w *bitio.Writer) {
	w.WriteBit(p.value)
}

// FloatProperty wraps an IEEE-754 single-precision value.
type FloatProperty struct {
	Property[float32]
}

func NewFloatProperty(handle uint32, initial float32) FloatProperty {
	return FloatProperty{Property: NewProperty(handle, initial)}
}

func (p *FloatProperty) WriteValue(w *bitio.Writer) {
	w.Write(32, uint64(math.Float32bits(p.value)))
}

// DoubleProperty wraps an IEEE-754 double-precision value.
type DoubleProperty struct {
	Property[float64]
}

func NewDoubleProperty(handle uint32, initial float64) DoubleProperty {
	return DoubleProperty{Property: NewProperty(handle, initial)}
}

func (p *DoubleProperty) WriteValue(w *bitio.Writer) {
	w.Write(64, math.Float64bits(p.value))
}

// StringProperty wraps a length-prefixed string.
type StringProperty struct {
	Property[string]
}

func NewStringProperty(handle uint32, initial string) StringProperty {
	return StringProperty{Property: NewProperty(handle, initial)}
}

func (p *StringProperty) WriteValue(w *bitio.Writer) {
	w.WriteString(p.value)
}

// NameProperty wraps a hardcoded-or-custom engine Name.
type NameProperty struct {
	Property[netguid.Name]
}

func NewNameProperty(handle uint32, initial netguid.Name) NameProperty {
	return NameProperty{Property: NewProperty(handle, initial)}
}

func (p *NameProperty) WriteValue(w *bitio.Writer) {
	p.value.Write(w)
}

// GUIDProperty wraps a GUID-valued object reference.
type GUIDProperty struct {
	Property[netguid.GUID]
}

func NewGUIDProperty(handle uint32, initial netguid.GUID) GUIDProperty {
	return GUIDProperty{Property: NewProperty(handle, initial)}
}

func (p *GUIDProperty) WriteValue(w *bitio.Writer) {
	p.value.WritePackedInt(w)
}

// VectorProperty wraps a position/offset value; Scale of 0 writes the
// full (unquantized) representation, matching the original's zero-scale
// sentinel.
type VectorProperty struct {
	Property[netguid.Vector]
	Scale float64
}

func NewVectorProperty(handle uint32, scale float64, initial netguid.Vector) VectorProperty {
	return VectorProperty{Property: NewProperty(handle, initial), Scale: scale}
}

func (p *VectorProperty) WriteValue(w *bitio.Writer) {
	if p.Scale == 0 {
		w.Write(64, math.Float64bits(p.value.X))
		w.Write(64, math.Float64bits(p.value.Y))
		w.Write(64, math.Float64bits(p.value.Z))
		return
	}
	p.value.WritePacked(w, p.Scale)
}

// EnumProperty wraps a bounded discriminant, serialized in
// ceil(log2(maxDiscriminant+1)) unsigned bits.
type EnumProperty struct {
	Property[uint32]
	MaxDiscriminant uint32
}

func NewEnumProperty(handle uint32, maxDiscriminant uint32, initial uint32) EnumProperty {
	return EnumProperty{Property: NewProperty(handle, initial), MaxDiscriminant: maxDiscriminant}
}

func enumBitWidth(maxDiscriminant uint32) int {
	if maxDiscriminant == 0 {
		return 1
	}
	return bits.Len32(maxDiscriminant)
}

func (p *EnumProperty) WriteValue(w *bitio.Writer) {
	w.Write(enumBitWidth(p.MaxDiscriminant), uint64(p.value))
}

// ArrayProperty wraps a fixed-shape slice of sub-properties, writing a
// packed-int element count followed by each element's value in order.
// Slices aren't comparable, so this kind tracks changed state directly
// rather than embedding Property[T].
type ArrayProperty[T any] struct {
	handle       uint32
	value        []T
	changed      bool
	WriteElement func(w *bitio.Writer, v T)
}

func NewArrayProperty[T any](handle uint32, writeElement func(w *bitio.Writer, v T), initial []T) ArrayProperty[T] {
	return ArrayProperty[T]{handle: handle, value: append([]T(nil), initial...), WriteElement: writeElement}
}

func (p *ArrayProperty[T]) Handle() uint32        { return p.handle }
func (p *ArrayProperty[T]) Value() []T            { return p.value }
func (p *ArrayProperty[T]) IsChanged() bool       { return p.changed }
func (p *ArrayProperty[T]) AcknowledgeChanges()   { p.changed = false }

// SetValue replaces the whole array and marks it changed.
func (p *ArrayProperty[T]) SetValue(v []T) {
	p.value = v
	p.changed = true
}

func (p *ArrayProperty[T]) WriteValue(w *bitio.Writer) {
	w.WritePackedInt(uint32(len(p.value)))
	for _, v := range p.value {
		p.WriteElement(w, v)
	}
}
