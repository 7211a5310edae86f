package netguid

import (
	"errors"

	"github.com/samp-server-go/netcore/bitio"
)

// ErrRepLayoutExportUnsupported is returned when decoding an export group
// that carries the (unsupported in this profile) rep-layout export bit.
var ErrRepLayoutExportUnsupported = errors.New("netguid: rep-layout export not supported")

const (
	exportFlagHasPath             = 0x1
	exportFlagNoLoad              = 0x2
	exportFlagHasNetworkChecksum   = 0x4
)

// FieldExport is one entry of an export group: a GUID the client needs to
// resolve, optionally with the path information required to load it.
type FieldExport struct {
	GUID GUID

	// ShouldEncode marks whether this entry costs wire bits in its own
	// group, or merely exists so outer_guid chains can be resolved.
	ShouldEncode bool

	HasPath            bool
	NoLoad             bool
	HasNetworkChecksum bool

	OuterGUID       GUID
	Outer           *FieldExport
	PathName        string
	NetworkChecksum uint32
}

func (f *FieldExport) flags() uint64 {
	var flags uint64
	if f.HasPath {
		flags |= exportFlagHasPath
	}
	if f.NoLoad {
		flags |= exportFlagNoLoad
	}
	if f.HasNetworkChecksum {
		flags |= exportFlagHasNetworkChecksum
	}
	return flags
}

func (f *FieldExport) writePayload(w *bitio.Writer) {
	f.GUID.WritePackedInt(w)
	w.Write(8, f.flags())
	if !f.HasPath {
		return
	}
	w.WritePackedInt(uint32(f.OuterGUID))
	w.WriteBit(f.Outer != nil)
	if f.Outer != nil {
		f.Outer.writePayload(w)
	}
	w.WriteString(f.PathName)
	if f.HasNetworkChecksum {
		w.Write(32, uint64(f.NetworkChecksum))
	}
}

func readFieldExportPayload(r *bitio.Reader) (*FieldExport, error) {
	guid, err := ReadGUID(r)
	if err != nil {
		return nil, err
	}
	flags, err := r.Read(8)
	if err != nil {
		return nil, err
	}
	f := &FieldExport{
		GUID:               guid,
		ShouldEncode:       true,
		HasPath:            flags&exportFlagHasPath != 0,
		NoLoad:             flags&exportFlagNoLoad != 0,
		HasNetworkChecksum: flags&exportFlagHasNetworkChecksum != 0,
	}
	if !f.HasPath {
		return f, nil
	}
	outerGUID, err := r.ReadPackedInt()
	if err != nil {
		return nil, err
	}
	f.OuterGUID = GUID(outerGUID)
	hasOuter, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	if hasOuter {
		outer, err := readFieldExportPayload(r)
		if err != nil {
			return nil, err
		}
		f.Outer = outer
	}
	path, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	f.PathName = path
	if f.HasNetworkChecksum {
		checksum, err := r.Read(32)
		if err != nil {
			return nil, err
		}
		f.NetworkChecksum = uint32(checksum)
	}
	return f, nil
}

// FieldExportGroup is a batch of exports sent ahead of the data bunches
// that reference them.
type FieldExportGroup struct {
	Fields []*FieldExport
}

// Encode writes the group: a has_rep_layout_export bit (always false in
// this profile), a 32-bit count of should-encode fields, then each
// should-encode field's payload.
func (g *FieldExportGroup) Encode(w *bitio.Writer) {
	w.WriteBit(false)
	count := uint32(0)
	for _, f := range g.Fields {
		if f.ShouldEncode {
			count++
		}
	}
	w.Write(32, uint64(count))
	for _, f := range g.Fields {
		if f.ShouldEncode {
			f.writePayload(w)
		}
	}
}

// DecodeFieldExportGroup is the inverse of FieldExportGroup.Encode.
func DecodeFieldExportGroup(r *bitio.Reader) (*FieldExportGroup, error) {
	hasRepLayoutExport, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	if hasRepLayoutExport {
		return nil, ErrRepLayoutExportUnsupported
	}
	count, err := r.Read(32)
	if err != nil {
		return nil, err
	}
	g := &FieldExportGroup{}
	for i := uint64(0); i < count; i++ {
		f, err := readFieldExportPayload(r)
		if err != nil {
			return nil, err
		}
		g.Fields = append(g.Fields, f)
	}
	return g, nil
}

func (f *FieldExport) sizeInBits() int {
	if !f.ShouldEncode {
		return 0
	}
	bits := bitio.PackedIntSizeInBits(uint32(f.GUID)) + 8
	if !f.HasPath {
		return bits
	}
	bits += bitio.PackedIntSizeInBits(uint32(f.OuterGUID)) + 1
	if f.Outer != nil {
		bits += f.Outer.sizeInBits()
	}
	bits += 32 + (len(f.PathName)+1)*8
	if f.HasNetworkChecksum {
		bits += 32
	}
	return bits
}

// EncodedSizeInBits reports the group's wire size, used to decide
// splitting.
func (g *FieldExportGroup) EncodedSizeInBits() int {
	total := 1 + 32
	for _, f := range g.Fields {
		total += f.sizeInBits()
	}
	return total
}

// SplitToFit removes should-encode exports from g (in arbitrary order)
// into a new group until the new group reaches maxBits or g's remaining
// size drops below maxBits. Non-encoded (outer-reference) entries are
// copied into the split unconditionally, since they cost no payload bits
// but may be needed to resolve outer_guid chains.
func (g *FieldExportGroup) SplitToFit(maxBits int) *FieldExportGroup {
	split := &FieldExportGroup{}
	for _, f := range g.Fields {
		if !f.ShouldEncode {
			split.Fields = append(split.Fields, f)
		}
	}
	var remaining []*FieldExport
	for i, f := range g.Fields {
		if !f.ShouldEncode {
			continue
		}
		if split.EncodedSizeInBits() >= maxBits || g.remainingSize(g.Fields[i:]) < maxBits {
			remaining = append(remaining, g.Fields[i:]...)
			break
		}
		split.Fields = append(split.Fields, f)
	}
	g.Fields = dedupeExports(remaining)
	return split
}

func (g *FieldExportGroup) remainingSize(fields []*FieldExport) int {
	total := 1 + 32
	for _, f := range fields {
		total += f.sizeInBits()
	}
	return total
}

func dedupeExports(fields []*FieldExport) []*FieldExport {
	seen := make(map[GUID]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if seen[f.GUID] {
			continue
		}
		seen[f.GUID] = true
		out = append(out, f)
	}
	return out
}
