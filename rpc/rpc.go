// Package rpc provides the argument codec shared by every generated
// client RPC encoder and server RPC handler. The rep-index dispatch
// tables themselves live on the concrete
// world.ObjectLayout implementations, since RpcContext needs *world.World
// and a standalone rpc package housing it would need world.World back
// (see the rpc section of DESIGN.md).
package rpc

import (
	"math"

	"github.com/samp-server-go/netcore/bitio"
	"github.com/samp-server-go/netcore/netguid"
)

// Argument is one RPC parameter, written in declaration order.
type Argument interface {
	WriteTo(w *bitio.Writer)
}

// Uint32Arg is a 32-bit unsigned integer argument.
type Uint32Arg uint32

func (a Uint32Arg) WriteTo(w *bitio.Writer) { w.Write(32, uint64(uint32(a))) }

// Int32Arg is a 32-bit signed integer argument.
type Int32Arg int32

func (a Int32Arg) WriteTo(w *bitio.Writer) { w.Write(32, uint64(uint32(a))) }

// Float32Arg is an IEEE-754 single-precision float argument.
type Float32Arg float32

func (a Float32Arg) WriteTo(w *bitio.Writer) { w.Write(32, uint64(math.Float32bits(float32(a)))) }

// BoolArg is a single-bit boolean argument.
type BoolArg bool

func (a BoolArg) WriteTo(w *bitio.Writer) { w.WriteBit(bool(a)) }

// StringArg is a length-prefixed, NUL-terminated string argument.
type StringArg string

func (a StringArg) WriteTo(w *bitio.Writer) { w.WriteString(string(a)) }

// GUIDArg is a packed-int GUID argument.
type GUIDArg netguid.GUID

func (a GUIDArg) WriteTo(w *bitio.Writer) { w.WritePackedInt(uint32(a)) }

// EncodePayload frames args per §4.9: a leading arguments-present `1` bit
// when len(args) >= 1 (omitted for zero-argument RPCs), each argument in
// declaration order, a sentinel `1` bit, byte-aligned.
func EncodePayload(args ...Argument) []byte {
	w := bitio.NewWriter()
	if len(args) > 0 {
		w.WriteBit(true)
		for _, a := range args {
			a.WriteTo(w)
		}
	}
	w.Terminate()
	return w.Bytes()
}

// Build returns (rep_index, payload) for a queued RPC, the shape a
// generated client RPC encoder hands back to the caller for appending to
// the target object's outbound RPC state.
func Build(repIndex uint32, args ...Argument) (uint32, []byte) {
	return repIndex, EncodePayload(args...)
}

// ReadArgumentsPresent consumes the leading arguments-present flag for a
// handler that declares at least one argument. Handlers with zero
// declared arguments must not call this — the flag is absent on the wire
// for them.
func ReadArgumentsPresent(r *bitio.Reader) (bool, error) {
	return r.ReadBit()
}

// ReadUint32Arg reads one Uint32Arg.
func ReadUint32Arg(r *bitio.Reader) (uint32, error) {
	v, err := r.Read(32)
	return uint32(v), err
}

// ReadInt32Arg reads one Int32Arg.
func ReadInt32Arg(r *bitio.Reader) (int32, error) {
	v, err := r.Read(32)
	return int32(uint32(v)), err
}

// ReadFloat32Arg reads one Float32Arg.
func ReadFloat32Arg(r *bitio.Reader) (float32, error) {
	v, err := r.Read(32)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}

// ReadBoolArg reads one BoolArg.
func ReadBoolArg(r *bitio.Reader) (bool, error) {
	return r.ReadBit()
}

// ReadStringArg reads one StringArg.
func ReadStringArg(r *bitio.Reader) (string, error) {
	return r.ReadString()
}

// ReadGUIDArg reads one GUIDArg.
func ReadGUIDArg(r *bitio.Reader) (netguid.GUID, error) {
	v, err := r.ReadPackedInt()
	return netguid.GUID(v), err
}
