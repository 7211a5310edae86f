// Package handshake implements the stateless cookie handshake used to
// open a connection before any per-session state is allocated: a
// Challenge/Response exchange authenticated with an HMAC-SHA1 cookie
// derived from the client's address and a process-lifetime secret.
package handshake

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/binary"
	"math"

	"github.com/samp-server-go/netcore/bitio"
)

// Exact constants pinned from the original engine's handshake profile.
const (
	MinVersion           = 3
	LocalNetworkVersion  = 2566650454
	LocalNetworkFeatures = 0
	cookieSize           = sha1.Size // 20 bytes
)

// PacketType identifies a handshake datagram.
type PacketType uint8

const (
	InitialPacket    PacketType = 0
	Challenge        PacketType = 1
	Response         PacketType = 2
	Ack              PacketType = 3
	RestartHandshake PacketType = 4
	RestartResponse  PacketType = 5
	VersionUpgrade   PacketType = 6
)

// Header is the fixed handshake header following the datagram's 6-bit
// session/client/is_handshake prefix.
type Header struct {
	RestartHandshake      bool
	MinVersion            uint8
	CurVersion            uint8
	PacketType            PacketType
	SentPacketCount       uint8
	LocalNetworkVersion   uint32
	LocalNetworkFeatures  uint16
}

// Write emits the header in wire order.
func (h Header) Write(w *bitio.Writer) {
	w.WriteBit(h.RestartHandshake)
	w.Write(8, uint64(h.MinVersion))
	w.Write(8, uint64(h.CurVersion))
	w.Write(8, uint64(h.PacketType))
	w.Write(8, uint64(h.SentPacketCount))
	w.Write(32, uint64(h.LocalNetworkVersion))
	w.Write(16, uint64(h.LocalNetworkFeatures))
}

// ReadHeader is the inverse of Header.Write.
func ReadHeader(r *bitio.Reader) (Header, error) {
	var h Header
	restart, err := r.ReadBit()
	if err != nil {
		return h, err
	}
	h.RestartHandshake = restart
	minVer, err := r.Read(8)
	if err != nil {
		return h, err
	}
	h.MinVersion = uint8(minVer)
	curVer, err := r.Read(8)
	if err != nil {
		return h, err
	}
	h.CurVersion = uint8(curVer)
	typ, err := r.Read(8)
	if err != nil {
		return h, err
	}
	h.PacketType = PacketType(typ)
	count, err := r.Read(8)
	if err != nil {
		return h, err
	}
	h.SentPacketCount = uint8(count)
	ver, err := r.Read(32)
	if err != nil {
		return h, err
	}
	h.LocalNetworkVersion = uint32(ver)
	features, err := r.Read(16)
	if err != nil {
		return h, err
	}
	h.LocalNetworkFeatures = uint16(features)
	return h, nil
}

// Secret is the process-lifetime HMAC key behind every handshake cookie.
// Rotation is not implemented: the original source only hints at a
// 15-second rotation in a comment, left as an open question and decided
// against for this rendition (see DESIGN.md).
type Secret [64]byte

// NewSecret generates a fresh secret from the system CSPRNG.
func NewSecret() (*Secret, error) {
	var s Secret
	if _, err := rand.Read(s[:]); err != nil {
		return nil, err
	}
	return &s, nil
}

func cookieMessage(timestamp uint64, ip [4]byte, port uint16) []byte {
	msg := make([]byte, 14)
	binary.LittleEndian.PutUint64(msg[0:8], timestamp)
	copy(msg[8:12], ip[:])
	binary.LittleEndian.PutUint16(msg[12:14], port)
	return msg
}

// Cookie computes HMAC-SHA1(secret, timestamp_le || ipv4_octets || port_le).
func (s *Secret) Cookie(timestamp uint64, ip [4]byte, port uint16) []byte {
	mac := hmac.New(sha1.New, s[:])
	mac.Write(cookieMessage(timestamp, ip, port))
	return mac.Sum(nil)
}

// VerifyCookie reports whether cookie matches the one this secret would
// produce for the given timestamp/address.
func (s *Secret) VerifyCookie(cookie []byte, timestamp uint64, ip [4]byte, port uint16) bool {
	if len(cookie) != cookieSize {
		return false
	}
	return hmac.Equal(cookie, s.Cookie(timestamp, ip, port))
}

// randomTimestamp draws a 64-bit value from the CSPRNG; it is never
// interpreted as wall-clock time, only echoed back by the client.
func randomTimestamp() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ChallengeBody is the payload of a Challenge reply: the timestamp the
// client must echo back and the cookie computed over it.
type ChallengeBody struct {
	Timestamp uint64
	Cookie    []byte
}

// BuildChallenge draws a random timestamp, computes the matching cookie
// for (ip, port), and returns both so the caller can remember the
// timestamp is unnecessary — the client echoes it in Response.
func BuildChallenge(secret *Secret, ip [4]byte, port uint16) (ChallengeBody, error) {
	ts, err := randomTimestamp()
	if err != nil {
		return ChallengeBody{}, err
	}
	return ChallengeBody{Timestamp: ts, Cookie: secret.Cookie(ts, ip, port)}, nil
}

// EncodeChallengeBody writes the Challenge response body: secretIDBit (0),
// timestamp, cookie, 16 random bytes, sentinel.
func EncodeChallengeBody(w *bitio.Writer, body ChallengeBody) error {
	w.WriteBit(false)
	w.Write(64, body.Timestamp)
	for _, b := range body.Cookie {
		w.Write(8, uint64(b))
	}
	pad, err := randomBytes(16)
	if err != nil {
		return err
	}
	for _, b := range pad {
		w.Write(8, uint64(b))
	}
	w.Terminate()
	return nil
}

// ResponseBody is the client-echoed timestamp/cookie pair carried by a
// Response packet.
type ResponseBody struct {
	Timestamp uint64
	Cookie    []byte
}

// DecodeResponseBody reads inSecretID (ignored), inTimestamp, inCookie.
func DecodeResponseBody(r *bitio.Reader) (ResponseBody, error) {
	var body ResponseBody
	if _, err := r.ReadBit(); err != nil {
		return body, err
	}
	ts, err := r.Read(64)
	if err != nil {
		return body, err
	}
	body.Timestamp = ts
	cookie := make([]byte, cookieSize)
	if err := r.ReadBytes(cookie); err != nil {
		return body, err
	}
	body.Cookie = cookie
	return body, nil
}

// VerifyResponse recomputes the cookie for (ip, port, response.Timestamp)
// and reports whether it matches response.Cookie.
func VerifyResponse(secret *Secret, response ResponseBody, ip [4]byte, port uint16) bool {
	return secret.VerifyCookie(response.Cookie, response.Timestamp, ip, port)
}

// EncodeAckBody writes the Ack response body: always-true bit,
// timestamp=-1.0 as its raw float64 bit pattern, the verified cookie
// repeated back, 16 random bytes, sentinel.
func EncodeAckBody(w *bitio.Writer, cookie []byte) error {
	w.WriteBit(true)
	w.Write(64, math.Float64bits(-1.0))
	for _, b := range cookie {
		w.Write(8, uint64(b))
	}
	pad, err := randomBytes(16)
	if err != nil {
		return err
	}
	for _, b := range pad {
		w.Write(8, uint64(b))
	}
	w.Terminate()
	return nil
}

// InitialSequences derives the server/client initial sequence numbers
// from the first two little-endian 16-bit halves of a verified cookie,
// each masked to 14 bits.
func InitialSequences(cookie []byte) (serverOutSeq, clientInSeq uint16) {
	serverOutSeq = binary.LittleEndian.Uint16(cookie[0:2]) & 0x3FFF
	clientInSeq = binary.LittleEndian.Uint16(cookie[2:4]) & 0x3FFF
	return
}
