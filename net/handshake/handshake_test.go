package handshake

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"testing"

	"github.com/samp-server-go/netcore/bitio"
)

// TestCookieMatchesFixedVector reproduces scenario S3: a fixed secret,
// timestamp and address must produce the HMAC-SHA1 cookie computed
// directly over the pinned 14-byte message layout
// (timestamp_le || ipv4_octets || port_le).
func TestCookieMatchesFixedVector(t *testing.T) {
	var secret Secret
	for i := range secret {
		secret[i] = 0xAB
	}
	timestamp := uint64(0x4076800000000000)
	ip := [4]byte{127, 0, 0, 1}
	port := uint16(12345)

	msg := cookieMessage(timestamp, ip, port)
	if len(msg) != 14 {
		t.Fatalf("cookie message length = %d, want 14", len(msg))
	}
	if !bytes.Equal(msg[8:12], ip[:]) {
		t.Fatalf("ip octets mismatch: %x", msg[8:12])
	}

	mac := hmac.New(sha1.New, secret[:])
	mac.Write(msg)
	want := mac.Sum(nil)

	got := secret.Cookie(timestamp, ip, port)
	if !bytes.Equal(got, want) {
		t.Fatalf("cookie = %x, want %x", got, want)
	}
	if len(got) != cookieSize {
		t.Fatalf("cookie length = %d, want %d", len(got), cookieSize)
	}
	if !secret.VerifyCookie(got, timestamp, ip, port) {
		t.Fatalf("cookie fails self-verification")
	}
	other := append([]byte{}, got...)
	other[0] ^= 0xFF
	if secret.VerifyCookie(other, timestamp, ip, port) {
		t.Fatalf("corrupted cookie incorrectly verified")
	}
}

func TestChallengeResponseAckRoundTrip(t *testing.T) {
	secret, err := NewSecret()
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	ip := [4]byte{10, 0, 0, 1}
	port := uint16(7777)

	body, err := BuildChallenge(secret, ip, port)
	if err != nil {
		t.Fatalf("BuildChallenge: %v", err)
	}

	w := bitio.NewWriter()
	if err := EncodeChallengeBody(w, body); err != nil {
		t.Fatalf("EncodeChallengeBody: %v", err)
	}

	r := bitio.NewReader(w.Bytes())
	secretIDBit, err := r.ReadBit()
	if err != nil || secretIDBit {
		t.Fatalf("expected secretIDBit=false, err=%v", err)
	}
	ts, err := r.Read(64)
	if err != nil || ts != body.Timestamp {
		t.Fatalf("timestamp round trip: got %d want %d err=%v", ts, body.Timestamp, err)
	}
	cookie := make([]byte, cookieSize)
	if err := r.ReadBytes(cookie); err != nil {
		t.Fatalf("read cookie: %v", err)
	}
	if !bytes.Equal(cookie, body.Cookie) {
		t.Fatalf("cookie round trip mismatch")
	}

	// Client echoes timestamp + cookie back in a Response.
	rw := bitio.NewWriter()
	rw.WriteBit(false)
	rw.Write(64, body.Timestamp)
	for _, b := range body.Cookie {
		rw.Write(8, uint64(b))
	}
	resp, err := DecodeResponseBody(bitio.NewReader(rw.Bytes()))
	if err != nil {
		t.Fatalf("DecodeResponseBody: %v", err)
	}
	if !VerifyResponse(secret, resp, ip, port) {
		t.Fatalf("expected matching response to verify")
	}
	if VerifyResponse(secret, resp, [4]byte{10, 0, 0, 2}, port) {
		t.Fatalf("expected response for a different address to fail verification")
	}

	aw := bitio.NewWriter()
	if err := EncodeAckBody(aw, resp.Cookie); err != nil {
		t.Fatalf("EncodeAckBody: %v", err)
	}
	ar := bitio.NewReader(aw.Bytes())
	alwaysTrue, err := ar.ReadBit()
	if err != nil || !alwaysTrue {
		t.Fatalf("expected Ack leading bit=true, err=%v", err)
	}
	tsField, err := ar.Read(64)
	if err != nil {
		t.Fatalf("read Ack timestamp: %v", err)
	}
	if tsField != negativeOneBits() {
		t.Fatalf("expected Ack timestamp = -1.0 bit pattern, got %x", tsField)
	}
}

func TestInitialSequencesFromCookie(t *testing.T) {
	cookie := []byte{0x34, 0x12, 0x78, 0x56, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	serverOutSeq, clientInSeq := InitialSequences(cookie)
	if serverOutSeq != 0x1234&0x3FFF {
		t.Errorf("serverOutSeq = %#x, want %#x", serverOutSeq, 0x1234&0x3FFF)
	}
	if clientInSeq != 0x5678&0x3FFF {
		t.Errorf("clientInSeq = %#x, want %#x", clientInSeq, 0x5678&0x3FFF)
	}
}

func negativeOneBits() uint64 {
	return 0xBFF0000000000000
}
