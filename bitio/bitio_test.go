package bitio

import (
	"bytes"
	"testing"
)

func TestWritePackedInt(t *testing.T) {
	cases := []struct {
		value uint32
		want  []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{0xFFFFFFFF, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
	}
	for _, c := range cases {
		w := NewWriter()
		w.WritePackedInt(c.value)
		if !bytes.Equal(w.Bytes(), c.want) {
			t.Errorf("WritePackedInt(%d) = % x, want % x", c.value, w.Bytes(), c.want)
		}
	}
}

func TestReadPackedIntRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 126, 127, 128, 16383, 16384, 0x12345678, 0xFFFFFFFF}
	for _, v := range values {
		w := NewWriter()
		w.WritePackedInt(v)
		r := NewReader(w.Bytes())
		got, err := r.ReadPackedInt()
		if err != nil {
			t.Fatalf("ReadPackedInt(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d got %d", v, got)
		}
	}
}

func TestWriteStringASCII(t *testing.T) {
	w := NewWriter()
	w.WriteString("Hello")
	want := []byte{0x06, 0x00, 0x00, 0x00, 'H', 'e', 'l', 'l', 'o', 0x00}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("WriteString = % x, want % x", w.Bytes(), want)
	}
}

func TestReadStringRoundTrip(t *testing.T) {
	strs := []string{"", "a", "Hello, world!"}
	for _, s := range strs {
		w := NewWriter()
		w.WriteString(s)
		r := NewReader(w.Bytes())
		got, err := r.ReadString()
		if err != nil {
			t.Fatalf("ReadString(%q): %v", s, err)
		}
		if got != s {
			t.Errorf("round trip %q got %q", s, got)
		}
	}
}

func TestWriteReadGeneric(t *testing.T) {
	w := NewWriter()
	w.Write(3, 5)
	w.Write(10, 777)
	w.Write(1, 1)
	w.Write(32, 0xDEADBEEF)
	r := NewReader(w.Bytes())
	if v, _ := r.Read(3); v != 5 {
		t.Errorf("Read(3) = %d, want 5", v)
	}
	if v, _ := r.Read(10); v != 777 {
		t.Errorf("Read(10) = %d, want 777", v)
	}
	if v, _ := r.Read(1); v != 1 {
		t.Errorf("Read(1) = %d, want 1", v)
	}
	if v, _ := r.Read(32); v != 0xDEADBEEF {
		t.Errorf("Read(32) = %#x, want 0xDEADBEEF", v)
	}
}

func TestTerminateAndBitsFromTerminatedStream(t *testing.T) {
	w := NewWriter()
	w.Write(3, 5)
	w.Write(10, 777)
	dataBits := w.BitLength()
	w.Terminate()

	got, err := BitsFromTerminatedStream(w.Bytes())
	if err != nil {
		t.Fatalf("BitsFromTerminatedStream: %v", err)
	}
	if uint64(got) != dataBits {
		t.Errorf("recovered %d bits, want %d", got, dataBits)
	}
}

func TestBitsFromTerminatedStreamErrors(t *testing.T) {
	if _, err := BitsFromTerminatedStream(nil); err != ErrUnterminatedBits {
		t.Errorf("empty stream: got %v, want ErrUnterminatedBits", err)
	}
	if _, err := BitsFromTerminatedStream([]byte{0x01, 0x00}); err != ErrUnterminatedBits {
		t.Errorf("trailing zero byte: got %v, want ErrUnterminatedBits", err)
	}
}

func TestWriteCompressedIntRoundTrip(t *testing.T) {
	const maxValue = 1000
	for _, v := range []uint32{0, 1, 42, 500, 999} {
		w := NewWriter()
		w.WriteCompressedInt(v, maxValue)
		r := NewReader(w.Bytes())
		got, err := r.ReadCompressedInt(maxValue)
		if err != nil {
			t.Fatalf("ReadCompressedInt: %v", err)
		}
		if got != v {
			t.Errorf("compressed int round trip %d got %d", v, got)
		}
	}
}

func TestWriteReadBitsBlit(t *testing.T) {
	w := NewWriter()
	w.Write(4, 0xA) // misalign the stream first
	raw := []byte{0xAB, 0xCD, 0x05}
	w.WriteBits(raw, 20)
	r := NewReader(w.Bytes())
	if v, _ := r.Read(4); v != 0xA {
		t.Fatalf("prefix mismatch")
	}
	got, err := r.ReadBits(20)
	if err != nil {
		t.Fatalf("ReadBits: %v", err)
	}
	want := []byte{0xAB, 0xCD, 0x05}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadBits = % x, want % x", got, want)
	}
}
