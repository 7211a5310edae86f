package channel

import (
	"testing"

	"github.com/samp-server-go/netcore/bitio"
	"github.com/samp-server-go/netcore/net"
	"github.com/stretchr/testify/require"
)

func TestReliableOrderGateDropsAtOrBelow(t *testing.T) {
	c := New(1, NameActorChannel, 50, 0)
	c.inReliable = 50

	_, accepted := c.ReceivedRawBunch(&net.Bunch{Reliable: true, ChSequence: 50})
	require.False(t, accepted, "ch_sequence==in_reliable should be dropped")

	got, accepted := c.ReceivedRawBunch(&net.Bunch{Reliable: true, ChSequence: 51})
	require.True(t, accepted)
	require.NotNil(t, got)
	require.EqualValues(t, 51, c.inReliable)
}

func TestReliableOrderGateWraparoundZero(t *testing.T) {
	c := New(1, NameActorChannel, 50, 0)
	got, accepted := c.ReceivedRawBunch(&net.Bunch{Reliable: true, ChSequence: 0})
	require.True(t, accepted)
	require.NotNil(t, got)
	require.EqualValues(t, 50, c.inReliable, "in_reliable should be unchanged across the wraparound")
}

func TestPartialReassembly(t *testing.T) {
	c := New(1, NameActorChannel, 0, 0)

	p1 := make([]byte, net.MaxDataBits/8)
	p2 := make([]byte, net.MaxDataBits/8)
	p3 := make([]byte, net.MaxDataBits/8)
	p4 := append([]byte{0xAA, 0xBB, 0xCC, 0xCC, 0xCC}, make([]byte, (300+7)/8-5)...)

	order := []*net.Bunch{
		{ChSequence: 10, Partial: true, PartialInitial: true, BunchDataBits: net.MaxDataBits, Payload: p1},
		{ChSequence: 12, Partial: true, BunchDataBits: net.MaxDataBits, Payload: p3},
		{ChSequence: 11, Partial: true, BunchDataBits: net.MaxDataBits, Payload: p2},
		{ChSequence: 13, Partial: true, PartialFinal: true, BunchDataBits: 300, Payload: p4},
	}

	var merged *net.Bunch
	for _, b := range order {
		got, accepted := c.ReceivedRawBunch(b)
		require.True(t, accepted, "bunch %d should be accepted by the order gate", b.ChSequence)
		if got != nil {
			merged = got
		}
	}

	require.NotNil(t, merged, "reassembly should complete after the final chunk arrives")
	require.EqualValues(t, 3*net.MaxDataBits+300, merged.BunchDataBits)
}

func TestSplitBunchDataOversize(t *testing.T) {
	total := net.MaxDataBits*2 + 300
	payload := make([]byte, (total+7)/8)
	chunks := SplitBunchData(payload, total)
	require.Len(t, chunks, 3)
	require.Equal(t, net.MaxDataBits, chunks[0].Bits)
	require.Equal(t, net.MaxDataBits, chunks[1].Bits)
	require.Equal(t, 300, chunks[2].Bits)
}

func TestSplitBunchDataFitsInOne(t *testing.T) {
	payload := []byte{1, 2, 3}
	chunks := SplitBunchData(payload, 24)
	require.Len(t, chunks, 1)
	require.Equal(t, 24, chunks[0].Bits)
}

func TestDrainOutboundFirstBunchOpensControl(t *testing.T) {
	c := New(2, NameActorChannel, 5, 100)
	bunches := c.DrainOutbound([]byte{1, 2, 3, 4}, 32)
	require.Len(t, bunches, 1)
	require.True(t, bunches[0].Control)
	require.True(t, bunches[0].Open)
	require.EqualValues(t, 101, bunches[0].ChSequence, "ch_sequence should be (100+1)&1023")

	bunches2 := c.DrainOutbound([]byte{5, 6}, 16)
	require.False(t, bunches2[0].Control, "subsequent bunch should not reopen the channel")
	require.False(t, bunches2[0].Open)
}

func TestHelloMessageRoundTrip(t *testing.T) {
	in := HelloMessage{IsLE: 1, NetworkVersion: 2566650454, EncryptionToken: "tok", NetworkFeatures: 0}
	w := bitio.NewWriter()
	in.Encode(w)
	r := bitio.NewReader(w.Bytes())
	id, err := PeekMessageID(r)
	require.NoError(t, err)
	require.Equal(t, MsgHello, id)

	got, err := DecodeHelloMessage(r)
	require.NoError(t, err)
	require.Equal(t, in.NetworkVersion, got.NetworkVersion)
	require.Equal(t, in.EncryptionToken, got.EncryptionToken)
}

func TestChallengeMessageRoundTrip(t *testing.T) {
	in := ChallengeMessage{Challenge: "8B69DF87"}
	w := bitio.NewWriter()
	in.Encode(w)
	r := bitio.NewReader(w.Bytes())
	_, err := PeekMessageID(r)
	require.NoError(t, err)

	got, err := DecodeChallengeMessage(r)
	require.NoError(t, err)
	require.Equal(t, in.Challenge, got.Challenge)
}
