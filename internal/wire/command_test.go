package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		cmd  Command
	}{
		{"no-op", &NoOp{}},
		{"send-packet", &SendPacket{SphinxPacket: []byte("ciphertext")}},
		{"retrieve-message", &RetrieveMessage{Sequence: 7}},
		{"get-consensus", &GetConsensus{Epoch: 42}},
		{"disconnect", &Disconnect{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			raw, err := c.cmd.Marshal()
			require.NoError(t, err)

			decoded, err := Decode(raw)
			require.NoError(t, err)
			require.Equal(t, c.cmd, decoded)
		})
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode([]byte{0xde, 0xad, 0xbe, 0xef})
	require.ErrorIs(t, err, ErrUnknownCommand)
}

func TestDecodeDistinguishesCommandKinds(t *testing.T) {
	raw, err := (&GetConsensus{Epoch: 1}).Marshal()
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	_, ok := decoded.(*GetConsensus)
	require.True(t, ok)

	_, ok = decoded.(*SendPacket)
	require.False(t, ok)
}
