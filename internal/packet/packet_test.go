package packet

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsWrongSize(t *testing.T) {
	_, err := New(1, make([]byte, SphinxPacketLength-1))
	assert.ErrorIs(t, err, ErrWrongSize)
}

func TestNewCopiesBuffer(t *testing.T) {
	buf := bytes.Repeat([]byte{0xAA}, SphinxPacketLength)
	pkt, err := New(1, buf)
	require.NoError(t, err)
	require.Equal(t, buf, pkt.Raw)

	buf[0] = 0x00
	assert.Equal(t, byte(0xAA), pkt.Raw[0], "packet must not alias the caller's buffer")
}

func TestCopyRawIsIndependent(t *testing.T) {
	buf := bytes.Repeat([]byte{0x11}, SphinxPacketLength)
	pkt, err := New(1, buf)
	require.NoError(t, err)

	cp := pkt.CopyRaw()
	cp[0] = 0xFF
	assert.Equal(t, byte(0x11), pkt.Raw[0])
}

func TestSetPayloadOnlyOnce(t *testing.T) {
	pkt := &Packet{}
	pkt.SetPayload([]byte("hello"))
	assert.Panics(t, func() { pkt.SetPayload([]byte("again")) })
}

func TestSetCommandsOnlyOnce(t *testing.T) {
	pkt := &Packet{}
	pkt.SetCommands(nil, nil, nil, nil)
	assert.Panics(t, func() { pkt.SetCommands(nil, nil, nil, nil) })
}

func TestClassify(t *testing.T) {
	next := &NextHopCommand{}
	delay := &DelayCommand{Delay: time.Second}
	recipient := &RecipientCommand{}
	surb := &SurbReplyCommand{}

	cases := []struct {
		name string
		pkt  *Packet
		want Class
	}{
		{"forward", &Packet{NextHop: next, Delay: delay}, ClassForward},
		{"to-user", &Packet{Delay: delay, Recipient: recipient}, ClassToUser},
		{"to-user-unreliable", &Packet{Recipient: recipient}, ClassToUserUnreliable},
		{"surb-reply", &Packet{Recipient: recipient, SurbReply: surb}, ClassSurbReply},
		{"invalid-empty", &Packet{}, ClassInvalid},
		{"invalid-next-and-recipient", &Packet{NextHop: next, Recipient: recipient}, ClassInvalid},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.pkt.Classify())
		})
	}
}

func TestDisposeZeroes(t *testing.T) {
	pkt := &Packet{Raw: []byte{1, 2, 3}, Payload: []byte{4, 5, 6}}
	pkt.Dispose()
	assert.Equal(t, []byte{0, 0, 0}, pkt.Raw)
	assert.Equal(t, []byte{0, 0, 0}, pkt.Payload)
}
