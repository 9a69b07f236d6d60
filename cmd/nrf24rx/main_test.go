package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NV4RE/gnrf"
	"github.com/NV4RE/gnrf/capture"
	"github.com/NV4RE/gnrf/internal/radiosim"
)

func TestDecodeRadio(t *testing.T) {
	t.Parallel()

	const doc = `
channel: 40
gain: low
datarate: 250kbps
crc: 1byte
addresswidth: 4bytes
address: "0x0102030405"
subaddress: a1a2a3a4
pipes:
  - pipe: 1
    sub: 0x11
    autoack: true
  - pipe: 3
    sub: 0x33
    width: 8
`
	c, err := decodeRadio(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, byte(40), c.Channel)
	assert.Equal(t, gnrf.GainLow, c.Gain)
	assert.Equal(t, gnrf.DataRateLow, c.DataRate)
	assert.Equal(t, gnrf.CRCOneByte, c.CRC)
	assert.Equal(t, gnrf.FourBytes, c.AddressWidth)
	assert.Equal(t, [5]byte{1, 2, 3, 4, 5}, c.Address)
	assert.Equal(t, [4]byte{0xa1, 0xa2, 0xa3, 0xa4}, c.SubAddress)

	assert.Nil(t, c.Pipes[0], "listed pipes replace the defaults")
	assert.Equal(t, gnrf.DynamicPipe(0x11, true), c.Pipes[1])
	assert.Equal(t, gnrf.SizedPipe(0x33, false, 8), c.Pipes[3])
}

func TestDecodeRadio_Defaults(t *testing.T) {
	t.Parallel()

	c, err := decodeRadio(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, gnrf.DefaultConfig(), c)

	c, err = decodeRadio(strings.NewReader("channel: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, byte(0), c.Channel)
	assert.Equal(t, gnrf.DefaultConfig().Pipes, c.Pipes)
}

func TestDecodeRadio_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "Unknown field", doc: "chanel: 4\n"},
		{name: "Unknown gain", doc: "gain: loud\n"},
		{name: "Unknown data rate", doc: "datarate: 3Mbps\n"},
		{name: "Unknown crc", doc: "crc: 3bytes\n"},
		{name: "Unknown address width", doc: "addresswidth: 6bytes\n"},
		{name: "Short address", doc: "address: e7e7\n"},
		{name: "Bad hex", doc: "subaddress: zzzzzzzz\n"},
		{name: "Pipe out of range", doc: "pipes:\n  - pipe: 6\n"},
		{name: "Pipe too wide", doc: "pipes:\n  - pipe: 0\n    width: 33\n"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := decodeRadio(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestReceive_Limit(t *testing.T) {
	t.Parallel()

	sim := radiosim.New()
	dev, err := gnrf.NewDevice(sim, sim.CS(), sim.CE(), sim.IRQ())
	require.NoError(t, err)
	r, err := gnrf.NewReceiver(dev, gnrf.DefaultConfig(), gnrf.WithPowerUpDelay(0))
	require.NoError(t, err)

	sim.Deliver(0, []byte{0x01, 0x02})
	sim.Deliver(0, []byte{0x03})

	var out, capBuf bytes.Buffer
	rec, err := capture.NewWriter(&capBuf)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, receive(ctx, r, &out, []capture.Sink{rec}, 10*time.Millisecond, 2))

	assert.Equal(t, "pipe=0 len=2 data=0102\npipe=0 len=1 data=03\n", out.String())

	cr, err := capture.NewReader(&capBuf)
	require.NoError(t, err)
	recs, err := cr.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []byte{0x01, 0x02}, recs[0].Data)
	assert.Equal(t, []byte{0x03}, recs[1].Data)
}

func TestReceive_Cancel(t *testing.T) {
	t.Parallel()

	sim := radiosim.New()
	dev, err := gnrf.NewDevice(sim, sim.CS(), sim.CE(), sim.IRQ())
	require.NoError(t, err)
	r, err := gnrf.NewReceiver(dev, gnrf.DefaultConfig(), gnrf.WithPowerUpDelay(0))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, receive(ctx, r, &out, nil, 5*time.Millisecond, 0))
	assert.Empty(t, out.String())
}

func TestDecodeRadioJSON5(t *testing.T) {
	t.Parallel()

	const doc = `{
  // comments and unquoted keys
  channel: 2,
  crc: "off",
  pipes: [
    {pipe: 5, sub: 198, width: 32},
  ],
}`
	c, err := decodeRadioJSON5(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, byte(2), c.Channel)
	assert.Equal(t, gnrf.CRCDisabled, c.CRC)
	assert.Equal(t, gnrf.SizedPipe(0xc6, false, 32), c.Pipes[5])
	assert.Nil(t, c.Pipes[0])

	_, err = decodeRadioJSON5(strings.NewReader(`{gain: "loud"}`))
	assert.Error(t, err)
}

type failingSink struct {
	calls int
}

func (f *failingSink) Write(capture.Record) error {
	f.calls++
	return errors.New("disk full")
}

func TestReceive_FailingSinkDropped(t *testing.T) {
	t.Parallel()

	sim := radiosim.New()
	dev, err := gnrf.NewDevice(sim, sim.CS(), sim.CE(), sim.IRQ())
	require.NoError(t, err)
	r, err := gnrf.NewReceiver(dev, gnrf.DefaultConfig(), gnrf.WithPowerUpDelay(0))
	require.NoError(t, err)

	sim.Deliver(0, []byte{0x0a})
	sim.Deliver(0, []byte{0x0b})

	bad := &failingSink{}
	var capBuf bytes.Buffer
	good, err := capture.NewWriter(&capBuf)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out bytes.Buffer
	require.NoError(t, receive(ctx, r, &out, []capture.Sink{bad, good}, 10*time.Millisecond, 2))

	assert.Equal(t, 1, bad.calls, "a failed sink is not retried")
	cr, err := capture.NewReader(&capBuf)
	require.NoError(t, err)
	recs, err := cr.ReadAll()
	require.NoError(t, err)
	assert.Len(t, recs, 2, "other sinks keep recording")
}

func TestReceive_NegativeTimeout(t *testing.T) {
	t.Parallel()

	sim := radiosim.New()
	dev, err := gnrf.NewDevice(sim, sim.CS(), sim.CE(), sim.IRQ())
	require.NoError(t, err)
	r, err := gnrf.NewReceiver(dev, gnrf.DefaultConfig(), gnrf.WithPowerUpDelay(0))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out bytes.Buffer
	err = receive(ctx, r, &out, nil, -time.Second, 0)
	require.ErrorIs(t, err, gnrf.ErrNegativeTimeout)
}
