package gnrf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/NV4RE/gnrf/internal/radiosim"
)

func newTestReceiver(t *testing.T, config Config) (*Receiver, *radiosim.Radio) {
	t.Helper()
	dev, sim := newTestDevice(t)
	r, err := NewReceiver(dev, config, WithPowerUpDelay(0))
	require.NoError(t, err)
	sim.ResetLog()
	return r, sim
}

func TestNewReceiver_ProgramsDevice(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	config.Channel = 40
	config.Pipes[1] = SizedPipe(0x11, false, 16)
	config.Pipes[4] = DynamicPipe(0x44, true)

	dev, sim := newTestDevice(t)
	r, err := NewReceiver(dev, config, WithPowerUpDelay(0))
	require.NoError(t, err)
	assert.Equal(t, StatePowerDown, r.State())

	for _, rv := range config.Registers() {
		assert.Equal(t, rv.Value, sim.Register(byte(rv.Register)), "register 0x%02x", byte(rv.Register))
	}
	assert.Equal(t, config.Address, sim.Block(0x0a))
	assert.Equal(t, [5]byte{0xc2, 0xc2, 0xc2, 0xc2, 0x11}, sim.Block(0x0b))

	// Single registers first, then the two address blocks.
	ex := sim.Exchanges()
	require.Len(t, ex, len(config.Registers())+2)
	for i := range config.Registers() {
		assert.Len(t, ex[i].W, 2)
	}
	assert.Equal(t, byte(0x2a), ex[len(ex)-2].W[0])
	assert.Equal(t, byte(0x2b), ex[len(ex)-1].W[0])
}

func TestNewReceiver_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewReceiver(nil, DefaultConfig())
	require.ErrorIs(t, err, ErrNilDevice)

	dev, sim := newTestDevice(t)
	busErr := errors.New("bus gone")
	sim.FailNext(busErr)
	_, err = NewReceiver(dev, DefaultConfig(), WithPowerUpDelay(0))
	require.ErrorIs(t, err, busErr)
	assert.Equal(t, gpio.High, sim.CSLevel())

	_, err = NewReceiver(dev, DefaultConfig(), WithPowerUpDelay(-time.Second))
	require.Error(t, err)
}

func TestReceiver_SetChannel(t *testing.T) {
	t.Parallel()

	r, sim := newTestReceiver(t, DefaultConfig())
	_, err := r.SetChannel(125)
	require.NoError(t, err)
	assert.Equal(t, byte(125), r.Config().Channel)
	assert.Equal(t, byte(125), sim.Register(0x05))

	// Out of band channels are written as given.
	_, err = r.SetChannel(200)
	require.NoError(t, err)
	assert.Equal(t, byte(200), sim.Register(0x05))
}

func TestReceiver_PowerUp(t *testing.T) {
	t.Parallel()

	r, sim := newTestReceiver(t, DefaultConfig())
	before := sim.Register(0x00)

	_, err := r.PowerUp()
	require.NoError(t, err)
	assert.Equal(t, before|ConfigPowerUp, sim.Register(0x00))
	assert.Equal(t, StatePowerDown, r.State(), "PowerUp does not move the state")

	ex := sim.Exchanges()
	require.Len(t, ex, 2)
	assert.Equal(t, []byte{0x00, 0}, ex[0].W)
	assert.Equal(t, []byte{0x20, before | ConfigPowerUp}, ex[1].W)
}

func TestReceiver_Listen(t *testing.T) {
	t.Parallel()

	r, sim := newTestReceiver(t, DefaultConfig())
	sim.Inject(0, []byte("stale"))

	require.NoError(t, r.Listen())
	assert.Equal(t, StateListening, r.State())
	assert.Equal(t, gpio.High, sim.CELevel())
	assert.Equal(t, 0, sim.RXCount(), "RX FIFO is flushed")
	assert.False(t, Status(sim.Register(0x07)).RxReady(), "interrupts are cleared")
	assert.Equal(t, []byte{0x20, 0x27}, sim.Writes())

	sim.ResetLog()
	require.NoError(t, r.Listen())
	assert.Equal(t, StateListening, r.State())
	assert.Empty(t, sim.Exchanges(), "second Listen is a no-op")
}

func TestReceiver_UnlistenKeepsState(t *testing.T) {
	t.Parallel()

	r, sim := newTestReceiver(t, DefaultConfig())
	require.NoError(t, r.Listen())
	require.NoError(t, r.Unlisten())

	assert.Equal(t, gpio.Low, sim.CELevel())
	assert.Equal(t, StateListening, r.State())

	// Listening again only raises CE.
	sim.ResetLog()
	require.NoError(t, r.Listen())
	assert.Equal(t, gpio.High, sim.CELevel())
	assert.Empty(t, sim.Exchanges())
}

func TestReceiver_Receive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		stop       bool
		clearsIRQs bool
	}{
		{name: "Keep going", stop: false, clearsIRQs: true},
		{name: "Stop", stop: true, clearsIRQs: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, sim := newTestReceiver(t, DefaultConfig())
			sim.Deliver(0, []byte{0xde, 0xad, 0xbe, 0xef})

			p, err := r.Receive(tt.stop, time.Second)
			require.NoError(t, err)
			require.NotNil(t, p)
			assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, p.Bytes())
			assert.Equal(t, 0, p.Pipe())
			assert.True(t, p.Status.RxReady())

			assert.Equal(t, gpio.Low, sim.CELevel(), "CE is left low")
			assert.Equal(t, StateListening, r.State())
			assert.Equal(t, !tt.clearsIRQs, Status(sim.Register(0x07)).RxReady())
		})
	}
}

func TestReceiver_ReceiveTimeout(t *testing.T) {
	t.Parallel()

	r, sim := newTestReceiver(t, DefaultConfig())

	start := time.Now()
	p, err := r.Receive(false, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, gpio.Low, sim.CELevel())
}

func TestReceiver_ReceiveRearms(t *testing.T) {
	t.Parallel()

	r, sim := newTestReceiver(t, DefaultConfig())

	for _, want := range []byte{1, 2} {
		sim.Deliver(0, []byte{want})
		p, err := r.Receive(false, time.Second)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, []byte{want}, p.Bytes())
	}
}

func TestReceiver_DisabledPipeIgnored(t *testing.T) {
	t.Parallel()

	r, sim := newTestReceiver(t, DefaultConfig())
	sim.Deliver(3, []byte{9})

	p, err := r.Receive(false, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestReceiver_ReceiveContinue(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	config.Pipes[2] = SizedPipe(0xc3, true, 3)
	r, sim := newTestReceiver(t, config)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan *Payload)
	done := make(chan error, 1)
	go func() {
		done <- r.ReceiveContinue(ctx, 10*time.Millisecond, ch)
	}()

	sim.Deliver(0, []byte("one"))
	sim.Deliver(2, []byte("two"))

	var got []string
	for len(got) < 2 {
		select {
		case p := <-ch:
			got = append(got, string(p.Bytes()))
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for frames")
		}
	}
	assert.Equal(t, []string{"one", "two"}, got)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ReceiveContinue did not stop")
	}
	assert.Equal(t, gpio.Low, sim.CELevel())
}

func TestReceiver_ReceiveContinueNegativeTimeout(t *testing.T) {
	t.Parallel()

	r, sim := newTestReceiver(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- r.ReceiveContinue(ctx, -1, make(chan *Payload))
	}()
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrNegativeTimeout)
	case <-time.After(time.Second):
		t.Fatal("ReceiveContinue blocked on an unbounded wait")
	}
	assert.Empty(t, sim.Exchanges(), "nothing is sent to the device")
	assert.Equal(t, StatePowerDown, r.State())
}
