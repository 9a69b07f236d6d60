package gnrf

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Receiver runs the receive side of an nRF24L01(+): it programs the device
// from a Config and sequences power up, listening and frame reads.
//
// Receiver is not safe for concurrent use.
type Receiver struct {
	dev          *Device
	config       Config
	state        State
	armed        bool
	powerUpDelay time.Duration
}

// NewReceiver writes the configuration to the device. Registers written
// before a failing one are not rolled back. The receiver starts in
// StatePowerDown whatever the device is actually doing.
func NewReceiver(dev *Device, config Config, opts ...Option) (*Receiver, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	r := &Receiver{
		dev:          dev,
		config:       config,
		state:        StatePowerDown,
		powerUpDelay: defaultPowerUpDelay,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	for _, rv := range config.Registers() {
		if _, err := dev.WriteRegister(rv.Register, rv.Value); err != nil {
			return nil, fmt.Errorf("configure register 0x%02x: %w", byte(rv.Register), err)
		}
	}
	for _, bv := range config.Blocks() {
		if _, err := dev.WriteBlock(bv.Register, bv.Value); err != nil {
			return nil, fmt.Errorf("configure address 0x%02x: %w", byte(bv.Register), err)
		}
	}
	log.WithFields(logrus.Fields{
		"channel": config.Channel,
		"gain":    config.Gain,
		"rate":    config.DataRate,
		"crc":     config.CRC,
	}).Debug("configured")
	return r, nil
}

// Device returns the underlying device for direct register access.
func (r *Receiver) Device() *Device {
	return r.dev
}

// Config returns a copy of the current configuration.
func (r *Receiver) Config() Config {
	return r.config
}

// State returns the tracked lifecycle state.
func (r *Receiver) State() State {
	return r.state
}

// SetChannel changes the RF channel. The channel is not checked against the
// legal band.
func (r *Receiver) SetChannel(channel byte) (Status, error) {
	r.config.Channel = channel
	return r.dev.WriteRegister(RegRFChannel, channel)
}

// PowerUp sets PWR_UP in CONFIG. It does not change the tracked state.
func (r *Receiver) PowerUp() (Status, error) {
	_, config, err := r.dev.ReadRegister(RegConfig)
	if err != nil {
		return 0, err
	}
	return r.dev.WriteRegister(RegConfig, config|ConfigPowerUp)
}

// Listen brings the device up to StateListening with chip enable asserted.
// From StatePowerDown it does both steps in one call. Once listening it only
// re-asserts chip enable if Unlisten or Receive dropped it.
func (r *Receiver) Listen() error {
	if r.state == StatePowerDown {
		if _, err := r.PowerUp(); err != nil {
			return err
		}
		if r.powerUpDelay > 0 {
			time.Sleep(r.powerUpDelay)
		}
		r.state = StateStandby
		log.Debug("standby")
	}

	switch r.state {
	case StateStandby:
		if err := r.clearInterrupts(); err != nil {
			return err
		}
		if _, err := r.dev.Command(CmdRXFlush); err != nil {
			return err
		}
		if err := r.arm(); err != nil {
			return err
		}
		r.state = StateListening
		log.Debug("listening")
	case StateListening:
		if !r.armed {
			return r.arm()
		}
	}
	return nil
}

// Receive waits up to timeout for a frame and drains it. A negative timeout
// waits forever. Chip enable is dropped once the wait ends, whichever way it
// ends. A nil payload with a nil error means nothing was received.
//
// With stop set the interrupt flags are left as they are; otherwise they are
// cleared for the next frame. Chip enable stays low either way until the
// next Listen or Receive.
func (r *Receiver) Receive(stop bool, timeout time.Duration) (*Payload, error) {
	if err := r.Listen(); err != nil {
		return nil, err
	}

	irq := r.dev.WaitForInterrupt(timeout)
	if err := r.disarm(); err != nil {
		return nil, err
	}

	p, err := r.dev.ReadPayload()
	if err != nil {
		return nil, err
	}
	if p == nil {
		log.WithField("irq", irq).Debug("no payload")
		return nil, nil
	}

	if !stop {
		if err := r.clearInterrupts(); err != nil {
			return nil, err
		}
	}
	log.Debugf("received %v", p)
	return p, nil
}

// Unlisten drops chip enable. The tracked state stays StateListening; the
// next Listen or Receive raises chip enable again without reprogramming.
func (r *Receiver) Unlisten() error {
	return r.disarm()
}

// ReceiveContinue receives frames into ch until ctx is done. Each wait is
// bounded by timeout so cancellation is noticed; an empty wait is not an
// error. A negative timeout is rejected with ErrNegativeTimeout.
func (r *Receiver) ReceiveContinue(ctx context.Context, timeout time.Duration, ch chan<- *Payload) error {
	if timeout < 0 {
		return ErrNegativeTimeout
	}
	defer func() {
		_ = r.Unlisten()
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		p, err := r.Receive(false, timeout)
		if err != nil {
			return err
		}
		if p == nil {
			continue
		}

		select {
		case ch <- p:
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *Receiver) clearInterrupts() error {
	_, err := r.dev.WriteRegister(RegStatus, IrqMask)
	return err
}

func (r *Receiver) arm() error {
	if err := r.dev.Enable(); err != nil {
		return err
	}
	r.armed = true
	return nil
}

func (r *Receiver) disarm() error {
	if err := r.dev.Disable(); err != nil {
		return err
	}
	r.armed = false
	return nil
}
