package gnrf

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Bus exchanges bytes full duplex: len(r) bytes are read while w is written.
// periph's spi.Conn satisfies it.
type Bus interface {
	Tx(w, r []byte) error
}

// OutputPin is a digital output such as periph's gpio.PinOut.
type OutputPin interface {
	Out(l gpio.Level) error
}

// InterruptPin blocks until its edge is seen or timeout elapses; a negative
// timeout waits forever. periph's gpio.PinIn satisfies it.
type InterruptPin interface {
	WaitForEdge(timeout time.Duration) bool
}

// Device frames the command and register exchanges of an nRF24L01(+) on its
// bus. It owns the bus and the three lines and is not safe for concurrent use.
type Device struct {
	bus Bus
	cs  OutputPin
	ce  OutputPin
	irq InterruptPin
}

// NewDevice takes the bus and the chip select, chip enable and interrupt
// lines, and drives chip select to its idle high level.
func NewDevice(bus Bus, cs, ce OutputPin, irq InterruptPin) (*Device, error) {
	if bus == nil {
		return nil, ErrNoBus
	}
	if cs == nil || ce == nil || irq == nil {
		return nil, ErrNoPin
	}
	d := &Device{bus: bus, cs: cs, ce: ce, irq: irq}
	if err := d.cs.Out(gpio.High); err != nil {
		return nil, transportError("release cs", err)
	}
	return d, nil
}

// transfer runs one exchange with chip select held low. Chip select is
// released on every path, including a failed transfer.
func (d *Device) transfer(op string, w, r []byte) (err error) {
	if err := d.cs.Out(gpio.Low); err != nil {
		return transportError(op, err)
	}
	defer func() {
		if csErr := d.cs.Out(gpio.High); csErr != nil && err == nil {
			err = transportError(op, csErr)
		}
	}()
	if err := d.bus.Tx(w, r); err != nil {
		return transportError(op, err)
	}
	log.Tracef("%s w=%x r=%x", op, w, r)
	return nil
}

// Command sends a single opcode.
func (d *Device) Command(cmd Command) (Status, error) {
	w := [1]byte{byte(cmd)}
	var r [1]byte
	if err := d.transfer("command", w[:], r[:]); err != nil {
		return 0, err
	}
	return Status(r[0]), nil
}

// ReadRegister reads a single byte register.
func (d *Device) ReadRegister(reg Register) (Status, byte, error) {
	w := [2]byte{byte(reg)}
	var r [2]byte
	if err := d.transfer("read register", w[:], r[:]); err != nil {
		return 0, 0, err
	}
	return Status(r[0]), r[1], nil
}

// WriteRegister writes a single byte register.
func (d *Device) WriteRegister(reg Register, v byte) (Status, error) {
	w := [2]byte{byte(reg) | writeCommand, v}
	var r [2]byte
	if err := d.transfer("write register", w[:], r[:]); err != nil {
		return 0, err
	}
	return Status(r[0]), nil
}

// ReadBlock reads a five byte address register.
func (d *Device) ReadBlock(reg BlockRegister) (Status, [AddressLength]byte, error) {
	var data [AddressLength]byte
	w := [1 + AddressLength]byte{byte(reg)}
	var r [1 + AddressLength]byte
	if err := d.transfer("read block", w[:], r[:]); err != nil {
		return 0, data, err
	}
	copy(data[:], r[1:])
	return Status(r[0]), data, nil
}

// WriteBlock writes a five byte address register.
func (d *Device) WriteBlock(reg BlockRegister, data [AddressLength]byte) (Status, error) {
	w := [1 + AddressLength]byte{byte(reg) | writeCommand}
	copy(w[1:], data[:])
	var r [1 + AddressLength]byte
	if err := d.transfer("write block", w[:], r[:]); err != nil {
		return 0, err
	}
	return Status(r[0]), nil
}

// ReadPayloadWidth returns the width of the frame at the head of the RX FIFO.
func (d *Device) ReadPayloadWidth() (Status, byte, error) {
	w := [2]byte{byte(CmdRXPayloadWidth)}
	var r [2]byte
	if err := d.transfer("read payload width", w[:], r[:]); err != nil {
		return 0, 0, err
	}
	return Status(r[0]), r[1], nil
}

// ReadPayload drains one frame from the RX FIFO. It returns nil without an
// error when the FIFO is empty, or when the reported width is corrupt, in
// which case the RX FIFO is flushed.
func (d *Device) ReadPayload() (*Payload, error) {
	_, fifo, err := d.ReadRegister(RegFifoStatus)
	if err != nil {
		return nil, err
	}
	if Fifo(fifo).RxEmpty() {
		return nil, nil
	}

	_, width, err := d.ReadPayloadWidth()
	if err != nil {
		return nil, err
	}
	// A width above 32 marks a corrupt frame; the device requires a flush.
	if width > MaxPayloadSize {
		log.WithField("width", width).Warn("corrupt payload width, flushing RX FIFO")
		if _, err := d.Command(CmdRXFlush); err != nil {
			return nil, err
		}
		return nil, nil
	}

	w := [1 + MaxPayloadSize]byte{byte(CmdRXPayload)}
	var r [1 + MaxPayloadSize]byte
	if err := d.transfer("read payload", w[:], r[:]); err != nil {
		return nil, err
	}

	p := &Payload{Len: int(width), Status: Status(r[0])}
	copy(p.Data[:], r[1:])
	return p, nil
}

// Enable drives chip enable high.
func (d *Device) Enable() error {
	return transportError("enable", d.ce.Out(gpio.High))
}

// Disable drives chip enable low.
func (d *Device) Disable() error {
	return transportError("disable", d.ce.Out(gpio.Low))
}

// WaitForInterrupt blocks until the IRQ line is asserted or timeout elapses,
// and reports whether the interrupt was seen.
func (d *Device) WaitForInterrupt(timeout time.Duration) bool {
	return d.irq.WaitForEdge(timeout)
}
