// Package buspirate drives the radio through a Bus Pirate in binary SPI mode
// over its USB serial port. The Bus Pirate CS line is the radio's chip
// select, AUX is chip enable, and the interrupt is polled from the STATUS
// byte because the bridge cannot report pin edges.
package buspirate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"periph.io/x/conn/v3/gpio"
)

var (
	ErrNoBinaryMode = errors.New("bus pirate did not enter binary mode")
	ErrNoSPIMode    = errors.New("bus pirate did not enter SPI mode")
	ErrNoAck        = errors.New("bus pirate did not acknowledge")
	ErrReadTimeout  = errors.New("bus pirate read timeout")
)

const (
	cmdBitbang     = 0x00
	cmdSPI         = 0x01
	cmdCSLow       = 0x02
	cmdCSHigh      = 0x03
	cmdExit        = 0x0f
	cmdBulk        = 0x10
	cmdPeripherals = 0x40
	cmdSpeed       = 0x60
	cmdConfig      = 0x80

	periphPower = 0x08
	periphAux   = 0x02
	periphCS    = 0x01

	configOutput3V3 = 0x08
	configCKE       = 0x02

	maxBulk = 16
	ack     = 0x01

	// The radio asserts RX_DR in the STATUS byte while its IRQ line is low.
	statusRXReady = 0x40
	nop           = 0xff
)

// Speed is the SPI clock of the Bus Pirate.
type Speed byte

const (
	Speed30kHz Speed = iota
	Speed125kHz
	Speed250kHz
	Speed1MHz
	Speed2MHz
	Speed2600kHz
	Speed4MHz
	Speed8MHz
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithSpeed sets the SPI clock. The default is 1MHz.
func WithSpeed(s Speed) Option {
	return func(b *Bridge) { b.speed = s }
}

// WithPollInterval sets how often the polled interrupt reads STATUS.
func WithPollInterval(d time.Duration) Option {
	return func(b *Bridge) { b.pollInterval = d }
}

// Bridge is a Bus Pirate in binary SPI mode. It implements the radio bus
// and hands out its CS and AUX lines as output pins.
type Bridge struct {
	port         io.ReadWriteCloser
	pollInterval time.Duration
	mu           sync.Mutex
	speed        Speed
	aux          bool
	cs           bool
}

// Open opens the serial port of a Bus Pirate and switches it to binary SPI
// mode.
func Open(name string, opts ...Option) (*Bridge, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}
	b, err := New(port, opts...)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return b, nil
}

// New sets up a Bus Pirate already connected on port. A Read on port that
// returns no data and no error is taken as a timeout.
func New(port io.ReadWriteCloser, opts ...Option) (*Bridge, error) {
	b := &Bridge{
		port:         port,
		speed:        Speed1MHz,
		pollInterval: time.Millisecond,
		cs:           true,
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := b.enterBinary(); err != nil {
		return nil, err
	}
	if err := b.enterSPI(); err != nil {
		return nil, err
	}
	// Mode 0: idle low clock, data out on the active to idle edge.
	if err := b.command(cmdConfig | configOutput3V3 | configCKE); err != nil {
		return nil, fmt.Errorf("spi config: %w", err)
	}
	if err := b.command(cmdSpeed | byte(b.speed)); err != nil {
		return nil, fmt.Errorf("spi speed: %w", err)
	}
	if err := b.peripherals(); err != nil {
		return nil, fmt.Errorf("peripherals: %w", err)
	}
	return b, nil
}

// Close returns the Bus Pirate to its terminal and closes the port.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = b.port.Write([]byte{cmdBitbang, cmdExit})
	if err := b.port.Close(); err != nil {
		return fmt.Errorf("failed to close bus pirate port: %w", err)
	}
	return nil
}

func (b *Bridge) enterBinary() error {
	reply := make([]byte, 5)
	for i := 0; i < 20; i++ {
		if _, err := b.port.Write([]byte{cmdBitbang}); err != nil {
			return fmt.Errorf("bitbang reset: %w", err)
		}
		err := b.readFull(reply)
		if err == nil && bytes.Equal(reply, []byte("BBIO1")) {
			return nil
		}
		if err != nil && !errors.Is(err, ErrReadTimeout) {
			return err
		}
	}
	return ErrNoBinaryMode
}

func (b *Bridge) enterSPI() error {
	if _, err := b.port.Write([]byte{cmdSPI}); err != nil {
		return fmt.Errorf("spi mode: %w", err)
	}
	reply := make([]byte, 4)
	if err := b.readFull(reply); err != nil {
		return fmt.Errorf("spi mode: %w", err)
	}
	if !bytes.Equal(reply, []byte("SPI1")) {
		return ErrNoSPIMode
	}
	return nil
}

func (b *Bridge) readFull(buf []byte) error {
	for off := 0; off < len(buf); {
		n, err := b.port.Read(buf[off:])
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrReadTimeout
		}
		off += n
	}
	return nil
}

func (b *Bridge) command(c byte) error {
	if _, err := b.port.Write([]byte{c}); err != nil {
		return err
	}
	var reply [1]byte
	if err := b.readFull(reply[:]); err != nil {
		return err
	}
	if reply[0] != ack {
		return fmt.Errorf("command 0x%02x: %w", c, ErrNoAck)
	}
	return nil
}

func (b *Bridge) peripherals() error {
	c := byte(cmdPeripherals | periphPower)
	if b.aux {
		c |= periphAux
	}
	if b.cs {
		c |= periphCS
	}
	return b.command(c)
}

// Tx clocks w out and len(w) bytes in, in bulk transfers of up to 16 bytes.
// Chip select is left alone.
func (b *Bridge) Tx(w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tx(w, r)
}

func (b *Bridge) tx(w, r []byte) error {
	var msg [1 + maxBulk]byte
	var reply [1 + maxBulk]byte
	for off := 0; off < len(w); off += maxBulk {
		n := len(w) - off
		if n > maxBulk {
			n = maxBulk
		}
		msg[0] = cmdBulk | byte(n-1)
		copy(msg[1:], w[off:off+n])
		if _, err := b.port.Write(msg[:1+n]); err != nil {
			return fmt.Errorf("bulk transfer: %w", err)
		}
		if err := b.readFull(reply[:1+n]); err != nil {
			return fmt.Errorf("bulk transfer: %w", err)
		}
		if reply[0] != ack {
			return fmt.Errorf("bulk transfer: %w", ErrNoAck)
		}
		if off < len(r) {
			copy(r[off:], reply[1:1+n])
		}
	}
	return nil
}

func (b *Bridge) setCS(level gpio.Level) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := byte(cmdCSHigh)
	if level == gpio.Low {
		c = cmdCSLow
	}
	if err := b.command(c); err != nil {
		return err
	}
	b.cs = bool(level)
	return nil
}

func (b *Bridge) setAux(level gpio.Level) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.aux
	b.aux = bool(level)
	if err := b.peripherals(); err != nil {
		b.aux = prev
		return err
	}
	return nil
}

// Line is a Bus Pirate output used as a radio control line.
type Line struct {
	set func(gpio.Level) error
}

func (l *Line) Out(level gpio.Level) error {
	return l.set(level)
}

// CS returns the Bus Pirate CS pin.
func (b *Bridge) CS() *Line {
	return &Line{set: b.setCS}
}

// AUX returns the Bus Pirate AUX pin, wired to the radio's CE.
func (b *Bridge) AUX() *Line {
	return &Line{set: b.setAux}
}

// StatusIRQ stands in for the interrupt line by polling the radio's STATUS
// byte with NOP commands.
type StatusIRQ struct {
	b *Bridge
}

// IRQ returns the polled interrupt.
func (b *Bridge) IRQ() *StatusIRQ {
	return &StatusIRQ{b: b}
}

// WaitForEdge polls until RX_DR is set or timeout elapses. A negative
// timeout polls forever. Transfer errors count as no interrupt.
func (s *StatusIRQ) WaitForEdge(timeout time.Duration) bool {
	start := time.Now()
	for {
		status, err := s.b.nop()
		if err == nil && status&statusRXReady != 0 {
			return true
		}
		if timeout >= 0 && time.Since(start) >= timeout {
			return false
		}
		time.Sleep(s.b.pollInterval)
	}
}

func (b *Bridge) nop() (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.command(cmdCSLow); err != nil {
		return 0, err
	}
	var r [1]byte
	err := b.tx([]byte{nop}, r[:])
	if csErr := b.command(cmdCSHigh); err == nil {
		err = csErr
	}
	return r[0], err
}
