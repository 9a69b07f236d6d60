// Package radiosim simulates an nRF24L01(+) at the SPI level: a register
// file, a three frame RX FIFO and the CS, CE and IRQ lines.
package radiosim

import (
	"errors"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// ErrNotSelected is returned by Tx when chip select is not held low.
var ErrNotSelected = errors.New("radiosim: transfer without chip select")

const (
	regConfig     = 0x00
	regRXEnable   = 0x02
	regStatus     = 0x07
	regFifoStatus = 0x17

	configPrimRX  = 0x01
	configPowerUp = 0x02
	configMaskRX  = 0x40

	statusRXReady = 0x40
	irqMask       = 0x70

	fifoDepth = 3
)

// Exchange is one recorded bus transfer.
type Exchange struct {
	W []byte
	R []byte
}

type frame struct {
	data []byte
	pipe int
}

// Radio is a simulated device. All methods are safe for concurrent use.
type Radio struct {
	blocks   map[byte][5]byte
	wakeup   chan struct{}
	failNext error
	log      []Exchange
	rx       []frame
	pending  []frame
	regs     [0x20]byte
	irq      byte
	mu       sync.Mutex
	cs       gpio.Level
	ce       gpio.Level
}

// New returns a radio with the register reset values of the datasheet.
func New() *Radio {
	r := &Radio{
		blocks: map[byte][5]byte{
			0x0a: {0xe7, 0xe7, 0xe7, 0xe7, 0xe7},
			0x0b: {0xc2, 0xc2, 0xc2, 0xc2, 0xc2},
			0x10: {0xe7, 0xe7, 0xe7, 0xe7, 0xe7},
		},
		wakeup: make(chan struct{}, 1),
		cs:     gpio.High,
		ce:     gpio.Low,
	}
	r.regs[0x00] = 0x08
	r.regs[0x01] = 0x3f
	r.regs[0x02] = 0x03
	r.regs[0x03] = 0x03
	r.regs[0x04] = 0x03
	r.regs[0x05] = 0x02
	r.regs[0x06] = 0x0e
	r.regs[0x0c] = 0xc3
	r.regs[0x0d] = 0xc4
	r.regs[0x0e] = 0xc5
	r.regs[0x0f] = 0xc6
	return r
}

func isBlock(addr byte) bool {
	return addr == 0x0a || addr == 0x0b || addr == 0x10
}

func (r *Radio) status() byte {
	pipe := byte(0b111)
	if len(r.rx) > 0 {
		pipe = byte(r.rx[0].pipe)
	}
	return r.irq | pipe<<1
}

func (r *Radio) fifoStatus() byte {
	// TX FIFO is always empty: nothing here transmits.
	f := byte(0x10)
	switch len(r.rx) {
	case 0:
		f |= 0x01
	case fifoDepth:
		f |= 0x02
	}
	return f
}

// Tx implements the bus. len(r) must equal len(w).
func (r *Radio) Tx(w, rd []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cs != gpio.Low {
		return ErrNotSelected
	}
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	if len(w) == 0 || len(rd) != len(w) {
		return errors.New("radiosim: bad transfer length")
	}

	out := make([]byte, len(w))
	out[0] = r.status()
	op := w[0]
	switch {
	case op < 0x20:
		if isBlock(op) {
			b := r.blocks[op]
			copy(out[1:], b[:])
		} else {
			v := r.regs[op]
			switch op {
			case regStatus:
				v = r.status()
			case regFifoStatus:
				v = r.fifoStatus()
			}
			for i := 1; i < len(out); i++ {
				out[i] = v
			}
		}
	case op < 0x40:
		addr := op & 0x1f
		switch {
		case len(w) < 2:
		case isBlock(addr):
			var b [5]byte
			copy(b[:], w[1:])
			r.blocks[addr] = b
		case addr == regStatus:
			r.irq &^= w[1] & irqMask
		case addr == regFifoStatus:
		default:
			r.regs[addr] = w[1]
		}
	case op == 0x60:
		if len(out) > 1 && len(r.rx) > 0 {
			out[1] = byte(len(r.rx[0].data))
		}
	case op == 0x61:
		if len(r.rx) > 0 {
			copy(out[1:], r.rx[0].data)
			r.rx = r.rx[1:]
		}
	case op == 0xe2:
		r.rx = nil
	case op == 0xe1, op == 0xe3, op == 0xff:
	default:
		return errors.New("radiosim: unknown opcode")
	}

	copy(rd, out)
	r.log = append(r.log, Exchange{W: append([]byte(nil), w...), R: out})
	return nil
}

// Pin is one of the simulated output lines.
type Pin struct {
	r  *Radio
	cs bool
}

// CS returns the chip select line.
func (r *Radio) CS() *Pin { return &Pin{r: r, cs: true} }

// CE returns the chip enable line.
func (r *Radio) CE() *Pin { return &Pin{r: r} }

func (p *Pin) Out(l gpio.Level) error {
	r := p.r
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.cs {
		r.cs = l
		return nil
	}
	r.ce = l
	if l == gpio.High {
		r.signal()
	}
	return nil
}

// IRQ is the simulated interrupt line.
type IRQ struct {
	r *Radio
}

// IRQ returns the interrupt line.
func (r *Radio) IRQ() *IRQ { return &IRQ{r: r} }

// WaitForEdge returns true once an unmasked RX interrupt is pending. Frames
// queued with Deliver arrive here while the radio is powered up as a
// receiver with CE high.
func (i *IRQ) WaitForEdge(timeout time.Duration) bool {
	r := i.r
	var deadline <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	for {
		if r.poll() {
			return true
		}
		select {
		case <-r.wakeup:
		case <-deadline:
			return r.poll()
		}
	}
}

func (r *Radio) poll() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg := r.regs[regConfig]
	receiving := r.ce == gpio.High && cfg&configPowerUp != 0 && cfg&configPrimRX != 0
	for receiving && len(r.pending) > 0 && len(r.rx) < fifoDepth {
		f := r.pending[0]
		r.pending = r.pending[1:]
		r.accept(f)
	}
	return r.irq&statusRXReady != 0 && cfg&configMaskRX == 0
}

func (r *Radio) accept(f frame) {
	if r.regs[regRXEnable]&(1<<f.pipe) == 0 {
		return
	}
	r.rx = append(r.rx, f)
	r.irq |= statusRXReady
}

func (r *Radio) signal() {
	select {
	case r.wakeup <- struct{}{}:
	default:
	}
}

// Deliver queues a frame on the air. It is received the next time the radio
// listens on an enabled pipe.
func (r *Radio) Deliver(pipe int, data []byte) {
	r.mu.Lock()
	r.pending = append(r.pending, frame{pipe: pipe, data: append([]byte(nil), data...)})
	r.mu.Unlock()
	r.signal()
}

// Inject places a frame straight into the RX FIFO and raises RX_DR.
func (r *Radio) Inject(pipe int, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rx) < fifoDepth {
		r.rx = append(r.rx, frame{pipe: pipe, data: append([]byte(nil), data...)})
		r.irq |= statusRXReady
	}
}

// FailNext makes the next transfer fail with err after chip select is taken.
func (r *Radio) FailNext(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = err
}

// Register returns the stored value of a single byte register.
func (r *Radio) Register(addr byte) byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch addr {
	case regStatus:
		return r.status()
	case regFifoStatus:
		return r.fifoStatus()
	}
	return r.regs[addr]
}

// Block returns the stored value of an address register.
func (r *Radio) Block(addr byte) [5]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blocks[addr]
}

// Exchanges returns the transfers recorded since the last ResetLog.
func (r *Radio) Exchanges() []Exchange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Exchange(nil), r.log...)
}

// Writes returns the register write opcodes recorded since the last ResetLog.
func (r *Radio) Writes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ops []byte
	for _, e := range r.log {
		if e.W[0]&0xe0 == 0x20 {
			ops = append(ops, e.W[0])
		}
	}
	return ops
}

// ResetLog forgets the recorded transfers.
func (r *Radio) ResetLog() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = nil
}

func (r *Radio) CSLevel() gpio.Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cs
}

func (r *Radio) CELevel() gpio.Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ce
}

// RXCount is the number of frames in the RX FIFO.
func (r *Radio) RXCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rx)
}
