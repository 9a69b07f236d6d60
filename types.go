package gnrf

import (
	"fmt"
	"strconv"
)

// Gain is the power amplifier setting of RF_SETUP.
type Gain byte

const (
	GainMin Gain = iota
	GainLow
	GainHigh
	GainMax
)

func (g Gain) String() string {
	switch g {
	case GainMin:
		return "min"
	case GainLow:
		return "low"
	case GainHigh:
		return "high"
	case GainMax:
		return "max"
	}
	return "Gain(" + strconv.Itoa(int(g)) + ")"
}

// DataRate is the air data rate.
type DataRate byte

const (
	DataRateLow  DataRate = iota // 250 kbps
	DataRateHigh                 // 1 Mbps
	DataRateMax                  // 2 Mbps
)

func (d DataRate) String() string {
	switch d {
	case DataRateLow:
		return "250kbps"
	case DataRateHigh:
		return "1Mbps"
	case DataRateMax:
		return "2Mbps"
	}
	return "DataRate(" + strconv.Itoa(int(d)) + ")"
}

// CRCBytes is the CRC width. The zero value disables CRC.
type CRCBytes byte

const (
	CRCDisabled CRCBytes = iota
	CRCOneByte
	CRCTwoBytes
)

func (c CRCBytes) String() string {
	switch c {
	case CRCDisabled:
		return "off"
	case CRCOneByte:
		return "1byte"
	case CRCTwoBytes:
		return "2bytes"
	}
	return "CRCBytes(" + strconv.Itoa(int(c)) + ")"
}

// AddressWidth is the length of the pipe addresses, written to SETUP_AW.
type AddressWidth byte

const (
	ThreeBytes AddressWidth = iota
	FourBytes
	FiveBytes
)

func (a AddressWidth) String() string {
	switch a {
	case ThreeBytes:
		return "3bytes"
	case FourBytes:
		return "4bytes"
	case FiveBytes:
		return "5bytes"
	}
	return "AddressWidth(" + strconv.Itoa(int(a)) + ")"
}

// State is the lifecycle state tracked by a Receiver.
type State byte

const (
	StatePowerDown State = iota
	StateStandby
	StateListening
	// StateTransmitting has no transmit path behind it yet.
	StateTransmitting
)

func (s State) String() string {
	switch s {
	case StatePowerDown:
		return "power-down"
	case StateStandby:
		return "standby"
	case StateListening:
		return "listening"
	case StateTransmitting:
		return "transmitting"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// Status is the STATUS byte the device shifts out first on every exchange.
type Status byte

const (
	StatusTXFull   Status = 1 << 0
	StatusMaxRT    Status = 1 << 4
	StatusTXSent   Status = 1 << 5
	StatusRXReady  Status = 1 << 6
	statusPipeMask Status = 0x0e
)

func (s Status) RxReady() bool        { return s&StatusRXReady != 0 }
func (s Status) TxSent() bool         { return s&StatusTXSent != 0 }
func (s Status) MaxRetransmits() bool { return s&StatusMaxRT != 0 }
func (s Status) TxFull() bool         { return s&StatusTXFull != 0 }

// RxPipe returns the pipe of the frame at the head of the RX FIFO, or -1 when
// the FIFO is empty.
func (s Status) RxPipe() int {
	n := int(s&statusPipeMask) >> 1
	if n > PipeCount-1 {
		return -1
	}
	return n
}

func (s Status) String() string {
	return flags("RxDR+ TxDS+ MaxRT+ TxFull+ RxPipe:", 0x71, byte(s)) +
		strconv.Itoa(s.RxPipe())
}

// Fifo is the FIFO_STATUS register.
type Fifo byte

const (
	FifoRXEmpty Fifo = 1 << 0
	FifoRXFull  Fifo = 1 << 1
	FifoTXEmpty Fifo = 1 << 4
	FifoTXFull  Fifo = 1 << 5
	FifoTXReuse Fifo = 1 << 6
)

func (f Fifo) RxEmpty() bool { return f&FifoRXEmpty != 0 }

func (f Fifo) String() string {
	return flags("TxReuse+ TxFull+ TxEmpty+ RxFull+ RxEmpty+", 0x73, byte(f))
}

// flags renders the bits selected by mask as +/- in place of each '+' of f,
// most significant bit first.
func flags(f string, mask, b byte) string {
	buf := make([]byte, len(f))
	m := byte(0x80)
	for i := range buf {
		if f[i] != '+' {
			buf[i] = f[i]
			continue
		}
		for mask&m == 0 {
			m >>= 1
		}
		if b&m == 0 {
			buf[i] = '-'
		} else {
			buf[i] = '+'
		}
		m >>= 1
	}
	return string(buf)
}

// Pipe configures one receive pipe. Width 0 selects dynamic payload length.
type Pipe struct {
	Sub     byte
	AutoAck bool
	Width   byte
}

// DynamicPipe configures a pipe with per-frame payload length.
func DynamicPipe(sub byte, autoAck bool) *Pipe {
	return &Pipe{Sub: sub, AutoAck: autoAck}
}

// SizedPipe configures a pipe with a fixed payload length.
func SizedPipe(sub byte, autoAck bool, width byte) *Pipe {
	return &Pipe{Sub: sub, AutoAck: autoAck, Width: width}
}

// Dynamic reports whether the pipe uses dynamic payload length.
func (p *Pipe) Dynamic() bool { return p.Width == 0 }

// Payload is a frame drained from the RX FIFO.
type Payload struct {
	// Len is the width reported by the device; only Data[:Len] is valid.
	Len    int
	Status Status
	Data   [MaxPayloadSize]byte
}

// Bytes returns the valid part of the frame.
func (p *Payload) Bytes() []byte {
	n := p.Len
	if n > MaxPayloadSize {
		n = MaxPayloadSize
	}
	if n < 0 {
		n = 0
	}
	return p.Data[:n]
}

// Pipe returns the pipe the frame arrived on, as reported by the status
// captured at drain time.
func (p *Payload) Pipe() int {
	return p.Status.RxPipe()
}

func (p *Payload) String() string {
	return fmt.Sprintf("pipe=%d len=%d data=%x", p.Pipe(), p.Len, p.Bytes())
}
