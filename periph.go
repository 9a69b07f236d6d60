package gnrf

import (
	"fmt"

	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// PeriphConfig names the host resources the radio is wired to.
type PeriphConfig struct {
	// SPI is the spireg port name; empty opens the first port.
	SPI string
	// CS is the chip select pin. Leave it empty when the SPI port drives
	// its own chip select line.
	CS  string
	CE  string
	IRQ string

	Frequency physic.Frequency
	Mode      spi.Mode
}

// DefaultPeriphConfig uses SPI mode 0 at 8MHz, the fastest the radio allows.
func DefaultPeriphConfig() PeriphConfig {
	return PeriphConfig{
		Frequency: 8 * physic.MegaHertz,
		Mode:      spi.Mode0,
	}
}

// PeriphOption adjusts a PeriphConfig.
type PeriphOption func(*PeriphConfig)

func WithFrequency(f physic.Frequency) PeriphOption {
	return func(c *PeriphConfig) { c.Frequency = f }
}

func WithMode(m spi.Mode) PeriphOption {
	return func(c *PeriphConfig) { c.Mode = m }
}

// PeriphDevice is a Device bound to host hardware through periph.io.
type PeriphDevice struct {
	*Device
	port spi.PortCloser
}

// Close releases the SPI port.
func (p *PeriphDevice) Close() error {
	if err := p.port.Close(); err != nil {
		return fmt.Errorf("failed to close spi port: %w", err)
	}
	return nil
}

// OpenPeriph initialises the host drivers and opens the SPI port and the
// three pins named by config.
func OpenPeriph(config PeriphConfig, opts ...PeriphOption) (*PeriphDevice, error) {
	for _, opt := range opts {
		opt(&config)
	}
	if config.Frequency == 0 {
		config.Frequency = DefaultPeriphConfig().Frequency
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	if _, err := driverreg.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph drivers: %w", err)
	}

	cs, ce, irq, err := openPins(config)
	if err != nil {
		return nil, err
	}

	p, err := spireg.Open(config.SPI)
	if err != nil {
		return nil, fmt.Errorf("failed to open spi port %q: %w", config.SPI, err)
	}
	c, err := p.Connect(config.Frequency, config.Mode, 8)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to connect spi port %q: %w", config.SPI, err)
	}

	dev, err := NewDevice(c, cs, ce, irq)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return &PeriphDevice{Device: dev, port: p}, nil
}

func openPins(config PeriphConfig) (cs OutputPin, ce OutputPin, irq InterruptPin, err error) {
	cs = hardwareCS{}
	if config.CS != "" {
		pin := gpioreg.ByName(config.CS)
		if pin == nil {
			return nil, nil, nil, fmt.Errorf("cs %q: %w", config.CS, ErrNoPin)
		}
		if err := pin.Out(gpio.High); err != nil {
			return nil, nil, nil, fmt.Errorf("cs %q: %w", config.CS, err)
		}
		cs = pin
	}

	cePin := gpioreg.ByName(config.CE)
	if cePin == nil {
		return nil, nil, nil, fmt.Errorf("ce %q: %w", config.CE, ErrNoPin)
	}
	if err := cePin.Out(gpio.Low); err != nil {
		return nil, nil, nil, fmt.Errorf("ce %q: %w", config.CE, err)
	}

	irqPin := gpioreg.ByName(config.IRQ)
	if irqPin == nil {
		return nil, nil, nil, fmt.Errorf("irq %q: %w", config.IRQ, ErrNoPin)
	}
	// IRQ is active low and open drain on the radio.
	if err := irqPin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, nil, nil, fmt.Errorf("irq %q: %w", config.IRQ, err)
	}
	return cs, cePin, irqPin, nil
}

// hardwareCS stands in for a chip select the SPI controller toggles itself.
type hardwareCS struct{}

func (hardwareCS) Out(gpio.Level) error { return nil }
