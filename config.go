package gnrf

// Config is the declarative receiver configuration. None of the fields are
// validated; out of range values compile to whatever bits the formulas give.
type Config struct {
	Channel      byte
	Gain         Gain
	DataRate     DataRate
	CRC          CRCBytes
	AddressWidth AddressWidth

	// Address is the full address of pipe 0.
	Address [AddressLength]byte

	// SubAddress holds the four high bytes shared by pipes 1 to 5. The low
	// byte of each comes from its Pipe.Sub.
	SubAddress [AddressLength - 1]byte

	// Pipes are the six receive pipes; nil leaves a pipe disabled.
	Pipes [PipeCount]*Pipe
}

// DefaultConfig listens on channel 76 with pipe 0 at E7E7E7E7E7, dynamic
// payload length and auto acknowledge.
func DefaultConfig() Config {
	return Config{
		Channel:      76,
		Gain:         GainMax,
		DataRate:     DataRateHigh,
		CRC:          CRCTwoBytes,
		AddressWidth: FiveBytes,
		Address:      [AddressLength]byte{0xe7, 0xe7, 0xe7, 0xe7, 0xe7},
		SubAddress:   [AddressLength - 1]byte{0xc2, 0xc2, 0xc2, 0xc2},
		Pipes:        [PipeCount]*Pipe{DynamicPipe(0xe7, true)},
	}
}

// ConfigRegister builds CONFIG: MAX_RT masked, primary receiver, CRC as
// configured. Power up is left to PowerUp.
func (c *Config) ConfigRegister() byte {
	word := ConfigMaskMaxRT | ConfigPrimRX
	switch c.CRC {
	case CRCDisabled:
	case CRCTwoBytes:
		word |= ConfigCRCEnable | ConfigCRCTwo
	default:
		word |= ConfigCRCEnable
	}
	return word
}

// RFSetup builds RF_SETUP. The 1 Mbps rate is the one with neither rate bit
// set.
func (c *Config) RFSetup() byte {
	var gain byte
	switch c.Gain {
	case GainMax:
		gain = 0b11
	case GainHigh:
		gain = 0b10
	case GainLow:
		gain = 0b01
	case GainMin:
		gain = 0b00
	}
	word := gain << RFGainShift

	switch c.DataRate {
	case DataRateMax:
		word |= RFDataRateHigh
	case DataRateLow:
		word |= RFDataRateLow
	}
	return word
}

// AddrWidth builds SETUP_AW. The reserved 00 code cannot be produced.
func (c *Config) AddrWidth() byte {
	switch c.AddressWidth {
	case ThreeBytes:
		return 0b01
	case FourBytes:
		return 0b10
	}
	return 0b11
}

// Secondary is the full pipe 1 address: the shared high bytes followed by
// pipe 1's sub address, or 0 when pipe 1 is disabled.
func (c *Config) Secondary() [AddressLength]byte {
	var addr [AddressLength]byte
	copy(addr[:], c.SubAddress[:])
	if p := c.Pipes[1]; p != nil {
		addr[AddressLength-1] = p.Sub
	}
	return addr
}

// PipeSetup is the per-pipe register contents derived from Config.Pipes.
type PipeSetup struct {
	AutoAck        byte
	RXEnable       byte
	DynamicPayload byte
	Width          [PipeCount]byte
	// Address holds the low address byte of pipes 2 to 5.
	Address [PipeCount - 2]byte
}

// PipeSetup derives every pipe mask and table in one pass.
func (c *Config) PipeSetup() PipeSetup {
	var s PipeSetup
	for i, p := range c.Pipes {
		if p == nil {
			continue
		}
		bit := byte(1) << i
		s.RXEnable |= bit
		if p.AutoAck {
			s.AutoAck |= bit
		}
		if p.Dynamic() {
			s.DynamicPayload |= bit
		} else {
			s.Width[i] = p.Width
		}
		if i > 1 {
			s.Address[i-2] = p.Sub
		}
	}
	return s
}

// Features builds FEATURE. Dynamic payload length, ack payload and dynamic
// ack are always on.
func (*Config) Features() byte {
	return FeatureDynamicPayload | FeatureAckPayload | FeatureDynamicAck
}

// RegisterValue is one single byte register write.
type RegisterValue struct {
	Register Register
	Value    byte
}

// BlockValue is one address register write.
type BlockValue struct {
	Register BlockRegister
	Value    [AddressLength]byte
}

// Registers returns the single byte register writes that program the
// device, in the order they are issued.
func (c *Config) Registers() []RegisterValue {
	p := c.PipeSetup()
	return []RegisterValue{
		{RegConfig, c.ConfigRegister()},
		{RegAutoAck, p.AutoAck},
		{RegRXEnable, p.RXEnable},
		{RegAddressWidth, c.AddrWidth()},
		{RegRFChannel, c.Channel},
		{RegRFSetup, c.RFSetup()},
		{RegDynamicPayload, p.DynamicPayload},
		{RegFeature, c.Features()},

		{RegRX0Width, p.Width[0]},
		{RegRX1Width, p.Width[1]},
		{RegRX2Width, p.Width[2]},
		{RegRX3Width, p.Width[3]},
		{RegRX4Width, p.Width[4]},
		{RegRX5Width, p.Width[5]},

		{RegRX2Address, p.Address[0]},
		{RegRX3Address, p.Address[1]},
		{RegRX4Address, p.Address[2]},
		{RegRX5Address, p.Address[3]},
	}
}

// Blocks returns the address register writes issued after Registers.
func (c *Config) Blocks() []BlockValue {
	return []BlockValue{
		{BlockRX0Address, c.Address},
		{BlockRX1Address, c.Secondary()},
	}
}
