package gnrf

type Register byte
type BlockRegister byte
type Command byte

const (
	RegConfig         Register = 0x00
	RegAutoAck        Register = 0x01
	RegRXEnable       Register = 0x02
	RegAddressWidth   Register = 0x03
	RegRetries        Register = 0x04
	RegRFChannel      Register = 0x05
	RegRFSetup        Register = 0x06
	RegStatus         Register = 0x07
	RegObserve        Register = 0x08
	RegDetector       Register = 0x09
	RegRX2Address     Register = 0x0c
	RegRX3Address     Register = 0x0d
	RegRX4Address     Register = 0x0e
	RegRX5Address     Register = 0x0f
	RegRX0Width       Register = 0x11
	RegRX1Width       Register = 0x12
	RegRX2Width       Register = 0x13
	RegRX3Width       Register = 0x14
	RegRX4Width       Register = 0x15
	RegRX5Width       Register = 0x16
	RegFifoStatus     Register = 0x17
	RegDynamicPayload Register = 0x1c
	RegFeature        Register = 0x1d
)

const (
	BlockRX0Address BlockRegister = 0x0a
	BlockRX1Address BlockRegister = 0x0b
	BlockTXAddress  BlockRegister = 0x10
)

const (
	CmdTXFlush        Command = 0xe1
	CmdRXFlush        Command = 0xe2
	CmdTXReusePayload Command = 0xe3
	CmdRXPayloadWidth Command = 0x60
	CmdRXPayload      Command = 0x61
	CmdNop            Command = 0xff
)

// writeCommand is or'ed into a register address to turn a read into a write.
const writeCommand byte = 0x20

// CONFIG register bits.
const (
	ConfigPrimRX    byte = 1 << 0
	ConfigPowerUp   byte = 1 << 1
	ConfigCRCTwo    byte = 1 << 2
	ConfigCRCEnable byte = 1 << 3
	ConfigMaskMaxRT byte = 1 << 4
	ConfigMaskTXDS  byte = 1 << 5
	ConfigMaskRXDR  byte = 1 << 6
)

// RF_SETUP register bits.
const (
	RFGainShift    = 1
	RFDataRateHigh byte = 1 << 3
	RFDataRateLow  byte = 1 << 5
)

// FEATURE register bits.
const (
	FeatureDynamicAck     byte = 1 << 0
	FeatureAckPayload     byte = 1 << 1
	FeatureDynamicPayload byte = 1 << 2
)

// IrqMask selects the three interrupt flags of the STATUS register. Writing
// it back clears them.
const IrqMask byte = 0x70

const (
	PipeCount      = 6
	AddressLength  = 5
	MaxPayloadSize = 32
)
