package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/flynn/json5"
	"gopkg.in/yaml.v3"

	"github.com/NV4RE/gnrf"
)

// radioFile describes a radio in YAML, or in JSON5 for files ending in
// .json or .json5. Omitted fields keep the driver defaults.
//
//	channel: 76
//	gain: max
//	datarate: 1Mbps
//	crc: 2bytes
//	addresswidth: 5bytes
//	address: e7e7e7e7e7
//	subaddress: c2c2c2c2
//	pipes:
//	  - pipe: 0
//	    sub: 0xe7
//	    autoack: true
//	  - pipe: 2
//	    sub: 0xc3
//	    width: 8
type radioFile struct {
	Channel      *byte       `yaml:"channel" json:"channel"`
	Gain         string      `yaml:"gain" json:"gain"`
	DataRate     string      `yaml:"datarate" json:"datarate"`
	CRC          string      `yaml:"crc" json:"crc"`
	AddressWidth string      `yaml:"addresswidth" json:"addresswidth"`
	Address      string      `yaml:"address" json:"address"`
	SubAddress   string      `yaml:"subaddress" json:"subaddress"`
	Pipes        []pipeEntry `yaml:"pipes" json:"pipes"`
}

type pipeEntry struct {
	Pipe    int  `yaml:"pipe" json:"pipe"`
	Sub     byte `yaml:"sub" json:"sub"`
	AutoAck bool `yaml:"autoack" json:"autoack"`
	// Width 0 selects dynamic payload length.
	Width byte `yaml:"width" json:"width"`
}

func loadRadio(path string) (gnrf.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return gnrf.Config{}, err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".json5":
		return decodeRadioJSON5(f)
	}
	return decodeRadio(f)
}

func decodeRadioJSON5(r io.Reader) (gnrf.Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return gnrf.Config{}, err
	}
	var rf radioFile
	if err := json5.Unmarshal(data, &rf); err != nil {
		return gnrf.Config{}, fmt.Errorf("radio file: %w", err)
	}
	return rf.config()
}

func decodeRadio(r io.Reader) (gnrf.Config, error) {
	var rf radioFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil && err != io.EOF {
		return gnrf.Config{}, fmt.Errorf("radio file: %w", err)
	}
	return rf.config()
}

func (rf radioFile) config() (gnrf.Config, error) {
	c := gnrf.DefaultConfig()
	if rf.Channel != nil {
		c.Channel = *rf.Channel
	}
	var err error
	if rf.Gain != "" {
		if c.Gain, err = parseGain(rf.Gain); err != nil {
			return c, err
		}
	}
	if rf.DataRate != "" {
		if c.DataRate, err = parseDataRate(rf.DataRate); err != nil {
			return c, err
		}
	}
	if rf.CRC != "" {
		if c.CRC, err = parseCRC(rf.CRC); err != nil {
			return c, err
		}
	}
	if rf.AddressWidth != "" {
		if c.AddressWidth, err = parseAddressWidth(rf.AddressWidth); err != nil {
			return c, err
		}
	}
	if rf.Address != "" {
		if err := parseHex(rf.Address, c.Address[:]); err != nil {
			return c, fmt.Errorf("address: %w", err)
		}
	}
	if rf.SubAddress != "" {
		if err := parseHex(rf.SubAddress, c.SubAddress[:]); err != nil {
			return c, fmt.Errorf("subaddress: %w", err)
		}
	}
	if rf.Pipes != nil {
		c.Pipes = [gnrf.PipeCount]*gnrf.Pipe{}
		for _, p := range rf.Pipes {
			if p.Pipe < 0 || p.Pipe >= gnrf.PipeCount {
				return c, fmt.Errorf("pipe %d out of range", p.Pipe)
			}
			if p.Width > gnrf.MaxPayloadSize {
				return c, fmt.Errorf("pipe %d: width %d exceeds %d", p.Pipe, p.Width, gnrf.MaxPayloadSize)
			}
			c.Pipes[p.Pipe] = &gnrf.Pipe{Sub: p.Sub, AutoAck: p.AutoAck, Width: p.Width}
		}
	}
	return c, nil
}

func parseHex(s string, dst []byte) error {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return err
	}
	if len(b) != len(dst) {
		return fmt.Errorf("want %d bytes, got %d", len(dst), len(b))
	}
	copy(dst, b)
	return nil
}

func parseGain(s string) (gnrf.Gain, error) {
	for _, g := range []gnrf.Gain{gnrf.GainMin, gnrf.GainLow, gnrf.GainHigh, gnrf.GainMax} {
		if strings.EqualFold(s, g.String()) {
			return g, nil
		}
	}
	return 0, fmt.Errorf("unknown gain %q", s)
}

func parseDataRate(s string) (gnrf.DataRate, error) {
	for _, d := range []gnrf.DataRate{gnrf.DataRateLow, gnrf.DataRateHigh, gnrf.DataRateMax} {
		if strings.EqualFold(s, d.String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown data rate %q", s)
}

func parseCRC(s string) (gnrf.CRCBytes, error) {
	for _, c := range []gnrf.CRCBytes{gnrf.CRCDisabled, gnrf.CRCOneByte, gnrf.CRCTwoBytes} {
		if strings.EqualFold(s, c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown crc %q", s)
}

func parseAddressWidth(s string) (gnrf.AddressWidth, error) {
	for _, a := range []gnrf.AddressWidth{gnrf.ThreeBytes, gnrf.FourBytes, gnrf.FiveBytes} {
		if strings.EqualFold(s, a.String()) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown address width %q", s)
}
