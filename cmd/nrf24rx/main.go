// Command nrf24rx listens on an nRF24L01(+) and prints every frame it
// receives.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NV4RE/gnrf"
	"github.com/NV4RE/gnrf/capture"
	"github.com/NV4RE/gnrf/transport/buspirate"
)

var (
	backend      = flag.String("backend", "periph", "radio backend, periph or buspirate")
	spiPort      = flag.String("spi", "", "periph SPI port, empty for the first one")
	csPin        = flag.String("cs", "", "periph chip select pin, empty when the SPI port drives CS")
	cePin        = flag.String("ce", "GPIO25", "periph chip enable pin")
	irqPin       = flag.String("irq", "GPIO24", "periph interrupt pin")
	serialPort   = flag.String("port", "/dev/ttyUSB0", "bus pirate serial port")
	radioConfig  = flag.String("config", "", "radio configuration, YAML or JSON5")
	channel      = flag.Int("channel", -1, "RF channel, overrides the configuration")
	timeout      = flag.Duration("timeout", time.Second, "interrupt wait before re-arming")
	count        = flag.Int("count", 0, "stop after this many frames, 0 for no limit")
	captureFile  = flag.String("capture", "", "record frames to this CBOR file")
	redisAddr    = flag.String("redis", "", "publish frames to this Redis server")
	redisChannel = flag.String("redis-channel", "nrf24", "Redis channel for published frames")
	debug        = flag.Bool("debug", false, "log every bus transfer")
)

var log = logrus.New()

func main() {
	flag.Parse()
	log.Formatter = new(logrus.TextFormatter)
	log.Out = os.Stderr
	gnrf.SetLogger(log)
	gnrf.SetDebugEnabled(*debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "nrf24rx: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if *timeout < 0 {
		return fmt.Errorf("-timeout %v: %w", *timeout, gnrf.ErrNegativeTimeout)
	}
	config := gnrf.DefaultConfig()
	if *radioConfig != "" {
		var err error
		if config, err = loadRadio(*radioConfig); err != nil {
			return err
		}
	}
	if *channel >= 0 {
		config.Channel = byte(*channel)
	}

	dev, closer, err := openBackend()
	if err != nil {
		return err
	}
	defer closer.Close()

	r, err := gnrf.NewReceiver(dev, config)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"backend": *backend,
		"channel": config.Channel,
		"rate":    config.DataRate,
		"crc":     config.CRC,
	}).Info("listening")

	var sinks []capture.Sink
	if *captureFile != "" {
		f, err := os.Create(*captureFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w, err := capture.NewWriter(f)
		if err != nil {
			return err
		}
		sinks = append(sinks, w)
	}
	if *redisAddr != "" {
		s, client, err := capture.DialRedis(*redisAddr, *redisChannel)
		if err != nil {
			return err
		}
		defer client.Close()
		sinks = append(sinks, s)
	}

	return receive(ctx, r, os.Stdout, sinks, *timeout, *count)
}

// receive prints frames from r until ctx is done or limit frames have
// arrived. A sink that fails is logged and dropped.
func receive(ctx context.Context, r *gnrf.Receiver, out io.Writer, sinks []capture.Sink, timeout time.Duration, limit int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sinks = append([]capture.Sink(nil), sinks...)

	ch := make(chan *gnrf.Payload)
	done := make(chan error, 1)
	go func() {
		done <- r.ReceiveContinue(ctx, timeout, ch)
	}()

	n := 0
	for {
		select {
		case err := <-done:
			return err
		case p := <-ch:
			fmt.Fprintln(out, p)
			rec := capture.NewRecord(time.Now(), p)
			for i := 0; i < len(sinks); i++ {
				if err := sinks[i].Write(rec); err != nil {
					log.WithError(err).Warn("capture sink dropped")
					sinks = append(sinks[:i], sinks[i+1:]...)
					i--
				}
			}
			n++
			if limit > 0 && n >= limit {
				cancel()
				return <-done
			}
		}
	}
}

func openBackend() (*gnrf.Device, io.Closer, error) {
	switch *backend {
	case "periph":
		c := gnrf.DefaultPeriphConfig()
		c.SPI, c.CS, c.CE, c.IRQ = *spiPort, *csPin, *cePin, *irqPin
		d, err := gnrf.OpenPeriph(c)
		if err != nil {
			return nil, nil, err
		}
		return d.Device, d, nil
	case "buspirate":
		b, err := buspirate.Open(*serialPort)
		if err != nil {
			return nil, nil, err
		}
		d, err := gnrf.NewDevice(b, b.CS(), b.AUX(), b.IRQ())
		if err != nil {
			b.Close()
			return nil, nil, err
		}
		return d, b, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", *backend)
}
