// Package gnrf is a receive driver for the nRF24L01(+) 2.4GHz transceiver.
//
// A Device frames single register, address register, command and payload
// exchanges on a full duplex bus, holding chip select low for exactly one
// exchange. A Config compiles a radio description into register values, and
// a Receiver programs those into the device and runs the power down,
// standby and listening lifecycle.
//
//	d, err := gnrf.OpenPeriph(gnrf.PeriphConfig{CE: "GPIO25", IRQ: "GPIO24"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer d.Close()
//
//	r, err := gnrf.NewReceiver(d.Device, gnrf.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	for {
//		p, err := r.Receive(false, time.Second)
//		if err != nil {
//			log.Fatal(err)
//		}
//		if p != nil {
//			fmt.Println(p)
//		}
//	}
package gnrf
