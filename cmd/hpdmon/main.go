// Copyright 2026 The go-hpd Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command hpdmon runs the hotplug state machine against a real
// connector: the HPD line comes from a GPIO (or a serial bench probe)
// and the descriptor from the connector's DDC bus. Lifecycle events go
// to the log and, optionally, to an MQTT broker.
//
//	hpdmon -gpiochip gpiochip0 -gpioline 25 -i2c /dev/i2c-3
//	hpdmon -gpiochip gpiochip0 -gpioline 25 -connector HDMI-A-1
//	hpdmon -probe /dev/ttyACM0 -i2c /dev/i2c-3 -broker tcp://10.0.0.5:1883
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	hpd "github.com/animesh-kishore/go-hpd"
	"github.com/animesh-kishore/go-hpd/ddc"
	"github.com/animesh-kishore/go-hpd/detection"
	"github.com/animesh-kishore/go-hpd/notify"
	"github.com/animesh-kishore/go-hpd/signal/gpio"
	"github.com/animesh-kishore/go-hpd/signal/uartprobe"
)

func main() {
	gpioChip := flag.String("gpiochip", "gpiochip0", "GPIO chip carrying the HPD line")
	gpioLine := flag.Int("gpioline", -1, "GPIO line offset of the HPD pin")
	probePort := flag.String("probe", "", "Serial bench probe port (alternative to GPIO)")
	i2cBus := flag.String("i2c", "", "I2C bus with the connector's DDC channel (default: resolved from -connector)")
	connector := flag.String("connector", "HDMI-A-1", "Connector name used in published events")
	broker := flag.String("broker", "", "MQTT broker address (empty to disable publishing)")
	topic := flag.String("topic", notify.DefaultTopic, "MQTT topic for lifecycle events")
	debug := flag.Bool("debug", false, "Enable state machine debug logging")
	flag.Parse()

	if *debug {
		hpd.SetDebugEnabled(true)
	}

	if err := run(*gpioChip, *gpioLine, *probePort, *i2cBus, *connector, *broker, *topic); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// signalSource is the subset of a line monitor the driver needs; both
// gpio.Monitor and uartprobe.Probe satisfy it.
type signalSource interface {
	SignalState() bool
	Close() error
}

func run(gpioChip string, gpioLine int, probePort, i2cBus, connector, broker, topic string) error {
	if i2cBus == "" {
		// Without an explicit bus, look the connector up in sysfs.
		bus, err := detection.FindDDCBus(connector)
		if err != nil {
			return fmt.Errorf("resolving DDC bus for %s (pass -i2c to override): %w", connector, err)
		}
		i2cBus = bus
	}
	if probePort == "" && gpioLine < 0 {
		return fmt.Errorf("either -probe or -gpioline is required")
	}

	reader, err := ddc.New(i2cBus)
	if err != nil {
		return fmt.Errorf("init ddc: %w", err)
	}
	defer func() { _ = reader.Close() }()

	var pub notify.Publisher
	if broker != "" {
		pub, err = notify.NewMQTT(broker, "hpdmon-"+connector, topic)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer func() { _ = pub.Close() }()
	}

	drv := &driver{reader: reader, pub: pub, connector: connector}

	// The line monitor needs a notify callback before the detector
	// exists; edges raced against startup are dropped and covered by
	// the priming notification below.
	var det atomic.Pointer[hpd.Detector]
	source, err := openSource(gpioChip, gpioLine, probePort, func() {
		if d := det.Load(); d != nil {
			d.NotifySignalChange()
		}
	})
	if err != nil {
		return fmt.Errorf("init signal source: %w", err)
	}
	defer func() { _ = source.Close() }()

	detector, err := hpd.New(hpd.Ops{
		SignalState:       source.SignalState,
		Disable:           drv.disable,
		ReadDescriptor:    drv.readDescriptor,
		DescriptorReady:   drv.descriptorReady,
		RecheckDescriptor: drv.recheckDescriptor,
	})
	if err != nil {
		return fmt.Errorf("init state machine: %w", err)
	}
	det.Store(detector)

	// Prime the machine with the current line state.
	detector.NotifySignalChange()

	log.Printf("monitoring %s (signal via %s, descriptor via %s)",
		connector, sourceName(gpioChip, gpioLine, probePort), i2cBus)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Printf("received %s, shutting down", s)

	detector.Shutdown()
	return nil
}

func openSource(gpioChip string, gpioLine int, probePort string, onEdge func()) (signalSource, error) {
	if probePort != "" {
		return uartprobe.Open(probePort, onEdge)
	}
	return gpio.NewMonitor(gpioChip, gpioLine, onEdge)
}

func sourceName(gpioChip string, gpioLine int, probePort string) string {
	if probePort != "" {
		return "probe " + probePort
	}
	return fmt.Sprintf("%s:%d", gpioChip, gpioLine)
}
