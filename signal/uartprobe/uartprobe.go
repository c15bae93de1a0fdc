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

// Package uartprobe reads hotplug line levels from a serial-attached
// bench probe: a microcontroller bridge that watches the HPD pin of a
// connector under test and streams level changes over USB-serial. It
// exists for bring-up rigs where the host has no direct GPIO access to
// the connector.
//
// The wire protocol is line oriented ASCII: the probe emits "HPD 1" or
// "HPD 0" on every level change. Anything else on the wire is ignored,
// which tolerates probe firmware banners and debug chatter.
package uartprobe

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the common CDC-ACM bridge configuration.
const DefaultBaudRate = 115200

// Probe tracks the last level reported by a bench probe.
type Probe struct {
	port   io.ReadCloser
	notify func()

	level  atomic.Bool
	closed atomic.Bool
	wg     sync.WaitGroup
}

// Open connects to the probe on the named serial port (e.g.
// "/dev/ttyACM0") at the default baud rate. Every reported level change
// invokes notify from the reader goroutine.
func Open(portName string, notify func()) (*Probe, error) {
	mode := &serial.Mode{BaudRate: DefaultBaudRate}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open probe port %s: %w", portName, err)
	}
	return NewFromPort(port, notify), nil
}

// NewFromPort wraps an already-open stream and starts the reader.
// Closing the Probe closes the stream.
func NewFromPort(port io.ReadCloser, notify func()) *Probe {
	p := &Probe{port: port, notify: notify}
	p.wg.Add(1)
	go p.readLoop()
	return p
}

// readLoop consumes the probe's event stream until the port closes.
func (p *Probe) readLoop() {
	defer p.wg.Done()

	scanner := bufio.NewScanner(p.port)
	for scanner.Scan() {
		level, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if p.level.Swap(level) != level && p.notify != nil {
			p.notify()
		}
	}
	// Read errors after Close are the expected shutdown path; anything
	// else means the probe went away and the line reads as deasserted
	// from here on, which parks the machine safely.
}

// parseLine extracts the level from one probe report.
func parseLine(line string) (level, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(line), "HPD ")
	if !found {
		return false, false
	}
	switch strings.TrimSpace(rest) {
	case "1":
		return true, true
	case "0":
		return false, true
	default:
		return false, false
	}
}

// Level returns the last level the probe reported. A probe that has
// said nothing yet reads as deasserted.
func (p *Probe) Level() bool {
	return p.level.Load()
}

// SignalState adapts Level to the hpd.Ops signature.
func (p *Probe) SignalState() bool {
	return p.Level()
}

// Close shuts the port and waits for the reader goroutine to exit.
func (p *Probe) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	err := p.port.Close()
	p.wg.Wait()
	if err != nil {
		return fmt.Errorf("close probe port: %w", err)
	}
	return nil
}
