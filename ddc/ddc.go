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

// Package ddc reads EDID descriptors over the Display Data Channel, the
// I2C bus every HDMI and DisplayPort connector exposes at address 0x50.
// It provides the ReadDescriptor/RecheckDescriptor side of an hpd.Ops
// capability set; the hpd core owns retries, so a Reader makes exactly
// one attempt per call.
package ddc

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/animesh-kishore/go-hpd/pkg/edid"
)

const (
	// edidAddr is the 7-bit DDC address serving descriptor bytes.
	edidAddr = 0x50
	// segmentAddr is the 7-bit E-DDC segment pointer address, used to
	// reach extension blocks beyond the first two.
	segmentAddr = 0x30

	// DDC is specified at 100 kHz; faster clocks make marginal cables
	// return garbage that still ACKs.
	busSpeed = 100 * physic.KiloHertz
)

// Reader reads EDID blocks from one connector's DDC bus.
type Reader struct {
	bus     i2c.Bus
	closer  i2c.BusCloser
	busName string
}

// New opens the named I2C bus (e.g. "/dev/i2c-3" or "3") and prepares
// it for DDC reads.
func New(busName string) (*Reader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}

	// Best effort; stay at the adapter default if it refuses.
	_ = bus.SetSpeed(busSpeed)

	return &Reader{bus: bus, closer: bus, busName: busName}, nil
}

// NewFromBus wraps an already-open bus. The caller keeps ownership;
// Close is a no-op. Intended for tests and for drivers multiplexing a
// bus between DDC and other devices.
func NewFromBus(bus i2c.Bus) *Reader {
	return &Reader{bus: bus, busName: bus.String()}
}

// ReadBlock reads the 128-byte EDID block at the given index. Blocks 0
// and 1 live in segment 0 and are addressed by offset alone; higher
// blocks need the E-DDC segment pointer written first.
func (r *Reader) ReadBlock(index int) ([]byte, error) {
	if index < 0 || index > 0xFF {
		return nil, fmt.Errorf("edid block index %d out of range", index)
	}

	if segment := index / 2; segment > 0 {
		// Segment pointer resets after every transaction; write it
		// immediately before the data read.
		if err := r.bus.Tx(segmentAddr, []byte{byte(segment)}, nil); err != nil {
			return nil, fmt.Errorf("ddc segment %d select on %s: %w", segment, r.busName, err)
		}
	}

	offset := byte(index % 2 * edid.BlockSize)
	block := make([]byte, edid.BlockSize)
	if err := r.bus.Tx(edidAddr, []byte{offset}, block); err != nil {
		return nil, fmt.Errorf("ddc read block %d on %s: %w", index, r.busName, err)
	}
	return block, nil
}

// Read reads the base block plus every extension block it advertises
// and returns the raw descriptor. The base block is validated before
// the extension count is trusted, so a garbled read fails here instead
// of producing a bogus multi-block fetch.
func (r *Reader) Read() ([]byte, error) {
	base, err := r.ReadBlock(0)
	if err != nil {
		return nil, err
	}
	if err := edid.ValidateBlock(base, 0); err != nil {
		return nil, err
	}

	data := base
	for i := 1; i <= int(base[126]); i++ {
		block, err := r.ReadBlock(i)
		if err != nil {
			return nil, err
		}
		data = append(data, block...)
	}
	return data, nil
}

// Close releases the bus if this Reader opened it.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	if err := r.closer.Close(); err != nil {
		return fmt.Errorf("close I2C bus %s: %w", r.busName, err)
	}
	return nil
}
