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

// Package edid parses and validates EDID display descriptors: the
// 128-byte base block a sink exposes over DDC, plus any extension
// blocks. It decodes the identity fields a hotplug driver needs
// (vendor, product, serial) and detects descriptor changes between two
// reads, which is how a driver tells "same panel came back" from "a
// different panel was plugged in".
package edid

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// BlockSize is the size of every EDID block, base and extension alike.
const BlockSize = 128

// header is the fixed 8-byte magic that opens every base block.
var header = []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}

var (
	// ErrTooShort indicates the data is smaller than one block.
	ErrTooShort = errors.New("edid shorter than one block")
	// ErrBadHeader indicates the base block magic is wrong, usually a
	// failed or garbled DDC read.
	ErrBadHeader = errors.New("bad edid header")
	// ErrChecksum indicates a block whose bytes do not sum to zero.
	ErrChecksum = errors.New("edid checksum mismatch")
)

// EDID holds the identity fields decoded from a base block. Raw keeps
// the full bytes as read, including extension blocks, for change
// detection and for consumers that parse timings themselves.
type EDID struct {
	Raw          []byte
	Manufacturer string
	ProductCode  uint16
	SerialNumber uint32
	Week         int
	Year         int
	Version      int
	Revision     int
	Extensions   int
	DigitalInput bool
}

// ValidateBlock checks one 128-byte block's checksum: all bytes must
// sum to zero modulo 256. Index 0 additionally requires the base block
// magic.
func ValidateBlock(block []byte, index int) error {
	if len(block) < BlockSize {
		return fmt.Errorf("%w: block %d is %d bytes", ErrTooShort, index, len(block))
	}
	if index == 0 && !bytes.Equal(block[:8], header) {
		return fmt.Errorf("%w: % X", ErrBadHeader, block[:8])
	}

	var sum byte
	for _, b := range block[:BlockSize] {
		sum += b
	}
	if sum != 0 {
		return fmt.Errorf("%w: block %d sums to 0x%02X", ErrChecksum, index, sum)
	}
	return nil
}

// Parse validates the base block plus any trailing extension blocks and
// decodes the identity fields. Trailing bytes beyond the advertised
// extension count are rejected as a short or over-long read.
func Parse(data []byte) (*EDID, error) {
	if err := ValidateBlock(data, 0); err != nil {
		return nil, err
	}

	extensions := int(data[126])
	want := (1 + extensions) * BlockSize
	if len(data) != want {
		return nil, fmt.Errorf("%w: have %d bytes, base block advertises %d",
			ErrTooShort, len(data), want)
	}
	for i := 1; i <= extensions; i++ {
		if err := ValidateBlock(data[i*BlockSize:(i+1)*BlockSize], i); err != nil {
			return nil, err
		}
	}

	e := &EDID{
		Raw:          data,
		Manufacturer: decodeManufacturer(binary.BigEndian.Uint16(data[8:10])),
		ProductCode:  binary.LittleEndian.Uint16(data[10:12]),
		SerialNumber: binary.LittleEndian.Uint32(data[12:16]),
		Week:         int(data[16]),
		Year:         1990 + int(data[17]),
		Version:      int(data[18]),
		Revision:     int(data[19]),
		Extensions:   extensions,
		DigitalInput: data[20]&0x80 != 0,
	}
	return e, nil
}

// decodeManufacturer unpacks the big-endian PNP ID: three 5-bit
// letters, 1 = 'A'.
func decodeManufacturer(packed uint16) string {
	return string([]byte{
		'A' - 1 + byte(packed>>10&0x1F),
		'A' - 1 + byte(packed>>5&0x1F),
		'A' - 1 + byte(packed&0x1F),
	})
}

// Equal reports whether two raw descriptor reads are byte-identical.
// This is the change-detection primitive behind a recheck after the
// hotplug line drops and reasserts.
func Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}

// String renders the identity in pnp-id/product/serial form, e.g.
// "DEL 0xA0C4 serial 0x30F2B1".
func (e *EDID) String() string {
	return fmt.Sprintf("%s 0x%04X serial 0x%X", e.Manufacturer, e.ProductCode, e.SerialNumber)
}
