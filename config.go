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

package hpd

import (
	"fmt"
	"time"
)

// Config holds the machine's timing knobs. The defaults suit real
// hardware; tests shrink them to keep runtimes short.
type Config struct {
	// StabilizeDelay is how long the hotplug line must be left to
	// settle before committing to a full restart of the machine.
	// Spurious transitions on plug insertion bounce for a few tens of
	// milliseconds.
	StabilizeDelay time.Duration

	// DropTimeout is the grace window after the line drops while
	// enabled. Some sinks hold the line low for around a second when
	// video starts and then reassert it; only after DropTimeout with
	// no reassert is the output torn down.
	DropTimeout time.Duration

	// PlugCheckDelay is the settle delay between tearing down output
	// in StateReset and sampling the line in StatePlug.
	PlugCheckDelay time.Duration

	// EDIDReadDelay is the delay before a first descriptor read and
	// between read retries.
	EDIDReadDelay time.Duration

	// MaxEDIDReads is the number of consecutive failed descriptor
	// reads tolerated before the machine gives up on the sink.
	MaxEDIDReads int
}

// DefaultConfig returns the timing used on real hardware.
func DefaultConfig() *Config {
	return &Config{
		StabilizeDelay: 40 * time.Millisecond,
		DropTimeout:    1500 * time.Millisecond,
		PlugCheckDelay: 10 * time.Millisecond,
		EDIDReadDelay:  60 * time.Millisecond,
		MaxEDIDReads:   5,
	}
}

// Option configures a Detector at construction time.
type Option func(*Detector) error

// WithConfig replaces the default timing configuration.
func WithConfig(cfg *Config) Option {
	return func(d *Detector) error {
		if cfg == nil {
			return fmt.Errorf("%w: nil config", ErrInvalidConfig)
		}
		if cfg.MaxEDIDReads < 1 {
			return fmt.Errorf("%w: MaxEDIDReads must be at least 1, got %d",
				ErrInvalidConfig, cfg.MaxEDIDReads)
		}
		if cfg.StabilizeDelay < 0 || cfg.DropTimeout < 0 ||
			cfg.PlugCheckDelay < 0 || cfg.EDIDReadDelay < 0 {
			return fmt.Errorf("%w: negative delay", ErrInvalidConfig)
		}
		d.cfg = *cfg
		return nil
	}
}
