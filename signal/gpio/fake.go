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

package gpio

import (
	"sync"
	"sync/atomic"
)

// Fake is a test double that stands in for a hardware hotplug line.
// SetLevel flips the level and, on a change, fires the notify callback
// the way a real edge event would.
type Fake struct {
	mu     sync.Mutex
	notify func()
	level  bool
	closed atomic.Bool

	// ReadError, if set, is returned by Level.
	ReadError error
}

// NewFake creates a fake line at the given initial level.
func NewFake(level bool, notify func()) *Fake {
	return &Fake{level: level, notify: notify}
}

// SetLevel drives the line. A change fires notify; re-asserting the
// same level is a no-op, matching edge-triggered hardware.
func (f *Fake) SetLevel(level bool) {
	f.mu.Lock()
	changed := f.level != level
	f.level = level
	notify := f.notify
	f.mu.Unlock()

	if changed && notify != nil {
		notify()
	}
}

// Pulse drives the line to level and back, firing notify twice. Useful
// for simulating bounce.
func (f *Fake) Pulse(level bool) {
	f.SetLevel(level)
	f.SetLevel(!level)
}

func (f *Fake) Level() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.level, nil
}

func (f *Fake) SignalState() bool {
	v, err := f.Level()
	if err != nil {
		return false
	}
	return v
}

// Close marks the fake closed.
func (f *Fake) Close() error {
	f.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	return f.closed.Load()
}
