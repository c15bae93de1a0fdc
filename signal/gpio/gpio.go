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

// Package gpio monitors a hotplug detect line wired to a GPIO, the
// usual arrangement on SoCs whose display block does not expose HPD as
// a dedicated interrupt. Edge events fire a notify callback (typically
// hpd.Detector.NotifySignalChange) and the line level backs the
// SignalState capability. The monitor reports raw edges; settling and
// debounce belong to the state machine.
package gpio

import "errors"

// ErrUnsupported is returned on platforms without the Linux GPIO
// character device.
var ErrUnsupported = errors.New("gpio hotplug monitoring requires linux")

// Monitor watches one hotplug line.
type Monitor interface {
	// Level returns the instantaneous line level, true when asserted.
	Level() (bool, error)

	// SignalState adapts Level to the hpd.Ops signature. A line that
	// cannot be read reports deasserted, which steers the machine
	// toward the safe disabled state.
	SignalState() bool

	// Close releases the line.
	Close() error
}
