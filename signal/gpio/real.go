//go:build linux

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
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// realMonitor drives a line on a Linux GPIO character device.
type realMonitor struct {
	line *gpiocdev.Line
}

// NewMonitor requests the line at offset on the named chip (e.g.
// "gpiochip0") as an input with both-edge events. Every edge invokes
// notify; notify must be safe to call from the event goroutine, which
// hpd.Detector.NotifySignalChange is.
func NewMonitor(chip string, offset int, notify func()) (Monitor, error) {
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
			// The edge direction is irrelevant: the worker samples the
			// live level itself, and the line may have moved again
			// between the edge and the sample.
			notify()
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("request hpd line %s:%d: %w", chip, offset, err)
	}

	return &realMonitor{line: line}, nil
}

func (m *realMonitor) Level() (bool, error) {
	v, err := m.line.Value()
	if err != nil {
		return false, fmt.Errorf("read hpd line: %w", err)
	}
	return v != 0, nil
}

func (m *realMonitor) SignalState() bool {
	v, err := m.Level()
	if err != nil {
		return false
	}
	return v
}

func (m *realMonitor) Close() error {
	if err := m.line.Close(); err != nil {
		return fmt.Errorf("close hpd line: %w", err)
	}
	return nil
}
