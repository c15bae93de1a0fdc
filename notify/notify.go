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

// Package notify publishes display lifecycle events for userspace
// consumers. The hpd core never imports this package; it is collaborator
// territory, wired into the DescriptorReady and Disable hooks by the
// monitor command or by a driver that wants fleet visibility into what
// is plugged where.
package notify

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultTopic is the MQTT topic for display lifecycle events.
const DefaultTopic = "display/hpd/events"

// Event is one lifecycle transition of a connector.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Connector string    `json:"connector"`
	// Monitor is the decoded descriptor identity, empty when
	// disconnected.
	Monitor   string `json:"monitor,omitempty"`
	Connected bool   `json:"connected"`
}

// Publisher delivers lifecycle events. Implementations must tolerate
// being called from the state machine worker, so a slow broker must not
// block indefinitely.
type Publisher interface {
	Publish(event Event) error
	Close() error
}

// FormatPayload renders the event as the JSON wire payload.
func FormatPayload(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("format event payload: %w", err)
	}
	return payload, nil
}
