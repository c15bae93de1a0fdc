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

package main

import (
	"log"
	"time"

	hpd "github.com/animesh-kishore/go-hpd"
	"github.com/animesh-kishore/go-hpd/notify"
	"github.com/animesh-kishore/go-hpd/pkg/edid"
)

// descriptorReader is the slice of ddc.Reader the driver uses.
type descriptorReader interface {
	Read() ([]byte, error)
}

// driver is the collaborator side of the state machine for one
// connector: it caches the last good descriptor and turns lifecycle
// hooks into log lines and published events. All hooks run on the
// machine's single worker, so no locking is needed here.
type driver struct {
	reader    descriptorReader
	pub       notify.Publisher
	connector string

	lastRaw []byte
	lastID  *edid.EDID
}

func (d *driver) readDescriptor() bool {
	raw, err := d.reader.Read()
	if err != nil {
		log.Printf("%s: descriptor read failed: %v", d.connector, err)
		return false
	}
	id, err := edid.Parse(raw)
	if err != nil {
		log.Printf("%s: descriptor invalid: %v", d.connector, err)
		return false
	}
	d.lastRaw = raw
	d.lastID = id
	return true
}

func (d *driver) descriptorReady() {
	log.Printf("%s: connected: %s", d.connector, d.lastID)
	d.publish(true)
}

func (d *driver) disable() {
	log.Printf("%s: output disabled", d.connector)
	d.lastRaw = nil
	d.lastID = nil
	d.publish(false)
}

func (d *driver) recheckDescriptor() hpd.RecheckResult {
	raw, err := d.reader.Read()
	if err != nil {
		log.Printf("%s: descriptor recheck failed: %v", d.connector, err)
		return hpd.RecheckFailed
	}
	if edid.Equal(d.lastRaw, raw) {
		return hpd.RecheckUnchanged
	}

	id, err := edid.Parse(raw)
	if err != nil {
		return hpd.RecheckFailed
	}
	log.Printf("%s: descriptor changed: %s -> %s", d.connector, d.lastID, id)
	d.lastRaw = raw
	d.lastID = id
	return hpd.RecheckChanged
}

func (d *driver) publish(connected bool) {
	if d.pub == nil {
		return
	}

	event := notify.Event{
		Timestamp: time.Now(),
		Connector: d.connector,
		Connected: connected,
	}
	if connected && d.lastID != nil {
		event.Monitor = d.lastID.String()
	}
	if err := d.pub.Publish(event); err != nil {
		// Publishing is best effort; the display keeps working without
		// the broker.
		log.Printf("%s: publish failed: %v", d.connector, err)
	}
}
