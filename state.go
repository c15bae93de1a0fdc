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

import "time"

// State is a position in the hotplug detection state machine.
type State int

const (
	// StateReset tears down all output and then proceeds to StatePlug
	// after a short settle delay.
	StateReset State = iota

	// StatePlug samples the hotplug line after the settle delay. Low
	// means unplugged and the machine parks in StateDoneDisabled; high
	// means plugged and the machine proceeds to StateCheckEDID.
	StatePlug

	// StateCheckEDID attempts to read the sink's descriptor with a
	// bounded number of retries. Exhausting the retries parks the
	// machine in StateDoneDisabled; a successful read parks it in
	// StateDoneEnabled.
	StateCheckEDID

	// StateDoneDisabled is the steady state with nothing connected or
	// an unreadable descriptor. Only a hotplug event leaves it.
	StateDoneDisabled

	// StateDoneEnabled is the steady state with a valid descriptor and
	// output enabled. Only a hotplug event leaves it.
	StateDoneEnabled

	// StateWaitForHPDReassert is entered when the line drops while
	// enabled. Some sinks drop the line for up to a second when video
	// starts and then reassert it; holding the output steady instead of
	// resetting keeps those panels alive. If the line does not come
	// back within the grace window the machine falls back to
	// StateReset.
	StateWaitForHPDReassert

	// StateRecheckEDID verifies the descriptor after the line
	// reasserted within the grace window. Unchanged descriptor means
	// the same panel and the machine returns to StateDoneEnabled;
	// a changed or unreadable descriptor forces a full reset.
	StateRecheckEDID

	// StateInitFromBootloader is the initial state. The bootloader may
	// already be driving the link, so the machine avoids blanking the
	// screen until the first hotplug event tells it what is attached.
	StateInitFromBootloader

	stateCount
)

var stateNames = [stateCount]string{
	StateReset:              "Reset",
	StatePlug:               "Check Plug",
	StateCheckEDID:          "Check EDID",
	StateDoneDisabled:       "Disabled",
	StateDoneEnabled:        "Enabled",
	StateWaitForHPDReassert: "Wait for HPD reassert",
	StateRecheckEDID:        "Recheck EDID",
	StateInitFromBootloader: "Takeover from bootloader",
}

func (s State) String() string {
	if s < 0 || s >= stateCount {
		return "Invalid"
	}
	return stateNames[s]
}

// transition is the outcome of a state handler: the state to record and
// whether/when the worker should run again. A parked transition leaves
// no callback scheduled; only a hotplug event wakes the machine.
type transition struct {
	next  State
	delay time.Duration
	park  bool
}

func resched(next State, delay time.Duration) transition {
	return transition{next: next, delay: delay}
}

func parked(next State) transition {
	return transition{next: next, park: true}
}

// handlers dispatches the worker for states that drive themselves. Nil
// entries are the steady states and the bootloader takeover state,
// which only move in response to an admitted hotplug event.
var handlers = [stateCount]func(*Detector) transition{
	StateReset:              (*Detector).resetState,
	StatePlug:               (*Detector).plugState,
	StateCheckEDID:          (*Detector).checkEDIDState,
	StateDoneDisabled:       nil,
	StateDoneEnabled:        nil,
	StateWaitForHPDReassert: (*Detector).waitForReassertState,
	StateRecheckEDID:        (*Detector).recheckEDIDState,
	StateInitFromBootloader: nil,
}

// resetState shuts everything down, then schedules a check of the plug
// state in the near future.
func (d *Detector) resetState() transition {
	d.disable()
	return resched(StatePlug, d.cfg.PlugCheckDelay)
}

func (d *Detector) plugState() transition {
	if d.ops.SignalState() {
		// Something is plugged in. Get ready to read the sink's
		// descriptor.
		d.edidReads = 0
		return resched(StateCheckEDID, d.cfg.EDIDReadDelay)
	}

	// Nothing plugged in, so we are finished. Park in DoneDisabled
	// until the next hotplug event.
	d.disable()
	return parked(StateDoneDisabled)
}

func (d *Detector) checkEDIDState() transition {
	if !d.ops.SignalState() {
		debugf("signal dropped, aborting descriptor read")
		d.disable()
		return parked(StateDoneDisabled)
	}

	if !d.ops.ReadDescriptor() {
		// Failed to read the descriptor. Schedule another attempt if
		// we have retries left, otherwise give up and disable.
		d.edidReads++
		if d.edidReads >= d.cfg.MaxEDIDReads {
			debugf("descriptor read failed %d times, giving up", d.edidReads)
			d.disable()
			return parked(StateDoneDisabled)
		}
		return resched(StateCheckEDID, d.cfg.EDIDReadDelay)
	}

	d.ops.DescriptorReady()
	return parked(StateDoneEnabled)
}

// waitForReassertState only runs when the grace window expired without
// the line coming back. Reset the system.
func (d *Detector) waitForReassertState() transition {
	return resched(StateReset, 0)
}

func (d *Detector) recheckEDIDState() transition {
	switch d.ops.RecheckDescriptor() {
	case RecheckUnchanged:
		// Same panel at the other end, go back to steady state and do
		// nothing.
		debugf("no descriptor change, taking no action")
		return parked(StateDoneEnabled)
	case RecheckFailed:
		d.edidReads++
		if d.edidReads < d.cfg.MaxEDIDReads {
			return resched(StateRecheckEDID, d.cfg.EDIDReadDelay)
		}
		debugf("descriptor recheck failed %d times, giving up", d.edidReads)
		return resched(StateReset, 0)
	case RecheckChanged:
		// New panel, start the machine over.
		return resched(StateReset, 0)
	default:
		warnf("unexpected recheck result, resetting")
		return resched(StateReset, 0)
	}
}
