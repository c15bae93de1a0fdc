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

// Package hpd turns a noisy, asynchronously arriving hotplug signal
// from an external display interface (HDMI, DisplayPort) into a
// debounced, retried sequence of lifecycle transitions the rest of the
// system can trust: "display enabled with valid EDID", "display
// disabled".
//
// The package owns the state machine only. Sampling the hotplug line,
// enabling and disabling the display pipeline, and reading the sink's
// EDID belong to the driver using this package and are supplied through
// the Ops capability set. Reference implementations for common hardware
// live in the signal, ddc and notify subpackages.
package hpd

import (
	"fmt"
	"time"

	"github.com/animesh-kishore/go-hpd/internal/syncutil"
)

// RecheckResult is the outcome of Ops.RecheckDescriptor.
type RecheckResult int

const (
	// RecheckFailed means the descriptor could not be read.
	RecheckFailed RecheckResult = iota
	// RecheckUnchanged means the descriptor matches the previous read.
	RecheckUnchanged
	// RecheckChanged means a different sink is now attached.
	RecheckChanged
)

// Ops is the capability set a driver supplies to the state machine.
// Some of the work done here is platform or display interface specific,
// and drivers may want to hang custom behavior off state transitions;
// these hooks keep the machine portable and not tied to any one
// interface.
//
// SignalState, ReadDescriptor, DescriptorReady and RecheckDescriptor
// are mandatory; New fails if any of them is nil. The remaining hooks
// are optional and skipped when nil. Hooks carry driver context by
// closing over it or by being method values; no opaque payload is
// threaded through.
//
// Hooks are never invoked concurrently with each other: the machine
// runs a single worker per Detector. They are, however, invoked without
// any internal lock held, so NotifySignalChange may be called from a
// hook or from an interrupt-style callback while another hook is in
// flight.
type Ops struct {
	// Init runs once during New, before any other hook. Optional.
	Init func()

	// SignalState returns the instantaneous level of the hotplug line:
	// true when asserted. Must not block indefinitely. Mandatory.
	SignalState func() bool

	// Disable tears down the display pipeline. Optional, but a driver
	// that leaves it nil keeps scanning out into the void.
	Disable func()

	// ReadDescriptor reads and caches the sink's EDID, returning true
	// on success. Mandatory.
	ReadDescriptor func() bool

	// DescriptorReady tells the rest of the system that a sink with a
	// valid EDID is attached and the pipeline may be enabled.
	// Mandatory.
	DescriptorReady func()

	// RecheckDescriptor re-reads the EDID after the hotplug line
	// dropped and came back, and reports whether it changed relative
	// to the previous read. Mandatory.
	RecheckDescriptor func() RecheckResult

	// Shutdown releases resources acquired by Init. Optional.
	Shutdown func()
}

func (o *Ops) validate() error {
	switch {
	case o.SignalState == nil:
		return fmt.Errorf("%w: SignalState", ErrMissingCapability)
	case o.ReadDescriptor == nil:
		return fmt.Errorf("%w: ReadDescriptor", ErrMissingCapability)
	case o.DescriptorReady == nil:
		return fmt.Errorf("%w: DescriptorReady", ErrMissingCapability)
	case o.RecheckDescriptor == nil:
		return fmt.Errorf("%w: RecheckDescriptor", ErrMissingCapability)
	}
	return nil
}

// Detector is the hotplug state machine for one physical display
// interface. Nothing is shared between Detectors; a driver managing
// several connectors owns one Detector per connector.
//
// A Detector starts in StateInitFromBootloader and stays there until
// the first NotifySignalChange, so a link already driven by the
// bootloader is not blanked at handoff.
type Detector struct {
	ops Ops
	cfg Config

	// mu guards state, pendingEvent, closing and timer. It is never
	// held across an Ops hook.
	mu    syncutil.Mutex
	timer *time.Timer
	state State

	pendingEvent bool
	closing      bool

	// runMu serializes worker invocations; a fired timer callback and a
	// zero-delay admission schedule can otherwise overlap. Shutdown
	// acquires it to drain an in-flight worker.
	runMu syncutil.Mutex

	// edidReads counts consecutive descriptor read failures. Only the
	// worker touches it, so it needs no lock.
	edidReads int
}

// New validates the capability set, runs the optional Init hook and
// returns a Detector parked in StateInitFromBootloader. The machine
// does not move until the first NotifySignalChange.
func New(ops Ops, opts ...Option) (*Detector, error) {
	if err := ops.validate(); err != nil {
		return nil, err
	}

	d := &Detector{
		ops:   ops,
		cfg:   *DefaultConfig(),
		state: StateInitFromBootloader,
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	if d.ops.Init != nil {
		d.ops.Init()
	}

	return d, nil
}

// State returns the machine's current state. Intended for status
// surfaces and tests; by the time the caller looks at the value the
// machine may already have moved on.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// NotifySignalChange reports activity on the hotplug line. It may be
// called from any goroutine, at any rate, including while a worker
// invocation is in flight. Rapid calls coalesce: the pending flag is
// observed once by the next worker run, which samples the live line
// level itself rather than trusting the level at notification time.
func (d *Detector) NotifySignalChange() {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Always schedule an immediate run when there is a pending event.
	d.pendingEvent = true
	d.scheduleLocked(0)
}

// Shutdown stops the machine and blocks until any in-flight worker
// invocation has finished, guaranteeing no Ops hook runs after it
// returns. It then runs the optional Shutdown hook. Call it exactly
// once; the Detector is dead afterwards.
func (d *Detector) Shutdown() {
	d.mu.Lock()
	d.closing = true
	d.cancelLocked()
	d.mu.Unlock()

	// A callback that already fired may still be entering the worker;
	// taking runMu waits it out, and the closing flag stops it before
	// it reaches any hook.
	d.runMu.Lock()
	d.runMu.Unlock() //nolint:staticcheck // empty section drains the worker

	if d.ops.Shutdown != nil {
		d.ops.Shutdown()
	}
}

// worker is the single logical task behind every scheduled callback. It
// snapshots and clears the pending-event flag under the lock, samples
// the live line level, and routes either to event interpretation or to
// the current state's handler.
func (d *Detector) worker() {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		return
	}
	pending := d.pendingEvent
	d.pendingEvent = false
	state := d.state
	d.mu.Unlock()

	asserted := d.ops.SignalState()

	debugf("state %d (%s), signal %v, pending event %v",
		int(state), state, asserted, pending)

	switch {
	case pending:
		// Woken up by hotplug activity; reinterpret the current state
		// in light of the live line level.
		d.handleEvent(state, asserted)
	case state >= 0 && state < stateCount:
		fn := handlers[state]
		if fn == nil {
			warnf("nil state handler in state %d (%s)", int(state), state)
			return
		}
		d.apply(fn(d))
	default:
		warnf("unexpected state scheduled: %d", int(state))
	}
}

// handleEvent decides how hotplug activity reinterprets the current
// state, irrespective of what that state's own handler would have done.
func (d *Detector) handleEvent(state State, asserted bool) {
	switch {
	case state == StateDoneEnabled && !asserted:
		// The line dropped while enabled. Hold steady and wait to see
		// if it comes back before tearing anything down.
		d.apply(resched(StateWaitForHPDReassert, d.cfg.DropTimeout))

	case state == StateWaitForHPDReassert && asserted:
		// Dropped and came back within the grace window. Re-read the
		// descriptor and reset only if it changed.
		d.edidReads = 0
		d.apply(resched(StateRecheckEDID, d.cfg.EDIDReadDelay))

	case state == StateDoneEnabled && asserted:
		// Dropped but came back before we sampled it.
		debugf("ignoring bouncing signal")

	case state == StateInitFromBootloader && asserted:
		// Same protocol as StateReset, minus the disable: the
		// bootloader may still be scanning out and blanking here would
		// be visible. The worker samples the line again after the
		// settle delay.
		d.apply(resched(StatePlug, d.cfg.StabilizeDelay))

	default:
		// Activity in a state that was neither holding steady output
		// nor waiting for the line to come back. Let the line settle,
		// then restart the machine.
		d.apply(resched(StateReset, d.cfg.StabilizeDelay))
	}
}

// apply records the transition and reschedules the worker.
func (d *Detector) apply(t transition) {
	d.mu.Lock()
	defer d.mu.Unlock()

	debugf("switching from state %d (%s) to state %d (%s)",
		int(d.state), d.state, int(t.next), t.next)
	d.state = t.next

	// If the pending-event flag is already set there is a zero-delay
	// callback in flight from NotifySignalChange; rescheduling here
	// would cancel it and lose the event. This matters most when
	// parking in a steady state: the park must not cancel the callback
	// that will handle the event.
	if d.pendingEvent {
		return
	}

	if t.park {
		d.cancelLocked()
		return
	}
	d.scheduleLocked(t.delay)
}

// scheduleLocked replaces any pending callback with a new one after
// delay. At most one callback is outstanding per Detector. Callers hold
// mu.
func (d *Detector) scheduleLocked(delay time.Duration) {
	d.cancelLocked()
	if d.closing {
		return
	}
	d.timer = time.AfterFunc(delay, d.worker)
}

func (d *Detector) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Detector) disable() {
	if d.ops.Disable != nil {
		d.ops.Disable()
	}
}
