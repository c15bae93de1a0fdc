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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOps is a scripted capability set that records every hook call.
// The signal level is either consumed from a scripted sequence (each
// sample takes the next value, the last value repeats) or read from a
// settable level when the sequence is exhausted.
type fakeOps struct {
	mu         sync.Mutex
	signalSeq  []bool
	signalIdx  int
	level      bool
	readSeq    []bool
	readIdx    int
	recheckSeq []RecheckResult
	recheckIdx int

	initCalls     int
	disableCalls  int
	readCalls     int
	readyCalls    int
	recheckCalls  int
	shutdownCalls int

	// blockRead, when non-nil, makes ReadDescriptor signal readStarted
	// and then wait until blockRead is closed.
	blockRead   chan struct{}
	readStarted chan struct{}
}

func (f *fakeOps) setLevel(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.level = v
}

func (f *fakeOps) signal() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signalIdx < len(f.signalSeq) {
		v := f.signalSeq[f.signalIdx]
		f.signalIdx++
		return v
	}
	if len(f.signalSeq) > 0 {
		return f.signalSeq[len(f.signalSeq)-1]
	}
	return f.level
}

func (f *fakeOps) read() bool {
	f.mu.Lock()
	f.readCalls++
	started := f.readStarted
	block := f.blockRead
	var ok bool
	switch {
	case f.readIdx < len(f.readSeq):
		ok = f.readSeq[f.readIdx]
		f.readIdx++
	case len(f.readSeq) > 0:
		ok = f.readSeq[len(f.readSeq)-1]
	default:
		ok = true
	}
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return ok
}

func (f *fakeOps) recheck() RecheckResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recheckCalls++
	if f.recheckIdx < len(f.recheckSeq) {
		r := f.recheckSeq[f.recheckIdx]
		f.recheckIdx++
		return r
	}
	if len(f.recheckSeq) > 0 {
		return f.recheckSeq[len(f.recheckSeq)-1]
	}
	return RecheckUnchanged
}

func (f *fakeOps) counts() (disable, read, ready, recheck int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disableCalls, f.readCalls, f.readyCalls, f.recheckCalls
}

func (f *fakeOps) ops() Ops {
	return Ops{
		Init: func() {
			f.mu.Lock()
			f.initCalls++
			f.mu.Unlock()
		},
		SignalState: f.signal,
		Disable: func() {
			f.mu.Lock()
			f.disableCalls++
			f.mu.Unlock()
		},
		ReadDescriptor:  f.read,
		DescriptorReady: func() {
			f.mu.Lock()
			f.readyCalls++
			f.mu.Unlock()
		},
		RecheckDescriptor: f.recheck,
		Shutdown: func() {
			f.mu.Lock()
			f.shutdownCalls++
			f.mu.Unlock()
		},
	}
}

// testConfig keeps timer-driven tests fast. The drop timeout stays
// large enough that a reassert raced against it is never flaky.
func testConfig() *Config {
	return &Config{
		StabilizeDelay: 5 * time.Millisecond,
		DropTimeout:    150 * time.Millisecond,
		PlugCheckDelay: 2 * time.Millisecond,
		EDIDReadDelay:  5 * time.Millisecond,
		MaxEDIDReads:   5,
	}
}

func newTestDetector(t *testing.T, f *fakeOps) *Detector {
	t.Helper()
	d, err := New(f.ops(), WithConfig(testConfig()))
	require.NoError(t, err)
	return d
}

func waitForState(t *testing.T, d *Detector, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return d.State() == want
	}, 2*time.Second, 2*time.Millisecond, "want state %s, have %s", want, d.State())
}

// driveToEnabled walks a fresh detector through the bootloader-exit
// plug path to the enabled steady state.
func driveToEnabled(t *testing.T, d *Detector, f *fakeOps) {
	t.Helper()
	f.setLevel(true)
	d.NotifySignalChange()
	waitForState(t, d, StateDoneEnabled)
}

func TestNew_MissingCapability(t *testing.T) {
	t.Parallel()

	base := func() Ops {
		f := &fakeOps{}
		return f.ops()
	}

	tests := []struct {
		mutate func(*Ops)
		name   string
	}{
		{name: "SignalState", mutate: func(o *Ops) { o.SignalState = nil }},
		{name: "ReadDescriptor", mutate: func(o *Ops) { o.ReadDescriptor = nil }},
		{name: "DescriptorReady", mutate: func(o *Ops) { o.DescriptorReady = nil }},
		{name: "RecheckDescriptor", mutate: func(o *Ops) { o.RecheckDescriptor = nil }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ops := base()
			tt.mutate(&ops)
			d, err := New(ops)
			require.ErrorIs(t, err, ErrMissingCapability)
			assert.Nil(t, d)
		})
	}
}

func TestNew_OptionalHooksMayBeNil(t *testing.T) {
	t.Parallel()
	f := &fakeOps{}
	ops := f.ops()
	ops.Init = nil
	ops.Disable = nil
	ops.Shutdown = nil

	d, err := New(ops)
	require.NoError(t, err)
	assert.Equal(t, StateInitFromBootloader, d.State())
}

func TestNew_RunsInitHook(t *testing.T) {
	t.Parallel()
	f := &fakeOps{}
	d := newTestDetector(t, f)
	t.Cleanup(d.Shutdown)

	f.mu.Lock()
	initCalls := f.initCalls
	f.mu.Unlock()
	assert.Equal(t, 1, initCalls)
	assert.Equal(t, StateInitFromBootloader, d.State())
}

func TestFirstPlug_ReachesEnabledWithoutBlanking(t *testing.T) {
	t.Parallel()
	f := &fakeOps{}
	d := newTestDetector(t, f)
	t.Cleanup(d.Shutdown)

	driveToEnabled(t, d, f)

	disable, read, ready, _ := f.counts()
	// Bootloader takeover must not tear down a link the bootloader is
	// already driving.
	assert.Zero(t, disable, "disable called during bootloader takeover")
	assert.Equal(t, 1, read)
	assert.Equal(t, 1, ready)
}

func TestPlug_Unplugged_OneDisableNoReads(t *testing.T) {
	t.Parallel()
	// Line asserted when the event is interpreted, deasserted by the
	// time StatePlug samples it: the machine must park disabled with a
	// single disable call and never attempt a descriptor read.
	f := &fakeOps{signalSeq: []bool{true, false}}
	d := newTestDetector(t, f)
	t.Cleanup(d.Shutdown)

	d.NotifySignalChange()
	waitForState(t, d, StateDoneDisabled)

	disable, read, _, _ := f.counts()
	assert.Equal(t, 1, disable)
	assert.Zero(t, read)
}

func TestCheckEDID_RetriesThenParksDisabled(t *testing.T) {
	t.Parallel()
	f := &fakeOps{readSeq: []bool{false}} // every read fails
	d := newTestDetector(t, f)
	t.Cleanup(d.Shutdown)

	f.setLevel(true)
	d.NotifySignalChange()
	waitForState(t, d, StateDoneDisabled)

	disable, read, ready, _ := f.counts()
	assert.Equal(t, 5, read, "one read per attempt up to the ceiling")
	assert.Equal(t, 1, disable)
	assert.Zero(t, ready)

	// No retry may be scheduled after the fifth failure.
	time.Sleep(5 * testConfig().EDIDReadDelay)
	_, read, _, _ = f.counts()
	assert.Equal(t, 5, read, "retry scheduled past the ceiling")
}

func TestCheckEDID_SignalDropAbortsRead(t *testing.T) {
	t.Parallel()
	// Asserted through the plug check, gone by the time CheckEDID
	// samples it again: abort straight to disabled without burning
	// retries. The worker latches the level once per invocation and
	// each handler samples again, hence four scripted values.
	f := &fakeOps{signalSeq: []bool{true, true, true, false}}
	d := newTestDetector(t, f)
	t.Cleanup(d.Shutdown)

	d.NotifySignalChange()
	waitForState(t, d, StateDoneDisabled)

	disable, read, _, _ := f.counts()
	assert.Equal(t, 1, disable)
	assert.Zero(t, read)
}

func TestDropReassert_UnchangedDescriptorKeepsOutput(t *testing.T) {
	t.Parallel()
	f := &fakeOps{recheckSeq: []RecheckResult{RecheckUnchanged}}
	d := newTestDetector(t, f)
	t.Cleanup(d.Shutdown)

	driveToEnabled(t, d, f)
	disableBefore, _, _, _ := f.counts()

	f.setLevel(false)
	d.NotifySignalChange()
	waitForState(t, d, StateWaitForHPDReassert)

	f.setLevel(true)
	d.NotifySignalChange()
	waitForState(t, d, StateDoneEnabled)

	disable, _, _, recheck := f.counts()
	assert.Equal(t, disableBefore, disable, "disable called across a benign drop/reassert")
	assert.Equal(t, 1, recheck)
}

func TestDropReassert_ChangedDescriptorResets(t *testing.T) {
	t.Parallel()
	f := &fakeOps{recheckSeq: []RecheckResult{RecheckChanged}}
	d := newTestDetector(t, f)
	t.Cleanup(d.Shutdown)

	driveToEnabled(t, d, f)

	f.setLevel(false)
	d.NotifySignalChange()
	waitForState(t, d, StateWaitForHPDReassert)

	f.setLevel(true)
	d.NotifySignalChange()

	// A changed descriptor means a new sink: full reset and a fresh
	// plug/read cycle ending enabled again.
	waitForState(t, d, StateDoneEnabled)

	disable, read, ready, recheck := f.counts()
	assert.Equal(t, 1, recheck)
	assert.GreaterOrEqual(t, disable, 1, "reset must tear down output")
	assert.Equal(t, 2, read)
	assert.Equal(t, 2, ready)
}

func TestDropWithoutReassert_TearsDown(t *testing.T) {
	t.Parallel()
	f := &fakeOps{}
	d := newTestDetector(t, f)
	t.Cleanup(d.Shutdown)

	driveToEnabled(t, d, f)

	f.setLevel(false)
	d.NotifySignalChange()
	waitForState(t, d, StateWaitForHPDReassert)

	// Let the grace window expire with the line still low.
	waitForState(t, d, StateDoneDisabled)

	disable, _, _, recheck := f.counts()
	assert.Equal(t, 2, disable, "one from reset, one from the unplugged check")
	assert.Zero(t, recheck)
}

func TestBounce_InEnabledIsIgnored(t *testing.T) {
	t.Parallel()
	f := &fakeOps{}
	d := newTestDetector(t, f)
	t.Cleanup(d.Shutdown)

	driveToEnabled(t, d, f)
	disableBefore, readBefore, readyBefore, recheckBefore := f.counts()

	// The line dropped and came back before the worker sampled it:
	// still asserted at sample time, so nothing may happen.
	d.NotifySignalChange()
	time.Sleep(10 * testConfig().StabilizeDelay)

	assert.Equal(t, StateDoneEnabled, d.State())
	disable, read, ready, recheck := f.counts()
	assert.Equal(t, disableBefore, disable)
	assert.Equal(t, readBefore, read)
	assert.Equal(t, readyBefore, ready)
	assert.Equal(t, recheckBefore, recheck)
}

func TestNotify_RapidCallsCoalesce(t *testing.T) {
	t.Parallel()
	f := &fakeOps{}
	d := newTestDetector(t, f)
	t.Cleanup(d.Shutdown)

	f.setLevel(true)
	for i := 0; i < 10; i++ {
		d.NotifySignalChange()
	}
	waitForState(t, d, StateDoneEnabled)

	// Ten rapid notifications behave like one: a single read, a single
	// ready, no duplicate transitions.
	_, read, ready, _ := f.counts()
	assert.Equal(t, 1, read)
	assert.Equal(t, 1, ready)
}

func TestReplug_FromDisabledReachesEnabled(t *testing.T) {
	t.Parallel()
	f := &fakeOps{}
	d := newTestDetector(t, f)
	t.Cleanup(d.Shutdown)

	// Unplugged at boot.
	f.setLevel(false)
	d.NotifySignalChange()
	waitForState(t, d, StateDoneDisabled)

	// Cable arrives later.
	f.setLevel(true)
	d.NotifySignalChange()
	waitForState(t, d, StateDoneEnabled)

	_, read, ready, _ := f.counts()
	assert.Equal(t, 1, read)
	assert.Equal(t, 1, ready)
}

func TestShutdown_NoHookCallsAfterReturn(t *testing.T) {
	t.Parallel()
	f := &fakeOps{readSeq: []bool{false}} // keep the retry loop alive
	d := newTestDetector(t, f)

	f.setLevel(true)
	d.NotifySignalChange()
	require.Eventually(t, func() bool {
		_, read, _, _ := f.counts()
		return read >= 1
	}, 2*time.Second, 2*time.Millisecond)

	d.Shutdown()
	disable, read, ready, recheck := f.counts()

	time.Sleep(10 * testConfig().EDIDReadDelay)

	disable2, read2, ready2, recheck2 := f.counts()
	assert.Equal(t, disable, disable2)
	assert.Equal(t, read, read2)
	assert.Equal(t, ready, ready2)
	assert.Equal(t, recheck, recheck2)

	f.mu.Lock()
	shutdownCalls := f.shutdownCalls
	f.mu.Unlock()
	assert.Equal(t, 1, shutdownCalls)
}

func TestShutdown_DrainsInFlightWorker(t *testing.T) {
	t.Parallel()
	f := &fakeOps{
		readSeq:     []bool{true},
		blockRead:   make(chan struct{}),
		readStarted: make(chan struct{}, 1),
	}
	d := newTestDetector(t, f)

	f.setLevel(true)
	d.NotifySignalChange()

	// Wait until the worker is inside ReadDescriptor.
	select {
	case <-f.readStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never reached ReadDescriptor")
	}

	var done atomic.Bool
	go func() {
		d.Shutdown()
		done.Store(true)
	}()

	// Shutdown must block while the worker is mid-hook.
	time.Sleep(20 * time.Millisecond)
	assert.False(t, done.Load(), "Shutdown returned with a worker in flight")

	close(f.blockRead)
	require.Eventually(t, done.Load, 2*time.Second, 2*time.Millisecond)
}

func TestNotify_AfterShutdownIsSuppressed(t *testing.T) {
	t.Parallel()
	f := &fakeOps{}
	d := newTestDetector(t, f)
	d.Shutdown()

	f.setLevel(true)
	d.NotifySignalChange()
	time.Sleep(10 * testConfig().StabilizeDelay)

	_, read, ready, _ := f.counts()
	assert.Zero(t, read)
	assert.Zero(t, ready)
	assert.Equal(t, StateInitFromBootloader, d.State())
}
