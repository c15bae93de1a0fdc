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

import "errors"

// Construction errors. Descriptor read failures are not errors at this
// level: they are handled inside the state machine by bounded retry and
// a fallback to the disabled steady state, and never propagate to the
// driver.
var (
	// ErrMissingCapability is returned by New when a mandatory Ops
	// hook is nil.
	ErrMissingCapability = errors.New("missing mandatory capability")

	// ErrInvalidConfig is returned by New when an Option carries an
	// unusable configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)
