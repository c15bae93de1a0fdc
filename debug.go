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
	"os"
)

// debugEnabled controls whether debug logging is active.
var debugEnabled = false

func init() {
	// Enable debug logging if the HPD_DEBUG environment variable is set
	if os.Getenv("HPD_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
}

// SetDebugEnabled allows programmatic control of debug logging.
// Useful for testing or application-controlled debug modes.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// debugf prints transition-level tracing when debug mode is enabled.
func debugf(format string, args ...any) {
	if debugEnabled {
		_, _ = fmt.Fprintf(os.Stderr, "hpd: "+format+"\n", args...)
	}
}

// warnf reports invariant violations that are survivable: the worker
// logs and stays put rather than crashing the host or silently halting
// with hardware in an inconsistent state.
func warnf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, "hpd: warning: "+format+"\n", args...)
}
