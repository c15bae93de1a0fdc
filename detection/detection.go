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

// Package detection discovers display connectors exposed through the
// DRM subsystem and resolves the DDC i2c bus behind each one. It lets
// callers name a connector ("HDMI-A-1") instead of hand-picking an
// i2c-dev node.
package detection

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// drmClassPath is where the kernel publishes connector nodes, one
// directory per connector in the form "card0-HDMI-A-1".
const drmClassPath = "/sys/class/drm"

// Connector describes a single display connector node.
type Connector struct {
	// Name is the connector name without the card prefix,
	// for example "HDMI-A-1" or "DP-2".
	Name string

	// Card is the DRM card the connector belongs to ("card0").
	Card string

	// Path is the sysfs directory of the connector node.
	Path string

	// DDCBus is the i2c-dev device behind the connector's ddc
	// link ("/dev/i2c-3"), or empty when the connector exposes
	// no DDC bus.
	DDCBus string
}

// Connectors lists all display connectors known to the system.
func Connectors() ([]Connector, error) {
	return connectorsAt(drmClassPath)
}

// connectorsAt walks a sysfs-style class directory. Split out so tests
// can run against a synthetic tree.
func connectorsAt(root string) ([]Connector, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("detection: reading %s: %w", root, err)
	}

	var connectors []Connector
	for _, entry := range entries {
		name := entry.Name()
		card, rest, ok := strings.Cut(name, "-")
		if !ok || !strings.HasPrefix(card, "card") || rest == "" {
			// Plain "card0" nodes and render nodes are not
			// connectors.
			continue
		}

		conn := Connector{
			Name: rest,
			Card: card,
			Path: filepath.Join(root, name),
		}

		// The ddc entry is a symlink to the i2c adapter, e.g.
		// ../../../i2c-3. Connectors without DDC (some eDP and
		// virtual outputs) simply lack the link.
		if target, err := os.Readlink(filepath.Join(conn.Path, "ddc")); err == nil {
			if base := filepath.Base(target); strings.HasPrefix(base, "i2c-") {
				conn.DDCBus = "/dev/" + base
			}
		}

		connectors = append(connectors, conn)
	}
	return connectors, nil
}

// FindDDCBus resolves the i2c-dev device behind the named connector.
// The name is matched without the card prefix, so "HDMI-A-1" finds
// "card0-HDMI-A-1".
func FindDDCBus(connector string) (string, error) {
	return findDDCBusAt(drmClassPath, connector)
}

func findDDCBusAt(root, connector string) (string, error) {
	connectors, err := connectorsAt(root)
	if err != nil {
		return "", err
	}
	for _, conn := range connectors {
		if conn.Name != connector {
			continue
		}
		if conn.DDCBus == "" {
			return "", fmt.Errorf("detection: connector %s has no DDC bus", connector)
		}
		return conn.DDCBus, nil
	}
	return "", fmt.Errorf("detection: connector %s not found", connector)
}
