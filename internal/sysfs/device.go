// Copyright (c) 2020 Doc.ai and/or its affiliates.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sysfs

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Device is a PCI network device found on the host
type Device struct {
	Interface  string `json:"interface"`
	PCIAddress string `json:"pciAddress"`
	MACAddress string `json:"macAddress,omitempty"`
	State      string `json:"state,omitempty"`
	SRIOV      bool   `json:"sriov"`
	TotalVFs   int    `json:"totalVfs,omitempty"`
	NumVFs     int    `json:"numVfs,omitempty"`

	path   string
	netDir string
}

func (d *Device) String() string {
	if !d.SRIOV {
		return fmt.Sprintf("%s (%s)", d.Interface, d.PCIAddress)
	}
	return fmt.Sprintf("%s (%s) sriov totalvfs=%d numvfs=%d", d.Interface, d.PCIAddress, d.TotalVFs, d.NumVFs)
}

// FormatPCIAddress zero fills every part of the PCI address, short addresses get the 0000 domain
func FormatPCIAddress(pciAddr string) (string, error) {
	parts := strings.Split(pciAddr, ":")
	switch len(parts) {
	case 2:
		parts = append([]string{"0"}, parts...)
	case 3:
	default:
		return "", errors.Errorf("invalid pci address %s", pciAddr)
	}

	slotFunc := strings.Split(parts[2], ".")
	if len(slotFunc) != 2 || parts[0] == "" || parts[1] == "" || slotFunc[0] == "" || slotFunc[1] == "" {
		return "", errors.Errorf("invalid pci address %s", pciAddr)
	}

	return fmt.Sprintf("%s:%s:%s.%s",
		zfill(strings.ToLower(parts[0]), 4),
		zfill(strings.ToLower(parts[1]), 2),
		zfill(strings.ToLower(slotFunc[0]), 2),
		slotFunc[1],
	), nil
}

func zfill(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
