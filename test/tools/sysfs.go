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

// Package tools provides helpers for tests
package tools

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// NetDev describes a single netdev of a fake PCI device
type NetDev struct {
	Name         string
	MAC          string
	State        string
	PhysPortName string
}

// PCIDevice describes a fake PCI network device, TotalVFs < 0 means no SR-IOV support
type PCIDevice struct {
	Address  string
	Virtio   bool
	NetDevs  []NetDev
	TotalVFs int
	NumVFs   int
}

// Sysfs is a fake sysfs tree in a temporary directory
type Sysfs struct {
	t    *testing.T
	Root string
}

// NewSysfs creates a fake sysfs tree containing the given devices
func NewSysfs(t *testing.T, devices ...PCIDevice) *Sysfs {
	s := &Sysfs{
		t:    t,
		Root: t.TempDir(),
	}
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root, "bus", "pci", "devices"), 0750))
	for _, device := range devices {
		s.AddDevice(device)
	}
	return s
}

// AddDevice adds a fake PCI network device to the tree
func (s *Sysfs) AddDevice(device PCIDevice) {
	devicePath := s.DevicePath(device.Address)
	netDir := filepath.Join(devicePath, "net")
	if device.Virtio {
		netDir = filepath.Join(devicePath, "virtio0", "net")
	}
	require.NoError(s.t, os.MkdirAll(netDir, 0750))

	for _, netDev := range device.NetDevs {
		netDevPath := filepath.Join(netDir, netDev.Name)
		require.NoError(s.t, os.MkdirAll(netDevPath, 0750))
		s.writeFile(filepath.Join(netDevPath, "address"), netDev.MAC)
		s.writeFile(filepath.Join(netDevPath, "operstate"), netDev.State)
		if netDev.PhysPortName != "" {
			s.writeFile(filepath.Join(netDevPath, "phys_port_name"), netDev.PhysPortName)
		}
	}

	if device.TotalVFs >= 0 {
		s.writeFile(filepath.Join(devicePath, "sriov_totalvfs"), strconv.Itoa(device.TotalVFs))
		s.writeFile(filepath.Join(devicePath, "sriov_numvfs"), strconv.Itoa(device.NumVFs))
	}
}

// DevicePath returns the path of the fake PCI device directory
func (s *Sysfs) DevicePath(pciAddr string) string {
	return filepath.Join(s.Root, "bus", "pci", "devices", pciAddr)
}

// NumVFs returns the current content of the device sriov_numvfs
func (s *Sysfs) NumVFs(pciAddr string) int {
	data, err := ioutil.ReadFile(filepath.Join(s.DevicePath(pciAddr), "sriov_numvfs"))
	require.NoError(s.t, err)
	numVFs, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(s.t, err)
	return numVFs
}

// WriteAttr overwrites a device attribute file
func (s *Sysfs) WriteAttr(pciAddr, attr, value string) {
	s.writeFile(filepath.Join(s.DevicePath(pciAddr), attr), value)
}

func (s *Sysfs) writeFile(path, content string) {
	require.NoError(s.t, ioutil.WriteFile(path, []byte(content+"\n"), 0600))
}
