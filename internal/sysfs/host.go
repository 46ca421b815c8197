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

// Package sysfs provides access to the SR-IOV attributes of the host PCI network devices
package sysfs

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/networkservicemesh/sdk/pkg/tools/log"
	"github.com/pkg/errors"
)

const (
	// DefaultRoot is the host sysfs mount point
	DefaultRoot = "/sys"

	pciDevicesPath   = "bus/pci/devices"
	totalVfFile      = "sriov_totalvfs"
	configuredVfFile = "sriov_numvfs"
	physPortNameFile = "phys_port_name"
	addressFile      = "address"
	operStateFile    = "operstate"
)

// phys_port_name of a PF representor, see libvirt commit 5b1c525b1f36
var pfPhysPortName = regexp.MustCompile(`(?i)^(p[0-9]+|p[0-9]+s[0-9]+)$`)

// Host is a sysfs backed store of the host PCI network devices
type Host struct {
	root    string
	devices map[string]*Device
}

// NewHost returns a new Host reading sysfs mounted at root
func NewHost(root string) *Host {
	if root == "" {
		root = DefaultRoot
	}
	return &Host{
		root:    root,
		devices: map[string]*Device{},
	}
}

// Discover returns all PCI network devices found on the host
func (h *Host) Discover(ctx context.Context) ([]*Device, error) {
	logger := log.FromContext(ctx).WithField("sysfs", "Discover")

	devicesPath := filepath.Join(h.root, pciDevicesPath)
	netDirs, err := filepath.Glob(filepath.Join(devicesPath, "*", "net"))
	if err != nil {
		return nil, errors.Wrapf(err, "error listing %s", devicesPath)
	}
	virtioNetDirs, err := filepath.Glob(filepath.Join(devicesPath, "*", "virtio*", "net"))
	if err != nil {
		return nil, errors.Wrapf(err, "error listing %s", devicesPath)
	}

	var devices []*Device
	for _, netDir := range append(netDirs, virtioNetDirs...) {
		devicePath := filepath.Dir(netDir)
		if strings.HasPrefix(filepath.Base(devicePath), "virtio") {
			devicePath = filepath.Dir(devicePath)
		}
		pciAddr := filepath.Base(devicePath)

		ifName, err := netInterface(netDir)
		if err != nil {
			logger.Warnf("unable to determine interface name for PCI device %s: %+v", pciAddr, err)
			continue
		}

		device := &Device{
			Interface:  ifName,
			PCIAddress: pciAddr,
			MACAddress: readString(filepath.Join(netDir, ifName, addressFile)),
			State:      readString(filepath.Join(netDir, ifName, operStateFile)),
			SRIOV:      isFileExists(filepath.Join(devicePath, totalVfFile)),
			path:       devicePath,
			netDir:     netDir,
		}
		if device.SRIOV {
			if device.TotalVFs, err = readInt(filepath.Join(devicePath, totalVfFile)); err != nil {
				logger.Warnf("unable to read %s of %s: %+v", totalVfFile, ifName, err)
			}
			if device.NumVFs, err = readInt(filepath.Join(devicePath, configuredVfFile)); err != nil {
				logger.Warnf("unable to read %s of %s: %+v", configuredVfFile, ifName, err)
			}
		}
		logger.Debugf("found %s", device)

		devices = append(devices, device)
	}

	h.devices = make(map[string]*Device, len(devices))
	for _, device := range devices {
		h.devices[device.Interface] = device
	}

	return devices, nil
}

// DeviceByPCIAddress returns the network device with the given PCI address, short form is accepted
func (h *Host) DeviceByPCIAddress(ctx context.Context, pciAddr string) (*Device, error) {
	pciAddr, err := FormatPCIAddress(pciAddr)
	if err != nil {
		return nil, err
	}

	devices, err := h.Discover(ctx)
	if err != nil {
		return nil, err
	}
	for _, device := range devices {
		if device.PCIAddress == pciAddr {
			return device, nil
		}
	}
	return nil, errors.Errorf("no network device with PCI address %s", pciAddr)
}

// Exists returns true if there is a network device with the given interface name
func (h *Host) Exists(ctx context.Context, ifName string) (bool, error) {
	device, err := h.device(ctx, ifName)
	if err != nil {
		return false, err
	}
	return device != nil, nil
}

// IsSRIOV returns true if the device is SR-IOV capable
func (h *Host) IsSRIOV(ctx context.Context, ifName string) (bool, error) {
	device, err := h.existingDevice(ctx, ifName)
	if err != nil {
		return false, err
	}
	return isFileExists(filepath.Join(device.path, totalVfFile)), nil
}

// MaxVFs returns the number of VFs the device supports
func (h *Host) MaxVFs(ctx context.Context, ifName string) (int, error) {
	device, err := h.existingDevice(ctx, ifName)
	if err != nil {
		return 0, err
	}
	return readInt(filepath.Join(device.path, totalVfFile))
}

// NumVFs returns the number of VFs the device is configured with
func (h *Host) NumVFs(ctx context.Context, ifName string) (int, error) {
	device, err := h.existingDevice(ctx, ifName)
	if err != nil {
		return 0, err
	}
	return readInt(filepath.Join(device.path, configuredVfFile))
}

// SetNumVFs configures the device with the given number of VFs
func (h *Host) SetNumVFs(ctx context.Context, ifName string, vfCount int) error {
	device, err := h.existingDevice(ctx, ifName)
	if err != nil {
		return err
	}

	configuredVfPath := filepath.Join(device.path, configuredVfFile)
	file, err := os.OpenFile(filepath.Clean(configuredVfPath), os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return errors.Wrapf(err, "error opening %s", configuredVfPath)
	}
	if _, err = file.WriteString(strconv.Itoa(vfCount)); err != nil {
		_ = file.Close()
		return errors.Wrapf(err, "error writing %d to %s", vfCount, configuredVfPath)
	}
	if err = file.Close(); err != nil {
		return errors.Wrapf(err, "error writing %d to %s", vfCount, configuredVfPath)
	}

	device.NumVFs = vfCount
	return nil
}

// device looks the interface up in the cached devices and rediscovers on miss, so VF netdevs
// created and interfaces renamed during the run are found too
func (h *Host) device(ctx context.Context, ifName string) (*Device, error) {
	if device, ok := h.devices[ifName]; ok && isFileExists(filepath.Join(device.netDir, ifName)) {
		return device, nil
	}
	if _, err := h.Discover(ctx); err != nil {
		return nil, err
	}
	return h.devices[ifName], nil
}

func (h *Host) existingDevice(ctx context.Context, ifName string) (*Device, error) {
	device, err := h.device(ctx, ifName)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, errors.Errorf("no network device %s", ifName)
	}
	return device, nil
}

// netInterface returns the PF interface name from the PCI device net directory
func netInterface(netDir string) (string, error) {
	fInfos, err := ioutil.ReadDir(netDir)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read net directory %s", netDir)
	}

	switch len(fInfos) {
	case 0:
		return "", errors.Errorf("no net devices in %s", netDir)
	case 1:
		return fInfos[0].Name(), nil
	}

	for _, f := range fInfos {
		physPortName := readString(filepath.Join(netDir, f.Name(), physPortNameFile))
		if pfPhysPortName.MatchString(physPortName) {
			return f.Name(), nil
		}
	}
	return "", errors.Errorf("no PF net device among %d net devices in %s", len(fInfos), netDir)
}

func isFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func readString(path string) string {
	data, err := ioutil.ReadFile(filepath.Clean(path))
	if err != nil {
		return ""
	}
	return string(bytes.TrimSpace(data))
}

func readInt(path string) (int, error) {
	data, err := ioutil.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, errors.Wrapf(err, "error reading %s", path)
	}
	value, err := strconv.Atoi(string(bytes.TrimSpace(data)))
	if err != nil {
		return 0, errors.Wrapf(err, "error parsing %s", path)
	}
	if value < 0 {
		return 0, errors.Errorf("negative value %d in %s", value, path)
	}
	return value, nil
}
