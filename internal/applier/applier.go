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

// Package applier configures SR-IOV VF counts of the host devices
package applier

import (
	"context"

	"github.com/networkservicemesh/sdk/pkg/tools/log"

	"github.com/networkservicemesh/cmd-sriov-netplan-shim/internal/config"
)

const (
	totalVfAttr      = "sriov_totalvfs"
	configuredVfAttr = "sriov_numvfs"
	sriovAttr        = "SR-IOV capability"
)

// DeviceStore provides access to the host network devices by interface name
type DeviceStore interface {
	Exists(ctx context.Context, ifName string) (bool, error)
	IsSRIOV(ctx context.Context, ifName string) (bool, error)
	MaxVFs(ctx context.Context, ifName string) (int, error)
	NumVFs(ctx context.Context, ifName string) (int, error)
	SetNumVFs(ctx context.Context, ifName string, vfCount int) error
}

// Option is an option pattern for Applier
type Option func(a *Applier)

// WithDryRun - computes and logs the VF counts without writing them
func WithDryRun(dryRun bool) Option {
	return func(a *Applier) {
		a.dryRun = dryRun
	}
}

// Applier applies the configured VF counts to the devices
type Applier struct {
	store  DeviceStore
	dryRun bool
}

// New returns a new Applier working on the given device store
func New(store DeviceStore, options ...Option) *Applier {
	a := &Applier{
		store: store,
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// Apply configures every interface in config order, a failed device doesn't stop the others
func (a *Applier) Apply(ctx context.Context, cfg *config.Config) *Report {
	report := &Report{
		Results: make([]*Result, 0, len(cfg.Interfaces)),
	}
	for _, iface := range cfg.Interfaces {
		result := a.apply(ctx, iface)
		if result.Err != nil {
			result.State = StateFailed
			log.FromContext(ctx).WithField("interface", iface.Name).Errorf("%v", result.Err)
		}
		report.Results = append(report.Results, result)
	}
	return report
}

func (a *Applier) apply(ctx context.Context, iface config.Interface) *Result {
	logger := log.FromContext(ctx).WithField("interface", iface.Name)

	result := &Result{
		Interface: iface.Name,
		Requested: iface.NumVFs,
		State:     StatePending,
		DryRun:    a.dryRun,
	}

	exists, err := a.store.Exists(ctx, iface.Name)
	if err != nil {
		result.Err = &DeviceReadError{Interface: iface.Name, Attr: "presence", Err: err}
		return result
	}
	if !exists {
		logger.Infof("device not found, skipping")
		result.State, result.Reason = StateSkipped, ReasonAbsent
		return result
	}

	isSRIOV, err := a.store.IsSRIOV(ctx, iface.Name)
	if err != nil {
		result.Err = &DeviceReadError{Interface: iface.Name, Attr: sriovAttr, Err: err}
		return result
	}
	if !isSRIOV {
		logger.Warnf("device is not SR-IOV capable, skipping")
		result.State, result.Reason = StateSkipped, ReasonNotSRIOV
		return result
	}

	if result.Maximum, err = a.store.MaxVFs(ctx, iface.Name); err != nil {
		result.Err = &DeviceReadError{Interface: iface.Name, Attr: totalVfAttr, Err: err}
		return result
	}

	result.Applied = result.Requested
	if result.Requested > result.Maximum {
		logger.Warnf("requested %s (%d) too high, falling back to %s: %d",
			configuredVfAttr, result.Requested, totalVfAttr, result.Maximum)
		result.Applied = result.Maximum
	}

	current, err := a.store.NumVFs(ctx, iface.Name)
	if err != nil {
		result.Err = &DeviceReadError{Interface: iface.Name, Attr: configuredVfAttr, Err: err}
		return result
	}
	if current == result.Applied {
		logger.Infof("already configured with %d VFs", current)
		result.State = StateUnchanged
		return result
	}

	if a.dryRun {
		logger.Infof("dry run: would configure %d VFs (currently %d)", result.Applied, current)
		result.State = StateApplied
		return result
	}

	logger.Infof("configuring %d VFs (currently %d)", result.Applied, current)
	// changing a non-zero VF count requires resetting it to 0 first
	if current != 0 {
		if err := a.store.SetNumVFs(ctx, iface.Name, 0); err != nil {
			result.Err = &DeviceWriteError{Interface: iface.Name, NumVFs: 0, Err: err}
			return result
		}
	}
	if result.Applied != 0 {
		if err := a.store.SetNumVFs(ctx, iface.Name, result.Applied); err != nil {
			result.Err = &DeviceWriteError{Interface: iface.Name, NumVFs: result.Applied, Err: err}
			return result
		}
	}

	result.State = StateApplied
	return result
}
