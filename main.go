// Copyright (c) 2020-2021 Doc.ai and/or its affiliates.
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

//go:build !windows
// +build !windows

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/ghodss/yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/networkservicemesh/sdk/pkg/tools/debug"
	"github.com/networkservicemesh/sdk/pkg/tools/log"
	"github.com/networkservicemesh/sdk/pkg/tools/log/logruslogger"

	"github.com/networkservicemesh/cmd-sriov-netplan-shim/internal/applier"
	"github.com/networkservicemesh/cmd-sriov-netplan-shim/internal/config"
	"github.com/networkservicemesh/cmd-sriov-netplan-shim/internal/sysfs"
)

const (
	progName  = "sriov-netplan-shim"
	envPrefix = "nsm"
)

// Config - configuration for sriov-netplan-shim
type Config struct {
	ConfigFile         string `default:"/etc/sriov-netplan-shim/interfaces.yaml" desc:"path to the interfaces config file" split_words:"true"`
	SysfsPath          string `default:"/sys" desc:"path to the host sysfs" split_words:"true"`
	Strict             bool   `default:"true" desc:"exit with error if any device failed to configure" split_words:"true"`
	DryRun             bool   `default:"false" desc:"compute VF counts without writing them" split_words:"true"`
	AllowMissingConfig bool   `default:"false" desc:"skip configuration if the interfaces config file is missing" split_words:"true"`
	LogLevel           string `default:"INFO" desc:"Log level" split_words:"true"`
}

func main() {
	// ********************************************************************************
	// setup context to catch signals
	// ********************************************************************************
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		// More Linux signals here
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	// ********************************************************************************
	// setup logging
	// ********************************************************************************
	logrus.SetFormatter(&nested.Formatter{})
	ctx = log.WithLog(ctx, logruslogger.New(ctx, map[string]interface{}{"cmd": os.Args[0]}))

	// ********************************************************************************
	// Debug self if necessary
	// ********************************************************************************
	if err := debug.Self(); err != nil {
		log.FromContext(ctx).Infof("%s", err)
	}

	// ********************************************************************************
	// get config from environment, flags override it
	// ********************************************************************************
	cfg := &Config{}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		log.FromContext(ctx).Fatalf("error processing config from env: %+v", err)
	}

	err := newRootCommand(cfg).ExecuteContext(ctx)
	cancel()
	if err != nil {
		log.FromContext(ctx).Fatalf("%s: %+v", progName, err)
	}
}

func newRootCommand(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:   progName,
		Short: progName + " configures SR-IOV VFs of the host network adapters",
		Long:  progName + " configures SR-IOV VFs of the host network adapters.\n\n" + envUsage(cfg),
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprint(cmd.OutOrStderr(), cmd.UsageString())
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(cfg.LogLevel)
			if err != nil {
				return errors.Wrapf(err, "invalid log level %s", cfg.LogLevel)
			}
			logrus.SetLevel(level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&cfg.SysfsPath, "sysfs", "S", cfg.SysfsPath, "sysfs root")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")

	root.AddCommand(
		newConfigureCommand(cfg),
		newShowCommand(cfg),
	)

	return root
}

func newConfigureCommand(cfg *Config) *cobra.Command {
	configure := &cobra.Command{
		Use:   "configure",
		Short: "Configure SR-IOV adapters with VF functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(cmd.Context(), cfg)
		},
	}

	configure.Flags().StringVarP(&cfg.ConfigFile, "config", "c", cfg.ConfigFile, "interfaces config file")
	configure.Flags().BoolVar(&cfg.Strict, "strict", cfg.Strict, "exit with error if any device failed to configure")
	configure.Flags().BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "compute VF counts without writing them")

	return configure
}

func runConfigure(ctx context.Context, cfg *Config) error {
	starttime := time.Now()

	// enumerating phases
	log.FromContext(ctx).Infof("there are 3 phases which will be executed followed by a success message:")
	log.FromContext(ctx).Infof("the phases include:")
	log.FromContext(ctx).Infof("1: get config from environment and flags")
	log.FromContext(ctx).Infof("2: get interfaces config from file")
	log.FromContext(ctx).Infof("3: configure SR-IOV devices")
	log.FromContext(ctx).Infof("a final success message with start time duration")

	// ********************************************************************************
	log.FromContext(ctx).Infof("executing phase 1: get config from environment and flags (time since start: %s)", time.Since(starttime))
	// ********************************************************************************
	log.FromContext(ctx).Infof("Config: %#v", cfg)

	// ********************************************************************************
	log.FromContext(ctx).Infof("executing phase 2: get interfaces config from file (time since start: %s)", time.Since(starttime))
	// ********************************************************************************
	ifacesConfig, err := config.ReadConfig(ctx, cfg.ConfigFile)
	if err != nil {
		if cfg.AllowMissingConfig && config.IsNotExist(err) {
			log.FromContext(ctx).Warnf("no configuration file found at %s, skipping configuration", cfg.ConfigFile)
			return nil
		}
		return err
	}

	// ********************************************************************************
	log.FromContext(ctx).Infof("executing phase 3: configure SR-IOV devices (time since start: %s)", time.Since(starttime))
	// ********************************************************************************
	host := sysfs.NewHost(cfg.SysfsPath)
	report := applier.New(host, applier.WithDryRun(cfg.DryRun)).Apply(ctx, ifacesConfig)

	log.FromContext(ctx).Infof("processed %d interfaces: %d applied, %d unchanged, %d skipped, %d failed",
		len(report.Results),
		report.Count(applier.StateApplied),
		report.Count(applier.StateUnchanged),
		report.Count(applier.StateSkipped),
		report.Failed(),
	)
	if err := report.Err(); err != nil {
		if cfg.Strict {
			return errors.Wrapf(err, "failed to configure %d SR-IOV devices", report.Failed())
		}
		log.FromContext(ctx).Warnf("ignoring device failures: %v", err)
	}

	log.FromContext(ctx).Infof("Configuration completed in %v", time.Since(starttime))
	return nil
}

func newShowCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show [INTERFACE|PCI_ADDRESS]...",
		Short: "Show PCI network devices in the system",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := findDevices(cmd.Context(), sysfs.NewHost(cfg.SysfsPath), args)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(devices)
			if err != nil {
				return errors.Wrap(err, "error marshalling devices")
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func findDevices(ctx context.Context, host *sysfs.Host, filters []string) ([]*sysfs.Device, error) {
	devices, err := host.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return devices, nil
	}

	var found []*sysfs.Device
	for _, filter := range filters {
		device := deviceByName(devices, filter)
		if device == nil {
			if device, err = host.DeviceByPCIAddress(ctx, filter); err != nil {
				return nil, errors.Errorf("no network device %s", filter)
			}
		}
		found = append(found, device)
	}
	return found, nil
}

func deviceByName(devices []*sysfs.Device, ifName string) *sysfs.Device {
	for _, device := range devices {
		if device.Interface == ifName {
			return device
		}
	}
	return nil
}

func envUsage(cfg *Config) string {
	buf := &bytes.Buffer{}
	if err := envconfig.Usagef(envPrefix, cfg, buf, envconfig.DefaultTableFormat); err != nil {
		return ""
	}
	return buf.String()
}
