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

package config_test

import (
	"context"
	"errors"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/networkservicemesh/cmd-sriov-netplan-shim/internal/config"
)

const validConfig = `
interfaces:
    enp3s0f0:
        num_vfs: 64
    enp3s0f1:
        num_vfs: 8
    eno1:
        num_vfs: 0
`

func writeConfig(t *testing.T, content string) string {
	configFile := filepath.Join(t.TempDir(), "interfaces.yaml")
	require.NoError(t, ioutil.WriteFile(configFile, []byte(content), 0600))
	return configFile
}

func TestReadConfig(t *testing.T) {
	cfg, err := config.ReadConfig(context.TODO(), writeConfig(t, validConfig))
	require.NoError(t, err)

	require.Equal(t, []config.Interface{
		{Name: "enp3s0f0", NumVFs: 64},
		{Name: "enp3s0f1", NumVFs: 8},
		{Name: "eno1", NumVFs: 0},
	}, cfg.Interfaces)
}

func TestReadConfig_KeepsFileOrder(t *testing.T) {
	cfg, err := config.Parse(context.TODO(), []byte(`
interfaces:
  zz0: {num_vfs: 1}
  aa0: {num_vfs: 2}
  mm0: {num_vfs: 3}
`))
	require.NoError(t, err)

	var names []string
	for _, iface := range cfg.Interfaces {
		names = append(names, iface.Name)
	}
	require.Equal(t, []string{"zz0", "aa0", "mm0"}, names)
}

func TestReadConfig_DuplicateLastWins(t *testing.T) {
	cfg, err := config.Parse(context.TODO(), []byte(`
interfaces:
  enp3s0f0: {num_vfs: 4}
  enp3s0f1: {num_vfs: 2}
  enp3s0f0: {num_vfs: 16}
`))
	require.NoError(t, err)

	require.Equal(t, []config.Interface{
		{Name: "enp3s0f0", NumVFs: 16},
		{Name: "enp3s0f1", NumVFs: 2},
	}, cfg.Interfaces)
}

func TestReadConfig_IgnoresUnknownKeys(t *testing.T) {
	cfg, err := config.Parse(context.TODO(), []byte(`
version: 2
interfaces:
  enp3s0f0:
    num_vfs: 4
    trust: true
`))
	require.NoError(t, err)
	require.Equal(t, []config.Interface{{Name: "enp3s0f0", NumVFs: 4}}, cfg.Interfaces)
}

func TestReadConfig_Aliases(t *testing.T) {
	cfg, err := config.Parse(context.TODO(), []byte(`
common: &common
    num_vfs: 8
count: &count 4
interfaces:
    enp3s0f0: *common
    enp3s0f1:
        num_vfs: *count
    enp4s0f0:
        <<: *common
    enp4s0f1:
        <<: *common
        num_vfs: 2
`))
	require.NoError(t, err)
	require.Equal(t, []config.Interface{
		{Name: "enp3s0f0", NumVFs: 8},
		{Name: "enp3s0f1", NumVFs: 4},
		{Name: "enp4s0f0", NumVFs: 8},
		{Name: "enp4s0f1", NumVFs: 2},
	}, cfg.Interfaces)
}

func TestReadConfig_AliasedInterfaces(t *testing.T) {
	cfg, err := config.Parse(context.TODO(), []byte(`
pfs: &pfs
    enp3s0f0:
        num_vfs: 16
interfaces: *pfs
`))
	require.NoError(t, err)
	require.Equal(t, []config.Interface{{Name: "enp3s0f0", NumVFs: 16}}, cfg.Interfaces)
}

func TestReadConfig_EmptyInterfaces(t *testing.T) {
	cfg, err := config.Parse(context.TODO(), []byte("interfaces: {}\n"))
	require.NoError(t, err)
	require.Empty(t, cfg.Interfaces)
}

func TestReadConfig_Malformed(t *testing.T) {
	samples := map[string]string{
		"empty file":             "",
		"not yaml":               "interfaces: [enp3s0f0",
		"missing interfaces":     "devices:\n  enp3s0f0:\n    num_vfs: 4\n",
		"null interfaces":        "interfaces:\n",
		"list interfaces":        "interfaces:\n  - enp3s0f0\n",
		"scalar entry":           "interfaces:\n  enp3s0f0: 4\n",
		"missing num_vfs":        "interfaces:\n  enp3s0f0:\n    vfs: 4\n",
		"string num_vfs":         "interfaces:\n  enp3s0f0:\n    num_vfs: many\n",
		"quoted num_vfs":         "interfaces:\n  enp3s0f0:\n    num_vfs: \"4\"\n",
		"float num_vfs":          "interfaces:\n  enp3s0f0:\n    num_vfs: 4.5\n",
		"negative num_vfs":       "interfaces:\n  enp3s0f0:\n    num_vfs: -1\n",
		"aliased string num_vfs": "name: &name eth0\ninterfaces:\n  enp3s0f0:\n    num_vfs: *name\n",
		"top level not mapping":  "- interfaces\n",
	}

	for name, sample := range samples {
		sample := sample
		t.Run(name, func(t *testing.T) {
			cfg, err := config.ReadConfig(context.TODO(), writeConfig(t, sample))
			require.Error(t, err)
			require.Nil(t, cfg)

			var cfgErr *config.Error
			require.True(t, errors.As(err, &cfgErr))
			require.False(t, config.IsNotExist(err))
		})
	}
}

func TestReadConfig_Missing(t *testing.T) {
	_, err := config.ReadConfig(context.TODO(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	var cfgErr *config.Error
	require.True(t, errors.As(err, &cfgErr))
	require.True(t, config.IsNotExist(err))
}
