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

// Package config contains types and methods for parsing the SR-IOV interfaces config
package config

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/networkservicemesh/sdk/pkg/tools/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the interfaces config path used when nothing else is configured
	DefaultConfigFile = "/etc/sriov-netplan-shim/interfaces.yaml"

	interfacesKey = "interfaces"
	numVFsKey     = "num_vfs"

	mergeTag      = "!!merge"
	maxMergeDepth = 16
)

// Config is an ordered list of interfaces to configure
type Config struct {
	Interfaces []Interface
}

// Interface contains the requested VF count for a single interface
type Interface struct {
	Name   string
	NumVFs int
}

// Error is returned for a config file that is missing, unreadable or malformed
type Error struct {
	File string
	Err  error
}

func (e *Error) Error() string {
	return "invalid config " + e.File + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotExist returns true if err is a config Error caused by a missing file
func IsNotExist(err error) bool {
	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		return false
	}
	return os.IsNotExist(errors.Cause(cfgErr.Err))
}

// ReadConfig reads and parses config by provided configuration file path
func ReadConfig(ctx context.Context, configFile string) (*Config, error) {
	logger := log.FromContext(ctx).WithField("config", "ReadConfig")

	rawBytes, err := ioutil.ReadFile(filepath.Clean(configFile))
	if err != nil {
		return nil, &Error{File: configFile, Err: errors.Wrap(err, "error reading file")}
	}

	cfg, err := parse(ctx, rawBytes)
	if err != nil {
		return nil, &Error{File: configFile, Err: err}
	}

	logger.Debugf("raw config: %s", rawBytes)
	logger.Infof("unmarshalled config: %+v", cfg.Interfaces)

	return cfg, nil
}

// Parse parses raw YAML config bytes
func Parse(ctx context.Context, rawBytes []byte) (*Config, error) {
	cfg, err := parse(ctx, rawBytes)
	if err != nil {
		return nil, &Error{File: "<bytes>", Err: err}
	}
	return cfg, nil
}

func parse(ctx context.Context, rawBytes []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(rawBytes, &doc); err != nil {
		return nil, errors.Wrap(err, "error unmarshalling raw bytes")
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = resolve(root.Content[0])
	}
	if root.Kind != yaml.MappingNode {
		return nil, errors.Errorf("missing %q key", interfacesKey)
	}

	ifacesNode := lookup(root, interfacesKey)
	switch {
	case ifacesNode == nil:
		return nil, errors.Errorf("missing %q key", interfacesKey)
	case ifacesNode.Kind != yaml.MappingNode:
		return nil, errors.Errorf("line %d: %q must be a mapping", ifacesNode.Line, interfacesKey)
	}

	cfg := &Config{}
	positions := map[string]int{}
	for i := 0; i+1 < len(ifacesNode.Content); i += 2 {
		keyNode, valueNode := ifacesNode.Content[i], ifacesNode.Content[i+1]

		iface, err := parseInterface(keyNode, valueNode)
		if err != nil {
			return nil, err
		}

		if pos, ok := positions[iface.Name]; ok {
			log.FromContext(ctx).WithField("interface", iface.Name).
				Warnf("line %d: duplicate interface, overriding num_vfs %d with %d",
					keyNode.Line, cfg.Interfaces[pos].NumVFs, iface.NumVFs)
			cfg.Interfaces[pos] = iface
			continue
		}
		positions[iface.Name] = len(cfg.Interfaces)
		cfg.Interfaces = append(cfg.Interfaces, iface)
	}

	return cfg, nil
}

func parseInterface(keyNode, valueNode *yaml.Node) (Interface, error) {
	keyNode, valueNode = resolve(keyNode), resolve(valueNode)
	name := keyNode.Value
	if keyNode.Kind != yaml.ScalarNode || name == "" {
		return Interface{}, errors.Errorf("line %d: invalid interface name", keyNode.Line)
	}

	if valueNode.Kind != yaml.MappingNode {
		return Interface{}, errors.Errorf("line %d: interface %s must be a mapping", valueNode.Line, name)
	}

	numVFsNode := lookup(valueNode, numVFsKey)
	if numVFsNode == nil {
		return Interface{}, errors.Errorf("line %d: interface %s: missing %q", valueNode.Line, name, numVFsKey)
	}

	var numVFs int
	if numVFsNode.Kind != yaml.ScalarNode || numVFsNode.ShortTag() != "!!int" {
		return Interface{}, errors.Errorf("line %d: interface %s: %q must be an integer, got %q",
			numVFsNode.Line, name, numVFsKey, numVFsNode.Value)
	}
	if err := numVFsNode.Decode(&numVFs); err != nil {
		return Interface{}, errors.Wrapf(err, "line %d: interface %s", numVFsNode.Line, name)
	}
	if numVFs < 0 {
		return Interface{}, errors.Errorf("line %d: interface %s: %q must not be negative, got %d",
			numVFsNode.Line, name, numVFsKey, numVFs)
	}

	return Interface{Name: name, NumVFs: numVFs}, nil
}

// lookup returns the value node for the last occurrence of key in a mapping node, aliases resolved.
// Keys merged with "<<" are used only when the mapping doesn't set the key itself
func lookup(mapping *yaml.Node, key string) *yaml.Node {
	return lookupDepth(mapping, key, 0)
}

func lookupDepth(mapping *yaml.Node, key string, depth int) *yaml.Node {
	var value, merged *yaml.Node
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keyNode := resolve(mapping.Content[i])
		switch {
		case keyNode.Kind == yaml.ScalarNode && keyNode.ShortTag() == mergeTag:
			if depth < maxMergeDepth {
				merged = lookupMerged(resolve(mapping.Content[i+1]), key, depth+1)
			}
		case keyNode.Value == key:
			value = mapping.Content[i+1]
		}
	}
	if value == nil {
		value = merged
	}
	return resolve(value)
}

// lookupMerged looks the key up in a merged mapping or in a sequence of them, the first one wins
func lookupMerged(node *yaml.Node, key string, depth int) *yaml.Node {
	switch node.Kind {
	case yaml.MappingNode:
		return lookupDepth(node, key, depth)
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item = resolve(item); item.Kind != yaml.MappingNode {
				continue
			}
			if value := lookupDepth(item, key, depth); value != nil {
				return value
			}
		}
	}
	return nil
}

// resolve follows alias nodes to the anchored node
func resolve(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}
