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

package applier

import "fmt"

// DeviceReadError is returned when a device attribute can't be read
type DeviceReadError struct {
	Interface string
	Attr      string
	Err       error
}

func (e *DeviceReadError) Error() string {
	return fmt.Sprintf("failed to read %s of %s: %v", e.Attr, e.Interface, e.Err)
}

// Unwrap returns the underlying cause
func (e *DeviceReadError) Unwrap() error {
	return e.Err
}

// DeviceWriteError is returned when the VF count can't be written to a device
type DeviceWriteError struct {
	Interface string
	NumVFs    int
	Err       error
}

func (e *DeviceWriteError) Error() string {
	return fmt.Sprintf("failed to set %d VFs on %s: %v", e.NumVFs, e.Interface, e.Err)
}

// Unwrap returns the underlying cause
func (e *DeviceWriteError) Unwrap() error {
	return e.Err
}
