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

import (
	"go.uber.org/multierr"
)

// State is the outcome of configuring a single device
type State string

// Device states
const (
	StatePending   State = "pending"
	StateSkipped   State = "skipped"
	StateUnchanged State = "unchanged"
	StateApplied   State = "applied"
	StateFailed    State = "failed"
)

// Skip reasons
const (
	ReasonAbsent   = "absent"
	ReasonNotSRIOV = "not SR-IOV capable"
)

// Result is the outcome of configuring a single interface
type Result struct {
	Interface string
	Requested int
	Maximum   int
	Applied   int
	State     State
	Reason    string
	DryRun    bool
	Err       error
}

// Clamped returns true if the requested VF count exceeded the device maximum
func (r *Result) Clamped() bool {
	return r.Requested > r.Applied && (r.State == StateApplied || r.State == StateUnchanged)
}

// Report is the ordered list of results of a single pass
type Report struct {
	Results []*Result
}

// Failed returns the number of failed devices
func (r *Report) Failed() int {
	return len(r.errs())
}

// Count returns the number of results in the given state
func (r *Report) Count(state State) int {
	var count int
	for _, result := range r.Results {
		if result.State == state {
			count++
		}
	}
	return count
}

// Err returns an error aggregating all device errors or nil, the device errors stay
// reachable with errors.As and multierr.Errors
func (r *Report) Err() error {
	return multierr.Combine(r.errs()...)
}

func (r *Report) errs() []error {
	var errs []error
	for _, result := range r.Results {
		if result.State == StateFailed && result.Err != nil {
			errs = append(errs, result.Err)
		}
	}
	return errs
}
