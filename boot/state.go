// Copyright 2026 Google LLC. All Rights Reserved.
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


package boot

import "fmt"

// State is a stage of the boot flow.
type State int

// Boot flow states. Handoff and Failed are terminal; Failed carries the
// reason as an *Error.
const (
	Idle State = iota
	MenuWait
	ShowingAsset
	LoadingKernel
	ValidatingMemory
	RefreshingMap
	ExitingServices
	Handoff
	Failed
)

var stateNames = []string{
	Idle:             "Idle",
	MenuWait:         "MenuWait",
	ShowingAsset:     "ShowingAsset",
	LoadingKernel:    "LoadingKernel",
	ValidatingMemory: "ValidatingMemory",
	RefreshingMap:    "RefreshingMap",
	ExitingServices:  "ExitingServices",
	Handoff:          "Handoff",
	Failed:           "Failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal returns true for states which are never left. Once the kernel
// has been entered the state stays Handoff, even if the kernel returns.
func (s State) Terminal() bool {
	return s == Handoff || s == Failed
}
