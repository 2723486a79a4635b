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

import (
	"errors"
	"fmt"
)

// ExitCode identifies why a boot attempt stopped.
type ExitCode int

// Exit codes, also used as process exit status by the emulator.
const (
	Success ExitCode = iota
	KernelNotFound
	ResourceExhausted
	HandoffFailure
	DeviceError
	MalformedMap
	SecurityViolation
)

var exitCodeNames = []string{
	Success:           "Success",
	KernelNotFound:    "KernelNotFound",
	ResourceExhausted: "ResourceExhausted",
	HandoffFailure:    "HandoffFailure",
	DeviceError:       "DeviceError",
	MalformedMap:      "MalformedMap",
	SecurityViolation: "SecurityViolation",
}

func (c ExitCode) String() string {
	if c >= 0 && int(c) < len(exitCodeNames) {
		return exitCodeNames[c]
	}
	return fmt.Sprintf("ExitCode(%d)", int(c))
}

// Error is a failed boot. Op names the firmware operation or boot step that
// failed, Err holds the underlying cause, usually wrapping an efi.Status.
type Error struct {
	Code ExitCode
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the exit code carried by err. A nil error is Success, errors
// not coming from the boot flow are DeviceError.
func Code(err error) ExitCode {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return DeviceError
}
