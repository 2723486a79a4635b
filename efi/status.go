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

package efi

import "fmt"

const errorBit = 1 << 63

// Status is an EFI_STATUS code returned by a firmware service.
//
// Error codes implement the error interface so they can be returned and
// matched with errors.Is directly.
type Status uint64

// EFI_STATUS error codes used by the boot stage.
const (
	Success           Status = 0
	LoadError         Status = errorBit | 1
	InvalidParameter  Status = errorBit | 2
	Unsupported       Status = errorBit | 3
	BufferTooSmall    Status = errorBit | 5
	NotReady          Status = errorBit | 6
	DeviceError       Status = errorBit | 7
	OutOfResources    Status = errorBit | 9
	NotFound          Status = errorBit | 14
	Aborted           Status = errorBit | 21
	SecurityViolation Status = errorBit | 26
)

// Sentinel errors for the failure kinds the boot stage distinguishes.
var (
	ErrUnsupported       error = Unsupported
	ErrNotFound          error = NotFound
	ErrResourceExhausted error = OutOfResources
	ErrDeviceError       error = DeviceError
	ErrBufferTooSmall    error = BufferTooSmall
	// ErrStaleKey is returned by ExitBootServices when the map key does not
	// match the current memory map.
	ErrStaleKey error = InvalidParameter
	// ErrUnavailable is returned when a protocol could not be located.
	ErrUnavailable error = Unsupported
	// ErrMalformedMap is returned when a memory map buffer cannot be parsed.
	ErrMalformedMap = fmt.Errorf("malformed memory map: %w", LoadError)
)

var statusNames = map[Status]string{
	Success:           "success",
	LoadError:         "load error",
	InvalidParameter:  "invalid parameter",
	Unsupported:       "unsupported",
	BufferTooSmall:    "buffer too small",
	NotReady:          "not ready",
	DeviceError:       "device error",
	OutOfResources:    "out of resources",
	NotFound:          "not found",
	Aborted:           "aborted",
	SecurityViolation: "security violation",
}

// IsError returns true if s has the EFI error bit set.
func (s Status) IsError() bool {
	return s&errorBit != 0
}

func (s Status) Error() string {
	if n, ok := statusNames[s]; ok {
		return fmt.Sprintf("EFI_STATUS %#x (%s)", uint64(s), n)
	}
	return fmt.Sprintf("EFI_STATUS %#x", uint64(s))
}

// ParseStatus converts a raw status returned by firmware into an error, nil
// is returned for anything which is not an error code.
func ParseStatus(status uint64) error {
	s := Status(status)
	if !s.IsError() {
		return nil
	}
	return s
}
