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

// Package memtest validates physical memory reported as usable by firmware
// by writing and re-reading fixed bit patterns over it.
package memtest

import "github.com/golang/glog"

const wordSize = 4

// DefaultPatterns exercise stuck-at-0, stuck-at-1 and adjacent bit coupling
// in both polarities.
var DefaultPatterns = []uint32{0x00000000, 0xFFFFFFFF, 0x55AA55AA, 0xAA55AA55}

// Memory provides 32-bit access to physical memory.
type Memory interface {
	Store32(addr uint64, v uint32)
	Load32(addr uint64) uint32
}

// Verifier runs pattern tests over physical memory.
//
// The caller must own the memory range being tested.
type Verifier struct {
	Mem Memory
}

// WriteAndVerify writes pattern to every word in [start, start+length) and
// then reads the range back, stopping at the first word which doesn't match.
// A trailing partial word is left untouched.
func (v Verifier) WriteAndVerify(start, length uint64, pattern uint32) Result {
	words := length / wordSize

	glog.V(2).Infof("Writing pattern 0x%08x to %#x+%#x", pattern, start, length)
	for i := uint64(0); i < words; i++ {
		v.Mem.Store32(start+i*wordSize, pattern)
	}

	glog.V(2).Infof("Verifying pattern 0x%08x at %#x+%#x", pattern, start, length)
	for i := uint64(0); i < words; i++ {
		if got := v.Mem.Load32(start + i*wordSize); got != pattern {
			return FailAt(i*wordSize, pattern, got)
		}
	}
	return Pass()
}
