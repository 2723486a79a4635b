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

package memtest

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/google/memboot/efi"
)

// Allocator reserves memory map regions from firmware before they are tested.
type Allocator struct {
	Services efi.Services
}

// Reserve asks firmware for exactly the pages described by r, so that
// nothing else uses them while they are being tested.
func (a Allocator) Reserve(r efi.Region) error {
	if err := a.Services.AllocatePages(efi.AllocateAddress, efi.BootServicesData, r.NumberOfPages, r.PhysicalStart); err != nil {
		return fmt.Errorf("AllocatePages(%#x, %d pages): %w", r.PhysicalStart, r.NumberOfPages, err)
	}
	return nil
}

// Release hands a region reserved with Reserve back to firmware.
func (a Allocator) Release(r efi.Region) error {
	if err := a.Services.FreePages(r.PhysicalStart, r.NumberOfPages); err != nil {
		return fmt.Errorf("FreePages(%#x, %d pages): %w", r.PhysicalStart, r.NumberOfPages, err)
	}
	return nil
}

// Options tweak a validation run.
type Options struct {
	// Progress, if set, is called with each region's report as soon as the
	// region is done.
	Progress func(Report)
}

// Validator pattern tests the Conventional memory listed in a memory map.
type Validator struct {
	alloc    Allocator
	verifier Verifier
	opts     Options
}

// NewValidator creates a validator which reserves regions through svc and
// accesses them through mem.
func NewValidator(svc efi.Services, mem Memory, opts Options) *Validator {
	return &Validator{
		alloc:    Allocator{Services: svc},
		verifier: Verifier{Mem: mem},
		opts:     opts,
	}
}

// Validate tests every Conventional region in m, in map order, with each of
// patterns in turn. An empty patterns list selects DefaultPatterns.
//
// Only Conventional memory is ever written to. A region which cannot be
// reserved is skipped, and a region which fails stops at its first failing
// pattern; neither affects the testing of other regions. Tested regions are
// released afterwards, so a later pass over a fresh map sees them again.
func (v *Validator) Validate(m *efi.MemoryMap, patterns []uint32) Reports {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	var reports Reports
	for i := 0; i < m.Len(); i++ {
		r := m.Region(i)
		if r.Type != efi.ConventionalMemory {
			continue
		}
		rep := v.validateRegion(r, patterns)
		reports = append(reports, rep)
		if v.opts.Progress != nil {
			v.opts.Progress(rep)
		}
	}
	return reports
}

func (v *Validator) validateRegion(r efi.Region, patterns []uint32) Report {
	rep := Report{Region: r}

	if err := v.alloc.Reserve(r); err != nil {
		glog.Warningf("Skipping %s: %v", r, err)
		rep.Result = SkippedFor(err)
		return rep
	}
	defer func() {
		if err := v.alloc.Release(r); err != nil {
			glog.Warningf("Releasing %s: %v", r, err)
		}
	}()

	rep.TestedBytes = r.Size()
	rep.Result = Pass()
	for _, p := range patterns {
		rep.Patterns = append(rep.Patterns, p)
		res := v.verifier.WriteAndVerify(r.PhysicalStart, r.Size(), p)
		glog.V(1).Infof("%s pattern 0x%08x: %s", r, p, res)
		if res.Outcome != Passed {
			glog.Errorf("Memory error in %s at %#x: expected 0x%08x, got 0x%08x", r, r.PhysicalStart+res.Offset, res.Expected, res.Actual)
			rep.Result = res
			break
		}
	}
	return rep
}
