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
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/memboot/efi"
	"github.com/google/memboot/efi/mock_efi"
	"github.com/google/memboot/internal/sim"
)

const pageSize = efi.PageSize

func newFirmware(t *testing.T, regions ...sim.PlatformRegion) *sim.Firmware {
	t.Helper()
	fw, err := sim.New(sim.Platform{DescriptorSize: 48, Regions: regions}, sim.Opts{})
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}
	return fw
}

func memoryMap(t *testing.T, fw *sim.Firmware) *efi.MemoryMap {
	t.Helper()
	m, err := fw.MemoryMap()
	if err != nil {
		t.Fatalf("MemoryMap: %v", err)
	}
	return m
}

func TestWriteAndVerifyPasses(t *testing.T) {
	for _, p := range DefaultPatterns {
		t.Run(fmt.Sprintf("0x%08x", p), func(t *testing.T) {
			mem := sim.NewMemory()
			v := Verifier{Mem: mem}
			if got := v.WriteAndVerify(0x100000, 2*pageSize, p); got.Outcome != Passed {
				t.Fatalf("WriteAndVerify: %v, want PASS", got)
			}
			if got, want := mem.Stores(), uint64(2*pageSize/4); got != want {
				t.Errorf("Stores = %d, want %d", got, want)
			}
			if got, want := mem.Loads(), uint64(2*pageSize/4); got != want {
				t.Errorf("Loads = %d, want %d", got, want)
			}
		})
	}
}

func TestWriteAndVerifyPartialWord(t *testing.T) {
	mem := sim.NewMemory()
	mem.Write(0x1000, []byte{0, 0, 0, 0, 0, 0, 0xaa})
	if got := (Verifier{Mem: mem}).WriteAndVerify(0x1000, 7, 0xffffffff); got.Outcome != Passed {
		t.Fatalf("WriteAndVerify: %v, want PASS", got)
	}
	if got := mem.Read(0x1004, 3); !bytes.Equal(got, []byte{0, 0, 0xaa}) {
		t.Errorf("trailing bytes were written: %x", got)
	}
}

func TestWriteAndVerifyFaultInjection(t *testing.T) {
	const start = 0x200000
	for _, p := range DefaultPatterns {
		for _, test := range []struct {
			offset uint64
			bit    uint
		}{
			{offset: 0, bit: 0},
			{offset: 4, bit: 31},
			{offset: pageSize - 4, bit: 7},
			{offset: 2*pageSize - 4, bit: 16},
		} {
			t.Run(fmt.Sprintf("0x%08x@%d", p, test.offset), func(t *testing.T) {
				mem := sim.NewMemory()
				mask := uint32(1) << test.bit
				mem.InjectFlip(start+test.offset, mask)

				got := (Verifier{Mem: mem}).WriteAndVerify(start, 2*pageSize, p)
				want := FailAt(test.offset, p, p^mask)
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("WriteAndVerify: got diff (-want +got): %s", diff)
				}
			})
		}
	}
}

func TestWriteAndVerifyStopsAtFirstMismatch(t *testing.T) {
	mem := sim.NewMemory()
	mem.InjectFlip(0x1008, 1)
	mem.InjectFlip(0x1010, 1)

	got := (Verifier{Mem: mem}).WriteAndVerify(0x1000, pageSize, 0)
	if got.Outcome != Failed || got.Offset != 8 {
		t.Fatalf("WriteAndVerify: %v, want failure at offset 8", got)
	}
	if got, want := mem.Loads(), uint64(3); got != want {
		t.Errorf("Loads = %d, want %d", got, want)
	}
}

func TestReserveRequestsExactRange(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mock_efi.NewMockServices(ctrl)

	r := efi.Region{Type: efi.ConventionalMemory, PhysicalStart: 0x7000, NumberOfPages: 3}
	svc.EXPECT().AllocatePages(efi.AllocateAddress, efi.BootServicesData, uint64(3), uint64(0x7000)).Return(nil)
	svc.EXPECT().AllocatePages(efi.AllocateAddress, efi.BootServicesData, uint64(3), uint64(0x7000)).Return(efi.OutOfResources)

	svc.EXPECT().FreePages(uint64(0x7000), uint64(3)).Return(efi.NotFound)

	a := Allocator{Services: svc}
	if err := a.Reserve(r); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := a.Reserve(r); !errors.Is(err, efi.ErrResourceExhausted) {
		t.Fatalf("Reserve: %v, want ErrResourceExhausted", err)
	}
	if err := a.Release(r); !errors.Is(err, efi.ErrNotFound) {
		t.Fatalf("Release: %v, want ErrNotFound", err)
	}
}

func TestValidateReleasesRegions(t *testing.T) {
	fw := newFirmware(t,
		sim.PlatformRegion{Type: efi.ConventionalMemory, Start: 0x100000, Pages: 2},
		sim.PlatformRegion{Type: efi.BootServicesCode, Start: 0x200000, Pages: 1},
		sim.PlatformRegion{Type: efi.ConventionalMemory, Start: 0x300000, Pages: 2},
	)
	before := fw.Snapshot().Regions()
	fw.Mem.InjectFlip(0x300008, 1<<4)

	v := NewValidator(fw, fw.Mem, Options{})
	for pass := 1; pass <= 2; pass++ {
		reports := v.Validate(memoryMap(t, fw), nil)
		if got := len(reports); got != 2 {
			t.Fatalf("pass %d: got %d reports, want 2", pass, got)
		}
		if got := len(reports.Skipped()); got != 0 {
			t.Errorf("pass %d: %d regions skipped, want 0", pass, got)
		}
		failed := reports.Failed()
		if len(failed) != 1 || failed[0].Region.PhysicalStart != 0x300000 {
			t.Errorf("pass %d: failed regions %v, want the one at 0x300000", pass, failed)
		}
		if diff := cmp.Diff(before, fw.Snapshot().Regions()); diff != "" {
			t.Errorf("pass %d: memory map not restored, got diff (-want +got): %s", pass, diff)
		}
	}
}

func TestValidateScenarioA(t *testing.T) {
	fw := newFirmware(t,
		sim.PlatformRegion{Type: efi.ConventionalMemory, Start: 0x100000, Pages: 4},
		sim.PlatformRegion{Type: efi.BootServicesCode, Start: 0x200000, Pages: 2},
		sim.PlatformRegion{Type: efi.ConventionalMemory, Start: 0x300000, Pages: 2},
	)
	m := memoryMap(t, fw)

	var progress []uint64
	v := NewValidator(fw, fw.Mem, Options{Progress: func(r Report) { progress = append(progress, r.Region.PhysicalStart) }})
	reports := v.Validate(m, DefaultPatterns)

	if got, want := len(reports), 2; got != want {
		t.Fatalf("got %d reports, want %d", got, want)
	}
	if got, want := reports.TestedBytes(), uint64(24576); got != want {
		t.Errorf("TestedBytes = %d, want %d", got, want)
	}
	if got := len(reports.Skipped()); got != 0 {
		t.Errorf("got %d skipped regions, want 0", got)
	}
	if !reports.AllPassed() {
		t.Errorf("AllPassed = false, reports: %+v", reports)
	}
	if diff := cmp.Diff([]uint64{0x100000, 0x300000}, progress); diff != "" {
		t.Errorf("progress: got diff (-want +got): %s", diff)
	}
	for _, r := range reports {
		if diff := cmp.Diff(DefaultPatterns, r.Patterns); diff != "" {
			t.Errorf("%s patterns: got diff (-want +got): %s", r.Region, diff)
		}
	}
	// Every word of both regions written once per pattern.
	if got, want := fw.Mem.Stores(), uint64(24576/4*len(DefaultPatterns)); got != want {
		t.Errorf("Stores = %d, want %d", got, want)
	}
}

func TestValidateTestsExactlyConventionalMemory(t *testing.T) {
	fw, err := sim.New(sim.DefaultPlatform(), sim.Opts{})
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}
	m := memoryMap(t, fw)

	// Something firmware owns, which must survive validation.
	bsCode := m.Filter(efi.BootServicesCode)[0]
	sentinel := []byte("firmware owned")
	fw.Mem.Write(bsCode.PhysicalStart, sentinel)

	reports := NewValidator(fw, fw.Mem, Options{}).Validate(m, []uint32{0xffffffff})

	if got, want := reports.TestedBytes(), m.TotalSize(efi.ConventionalMemory); got != want {
		t.Errorf("TestedBytes = %d, want %d", got, want)
	}
	if got, want := len(reports), len(m.Filter(efi.ConventionalMemory)); got != want {
		t.Errorf("got %d reports, want %d", got, want)
	}
	for _, r := range reports {
		if r.Region.Type != efi.ConventionalMemory {
			t.Errorf("validated %s", r.Region)
		}
	}
	if got := fw.Mem.Read(bsCode.PhysicalStart, len(sentinel)); !bytes.Equal(got, sentinel) {
		t.Errorf("firmware memory clobbered: %q", got)
	}
}

func TestValidateFailureIsolation(t *testing.T) {
	const n = 4
	for k := 0; k < n; k++ {
		t.Run(fmt.Sprintf("faulty region %d", k), func(t *testing.T) {
			var regions []sim.PlatformRegion
			for i := 0; i < n; i++ {
				regions = append(regions, sim.PlatformRegion{Type: efi.ConventionalMemory, Start: uint64(i+1) * 0x100000, Pages: 2})
				regions = append(regions, sim.PlatformRegion{Type: efi.RuntimeServicesData, Start: uint64(i+1)*0x100000 + 0x10000, Pages: 1})
			}
			fw := newFirmware(t, regions...)
			m := memoryMap(t, fw)

			// A flipped bit fails whatever pattern runs first.
			faultAddr := uint64(k+1)*0x100000 + 0x124
			fw.Mem.InjectFlip(faultAddr, 1)

			reports := NewValidator(fw, fw.Mem, Options{}).Validate(m, nil)
			if got := len(reports); got != n {
				t.Fatalf("got %d reports, want %d", got, n)
			}
			if reports.AllPassed() {
				t.Fatal("AllPassed = true, want false")
			}
			failed := reports.Failed()
			if got := len(failed); got != 1 {
				t.Fatalf("got %d failed regions, want 1", got)
			}
			if got, want := failed[0].Region.PhysicalStart, uint64(k+1)*0x100000; got != want {
				t.Errorf("failure attributed to %#x, want %#x", got, want)
			}
			if diff := cmp.Diff(FailAt(0x124, 0x00000000, 0x00000001), failed[0].Result); diff != "" {
				t.Errorf("Result: got diff (-want +got): %s", diff)
			}
			// Fail fast: later patterns not run on the faulty region.
			if diff := cmp.Diff([]uint32{0x00000000}, failed[0].Patterns); diff != "" {
				t.Errorf("Patterns: got diff (-want +got): %s", diff)
			}
			for i, r := range reports {
				if i == k {
					continue
				}
				if r.Result.Outcome != Passed || len(r.Patterns) != len(DefaultPatterns) {
					t.Errorf("region %d: %v after %d patterns, want PASS after %d", i, r.Result, len(r.Patterns), len(DefaultPatterns))
				}
			}
		})
	}
}

func TestValidateSkipsUnreservableRegion(t *testing.T) {
	fw := newFirmware(t,
		sim.PlatformRegion{Type: efi.ConventionalMemory, Start: 0x100000, Pages: 2},
		sim.PlatformRegion{Type: efi.ConventionalMemory, Start: 0x200000, Pages: 4},
		sim.PlatformRegion{Type: efi.ConventionalMemory, Start: 0x300000, Pages: 2},
	)
	m := memoryMap(t, fw)

	// The snapshot is now stale: part of the second region is gone.
	if err := fw.AllocatePages(efi.AllocateAddress, efi.LoaderData, 1, 0x201000); err != nil {
		t.Fatalf("AllocatePages: %v", err)
	}
	fw.Mem.Write(0x201000, []byte("loader data"))

	reports := NewValidator(fw, fw.Mem, Options{}).Validate(m, nil)
	if got := len(reports); got != 3 {
		t.Fatalf("got %d reports, want 3", got)
	}
	skipped := reports.Skipped()
	if got := len(skipped); got != 1 {
		t.Fatalf("got %d skipped regions, want 1", got)
	}
	if got, want := skipped[0].Region.PhysicalStart, uint64(0x200000); got != want {
		t.Errorf("skipped %#x, want %#x", got, want)
	}
	if !errors.Is(skipped[0].Result.Reason, efi.ErrResourceExhausted) {
		t.Errorf("skip reason %v, want ErrResourceExhausted", skipped[0].Result.Reason)
	}
	if skipped[0].TestedBytes != 0 || len(skipped[0].Patterns) != 0 {
		t.Errorf("skipped region was tested: %+v", skipped[0])
	}
	if !reports.AllPassed() {
		t.Error("AllPassed = false, want true")
	}
	if got := fw.Mem.Read(0x201000, 11); string(got) != "loader data" {
		t.Errorf("memory owned by someone else clobbered: %q", got)
	}
}

func TestReportsWrite(t *testing.T) {
	rs := Reports{
		{Region: efi.Region{Type: efi.ConventionalMemory, PhysicalStart: 0x1000, NumberOfPages: 1}, TestedBytes: pageSize, Result: Pass()},
		{Region: efi.Region{Type: efi.ConventionalMemory, PhysicalStart: 0x2000, NumberOfPages: 1}, TestedBytes: pageSize, Result: FailAt(8, 0xffffffff, 0xfffffffe)},
		{Region: efi.Region{Type: efi.ConventionalMemory, PhysicalStart: 0x3000, NumberOfPages: 1}, Result: SkippedFor(efi.ErrResourceExhausted)},
	}
	b := &bytes.Buffer{}
	if err := rs.Write(b); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for _, want := range []string{
		"FAIL at offset 0x8: expected 0xffffffff, got 0xfffffffe",
		"SKIPPED",
		"Status: FAIL",
		"2 tested, 1 failed, 1 skipped",
		"Total Memory Tested: 8 KB",
	} {
		if !strings.Contains(b.String(), want) {
			t.Errorf("output missing %q:\n%s", want, b.String())
		}
	}
}
