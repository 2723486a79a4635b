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

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/u-root/u-root/pkg/boot/bzimage"
)

var testRegions = []Region{
	{Type: ConventionalMemory, PhysicalStart: 0x100000, NumberOfPages: 4, Attribute: 0xf},
	{Type: BootServicesCode, PhysicalStart: 0x200000, NumberOfPages: 2},
	{Type: ReservedMemory, PhysicalStart: 0x0, NumberOfPages: 1},
	{Type: ConventionalMemory, PhysicalStart: 0x80000, NumberOfPages: 2, VirtualStart: 0xffff0000},
	{Type: MemoryType(0x70000001), PhysicalStart: 0x300000, NumberOfPages: 8},
}

func TestParseMemoryMap(t *testing.T) {
	for _, test := range []struct {
		name   string
		stride uint64
	}{
		{name: "packed", stride: MinDescriptorSize},
		{name: "typical firmware padding", stride: 48},
		{name: "large padding", stride: 64},
	} {
		t.Run(test.name, func(t *testing.T) {
			buf, err := MarshalMemoryMap(testRegions, test.stride)
			if err != nil {
				t.Fatalf("MarshalMemoryMap: %v", err)
			}
			// Fill padding with garbage, it must not leak into the parsed regions.
			for i := 0; i < len(testRegions); i++ {
				for j := uint64(MinDescriptorSize); j < test.stride; j++ {
					buf[uint64(i)*test.stride+j] = 0xa5
				}
			}

			m, err := ParseMemoryMap(buf, uint64(len(buf)), test.stride, 42, 1)
			if err != nil {
				t.Fatalf("ParseMemoryMap: %v", err)
			}
			if diff := cmp.Diff(testRegions, m.Regions()); diff != "" {
				t.Errorf("Got diff (-want +got): %s", diff)
			}
			if got, want := m.Key, MapKey(42); got != want {
				t.Errorf("Key = %d, want %d", got, want)
			}
			if got, want := m.DescriptorSize, test.stride; got != want {
				t.Errorf("DescriptorSize = %d, want %d", got, want)
			}
		})
	}
}

func TestParseMemoryMapMalformed(t *testing.T) {
	buf, err := MarshalMemoryMap(testRegions, 48)
	if err != nil {
		t.Fatalf("MarshalMemoryMap: %v", err)
	}

	for _, test := range []struct {
		name    string
		size    uint64
		stride  uint64
		wantErr bool
	}{
		{name: "ok", size: uint64(len(buf)), stride: 48},
		{name: "empty", size: 0, stride: 48},
		{name: "stride too small", size: uint64(len(buf)), stride: 24, wantErr: true},
		{name: "zero stride", size: uint64(len(buf)), stride: 0, wantErr: true},
		{name: "size not a multiple", size: uint64(len(buf)) - 1, stride: 48, wantErr: true},
		{name: "size beyond buffer", size: uint64(len(buf)) + 48, stride: 48, wantErr: true},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseMemoryMap(buf, test.size, test.stride, 0, 1)
			if gotErr := err != nil; gotErr != test.wantErr {
				t.Fatalf("ParseMemoryMap: %v, wantErr %t", err, test.wantErr)
			}
			if test.wantErr && !errors.Is(err, ErrMalformedMap) {
				t.Errorf("ParseMemoryMap: %v, want ErrMalformedMap", err)
			}
		})
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	buf, _ := MarshalMemoryMap(testRegions, 48)
	m, err := ParseMemoryMap(buf, uint64(len(buf)), 48, 0, 1)
	if err != nil {
		t.Fatalf("ParseMemoryMap: %v", err)
	}

	want := []Region{testRegions[0], testRegions[3]}
	if diff := cmp.Diff(want, m.Filter(ConventionalMemory)); diff != "" {
		t.Errorf("Filter: got diff (-want +got): %s", diff)
	}
	if got, want := m.TotalSize(ConventionalMemory), uint64(6*PageSize); got != want {
		t.Errorf("TotalSize = %d, want %d", got, want)
	}
}

func TestMemoryType(t *testing.T) {
	for _, test := range []struct {
		t         MemoryType
		wantKnown bool
		wantStr   string
	}{
		{t: ConventionalMemory, wantKnown: true, wantStr: "Conventional Memory"},
		{t: BootServicesCode, wantKnown: true, wantStr: "Boot Services Code"},
		{t: UnacceptedMemory, wantKnown: true, wantStr: "Unaccepted Memory"},
		{t: MemoryType(16), wantStr: "Unknown(0x10)"},
		{t: MemoryType(0x80000000), wantStr: "Unknown(0x80000000)"},
	} {
		t.Run(test.wantStr, func(t *testing.T) {
			if got := test.t.Known(); got != test.wantKnown {
				t.Errorf("Known() = %t, want %t", got, test.wantKnown)
			}
			if got := test.t.String(); got != test.wantStr {
				t.Errorf("String() = %q, want %q", got, test.wantStr)
			}
		})
	}
}

func TestWriteMemoryMap(t *testing.T) {
	buf, _ := MarshalMemoryMap(testRegions, 48)
	m, err := ParseMemoryMap(buf, uint64(len(buf)), 48, 0, 1)
	if err != nil {
		t.Fatalf("ParseMemoryMap: %v", err)
	}

	b := &bytes.Buffer{}
	if err := WriteMemoryMap(b, m, func(r Region) bool { return r.Type == ConventionalMemory }); err != nil {
		t.Fatalf("WriteMemoryMap: %v", err)
	}
	out := b.String()
	if got, want := strings.Count(out, "Conventional Memory"), 2; got != want {
		t.Errorf("got %d conventional rows, want %d:\n%s", got, want, out)
	}
	if strings.Contains(out, "Boot Services Code") {
		t.Errorf("filtered region printed:\n%s", out)
	}
	if !strings.Contains(out, "0x0000000000100000") {
		t.Errorf("missing physical start:\n%s", out)
	}

	b.Reset()
	if err := WriteMemoryMap(b, nil, nil); err != nil {
		t.Fatalf("WriteMemoryMap: %v", err)
	}
	if !strings.Contains(b.String(), "empty") {
		t.Errorf("nil map: got %q", b.String())
	}
}

func TestE820(t *testing.T) {
	for _, test := range []struct {
		r    Region
		want bzimage.E820Entry
	}{
		{
			r:    Region{Type: ConventionalMemory, PhysicalStart: 0x1000, NumberOfPages: 2},
			want: bzimage.E820Entry{Addr: 0x1000, Size: 0x2000, MemType: bzimage.RAM},
		}, {
			r:    Region{Type: BootServicesData, PhysicalStart: 0x3000, NumberOfPages: 1},
			want: bzimage.E820Entry{Addr: 0x3000, Size: 0x1000, MemType: bzimage.RAM},
		}, {
			r:    Region{Type: ACPIReclaimMemory, PhysicalStart: 0x4000, NumberOfPages: 1},
			want: bzimage.E820Entry{Addr: 0x4000, Size: 0x1000, MemType: bzimage.ACPI},
		}, {
			r:    Region{Type: ACPIMemoryNVS, PhysicalStart: 0x5000, NumberOfPages: 1},
			want: bzimage.E820Entry{Addr: 0x5000, Size: 0x1000, MemType: bzimage.NVS},
		}, {
			r:    Region{Type: RuntimeServicesData, PhysicalStart: 0x6000, NumberOfPages: 1},
			want: bzimage.E820Entry{Addr: 0x6000, Size: 0x1000, MemType: bzimage.Reserved},
		}, {
			r:    Region{Type: MemoryType(99), PhysicalStart: 0x7000, NumberOfPages: 1},
			want: bzimage.E820Entry{Addr: 0x7000, Size: 0x1000, MemType: bzimage.Reserved},
		},
	} {
		t.Run(test.r.String(), func(t *testing.T) {
			if diff := cmp.Diff(test.want, test.r.E820()); diff != "" {
				t.Errorf("E820(): got diff (-want +got): %s", diff)
			}
		})
	}
}

func TestWriteE820(t *testing.T) {
	rs := []Region{
		{Type: ConventionalMemory, PhysicalStart: 0x1000, NumberOfPages: 4},
		{Type: ACPIMemoryNVS, PhysicalStart: 0x5000, NumberOfPages: 1},
		{Type: MemoryMappedIO, PhysicalStart: 0xfec00000, NumberOfPages: 1},
	}
	buf, _ := MarshalMemoryMap(rs, 48)
	m, err := ParseMemoryMap(buf, uint64(len(buf)), 48, 0, 1)
	if err != nil {
		t.Fatalf("ParseMemoryMap: %v", err)
	}
	b := &bytes.Buffer{}
	if err := WriteE820(b, m); err != nil {
		t.Fatalf("WriteE820: %v", err)
	}
	want := `e820: [mem 0x0000000000001000-0x0000000000004fff] type 1
e820: [mem 0x0000000000005000-0x0000000000005fff] type 4
e820: [mem 0x00000000fec00000-0x00000000fec00fff] type 2
`
	if diff := cmp.Diff(want, b.String()); diff != "" {
		t.Errorf("WriteE820: got diff (-want +got): %s", diff)
	}
}

func TestParseStatus(t *testing.T) {
	if err := ParseStatus(0); err != nil {
		t.Errorf("ParseStatus(0) = %v, want nil", err)
	}
	err := ParseStatus(uint64(NotFound))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ParseStatus(NotFound) = %v, want ErrNotFound", err)
	}
	if errors.Is(err, ErrStaleKey) {
		t.Errorf("ParseStatus(NotFound) matched ErrStaleKey")
	}
}
