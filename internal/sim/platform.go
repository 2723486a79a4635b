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

package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/google/memboot/efi"
)

// Platform describes the simulated machine: its memory map as reported at
// power on, the descriptor stride firmware uses and the display.
type Platform struct {
	// DescriptorSize is the memory descriptor stride, at least
	// efi.MinDescriptorSize.
	DescriptorSize uint64 `json:"descriptor_size"`
	// Regions is the initial memory map, in the order firmware reports it.
	Regions []PlatformRegion `json:"regions"`
	// Display is the graphics output mode, nil if there is none.
	Display *efi.DisplayMode `json:"display,omitempty"`
}

// PlatformRegion is one memory map entry of a Platform.
type PlatformRegion struct {
	Type  efi.MemoryType `json:"type"`
	Start uint64         `json:"start"`
	Pages uint64         `json:"pages"`
}

// DefaultPlatform returns a small machine resembling a virtual machine with
// 16MiB of RAM and a 1920x1080 frame buffer at 2GiB.
func DefaultPlatform() Platform {
	return Platform{
		DescriptorSize: 48,
		Regions: []PlatformRegion{
			{Type: efi.BootServicesCode, Start: 0x0, Pages: 1},
			{Type: efi.ConventionalMemory, Start: 0x1000, Pages: 159},
			{Type: efi.ReservedMemory, Start: 0xa0000, Pages: 96},
			{Type: efi.ConventionalMemory, Start: 0x100000, Pages: 1792},
			{Type: efi.ACPIMemoryNVS, Start: 0x800000, Pages: 8},
			{Type: efi.BootServicesData, Start: 0x808000, Pages: 504},
			{Type: efi.ConventionalMemory, Start: 0xa00000, Pages: 1024},
			{Type: efi.LoaderCode, Start: 0xe00000, Pages: 64},
			{Type: efi.RuntimeServicesData, Start: 0xe40000, Pages: 64},
			{Type: efi.ACPIReclaimMemory, Start: 0xe80000, Pages: 16},
			{Type: efi.BootServicesData, Start: 0xe90000, Pages: 368},
			{Type: efi.MemoryMappedIO, Start: 0xfec00000, Pages: 1},
		},
		Display: &efi.DisplayMode{
			FrameBufferBase:      0x80000000,
			HorizontalResolution: 1920,
			VerticalResolution:   1080,
		},
	}
}

// LoadPlatform reads a JSON platform description from path.
func LoadPlatform(path string) (Platform, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Platform{}, fmt.Errorf("failed to read platform file: %w", err)
	}
	var p Platform
	if err := json.Unmarshal(b, &p); err != nil {
		return Platform{}, fmt.Errorf("failed to parse platform file %q: %w", path, err)
	}
	return p, p.Validate()
}

// Validate checks that the platform's memory map is well formed: page
// aligned, non-empty and non-overlapping regions.
func (p Platform) Validate() error {
	if p.DescriptorSize < efi.MinDescriptorSize {
		return fmt.Errorf("descriptor size %d smaller than %d", p.DescriptorSize, efi.MinDescriptorSize)
	}
	if len(p.Regions) == 0 {
		return errors.New("platform has no memory")
	}

	rs := make([]PlatformRegion, len(p.Regions))
	copy(rs, p.Regions)
	sort.Slice(rs, func(i, j int) bool { return rs[i].Start < rs[j].Start })
	for i, r := range rs {
		if r.Start%efi.PageSize != 0 {
			return fmt.Errorf("region at %#x is not page aligned", r.Start)
		}
		if r.Pages == 0 {
			return fmt.Errorf("region at %#x is empty", r.Start)
		}
		if i > 0 {
			prev := rs[i-1]
			if prev.Start+prev.Pages*efi.PageSize > r.Start {
				return fmt.Errorf("region at %#x overlaps region at %#x", r.Start, prev.Start)
			}
		}
	}
	return nil
}

func (p Platform) regions() []efi.Region {
	rs := make([]efi.Region, 0, len(p.Regions))
	for _, r := range p.Regions {
		rs = append(rs, efi.Region{Type: r.Type, PhysicalStart: r.Start, NumberOfPages: r.Pages})
	}
	return rs
}
