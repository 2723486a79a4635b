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
	"fmt"
	"io"

	"github.com/u-root/u-root/pkg/boot/bzimage"
)

// Advanced Configuration and Power Interface Specification (ACPI)
// Version 6.0 - Table 15-312 Address Range Types
const addressRangePersistentMemory = 7

// E820 converts a region to an x86 E820 entry describing it as the kernel
// will see it after ExitBootServices.
func (r Region) E820() bzimage.E820Entry {
	e := bzimage.E820Entry{
		Addr: r.PhysicalStart,
		Size: r.Size(),
	}

	// Unified Extensible Firmware Interface (UEFI) Specification
	// Version 2.10 - Table 7.10: Memory Type Usage after ExitBootServices()
	switch r.Type {
	case LoaderCode, LoaderData, BootServicesCode, BootServicesData, ConventionalMemory:
		e.MemType = bzimage.RAM
	case PersistentMemory:
		e.MemType = addressRangePersistentMemory
	case ACPIReclaimMemory:
		e.MemType = bzimage.ACPI
	case ACPIMemoryNVS:
		e.MemType = bzimage.NVS
	default:
		e.MemType = bzimage.Reserved
	}

	return e
}

// E820 returns the E820 table for the whole map, in firmware order.
func (m *MemoryMap) E820() []bzimage.E820Entry {
	t := make([]bzimage.E820Entry, 0, len(m.regions))
	for _, r := range m.regions {
		t = append(t, r.E820())
	}
	return t
}

// WriteE820 prints the E820 table for m.
func WriteE820(w io.Writer, m *MemoryMap) error {
	for _, e := range m.E820() {
		if _, err := fmt.Fprintf(w, "e820: [mem 0x%016x-0x%016x] type %d\n", e.Addr, e.Addr+e.Size-1, uint32(e.MemType)); err != nil {
			return err
		}
	}
	return nil
}
