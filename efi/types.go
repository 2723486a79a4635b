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

// PageSize represents the EFI page size in bytes.
const PageSize = 4096 // 4 KiB

// MemoryType is the EFI_MEMORY_TYPE of a memory descriptor.
//
// Values outside the enumeration below are kept as-is and reported as
// unknown, firmware is free to use OEM and OS loader defined ranges.
type MemoryType uint32

// EFI_MEMORY_TYPE
const (
	ReservedMemory MemoryType = iota
	LoaderCode
	LoaderData
	BootServicesCode
	BootServicesData
	RuntimeServicesCode
	RuntimeServicesData
	ConventionalMemory
	UnusableMemory
	ACPIReclaimMemory
	ACPIMemoryNVS
	MemoryMappedIO
	MemoryMappedIOPortSpace
	PalCode
	PersistentMemory
	UnacceptedMemory
	maxMemoryType
)

var memoryTypeNames = [...]string{
	ReservedMemory:          "Reserved",
	LoaderCode:              "Loader Code",
	LoaderData:              "Loader Data",
	BootServicesCode:        "Boot Services Code",
	BootServicesData:        "Boot Services Data",
	RuntimeServicesCode:     "Runtime Services Code",
	RuntimeServicesData:     "Runtime Services Data",
	ConventionalMemory:      "Conventional Memory",
	UnusableMemory:          "Unusable Memory",
	ACPIReclaimMemory:       "ACPI Reclaim Memory",
	ACPIMemoryNVS:           "ACPI Memory NVS",
	MemoryMappedIO:          "Memory Mapped IO",
	MemoryMappedIOPortSpace: "Memory Mapped IO Port Space",
	PalCode:                 "PAL Code",
	PersistentMemory:        "Persistent Memory",
	UnacceptedMemory:        "Unaccepted Memory",
}

// Known returns true if t is one of the memory types defined by the UEFI
// specification.
func (t MemoryType) Known() bool {
	return t < maxMemoryType
}

func (t MemoryType) String() string {
	if !t.Known() {
		return fmt.Sprintf("Unknown(0x%x)", uint32(t))
	}
	return memoryTypeNames[t]
}

// AllocateType is the EFI_ALLOCATE_TYPE passed to AllocatePages.
type AllocateType int

// EFI_ALLOCATE_TYPE
const (
	AllocateAnyPages AllocateType = iota
	AllocateMaxAddress
	AllocateAddress
)

func (a AllocateType) String() string {
	switch a {
	case AllocateAnyPages:
		return "AllocateAnyPages"
	case AllocateMaxAddress:
		return "AllocateMaxAddress"
	case AllocateAddress:
		return "AllocateAddress"
	}
	return fmt.Sprintf("AllocateType(%d)", int(a))
}
