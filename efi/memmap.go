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
	"encoding/binary"
	"fmt"
	"io"
)

// MinDescriptorSize is the size of the EFI_MEMORY_DESCRIPTOR fields defined
// by the UEFI specification. Firmware may report a larger descriptor size,
// in which case each record is padded.
const MinDescriptorSize = 40

// EFI_MEMORY_DESCRIPTOR field offsets.
const (
	offType          = 0
	offPhysicalStart = 8
	offVirtualStart  = 16
	offNumberOfPages = 24
	offAttribute     = 32
)

// MapKey identifies the memory map a snapshot was taken from. Any firmware
// allocation invalidates it.
type MapKey uint64

// Region represents one EFI memory descriptor.
type Region struct {
	Type          MemoryType
	PhysicalStart uint64
	VirtualStart  uint64
	NumberOfPages uint64
	Attribute     uint64
}

// PhysicalEnd returns the region's exclusive physical end address.
func (r Region) PhysicalEnd() uint64 {
	return r.PhysicalStart + r.Size()
}

// Size returns the region size in bytes.
func (r Region) Size() uint64 {
	return r.NumberOfPages * PageSize
}

func (r Region) String() string {
	return fmt.Sprintf("%s@%#x+%d pages", r.Type, r.PhysicalStart, r.NumberOfPages)
}

// MemoryMap is a read-only snapshot of the firmware memory map.
//
// A snapshot is only valid until the next firmware call which changes memory
// accounting, after which its Key is stale and a new snapshot must be taken.
type MemoryMap struct {
	// Key is the map key to be passed to ExitBootServices.
	Key MapKey
	// DescriptorSize is the record stride reported by firmware.
	DescriptorSize uint64
	// DescriptorVersion is the descriptor version reported by firmware.
	DescriptorVersion uint32

	regions []Region
}

// ParseMemoryMap decodes mapSize bytes of buf as a dense array of memory
// descriptors, each descriptorSize bytes apart.
func ParseMemoryMap(buf []byte, mapSize, descriptorSize uint64, key MapKey, version uint32) (*MemoryMap, error) {
	if descriptorSize < MinDescriptorSize {
		return nil, fmt.Errorf("descriptor size %d smaller than %d: %w", descriptorSize, MinDescriptorSize, ErrMalformedMap)
	}
	if mapSize%descriptorSize != 0 {
		return nil, fmt.Errorf("map size %d is not a multiple of descriptor size %d: %w", mapSize, descriptorSize, ErrMalformedMap)
	}
	if mapSize > uint64(len(buf)) {
		return nil, fmt.Errorf("map size %d exceeds buffer length %d: %w", mapSize, len(buf), ErrMalformedMap)
	}

	n := mapSize / descriptorSize
	m := &MemoryMap{
		Key:               key,
		DescriptorSize:    descriptorSize,
		DescriptorVersion: version,
		regions:           make([]Region, 0, n),
	}
	for i := uint64(0); i < n; i++ {
		d := buf[i*descriptorSize : i*descriptorSize+MinDescriptorSize]
		m.regions = append(m.regions, Region{
			Type:          MemoryType(binary.LittleEndian.Uint32(d[offType:])),
			PhysicalStart: binary.LittleEndian.Uint64(d[offPhysicalStart:]),
			VirtualStart:  binary.LittleEndian.Uint64(d[offVirtualStart:]),
			NumberOfPages: binary.LittleEndian.Uint64(d[offNumberOfPages:]),
			Attribute:     binary.LittleEndian.Uint64(d[offAttribute:]),
		})
	}
	return m, nil
}

// MarshalMemoryMap encodes regions using the given descriptor size, the
// inverse of ParseMemoryMap. Padding bytes are zero.
func MarshalMemoryMap(regions []Region, descriptorSize uint64) ([]byte, error) {
	if descriptorSize < MinDescriptorSize {
		return nil, fmt.Errorf("descriptor size %d smaller than %d: %w", descriptorSize, MinDescriptorSize, ErrMalformedMap)
	}
	buf := make([]byte, uint64(len(regions))*descriptorSize)
	for i, r := range regions {
		d := buf[uint64(i)*descriptorSize:]
		binary.LittleEndian.PutUint32(d[offType:], uint32(r.Type))
		binary.LittleEndian.PutUint64(d[offPhysicalStart:], r.PhysicalStart)
		binary.LittleEndian.PutUint64(d[offVirtualStart:], r.VirtualStart)
		binary.LittleEndian.PutUint64(d[offNumberOfPages:], r.NumberOfPages)
		binary.LittleEndian.PutUint64(d[offAttribute:], r.Attribute)
	}
	return buf, nil
}

// Len returns the number of descriptors in the map.
func (m *MemoryMap) Len() int {
	return len(m.regions)
}

// Region returns the i'th descriptor in firmware order.
func (m *MemoryMap) Region(i int) Region {
	return m.regions[i]
}

// Regions returns a copy of all descriptors in firmware order.
func (m *MemoryMap) Regions() []Region {
	return append([]Region(nil), m.regions...)
}

// Filter returns the descriptors of type t, preserving firmware order.
func (m *MemoryMap) Filter(t MemoryType) []Region {
	var r []Region
	for _, d := range m.regions {
		if d.Type == t {
			r = append(r, d)
		}
	}
	return r
}

// TotalSize returns the number of bytes covered by descriptors of type t.
func (m *MemoryMap) TotalSize(t MemoryType) uint64 {
	var n uint64
	for _, d := range m.Filter(t) {
		n += d.Size()
	}
	return n
}

const tableRule = "=============================================================================="

// WriteMemoryMap prints the descriptors accepted by filter as a table, a nil
// filter prints every descriptor.
func WriteMemoryMap(w io.Writer, m *MemoryMap, filter func(Region) bool) error {
	if m == nil || m.Len() == 0 {
		_, err := fmt.Fprintln(w, "Memory map is empty or invalid.")
		return err
	}

	if _, err := fmt.Fprintf(w, "%s\n| %-27s | %-18s | %-10s | %-12s |\n%s\n",
		tableRule, "Type", "Physical Start", "Num Pages", "Size (KB)", tableRule); err != nil {
		return err
	}
	for _, r := range m.regions {
		if filter != nil && !filter(r) {
			continue
		}
		if _, err := fmt.Fprintf(w, "| %-27s | 0x%016x | %-10d | %-12d |\n",
			r.Type, r.PhysicalStart, r.NumberOfPages, r.Size()/1024); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, tableRule)
	return err
}
