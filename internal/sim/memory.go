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
	"encoding/binary"

	"github.com/google/memboot/efi"
)

type page [efi.PageSize]byte

// Memory is a sparse simulated physical address space. Pages are allocated
// on first access and read as zero until written.
//
// Faults can be injected at word granularity: a faulty word returns the
// stored value with some bits flipped.
//
// Memory is not safe for concurrent use.
type Memory struct {
	pages  map[uint64]*page
	faults map[uint64]uint32

	// last page accessed, sequential sweeps stay on one page for 1024 words.
	lastPFN  uint64
	lastPage *page

	stores uint64
	loads  uint64
}

// NewMemory creates an empty physical address space.
func NewMemory() *Memory {
	return &Memory{
		pages:  make(map[uint64]*page),
		faults: make(map[uint64]uint32),
	}
}

func (m *Memory) page(addr uint64) *page {
	pfn := addr / efi.PageSize
	if m.lastPage != nil && m.lastPFN == pfn {
		return m.lastPage
	}
	p, ok := m.pages[pfn]
	if !ok {
		p = new(page)
		m.pages[pfn] = p
	}
	m.lastPFN, m.lastPage = pfn, p
	return p
}

// Store32 writes v at the word aligned address addr.
func (m *Memory) Store32(addr uint64, v uint32) {
	m.stores++
	binary.LittleEndian.PutUint32(m.page(addr)[addr%efi.PageSize:], v)
}

// Load32 reads the word at the aligned address addr, applying any injected
// fault.
func (m *Memory) Load32(addr uint64) uint32 {
	m.loads++
	v := binary.LittleEndian.Uint32(m.page(addr)[addr%efi.PageSize:])
	return v ^ m.faults[addr]
}

// Write copies b into memory starting at addr.
func (m *Memory) Write(addr uint64, b []byte) {
	for len(b) > 0 {
		off := addr % efi.PageSize
		n := copy(m.page(addr)[off:], b)
		b = b[n:]
		addr += uint64(n)
	}
}

// Read returns n bytes of memory starting at addr, without faults applied.
func (m *Memory) Read(addr uint64, n int) []byte {
	b := make([]byte, n)
	for o := 0; o < n; {
		off := (addr + uint64(o)) % efi.PageSize
		o += copy(b[o:], m.page(addr + uint64(o))[off:])
	}
	return b
}

// InjectFlip makes reads of the word at addr return the stored value XOR
// mask. A zero mask removes the fault.
func (m *Memory) InjectFlip(addr uint64, mask uint32) {
	addr &^= 3
	if mask == 0 {
		delete(m.faults, addr)
		return
	}
	m.faults[addr] = mask
}

// Stores returns the number of word stores performed so far.
func (m *Memory) Stores() uint64 {
	return m.stores
}

// Loads returns the number of word loads performed so far.
func (m *Memory) Loads() uint64 {
	return m.loads
}
