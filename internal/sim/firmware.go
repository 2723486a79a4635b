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

// Package sim provides a simulated UEFI firmware, so that the boot stage can
// be run and tested as an ordinary program.
//
// The simulation keeps firmware memory accounting honest: every allocation
// changes the memory map and invalidates outstanding map keys, and allocations
// firmware makes on its own (e.g. from timer events) can be injected to
// exercise the ExitBootServices retry path.
package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/golang/glog"
	"github.com/google/memboot/efi"
	"github.com/google/memboot/internal/volume"
	"golang.org/x/image/bmp"
)

const descriptorVersion = 1

// Opts configures a simulated firmware.
type Opts struct {
	// Volume holds the files readable with ReadFile.
	Volume volume.Volume
	// Keys supplies key presses to WaitForKey.
	Keys KeySource
	// NewKernelEntry creates the entry point for a kernel image, defaults
	// to running the image as a WebAssembly module.
	NewKernelEntry func(image []byte) (efi.KernelEntry, error)
	// Halt is called by the default kernel entry once the kernel returns.
	Halt func()
}

// Handoff records the arguments a kernel entry point was called with.
type Handoff struct {
	FrameBufferBase uintptr
	Width           uintptr
	Height          uintptr
}

// Firmware is a simulated UEFI firmware implementing efi.Services.
type Firmware struct {
	// Mem is the machine's physical memory.
	Mem *Memory

	mu             sync.Mutex
	opts           Opts
	regions        []efi.Region
	key            efi.MapKey
	descriptorSize uint64
	display        *efi.DisplayMode
	frame          []efi.Pixel
	// allocated maps the start of each AllocatePages allocation to its
	// length in pages.
	allocated      map[uint64]uint64

	exited       bool
	exitCalls    int
	mapCalls     int
	backgroundN  int
	exitErr      error
	handoff      *Handoff
	handoffCalls int
}

var _ efi.Services = &Firmware{}

// New creates a firmware for the given platform.
func New(p Platform, opts Opts) (*Firmware, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid platform: %w", err)
	}
	f := &Firmware{
		Mem:            NewMemory(),
		opts:           opts,
		regions:        p.regions(),
		key:            1,
		descriptorSize: p.DescriptorSize,
		allocated:      make(map[uint64]uint64),
	}
	if p.Display != nil {
		d := *p.Display
		f.display = &d
		f.frame = make([]efi.Pixel, int(d.HorizontalResolution)*int(d.VerticalResolution))
	}
	return f, nil
}

// InjectBackgroundAllocations makes firmware allocate memory on its own
// just before each of the next n ExitBootServices calls, invalidating the
// caller's map key.
func (f *Firmware) InjectBackgroundAllocations(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backgroundN = n
}

// FailExitBootServices makes every ExitBootServices call fail with err.
func (f *Firmware) FailExitBootServices(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exitErr = err
}

// ExitCalls returns the number of ExitBootServices calls made.
func (f *Firmware) ExitCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exitCalls
}

// MemoryMapCalls returns the number of memory map snapshots handed out.
func (f *Firmware) MemoryMapCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mapCalls
}

// Exited returns true once boot services have been exited.
func (f *Firmware) Exited() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exited
}

// Handoff returns the arguments the kernel entry point was called with, and
// how many times it was called.
func (f *Firmware) Handoff() (*Handoff, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handoff, f.handoffCalls
}

// Frame returns a copy of the frame buffer contents.
func (f *Firmware) Frame() []efi.Pixel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]efi.Pixel(nil), f.frame...)
}

// Snapshot returns the current memory map without allocating, for
// inspection by tests and tools.
func (f *Firmware) Snapshot() *efi.MemoryMap {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf, _ := efi.MarshalMemoryMap(f.regions, f.descriptorSize)
	m, err := efi.ParseMemoryMap(buf, uint64(len(buf)), f.descriptorSize, f.key, descriptorVersion)
	if err != nil {
		panic(fmt.Sprintf("simulated memory map is malformed: %v", err))
	}
	return m
}

// changed records a change in memory accounting.
func (f *Firmware) changed() {
	f.key++
}

// getMemoryMap behaves like EFI_BOOT_SERVICES.GetMemoryMap().
func (f *Firmware) getMemoryMap(mapSize *uint64, buf []byte, key *efi.MapKey, descriptorSize *uint64, version *uint32) efi.Status {
	need := uint64(len(f.regions)) * f.descriptorSize
	*descriptorSize = f.descriptorSize
	*version = descriptorVersion
	if *mapSize < need || uint64(len(buf)) < need {
		*mapSize = need
		return efi.BufferTooSmall
	}
	b, err := efi.MarshalMemoryMap(f.regions, f.descriptorSize)
	if err != nil {
		return efi.DeviceError
	}
	copy(buf, b)
	*mapSize = need
	*key = f.key
	return efi.Success
}

// MemoryMap returns a fresh memory map snapshot, probing for the required
// buffer size first.
func (f *Firmware) MemoryMap() (*efi.MemoryMap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exited {
		return nil, fmt.Errorf("GetMemoryMap after ExitBootServices: %w", efi.ErrUnsupported)
	}

	var (
		size, descriptorSize uint64
		key                  efi.MapKey
		version              uint32
	)
	if st := f.getMemoryMap(&size, nil, &key, &descriptorSize, &version); st != efi.BufferTooSmall && st != efi.Success {
		return nil, fmt.Errorf("GetMemoryMap probe: %w", st)
	}

	// Allocating the buffer may itself split a region.
	size += 2 * descriptorSize
	buf := make([]byte, size)
	f.changed()

	if st := f.getMemoryMap(&size, buf, &key, &descriptorSize, &version); st.IsError() {
		return nil, fmt.Errorf("GetMemoryMap: %w", st)
	}
	f.mapCalls++
	return efi.ParseMemoryMap(buf, size, descriptorSize, key, version)
}

// AllocatePages behaves like EFI_BOOT_SERVICES.AllocatePages().
func (f *Firmware) AllocatePages(allocateType efi.AllocateType, memoryType efi.MemoryType, pages uint64, addr uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exited {
		return efi.ErrUnsupported
	}
	if pages == 0 || memoryType == efi.ConventionalMemory || !memoryType.Known() {
		return efi.InvalidParameter
	}

	switch allocateType {
	case efi.AllocateAddress:
		if addr%efi.PageSize != 0 {
			return efi.InvalidParameter
		}
		end := addr + pages*efi.PageSize
		for i, r := range f.regions {
			if r.Type == efi.ConventionalMemory && r.PhysicalStart <= addr && end <= r.PhysicalEnd() {
				f.carve(i, addr, pages, memoryType)
				f.allocated[addr] = pages
				return nil
			}
		}
		return efi.OutOfResources
	case efi.AllocateAnyPages, efi.AllocateMaxAddress:
		// Top-down, like most firmware.
		best := -1
		var start uint64
		for i, r := range f.regions {
			if r.Type != efi.ConventionalMemory || r.NumberOfPages < pages {
				continue
			}
			top := r.PhysicalEnd()
			if allocateType == efi.AllocateMaxAddress {
				if limit := (addr + 1) / efi.PageSize * efi.PageSize; limit < top {
					top = limit
				}
			}
			if top < r.PhysicalStart+pages*efi.PageSize {
				continue
			}
			s := top - pages*efi.PageSize
			if best == -1 || s > start {
				best, start = i, s
			}
		}
		if best == -1 {
			return efi.OutOfResources
		}
		f.carve(best, start, pages, memoryType)
		f.allocated[start] = pages
		return nil
	}
	return efi.InvalidParameter
}

// FreePages behaves like EFI_BOOT_SERVICES.FreePages(). Only whole
// allocations made with AllocatePages can be freed.
func (f *Firmware) FreePages(addr uint64, pages uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exited {
		return efi.ErrUnsupported
	}
	if pages == 0 || addr%efi.PageSize != 0 {
		return efi.InvalidParameter
	}
	if n, ok := f.allocated[addr]; !ok || n != pages {
		return efi.NotFound
	}
	end := addr + pages*efi.PageSize
	for i, r := range f.regions {
		if r.Type != efi.ConventionalMemory && r.PhysicalStart <= addr && end <= r.PhysicalEnd() {
			delete(f.allocated, addr)
			f.carve(i, addr, pages, efi.ConventionalMemory)
			f.coalesce()
			return nil
		}
	}
	return efi.NotFound
}

// carve changes pages pages at start, within region i, to memoryType.
func (f *Firmware) carve(i int, start, pages uint64, memoryType efi.MemoryType) {
	r := f.regions[i]
	end := start + pages*efi.PageSize

	var split []efi.Region
	if start > r.PhysicalStart {
		split = append(split, efi.Region{Type: r.Type, PhysicalStart: r.PhysicalStart, NumberOfPages: (start - r.PhysicalStart) / efi.PageSize, Attribute: r.Attribute})
	}
	split = append(split, efi.Region{Type: memoryType, PhysicalStart: start, NumberOfPages: pages, Attribute: r.Attribute})
	if end < r.PhysicalEnd() {
		split = append(split, efi.Region{Type: r.Type, PhysicalStart: end, NumberOfPages: (r.PhysicalEnd() - end) / efi.PageSize, Attribute: r.Attribute})
	}

	rs := make([]efi.Region, 0, len(f.regions)+2)
	rs = append(rs, f.regions[:i]...)
	rs = append(rs, split...)
	rs = append(rs, f.regions[i+1:]...)
	f.regions = rs
	f.changed()
	glog.V(2).Infof("sim: %d pages at %#x now %s", pages, start, memoryType)
}

// coalesce merges adjacent Conventional regions with the same attributes.
func (f *Firmware) coalesce() {
	rs := f.regions[:0]
	for _, r := range f.regions {
		if n := len(rs); n > 0 {
			prev := &rs[n-1]
			if prev.Type == efi.ConventionalMemory && r.Type == efi.ConventionalMemory && prev.Attribute == r.Attribute && prev.PhysicalEnd() == r.PhysicalStart {
				prev.NumberOfPages += r.NumberOfPages
				continue
			}
		}
		rs = append(rs, r)
	}
	f.regions = rs
}

// ExitBootServices behaves like EFI_BOOT_SERVICES.ExitBootServices().
func (f *Firmware) ExitBootServices(key efi.MapKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exitCalls++
	if f.exited {
		return efi.ErrUnsupported
	}
	if f.backgroundN > 0 {
		f.backgroundN--
		f.changed()
		glog.V(1).Infof("sim: timer event allocated pool memory, map key now %d", f.key)
	}
	if f.exitErr != nil {
		return f.exitErr
	}
	if key != f.key {
		return efi.ErrStaleKey
	}
	f.exited = true
	return nil
}

// ReadFile reads name from the boot volume.
func (f *Firmware) ReadFile(name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exited {
		return nil, efi.ErrUnsupported
	}
	if f.opts.Volume == nil {
		return nil, fmt.Errorf("no volume: %w", efi.ErrNotFound)
	}
	b, err := f.opts.Volume.ReadAll(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("cannot open file %s: %w", name, efi.ErrNotFound)
	} else if err != nil {
		glog.Warningf("sim: reading %q: %v", name, err)
		return nil, fmt.Errorf("cannot read file %s: %w", name, efi.ErrDeviceError)
	}
	// The file buffer comes from pool memory.
	f.changed()
	return b, nil
}

// DisplayMode returns the graphics output mode.
func (f *Firmware) DisplayMode() (efi.DisplayMode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exited || f.display == nil {
		return efi.DisplayMode{}, efi.ErrUnavailable
	}
	return *f.display, nil
}

// Blt copies b into the frame buffer with its top-left corner at x, y.
func (f *Firmware) Blt(b *efi.Bitmap, x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exited || f.display == nil {
		return efi.ErrUnsupported
	}
	w, h := int(f.display.HorizontalResolution), int(f.display.VerticalResolution)
	if b == nil || x < 0 || y < 0 || x+b.Width > w || y+b.Height > h || len(b.Pix) < b.Width*b.Height {
		return efi.InvalidParameter
	}
	for row := 0; row < b.Height; row++ {
		copy(f.frame[(y+row)*w+x:], b.Pix[row*b.Width:(row+1)*b.Width])
	}
	return nil
}

// DecodeImage decodes a BMP image into a Bitmap.
func (f *Firmware) DecodeImage(img []byte) (*efi.Bitmap, error) {
	m, err := bmp.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, efi.ErrUnsupported)
	}

	bounds := m.Bounds()
	b := &efi.Bitmap{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pix:    make([]efi.Pixel, bounds.Dx()*bounds.Dy()),
	}
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			r, g, bl, _ := m.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			b.Pix[y*b.Width+x] = efi.Pixel{Red: uint8(r >> 8), Green: uint8(g >> 8), Blue: uint8(bl >> 8)}
		}
	}

	f.mu.Lock()
	f.changed()
	f.mu.Unlock()
	return b, nil
}

// WaitForKey returns the next key press.
func (f *Firmware) WaitForKey() (efi.Key, error) {
	f.mu.Lock()
	exited, keys := f.exited, f.opts.Keys
	f.mu.Unlock()
	if exited {
		return efi.Key{}, efi.ErrUnsupported
	}
	if keys == nil {
		return efi.Key{}, efi.NotReady
	}
	// Not under the lock, this may block on a terminal.
	return keys.NextKey()
}

// KernelEntry returns the entry point of the kernel image in buf.
func (f *Firmware) KernelEntry(buf []byte) (efi.KernelEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exited {
		return nil, efi.ErrUnsupported
	}

	newEntry := f.opts.NewKernelEntry
	if newEntry == nil {
		newEntry = func(image []byte) (efi.KernelEntry, error) {
			return NewWasmKernel(image, f.Mem, f.opts.Halt)
		}
	}
	e, err := newEntry(buf)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, efi.LoadError)
	}
	return &recordingEntry{f: f, e: e}, nil
}

// recordingEntry notes the handoff arguments before entering the kernel.
type recordingEntry struct {
	f *Firmware
	e efi.KernelEntry
}

func (r *recordingEntry) Enter(frameBufferBase, width, height uintptr) {
	r.f.mu.Lock()
	r.f.handoff = &Handoff{FrameBufferBase: frameBufferBase, Width: width, Height: height}
	r.f.handoffCalls++
	r.f.mu.Unlock()
	r.e.Enter(frameBufferBase, width, height)
}
