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

// Package efi describes the firmware services a pre-OS boot stage relies on:
// the memory map, page allocation, boot services exit, file access, graphics
// output and keyboard input.
package efi

//go:generate mockgen -destination=mock_efi/mock_services.go -package=mock_efi github.com/google/memboot/efi Services

// DisplayMode holds the graphics output mode parameters the kernel needs.
type DisplayMode struct {
	FrameBufferBase      uint64
	HorizontalResolution uint32
	VerticalResolution   uint32
}

// Pixel is an EFI_GRAPHICS_OUTPUT_BLT_PIXEL.
type Pixel struct {
	Blue     uint8
	Green    uint8
	Red      uint8
	Reserved uint8
}

// Bitmap is a top-left origin pixel buffer suitable for Blt.
type Bitmap struct {
	Width  int
	Height int
	Pix    []Pixel
}

// At returns the pixel at column x, row y.
func (b *Bitmap) At(x, y int) Pixel {
	return b.Pix[y*b.Width+x]
}

// EFI scan codes for keys without a Unicode character.
const (
	ScanUp    = 0x01
	ScanDown  = 0x02
	ScanRight = 0x03
	ScanLeft  = 0x04
	ScanEsc   = 0x17
)

// Key is an EFI_INPUT_KEY.
type Key struct {
	ScanCode    uint16
	UnicodeChar rune
}

// KernelEntry is the entry point of a loaded kernel image.
//
// The kernel is called with the frame buffer physical base address and the
// horizontal and vertical resolution in pixels, in that order. Enter never
// returns.
type KernelEntry interface {
	Enter(frameBufferBase, width, height uintptr)
}

// Services represents the firmware boot services available to the boot stage.
//
// Implementations own any buffers needed to talk to firmware; callers never
// see raw pointers.
type Services interface {
	// MemoryMap returns a fresh snapshot of the memory map.
	MemoryMap() (*MemoryMap, error)
	// AllocatePages calls EFI_BOOT_SERVICES.AllocatePages(). With
	// AllocateAddress, exactly pages pages at addr are requested.
	AllocatePages(allocateType AllocateType, memoryType MemoryType, pages uint64, addr uint64) error
	// FreePages calls EFI_BOOT_SERVICES.FreePages() on pages pages at addr,
	// which must have been allocated with AllocatePages.
	FreePages(addr uint64, pages uint64) error
	// ExitBootServices calls EFI_BOOT_SERVICES.ExitBootServices(). ErrStaleKey
	// is returned if key does not match the current memory map.
	ExitBootServices(key MapKey) error
	// ReadFile reads the named file from the boot volume.
	ReadFile(name string) ([]byte, error)
	// DisplayMode returns the current graphics output mode.
	DisplayMode() (DisplayMode, error)
	// Blt copies b to the screen with its top-left corner at x, y.
	Blt(b *Bitmap, x, y int) error
	// DecodeImage converts an image file into a Bitmap.
	DecodeImage(img []byte) (*Bitmap, error)
	// WaitForKey blocks until a key is pressed.
	WaitForKey() (Key, error)
	// KernelEntry returns the entry point of the kernel image loaded in buf.
	KernelEntry(buf []byte) (KernelEntry, error)
}
