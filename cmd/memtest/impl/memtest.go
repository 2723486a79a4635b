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


// Package impl is the implementation of the memtest tool.
package impl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/google/memboot/boot"
	"github.com/google/memboot/efi"
	"github.com/google/memboot/internal/sim"
	"github.com/google/memboot/memtest"
)

// ErrMemory is returned when at least one region failed verification.
var ErrMemory = errors.New("memory errors detected")

// MemtestOpts configures a memory test run.
type MemtestOpts struct {
	// Platform is a JSON platform description, the built-in platform is
	// used if empty.
	Platform string
	// Patterns are hex encoded test patterns, the defaults if empty.
	Patterns []string
	// Faults are bit flips to inject, each "addr:mask" in hex.
	Faults []string
	// MapOnly prints the memory map without testing.
	MapOnly bool
	// E820 also prints the memory map as an E820 table.
	E820 bool
	// Out receives the map and report, stdout if nil.
	Out io.Writer
}

// Main prints the memory map of the machine and pattern tests its
// conventional memory.
func Main(opts MemtestOpts) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	p := sim.DefaultPlatform()
	if opts.Platform != "" {
		var err error
		if p, err = sim.LoadPlatform(opts.Platform); err != nil {
			return err
		}
	}
	fw, err := sim.New(p, sim.Opts{})
	if err != nil {
		return err
	}
	for _, f := range opts.Faults {
		addr, mask, err := parseFault(f)
		if err != nil {
			return err
		}
		glog.Infof("Injecting fault at %#x, mask %#x", addr, mask)
		fw.Mem.InjectFlip(addr, mask)
	}

	m, err := fw.MemoryMap()
	if err != nil {
		return fmt.Errorf("failed to get memory map: %w", err)
	}
	fmt.Fprintf(opts.Out, "Memory map: %d descriptors of %d bytes, key %d\n", m.Len(), m.DescriptorSize, m.Key)
	if err := efi.WriteMemoryMap(opts.Out, m, nil); err != nil {
		return err
	}
	fmt.Fprintf(opts.Out, "Total conventional memory: %d KB\n", m.TotalSize(efi.ConventionalMemory)/1024)
	if opts.E820 {
		if err := efi.WriteE820(opts.Out, m); err != nil {
			return err
		}
	}
	if opts.MapOnly {
		return nil
	}

	patterns, err := boot.Config{Patterns: opts.Patterns}.PatternValues()
	if err != nil {
		return err
	}
	v := memtest.NewValidator(fw, fw.Mem, memtest.Options{
		Progress: func(r memtest.Report) {
			glog.Infof("Tested %s: %s", r.Region, r.Result)
		},
	})
	reports := v.Validate(m, patterns)
	if err := reports.Write(opts.Out); err != nil {
		return err
	}
	if !reports.AllPassed() {
		return ErrMemory
	}
	return nil
}

func parseFault(s string) (uint64, uint32, error) {
	a, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid fault %q, want addr:mask", s)
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(a, "0x"), 16, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid fault address %q: %v", a, err)
	}
	mask, err := strconv.ParseUint(strings.TrimPrefix(m, "0x"), 16, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid fault mask %q: %v", m, err)
	}
	return addr, uint32(mask), nil
}
