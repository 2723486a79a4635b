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


// Package impl is the implementation of the memboot emulator.
package impl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/golang/glog"
	"github.com/google/memboot/boot"
	"github.com/google/memboot/efi"
	"github.com/google/memboot/internal/sim"
	"github.com/google/memboot/internal/volume"
)

// MembootOpts configures the emulator.
type MembootOpts struct {
	// VolumeDir is a host directory used as the boot volume.
	VolumeDir string
	// Ext4Image is an ext4 filesystem image used as the boot volume, with
	// the filesystem starting Ext4Offset bytes in.
	Ext4Image  string
	Ext4Offset int64
	// Platform is a JSON platform description, the built-in platform is
	// used if empty.
	Platform string
	// Keys is a comma separated key script, see sim.ParseKeys.
	Keys string
	// Interactive reads keys from the terminal instead of Keys.
	Interactive bool
	// ManifestKeys are note verifier keys; if any are given the kernel must
	// come with a manifest signed by one of them.
	ManifestKeys []string
	// PrintMap and PrintE820 dump the initial memory map.
	PrintMap  bool
	PrintE820 bool
	// InjectStale makes firmware change the memory map behind the boot
	// stage's back on that many ExitBootServices calls.
	InjectStale int
	// Console receives the boot console output, stdout if nil.
	Console io.Writer
}

// Main boots the kernel on the boot volume in a simulated machine. It
// returns once the kernel has run, or with the *boot.Error that stopped the
// boot.
func Main(opts MembootOpts) error {
	if opts.Console == nil {
		opts.Console = os.Stdout
	}

	p := sim.DefaultPlatform()
	if opts.Platform != "" {
		var err error
		if p, err = sim.LoadPlatform(opts.Platform); err != nil {
			return err
		}
	}

	vol, closer, err := openVolume(opts)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	var keys sim.KeySource
	if opts.Interactive {
		tk, err := sim.NewTerminalKeys(os.Stdin)
		if err != nil {
			return err
		}
		defer tk.Close()
		keys = tk
	} else {
		if keys, err = sim.ParseKeys(opts.Keys); err != nil {
			return err
		}
	}

	// Both the boot flow and the kernel diverge, their halt functions report
	// back here.
	halted := make(chan error, 1)
	fw, err := sim.New(p, sim.Opts{
		Volume: vol,
		Keys:   keys,
		Halt: func() {
			halted <- nil
			runtime.Goexit()
		},
	})
	if err != nil {
		return err
	}
	fw.InjectBackgroundAllocations(opts.InjectStale)

	if opts.PrintMap {
		if err := efi.WriteMemoryMap(opts.Console, fw.Snapshot(), nil); err != nil {
			return err
		}
	}
	if opts.PrintE820 {
		if err := efi.WriteE820(opts.Console, fw.Snapshot()); err != nil {
			return err
		}
	}

	cfg, err := boot.LoadConfig(fw)
	if err != nil {
		return &boot.Error{Code: boot.DeviceError, Op: "LoadConfig", Err: err}
	}
	glog.V(1).Infof("Configuration:\n%s", cfg)

	var mv *boot.ManifestVerifier
	if len(opts.ManifestKeys) > 0 {
		if mv, err = boot.NewManifestVerifier(opts.ManifestKeys...); err != nil {
			return err
		}
	}

	o := boot.New(fw, boot.Options{
		Config:   &cfg,
		Console:  opts.Console,
		Memory:   fw.Mem,
		Manifest: mv,
		Halt: func(err error) {
			halted <- err
			runtime.Goexit()
		},
	})
	go o.Run()

	if err := <-halted; err != nil {
		return err
	}
	h, n := fw.Handoff()
	if h == nil || n != 1 {
		return errors.New("kernel halted without a handoff")
	}
	fmt.Fprintf(opts.Console, "Kernel ran with frame buffer %#x %dx%d and halted.\n", h.FrameBufferBase, h.Width, h.Height)
	return nil
}

func openVolume(opts MembootOpts) (volume.Volume, io.Closer, error) {
	switch {
	case opts.Ext4Image != "" && opts.VolumeDir != "":
		return nil, nil, errors.New("only one of a volume directory or an ext4 image may be given")
	case opts.Ext4Image != "":
		v, c, err := volume.OpenExt4Image(opts.Ext4Image, opts.Ext4Offset)
		if err != nil {
			return nil, nil, err
		}
		return v, c, nil
	case opts.VolumeDir != "":
		return volume.Dir(opts.VolumeDir), nil, nil
	}
	return nil, nil, errors.New("no boot volume given")
}
