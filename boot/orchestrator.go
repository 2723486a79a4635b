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

// Package boot implements the boot flow: an interactive menu, loading and
// verifying the kernel image, an optional memory validation pass and the
// one-shot handoff from firmware to the kernel.
package boot

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
	"github.com/google/memboot/efi"
	"github.com/google/memboot/memtest"
)

const banner = `memboot

  f    show splash image
  m    print conventional memory map
  t    test memory
  ESC  boot
`

// Options configure an Orchestrator.
type Options struct {
	// Config is the boot configuration, DefaultConfig() if nil.
	Config *Config
	// Console receives operator facing output, discarded if nil.
	Console io.Writer
	// Memory gives access to physical memory for validation. Without it
	// memory can't be tested.
	Memory memtest.Memory
	// Manifest, if set, requires the kernel image to come with a manifest
	// it can verify.
	Manifest *ManifestVerifier
	// Halt stops the machine after a failed boot. It must not return; if it
	// does the calling goroutine is parked forever.
	Halt func(error)
}

// Context is the state accumulated while booting.
type Context struct {
	State State
	// Kernel is the kernel image.
	Kernel []byte
	// Splash is the last splash image shown, if any.
	Splash *efi.Bitmap
	// Display is the graphics mode captured after the kernel was loaded.
	Display efi.DisplayMode
	// Reports holds the results of the last memory validation pass.
	Reports memtest.Reports
}

// Orchestrator drives the boot flow against firmware services.
type Orchestrator struct {
	svc  efi.Services
	cfg  Config
	opts Options
	ctx  Context
}

// New creates an orchestrator in the Idle state.
func New(svc efi.Services, opts Options) *Orchestrator {
	cfg := DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if cfg.ExitRetries < 1 {
		cfg.ExitRetries = 1
	}
	if opts.Console == nil {
		opts.Console = io.Discard
	}
	if opts.Halt == nil {
		opts.Halt = func(error) {}
	}
	return &Orchestrator{svc: svc, cfg: cfg, opts: opts}
}

// Context returns the boot context.
func (o *Orchestrator) Context() Context {
	return o.ctx
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.ctx.State
}

func (o *Orchestrator) setState(s State) {
	if o.ctx.State.Terminal() {
		glog.Warningf("Ignoring %s -> %s", o.ctx.State, s)
		return
	}
	glog.V(1).Infof("%s -> %s", o.ctx.State, s)
	o.ctx.State = s
}

// Run boots the kernel. It never returns: either the kernel entry point is
// called, or the failure is reported and the machine halted.
func (o *Orchestrator) Run() {
	entry, err := o.prepare()
	if err != nil {
		o.fail(err)
	}

	o.setState(Handoff)
	d := o.ctx.Display
	glog.Infof("Starting kernel, frame buffer %#x %dx%d", d.FrameBufferBase, d.HorizontalResolution, d.VerticalResolution)
	entry.Enter(uintptr(d.FrameBufferBase), uintptr(d.HorizontalResolution), uintptr(d.VerticalResolution))

	// Boot services are gone, the console with them.
	err = &Error{Code: HandoffFailure, Op: "kernel entry", Err: errors.New("kernel returned")}
	glog.Errorf("%v", err)
	o.halt(err)
}

// fail moves to the Failed state, reports err and halts.
func (o *Orchestrator) fail(err error) {
	o.setState(Failed)
	glog.Errorf("Boot failed: %v", err)
	fmt.Fprintf(o.opts.Console, "\nBoot failed: %v\nSystem halted.\n", err)
	o.halt(err)
}

func (o *Orchestrator) halt(err error) {
	o.opts.Halt(err)
	for {
		time.Sleep(time.Hour)
	}
}

// prepare runs every stage up to and including ExitBootServices, returning
// the kernel entry point.
func (o *Orchestrator) prepare() (efi.KernelEntry, error) {
	if err := o.menu(); err != nil {
		return nil, err
	}

	entry, err := o.loadKernel()
	if err != nil {
		return nil, err
	}

	if o.cfg.Validate {
		o.setState(ValidatingMemory)
		reports, err := o.validate()
		if err != nil {
			return nil, err
		}
		if failed := reports.Failed(); len(failed) > 0 && o.cfg.BlockOnFailure {
			return nil, &Error{Code: DeviceError, Op: "memory validation", Err: fmt.Errorf("%d regions failed", len(failed))}
		}
	}

	if err := o.exitBootServices(); err != nil {
		return nil, err
	}
	return entry, nil
}

// menu shows the menu and handles key presses until boot is requested.
func (o *Orchestrator) menu() error {
	fmt.Fprint(o.opts.Console, banner)
	for {
		o.setState(MenuWait)
		k, err := o.svc.WaitForKey()
		if err != nil {
			return &Error{Code: DeviceError, Op: "WaitForKey", Err: err}
		}

		switch {
		case k.ScanCode == efi.ScanEsc:
			return nil
		case k.UnicodeChar == 'f':
			o.setState(ShowingAsset)
			if err := o.showSplash(); err != nil {
				glog.Warningf("Splash: %v", err)
				fmt.Fprintf(o.opts.Console, "Cannot show %s: %v\n", o.cfg.Splash, err)
			}
		case k.UnicodeChar == 'm':
			if err := o.printMap(); err != nil {
				glog.Warningf("Memory map: %v", err)
				fmt.Fprintf(o.opts.Console, "Cannot read memory map: %v\n", err)
			}
		case k.UnicodeChar == 't':
			if _, err := o.validate(); err != nil {
				glog.Warningf("Memory test: %v", err)
				fmt.Fprintf(o.opts.Console, "Cannot test memory: %v\n", err)
			}
		default:
			glog.V(2).Infof("Ignoring key %+v", k)
		}
	}
}

func (o *Orchestrator) showSplash() error {
	img, err := o.svc.ReadFile(o.cfg.Splash)
	if err != nil {
		return err
	}
	b, err := o.svc.DecodeImage(img)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", o.cfg.Splash, err)
	}
	if err := o.svc.Blt(b, o.cfg.SplashX, o.cfg.SplashY); err != nil {
		return fmt.Errorf("failed to draw %dx%d image at (%d, %d): %w", b.Width, b.Height, o.cfg.SplashX, o.cfg.SplashY, err)
	}
	o.ctx.Splash = b
	fmt.Fprintln(o.opts.Console, "Press any key to return to the menu.")
	_, err = o.svc.WaitForKey()
	return err
}

func (o *Orchestrator) printMap() error {
	m, err := o.svc.MemoryMap()
	if err != nil {
		return err
	}
	return efi.WriteMemoryMap(o.opts.Console, m, func(r efi.Region) bool {
		return r.Type == efi.ConventionalMemory
	})
}

// validate runs a validation pass over a fresh memory map and prints the
// report.
func (o *Orchestrator) validate() (memtest.Reports, error) {
	if o.opts.Memory == nil {
		return nil, &Error{Code: DeviceError, Op: "memory validation", Err: efi.ErrUnavailable}
	}
	patterns, err := o.cfg.PatternValues()
	if err != nil {
		return nil, &Error{Code: DeviceError, Op: "memory validation", Err: err}
	}
	m, err := o.svc.MemoryMap()
	if err != nil {
		return nil, mapError(err, DeviceError)
	}

	fmt.Fprintf(o.opts.Console, "Testing %d KB of conventional memory...\n", m.TotalSize(efi.ConventionalMemory)/1024)
	v := memtest.NewValidator(o.svc, o.opts.Memory, memtest.Options{
		Progress: func(r memtest.Report) {
			fmt.Fprintf(o.opts.Console, "  %s: %s\n", r.Region, r.Result)
		},
	})
	o.ctx.Reports = v.Validate(m, patterns)
	if err := o.ctx.Reports.Write(o.opts.Console); err != nil {
		return nil, err
	}
	return o.ctx.Reports, nil
}

// loadKernel reads and verifies the kernel image and captures the display
// mode the kernel will be handed.
func (o *Orchestrator) loadKernel() (efi.KernelEntry, error) {
	o.setState(LoadingKernel)
	glog.Infof("Loading kernel %s", o.cfg.Kernel)
	img, err := o.svc.ReadFile(o.cfg.Kernel)
	switch {
	case errors.Is(err, efi.ErrNotFound):
		return nil, &Error{Code: KernelNotFound, Op: "ReadFile " + o.cfg.Kernel, Err: err}
	case errors.Is(err, efi.ErrResourceExhausted):
		return nil, &Error{Code: ResourceExhausted, Op: "ReadFile " + o.cfg.Kernel, Err: err}
	case err != nil:
		return nil, &Error{Code: DeviceError, Op: "ReadFile " + o.cfg.Kernel, Err: err}
	}
	o.ctx.Kernel = img

	// Captured before anything else can change the mode.
	d, err := o.svc.DisplayMode()
	if err != nil {
		return nil, &Error{Code: DeviceError, Op: "DisplayMode", Err: err}
	}
	o.ctx.Display = d
	glog.Infof("Loaded %d byte kernel, display %dx%d", len(img), d.HorizontalResolution, d.VerticalResolution)

	if o.cfg.KernelSHA256 != "" {
		if err := verifyHash(img, o.cfg.KernelSHA256); err != nil {
			return nil, &Error{Code: SecurityViolation, Op: "kernel hash", Err: err}
		}
	}
	if o.opts.Manifest != nil {
		name := o.cfg.Kernel + ManifestSuffix
		manifest, err := o.svc.ReadFile(name)
		if err != nil {
			return nil, &Error{Code: SecurityViolation, Op: "ReadFile " + name, Err: err}
		}
		if err := o.opts.Manifest.Verify(img, manifest); err != nil {
			return nil, &Error{Code: SecurityViolation, Op: "kernel manifest", Err: err}
		}
		glog.Infof("Kernel manifest %s verified", name)
	}

	entry, err := o.svc.KernelEntry(img)
	if err != nil {
		return nil, &Error{Code: HandoffFailure, Op: "KernelEntry", Err: err}
	}
	return entry, nil
}

// exitBootServices fetches a fresh memory map and exits boot services with
// its key. A stale key is retried with a new map, up to cfg.ExitRetries
// attempts in total.
func (o *Orchestrator) exitBootServices() error {
	attempts := 0
	op := func() error {
		attempts++
		o.setState(RefreshingMap)
		m, err := o.svc.MemoryMap()
		if err != nil {
			return backoff.Permanent(mapError(err, HandoffFailure))
		}

		o.setState(ExitingServices)
		err = o.svc.ExitBootServices(m.Key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, efi.ErrStaleKey):
			glog.Warningf("ExitBootServices attempt %d/%d: map key %d is stale", attempts, o.cfg.ExitRetries, m.Key)
			return err
		default:
			return backoff.Permanent(&Error{Code: HandoffFailure, Op: "ExitBootServices", Err: err})
		}
	}

	b := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(o.cfg.ExitRetries-1))
	err := backoff.Retry(op, b)
	var e *Error
	switch {
	case err == nil:
		glog.Infof("Exited boot services after %d attempts", attempts)
		return nil
	case errors.As(err, &e):
		return e
	default:
		return &Error{Code: HandoffFailure, Op: "ExitBootServices", Err: fmt.Errorf("map key still stale after %d attempts: %w", attempts, err)}
	}
}

func mapError(err error, code ExitCode) error {
	if errors.Is(err, efi.ErrMalformedMap) {
		code = MalformedMap
	}
	return &Error{Code: code, Op: "GetMemoryMap", Err: err}
}
