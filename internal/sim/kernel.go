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
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/perlin-network/life/exec"
	wasm_validation "github.com/perlin-network/life/wasm-validation"
)

// KernelEntryPoint is the export a simulated kernel is entered through.
const KernelEntryPoint = "main"

// resolver provides the host functions a simulated kernel may import.
//
// Besides the life debugging helpers, the kernel can write to physical
// memory with store32(addr, value), which is how it draws to the frame
// buffer it is handed.
type resolver struct {
	mem *Memory
}

func (r *resolver) ResolveFunc(module, field string) exec.FunctionImport {
	switch module {
	case "env":
		switch field {
		case "__life_ping":
			return func(vm *exec.VirtualMachine) int64 {
				return vm.GetCurrentFrame().Locals[0] + 1
			}
		case "__life_log":
			return func(vm *exec.VirtualMachine) int64 {
				ptr := int(uint32(vm.GetCurrentFrame().Locals[0]))
				msgLen := int(uint32(vm.GetCurrentFrame().Locals[1]))
				glog.Infof("[kernel] %s", string(vm.Memory[ptr:ptr+msgLen]))
				return 0
			}
		case "print":
			return func(vm *exec.VirtualMachine) int64 {
				ptr := int(uint32(vm.GetCurrentFrame().Locals[0]))
				n := 0
				for ptr+n < len(vm.Memory) && vm.Memory[ptr+n] != 0 {
					n++
				}
				glog.Infof("[kernel] print: %s", string(vm.Memory[ptr:ptr+n]))
				return 0
			}
		case "print_i64":
			return func(vm *exec.VirtualMachine) int64 {
				glog.Infof("[kernel] print_i64: %d", vm.GetCurrentFrame().Locals[0])
				return 0
			}
		case "store32":
			return func(vm *exec.VirtualMachine) int64 {
				addr := uint64(vm.GetCurrentFrame().Locals[0])
				r.mem.Store32(addr&^3, uint32(vm.GetCurrentFrame().Locals[1]))
				return 0
			}
		default:
			panic(fmt.Errorf("unknown field: %s", field))
		}
	default:
		panic(fmt.Errorf("unknown module: %s", module))
	}
}

func (r *resolver) ResolveGlobal(module, field string) int64 {
	switch module {
	case "env":
		switch field {
		case "__life_magic":
			return 424
		default:
			panic(fmt.Errorf("unknown field: %s", field))
		}
	default:
		panic(fmt.Errorf("unknown module: %s", module))
	}
}

// WasmKernel is a kernel image run as a WebAssembly module, standing in for
// native code jumped to at its first byte.
type WasmKernel struct {
	vm      *exec.VirtualMachine
	entryID int
	halt    func()
}

// NewWasmKernel prepares image for execution. The kernel may write to mem.
// Once the kernel returns, the machine is halted by calling halt; a nil halt
// parks the calling goroutine forever.
//
// If image doesn't export KernelEntryPoint, the first function is used.
func NewWasmKernel(image []byte, mem *Memory, halt func()) (*WasmKernel, error) {
	if err := wasm_validation.ValidateWasm(image); err != nil {
		return nil, fmt.Errorf("invalid kernel image: %w", err)
	}

	vm, err := exec.NewVirtualMachine(image, exec.VMConfig{
		DefaultMemoryPages: 128,
		DefaultTableSize:   65536,
	}, &resolver{mem: mem}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load kernel image: %w", err)
	}

	entryID, ok := vm.GetFunctionExport(KernelEntryPoint)
	if !ok {
		glog.Warningf("Kernel entry function %s not found; starting from 0.", KernelEntryPoint)
		entryID = 0
	}

	if halt == nil {
		halt = func() {
			for {
				time.Sleep(time.Hour)
			}
		}
	}
	return &WasmKernel{vm: vm, entryID: entryID, halt: halt}, nil
}

// Enter runs the module's start function, if it declares one, and then the
// kernel with the frame buffer parameters as its three arguments. It halts
// afterwards and never returns.
func (k *WasmKernel) Enter(frameBufferBase, width, height uintptr) {
	start := time.Now()
	ret, err := k.run(frameBufferBase, width, height)
	if err != nil {
		k.vm.PrintStackTrace()
		glog.Errorf("Kernel faulted after %v: %v", time.Since(start), err)
	} else {
		glog.Infof("Kernel returned %d after %v", ret, time.Since(start))
	}

	k.halt()
	for {
		time.Sleep(time.Hour)
	}
}

func (k *WasmKernel) run(frameBufferBase, width, height uintptr) (int64, error) {
	if k.vm.Module.Base.Start != nil {
		if _, err := k.vm.Run(int(k.vm.Module.Base.Start.Index)); err != nil {
			return 0, fmt.Errorf("start function: %w", err)
		}
	}
	return k.vm.Run(k.entryID, int64(frameBufferBase), int64(width), int64(height))
}
