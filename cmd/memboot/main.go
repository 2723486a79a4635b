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


// memboot runs the boot stage in a simulated UEFI machine: it shows the boot
// menu, loads the kernel from the boot volume, optionally validates memory,
// exits boot services and enters the kernel.
//
// Kernel images are WebAssembly modules exporting main(fb, width, height).
package main

import (
	"flag"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/google/memboot/boot"
	"github.com/google/memboot/cmd/memboot/impl"
)

var (
	volumeDir    = flag.String("volume_dir", "", "Host directory to use as the boot volume")
	ext4Image    = flag.String("ext4_image", "", "ext4 image file to use as the boot volume")
	ext4Offset   = flag.Int64("ext4_offset", 0, "Byte offset of the ext4 partition within --ext4_image")
	platform     = flag.String("platform", "", "JSON platform description, a built-in 16MiB machine if empty")
	keys         = flag.String("keys", "esc", "Comma separated key presses to replay, e.g. f,enter,t,esc")
	interactive  = flag.Bool("interactive", false, "Read key presses from the terminal instead of --keys")
	manifestKeys = flag.String("kernel_vkeys", "", "Comma separated note verifier keys; if set the kernel must have a signed manifest")
	printMap     = flag.Bool("print_map", false, "Print the initial memory map")
	printE820    = flag.Bool("print_e820", false, "Print the initial memory map as an E820 table")
	injectStale  = flag.Int("inject_stale", 0, "Number of ExitBootServices calls during which firmware changes the memory map")
)

func main() {
	flag.Parse()

	var vkeys []string
	if *manifestKeys != "" {
		vkeys = strings.Split(*manifestKeys, ",")
	}

	if err := impl.Main(impl.MembootOpts{
		VolumeDir:    *volumeDir,
		Ext4Image:    *ext4Image,
		Ext4Offset:   *ext4Offset,
		Platform:     *platform,
		Keys:         *keys,
		Interactive:  *interactive,
		ManifestKeys: vkeys,
		PrintMap:     *printMap,
		PrintE820:    *printE820,
		InjectStale:  *injectStale,
	}); err != nil {
		glog.Errorf("memboot: %v", err)
		glog.Flush()
		os.Exit(int(boot.Code(err)))
	}
}
