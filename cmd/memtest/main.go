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


// memtest prints the memory map of a simulated UEFI machine and pattern
// tests every conventional region, reporting faulty memory.
package main

import (
	"flag"
	"strings"

	"github.com/golang/glog"
	"github.com/google/memboot/cmd/memtest/impl"
)

var (
	platform = flag.String("platform", "", "JSON platform description, a built-in 16MiB machine if empty")
	patterns = flag.String("patterns", "", "Comma separated hex test patterns, the built-in set if empty")
	faults   = flag.String("faults", "", "Comma separated addr:mask bit flips to inject, in hex")
	mapOnly  = flag.Bool("map_only", false, "Only print the memory map")
	e820     = flag.Bool("e820", false, "Also print the memory map as an E820 table")
)

func split(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func main() {
	flag.Parse()

	if err := impl.Main(impl.MemtestOpts{
		Platform: *platform,
		Patterns: split(*patterns),
		Faults:   split(*faults),
		MapOnly:  *mapOnly,
		E820:     *e820,
	}); err != nil {
		glog.Exit(err.Error())
	}
}
