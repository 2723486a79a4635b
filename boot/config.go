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


package boot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/google/memboot/efi"
	"github.com/google/memboot/memtest"
)

// ConfigPath is where the boot configuration is read from on the boot volume.
const ConfigPath = "memboot.conf"

// ManifestSuffix is appended to the kernel path to locate its signed manifest.
const ManifestSuffix = ".note"

// Config is the boot configuration.
type Config struct {
	// Kernel is the path of the kernel image on the boot volume.
	Kernel string `json:"kernel"`
	// KernelSHA256 is the expected hex encoded SHA-256 of the kernel image,
	// unchecked if empty.
	KernelSHA256 string `json:"kernel_sha256,omitempty"`

	// Splash is the path of the BMP image shown from the menu.
	Splash  string `json:"splash"`
	SplashX int    `json:"splash_x"`
	SplashY int    `json:"splash_y"`

	// Validate runs a memory validation pass before exiting boot services.
	Validate bool `json:"validate"`
	// BlockOnFailure refuses to boot when validation finds a faulty region.
	BlockOnFailure bool `json:"block_on_failure"`
	// Patterns are the hex encoded 32-bit test patterns, the defaults are
	// used if empty.
	Patterns []string `json:"patterns,omitempty"`

	// ExitRetries bounds the number of ExitBootServices attempts.
	ExitRetries int `json:"exit_retries"`
}

// DefaultConfig returns the configuration used when the boot volume has none.
func DefaultConfig() Config {
	return Config{
		Kernel:      "Kernel.bin",
		Splash:      "Logo.bmp",
		SplashX:     500,
		SplashY:     400,
		ExitRetries: 3,
	}
}

// ParseConfig parses a JSON configuration. Fields missing from b keep their
// default values.
func ParseConfig(b []byte) (Config, error) {
	c := DefaultConfig()
	if err := json.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if c.Kernel == "" {
		return Config{}, errors.New("no kernel path configured")
	}
	if c.ExitRetries < 1 {
		glog.Warningf("exit_retries %d is less than 1, using 1", c.ExitRetries)
		c.ExitRetries = 1
	}
	if _, err := c.PatternValues(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadConfig reads the configuration from the boot volume. A missing file
// yields the default configuration.
func LoadConfig(svc efi.Services) (Config, error) {
	glog.Infof("Reading configuration at %s", ConfigPath)
	b, err := svc.ReadFile(ConfigPath)
	if errors.Is(err, efi.ErrNotFound) {
		glog.Infof("No configuration found, using defaults")
		return DefaultConfig(), nil
	} else if err != nil {
		return Config{}, fmt.Errorf("failed to read %s: %w", ConfigPath, err)
	}
	return ParseConfig(b)
}

// PatternValues decodes the configured test patterns. An empty list yields
// memtest.DefaultPatterns.
func (c Config) PatternValues() ([]uint32, error) {
	if len(c.Patterns) == 0 {
		return append([]uint32(nil), memtest.DefaultPatterns...), nil
	}
	ps := make([]uint32, 0, len(c.Patterns))
	for _, p := range c.Patterns {
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(p), "0x"), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		ps = append(ps, uint32(v))
	}
	return ps, nil
}

// String returns the configuration as indented JSON.
func (c Config) String() string {
	j, _ := json.MarshalIndent(c, "", "\t")
	return string(j)
}
