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
	"errors"
	"fmt"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/memboot/efi"
	"github.com/google/memboot/efi/mock_efi"
	"github.com/google/memboot/memtest"
)

func TestParseConfig(t *testing.T) {
	for _, test := range []struct {
		desc    string
		json    string
		want    Config
		wantErr bool
	}{
		{
			desc: "empty",
			json: "{}",
			want: DefaultConfig(),
		}, {
			desc: "full",
			json: `{"kernel": "EFI/kernel.wasm", "kernel_sha256": "00ff", "splash": "a.bmp", "splash_x": 1, "splash_y": 2,
				"validate": true, "block_on_failure": true, "patterns": ["0x12345678"], "exit_retries": 5}`,
			want: Config{
				Kernel:         "EFI/kernel.wasm",
				KernelSHA256:   "00ff",
				Splash:         "a.bmp",
				SplashX:        1,
				SplashY:        2,
				Validate:       true,
				BlockOnFailure: true,
				Patterns:       []string{"0x12345678"},
				ExitRetries:    5,
			},
		}, {
			desc: "retries clamped",
			json: `{"exit_retries": 0}`,
			want: func() Config {
				c := DefaultConfig()
				c.ExitRetries = 1
				return c
			}(),
		}, {
			desc:    "bad json",
			json:    `{"kernel": 1}`,
			wantErr: true,
		}, {
			desc:    "empty kernel",
			json:    `{"kernel": ""}`,
			wantErr: true,
		}, {
			desc:    "bad pattern",
			json:    `{"patterns": ["0x123456789"]}`,
			wantErr: true,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			got, err := ParseConfig([]byte(test.json))
			if gotErr := err != nil; gotErr != test.wantErr {
				t.Fatalf("ParseConfig: %v, wantErr %t", err, test.wantErr)
			}
			if err != nil {
				return
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("Got diff (-want +got): %s", diff)
			}
		})
	}
}

func TestPatternValues(t *testing.T) {
	c := Config{Patterns: []string{"0", "FFFFFFFF", "0x55aa55aa"}}
	got, err := c.PatternValues()
	if err != nil {
		t.Fatalf("PatternValues: %v", err)
	}
	if diff := cmp.Diff([]uint32{0, 0xffffffff, 0x55aa55aa}, got); diff != "" {
		t.Errorf("Got diff (-want +got): %s", diff)
	}

	got, err = Config{}.PatternValues()
	if err != nil {
		t.Fatalf("PatternValues: %v", err)
	}
	if diff := cmp.Diff(memtest.DefaultPatterns, got); diff != "" {
		t.Errorf("defaults: got diff (-want +got): %s", diff)
	}
}

func TestLoadConfig(t *testing.T) {
	for _, test := range []struct {
		desc    string
		file    []byte
		err     error
		want    Config
		wantErr bool
	}{
		{
			desc: "missing",
			err:  fmt.Errorf("cannot open file: %w", efi.ErrNotFound),
			want: DefaultConfig(),
		}, {
			desc: "present",
			file: []byte(`{"validate": true}`),
			want: func() Config {
				c := DefaultConfig()
				c.Validate = true
				return c
			}(),
		}, {
			desc:    "unreadable",
			err:     efi.ErrDeviceError,
			wantErr: true,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := mock_efi.NewMockServices(ctrl)
			svc.EXPECT().ReadFile(ConfigPath).Return(test.file, test.err)

			got, err := LoadConfig(svc)
			if gotErr := err != nil; gotErr != test.wantErr {
				t.Fatalf("LoadConfig: %v, wantErr %t", err, test.wantErr)
			}
			if err != nil {
				if !errors.Is(err, test.err) {
					t.Errorf("LoadConfig: %v, want wrapped %v", err, test.err)
				}
				return
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("Got diff (-want +got): %s", diff)
			}
		})
	}
}
