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

// Package volume provides read access to the files on a boot volume.
package volume

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Volume is a read-only file system holding boot assets.
//
// Implementations return an error wrapping fs.ErrNotExist for files which
// are not present.
type Volume interface {
	ReadAll(name string) ([]byte, error)
}

// Dir is a Volume backed by a directory on the host.
type Dir string

// ReadAll returns the contents of the named file, relative to the directory.
func (d Dir) ReadAll(name string) ([]byte, error) {
	p := filepath.Join(string(d), filepath.FromSlash(clean(name)))
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", name, err)
	}
	return b, nil
}

// Map is an in-memory Volume, keyed by file name.
type Map map[string][]byte

// ReadAll returns the contents of the named file.
func (m Map) ReadAll(name string) ([]byte, error) {
	b, ok := m[clean(name)]
	if !ok {
		return nil, fmt.Errorf("failed to read %q: %w", name, os.ErrNotExist)
	}
	return append([]byte(nil), b...), nil
}

// clean turns name into a slash separated path relative to the volume root.
func clean(name string) string {
	return strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(name, `\`, "/")), "/")
}
