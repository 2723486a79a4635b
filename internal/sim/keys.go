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
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/memboot/efi"
	"golang.org/x/term"
)

// KeySource supplies key presses to the simulated console.
type KeySource interface {
	NextKey() (efi.Key, error)
}

// ScriptedKeys replays a fixed sequence of key presses. Once exhausted,
// NextKey returns efi.NotReady.
type ScriptedKeys struct {
	mu   sync.Mutex
	keys []efi.Key
}

// NewScriptedKeys returns a KeySource replaying keys in order.
func NewScriptedKeys(keys ...efi.Key) *ScriptedKeys {
	return &ScriptedKeys{keys: keys}
}

// ParseKeys parses a comma separated key script. Each element is either a
// single character or the name "esc" or "enter".
func ParseKeys(script string) (*ScriptedKeys, error) {
	var keys []efi.Key
	if script == "" {
		return NewScriptedKeys(), nil
	}
	for _, k := range strings.Split(script, ",") {
		switch strings.ToLower(k) {
		case "esc":
			keys = append(keys, efi.Key{ScanCode: efi.ScanEsc})
		case "enter":
			keys = append(keys, efi.Key{UnicodeChar: '\r'})
		default:
			if utf8.RuneCountInString(k) != 1 {
				return nil, fmt.Errorf("invalid key %q in script", k)
			}
			r, _ := utf8.DecodeRuneInString(k)
			keys = append(keys, efi.Key{UnicodeChar: r})
		}
	}
	return NewScriptedKeys(keys...), nil
}

// NextKey returns the next scripted key.
func (s *ScriptedKeys) NextKey() (efi.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.keys) == 0 {
		return efi.Key{}, fmt.Errorf("key script exhausted: %w", efi.NotReady)
	}
	k := s.keys[0]
	s.keys = s.keys[1:]
	return k, nil
}

// TerminalKeys reads key presses from a terminal in raw mode.
type TerminalKeys struct {
	in      *os.File
	r       io.Reader
	state   *term.State
	pending []byte
}

// NewTerminalKeys puts the terminal in into raw mode. Close restores it.
func NewTerminalKeys(in *os.File) (*TerminalKeys, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%s is not a terminal", in.Name())
	}
	st, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to set raw mode: %w", err)
	}
	return &TerminalKeys{in: in, r: in, state: st}, nil
}

// NextKey blocks until a key is pressed. Ctrl-C aborts. Arrow keys map to
// their scan codes, other escape sequences are dropped.
func (t *TerminalKeys) NextKey() (efi.Key, error) {
	for {
		if len(t.pending) == 0 {
			b := make([]byte, 32)
			n, err := t.r.Read(b)
			if err != nil {
				return efi.Key{}, fmt.Errorf("%v: %w", err, efi.DeviceError)
			}
			t.pending = b[:n]
			continue
		}
		k, n, ok := decodeKey(t.pending)
		t.pending = t.pending[n:]
		if k.UnicodeChar == 0x03 {
			return efi.Key{}, efi.Aborted
		}
		if ok {
			return k, nil
		}
	}
}

var arrowKeys = map[byte]uint16{
	'A': efi.ScanUp,
	'B': efi.ScanDown,
	'C': efi.ScanRight,
	'D': efi.ScanLeft,
}

// decodeKey decodes the key at the start of b, returning the number of bytes
// it took. ok is false for input that isn't a key.
func decodeKey(b []byte) (k efi.Key, n int, ok bool) {
	if b[0] != 0x1b {
		r, size := utf8.DecodeRune(b)
		return efi.Key{UnicodeChar: r}, size, true
	}
	// A lone ESC, unless a CSI or SS3 sequence arrived with it.
	if len(b) == 1 || (b[1] != '[' && b[1] != 'O') {
		return efi.Key{ScanCode: efi.ScanEsc}, 1, true
	}
	for i := 2; i < len(b); i++ {
		if b[i] >= 0x40 && b[i] <= 0x7e {
			if sc, found := arrowKeys[b[i]]; found && i == 2 {
				return efi.Key{ScanCode: sc}, i + 1, true
			}
			return efi.Key{}, i + 1, false
		}
	}
	return efi.Key{}, len(b), false
}

// Close restores the terminal state.
func (t *TerminalKeys) Close() error {
	return term.Restore(int(t.in.Fd()), t.state)
}
