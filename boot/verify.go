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
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/sumdb/note"
)

// verifyHash checks that the SHA-256 of bin is the hex encoded digest s.
func verifyHash(bin []byte, s string) error {
	want, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hash %q: %v", s, err)
	}
	got := sha256.Sum256(bin)
	if !bytes.Equal(got[:], want) {
		return fmt.Errorf("kernel hash %x, want %x", got, want)
	}
	return nil
}

// ManifestVerifier checks signed kernel manifests.
//
// A manifest is a note whose first line is the hex encoded SHA-256 of the
// kernel image, optionally followed by whitespace and the image name, as
// printed by sha256sum.
type ManifestVerifier struct {
	verifiers note.Verifiers
}

// NewManifestVerifier returns a verifier accepting manifests signed by any
// of the given note verifier keys.
func NewManifestVerifier(vkeys ...string) (*ManifestVerifier, error) {
	if len(vkeys) == 0 {
		return nil, errors.New("no verifier keys")
	}
	vs := make([]note.Verifier, 0, len(vkeys))
	for _, k := range vkeys {
		v, err := note.NewVerifier(k)
		if err != nil {
			return nil, fmt.Errorf("invalid verifier key %q: %v", k, err)
		}
		vs = append(vs, v)
	}
	return &ManifestVerifier{verifiers: note.VerifierList(vs...)}, nil
}

// Verify checks the signature on manifest and that it vouches for image.
func (v *ManifestVerifier) Verify(image, manifest []byte) error {
	n, err := note.Open(manifest, v.verifiers)
	if err != nil {
		return fmt.Errorf("failed to verify manifest: %v", err)
	}
	line, _, _ := strings.Cut(n.Text, "\n")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return errors.New("empty manifest")
	}
	return verifyHash(image, fields[0])
}
