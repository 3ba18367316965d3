// Copyright 2025 Blink Labs Software
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

package keystore

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// LoadKeyFile reads a key pair from a JSON byte-array key file.
// Returns ErrInsecureFileMode if the file has group or other access.
//
// The file is opened first and permissions are checked on the open handle
// to avoid a TOCTOU race between the permission check and the read.
func LoadKeyFile(path string) (*Key, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file %q: %w", path, err)
	}
	defer f.Close()

	if err := checkOpenFilePermissions(f); err != nil {
		return nil, err
	}

	// A key file is 64 numbers; anything this large is the wrong file.
	const maxKeyFileSize = 64 << 10
	data, err := io.ReadAll(io.LimitReader(f, maxKeyFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %q: %w", path, err)
	}
	key, err := ParseKeyFile(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %q: %w", path, err)
	}
	return key, nil
}

// ParseKeyFile decodes the JSON byte-array form of a key pair. The embedded
// public key must match the one derived from the seed.
func ParseKeyFile(data []byte) (*Key, error) {
	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyFile, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf(
			"%w: %d bytes, want %d",
			ErrInvalidKeyFile,
			len(raw),
			ed25519.PrivateKeySize,
		)
	}
	buf := make([]byte, len(raw))
	for i, v := range raw {
		if v < 0 || v > 0xff {
			return nil, fmt.Errorf("%w: value %d at index %d", ErrInvalidKeyFile, v, i)
		}
		buf[i] = byte(v)
	}
	key, err := NewKeyFromSeed(buf[:ed25519.SeedSize])
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(key.public.Bytes(), buf[ed25519.SeedSize:]) {
		return nil, errors.Join(
			ErrInvalidKeyFile,
			errors.New("public key does not match seed"),
		)
	}
	return key, nil
}

// MarshalKeyFile encodes key in the JSON byte-array form
func MarshalKeyFile(key *Key) ([]byte, error) {
	raw := make([]int, len(key.private))
	for i, b := range key.private {
		raw[i] = int(b)
	}
	return json.Marshal(raw)
}

// WriteKeyFile writes key to path with owner-only permissions. It fails
// with ErrKeyExists when path already exists.
func WriteKeyFile(path string, key *Key) error {
	data, err := MarshalKeyFile(key)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrKeyExists, path)
		}
		return fmt.Errorf("failed to create key file %q: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write key file %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write key file %q: %w", path, err)
	}
	return restrictKeyFile(path)
}
