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
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isWindows() bool {
	return runtime.GOOS == "windows"
}

func testSeed() []byte {
	return bytes.Repeat([]byte{0x07}, ed25519.SeedSize)
}

func TestSignVerifies(t *testing.T) {
	key, err := NewKeyFromSeed(testSeed())
	require.NoError(t, err)

	msg := []byte("createFactory")
	sig, err := key.Sign(msg)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(key.PublicKey().Bytes(), msg, sig[:]))
	assert.False(t, ed25519.Verify(key.PublicKey().Bytes(), []byte("other"), sig[:]))
}

func TestKeyFileRoundTrip(t *testing.T) {
	key, err := NewKeyFromSeed(testSeed())
	require.NoError(t, err)

	data, err := MarshalKeyFile(key)
	require.NoError(t, err)
	var raw []int
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Len(t, raw, ed25519.PrivateKeySize)
	assert.Equal(t, 0x07, raw[0])

	parsed, err := ParseKeyFile(data)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), parsed.PublicKey())
}

func TestParseKeyFileInvalid(t *testing.T) {
	key, err := NewKeyFromSeed(testSeed())
	require.NoError(t, err)
	good, err := MarshalKeyFile(key)
	require.NoError(t, err)
	var tampered []int
	require.NoError(t, json.Unmarshal(good, &tampered))
	tampered[40] ^= 0xff
	tamperedData, err := json.Marshal(tampered)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("wallet")},
		{"short", []byte("[1,2,3]")},
		{"out of range", []byte("[256" + strings.Repeat(",0", 63) + "]")},
		{"public key mismatch", tamperedData},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseKeyFile(tc.data)
			assert.ErrorIs(t, err, ErrInvalidKeyFile)
		})
	}
}

func TestKeyStoreCreateAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")
	ks := NewKeyStore(KeyStoreConfig{Dir: dir})

	created, err := ks.Create("factory")
	require.NoError(t, err)

	_, err = ks.Create("factory")
	assert.ErrorIs(t, err, ErrKeyExists)

	// a fresh store reads the key back from disk
	loaded, err := NewKeyStore(KeyStoreConfig{Dir: dir}).Load("factory")
	require.NoError(t, err)
	assert.Equal(t, created.PublicKey(), loaded.PublicKey())

	again, err := ks.LoadOrCreate("factory")
	require.NoError(t, err)
	assert.Same(t, created, again)

	other, err := ks.LoadOrCreate("seller")
	require.NoError(t, err)
	assert.NotEqual(t, created.PublicKey(), other.PublicKey())
}

func TestKeyStoreInvalidName(t *testing.T) {
	ks := NewKeyStore(KeyStoreConfig{Dir: t.TempDir()})
	for _, name := range []string{"", "..", "a/b", `a\b`} {
		_, err := ks.Load(name)
		assert.ErrorIs(t, err, ErrInvalidKeyName, name)
	}
}

func TestInsecureFileModeUnix(t *testing.T) {
	if isWindows() {
		t.Skip("Unix permission test; see TestInsecureFileModeWindows for Windows DACL test")
	}
	dir := t.TempDir()
	ks := NewKeyStore(KeyStoreConfig{Dir: dir})
	_, err := ks.Create("warehouse")
	require.NoError(t, err)

	path, err := ks.Path("warehouse")
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Set permissions with os.Chmod to avoid umask interference
	require.NoError(t, os.Chmod(path, 0o644))
	_, err = NewKeyStore(KeyStoreConfig{Dir: dir}).Load("warehouse")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsecureFileMode)
}
