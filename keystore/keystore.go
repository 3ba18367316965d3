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

// Package keystore manages the wallet key pairs that sign supply-chain
// operations. Keys are stored in the JSON byte-array format used by the
// Solana command line tools: the 64-byte ed25519 private key (seed followed
// by public key) written as a JSON array of integers.
package keystore

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/ledger"
)

// Common errors returned by KeyStore operations.
var (
	ErrInsecureFileMode = errors.New("insecure file permissions")
	ErrInvalidKeyFile   = errors.New("invalid key file")
	ErrKeyExists        = errors.New("key file already exists")
	ErrInvalidKeyName   = errors.New("invalid key name")
)

// KeyFileExtension is appended to key names to form file names
const KeyFileExtension = ".json"

// Key is a wallet key pair. It implements ledger.Signer.
type Key struct {
	private ed25519.PrivateKey
	public  address.Address
}

var _ ledger.Signer = (*Key)(nil)

// NewKeyFromSeed builds the key pair for a 32-byte ed25519 seed
func NewKeyFromSeed(seed []byte) (*Key, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf(
			"%w: seed is %d bytes, want %d",
			ErrInvalidKeyFile,
			len(seed),
			ed25519.SeedSize,
		)
	}
	return newKey(ed25519.NewKeyFromSeed(seed))
}

// Generate creates a fresh random key pair
func Generate() (*Key, error) {
	return GenerateFrom(rand.Reader)
}

// GenerateFrom creates a key pair from the given entropy source
func GenerateFrom(entropy io.Reader) (*Key, error) {
	_, priv, err := ed25519.GenerateKey(entropy)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return newKey(priv)
}

func newKey(priv ed25519.PrivateKey) (*Key, error) {
	pub, err := address.FromBytes(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &Key{private: priv, public: pub}, nil
}

func (k *Key) PublicKey() address.Address {
	return k.public
}

func (k *Key) Sign(msg []byte) (ledger.Signature, error) {
	var ret ledger.Signature
	copy(ret[:], ed25519.Sign(k.private, msg))
	return ret, nil
}

// KeyStoreConfig holds configuration for the KeyStore.
type KeyStoreConfig struct {
	// Dir holds one key file per named wallet
	Dir    string
	Logger *slog.Logger
}

// KeyStore loads and creates named wallet keys in a directory. Loaded keys
// are cached for the life of the store.
type KeyStore struct {
	config KeyStoreConfig
	logger *slog.Logger
	mu     sync.Mutex
	keys   map[string]*Key
}

// NewKeyStore creates a new KeyStore with the given configuration.
func NewKeyStore(config KeyStoreConfig) *KeyStore {
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &KeyStore{
		config: config,
		logger: config.Logger.With("component", "keystore"),
		keys:   make(map[string]*Key),
	}
}

// Path returns the key file path for name
func (ks *KeyStore) Path(name string) (string, error) {
	if name == "" ||
		strings.ContainsAny(name, `/\`) ||
		name == "." ||
		name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKeyName, name)
	}
	return filepath.Join(ks.config.Dir, name+KeyFileExtension), nil
}

// Load returns the key stored under name.
// Returns ErrInsecureFileMode if the key file is readable by others.
func (ks *KeyStore) Load(name string) (*Key, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if key, ok := ks.keys[name]; ok {
		return key, nil
	}
	path, err := ks.Path(name)
	if err != nil {
		return nil, err
	}
	key, err := LoadKeyFile(path)
	if err != nil {
		return nil, err
	}
	ks.keys[name] = key
	ks.logger.Debug(
		"loaded key",
		"name", name,
		"public_key", key.PublicKey().String(),
	)
	return key, nil
}

// Create generates a key, writes it under name and returns it. An existing
// key file is never overwritten.
func (ks *KeyStore) Create(name string) (*Key, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	path, err := ks.Path(name)
	if err != nil {
		return nil, err
	}
	key, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(ks.config.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	if err := WriteKeyFile(path, key); err != nil {
		return nil, err
	}
	ks.keys[name] = key
	ks.logger.Info(
		"created key",
		"name", name,
		"public_key", key.PublicKey().String(),
	)
	return key, nil
}

// LoadOrCreate loads the key stored under name, creating it when no key
// file exists yet
func (ks *KeyStore) LoadOrCreate(name string) (*Key, error) {
	key, err := ks.Load(name)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return ks.Create(name)
}
