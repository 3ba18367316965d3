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

package devnet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/ledger"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

var accountKeyPrefix = []byte("a")

const accountHeaderSize = 8 + address.Size

func accountKey(addr address.Address) []byte {
	ret := make([]byte, 0, len(accountKeyPrefix)+address.Size)
	ret = append(ret, accountKeyPrefix...)
	return append(ret, addr[:]...)
}

// value layout: lamports(u64 LE) | owner(32) | data
func encodeAccount(acct *ledger.Account) []byte {
	ret := make([]byte, 0, accountHeaderSize+len(acct.Data))
	ret = binary.LittleEndian.AppendUint64(ret, acct.Lamports)
	ret = append(ret, acct.Owner[:]...)
	return append(ret, acct.Data...)
}

func decodeAccount(addr address.Address, val []byte) (*ledger.Account, error) {
	if len(val) < accountHeaderSize {
		return nil, fmt.Errorf("corrupt account record %s", addr)
	}
	ret := &ledger.Account{
		Address:  addr,
		Lamports: binary.LittleEndian.Uint64(val[:8]),
		Data:     append([]byte(nil), val[accountHeaderSize:]...),
	}
	copy(ret.Owner[:], val[8:accountHeaderSize])
	return ret, nil
}

func openBadger(dataDir string, logger *slog.Logger) (*badger.DB, error) {
	if dataDir == "" {
		return badger.Open(
			badger.DefaultOptions("").
				WithLogger(newBadgerLogger(logger)).
				// The default INFO logging is a bit verbose
				WithLoggingLevel(badger.WARNING).
				WithInMemory(true),
		)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return badger.Open(
		badger.DefaultOptions(filepath.Join(dataDir, "accounts")).
			WithLogger(newBadgerLogger(logger)).
			WithLoggingLevel(badger.WARNING).
			WithCompression(options.Snappy),
	)
}

func getAccount(txn *badger.Txn, addr address.Address) (*ledger.Account, error) {
	item, err := txn.Get(accountKey(addr))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return decodeAccount(addr, val)
}

func putAccount(txn *badger.Txn, acct *ledger.Account) error {
	return txn.Set(accountKey(acct.Address), encodeAccount(acct))
}

func scanAccounts(
	txn *badger.Txn,
	owner address.Address,
	dataPrefix []byte,
) ([]*ledger.Account, error) {
	var ret []*ledger.Account
	opts := badger.DefaultIteratorOptions
	opts.Prefix = accountKeyPrefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(accountKeyPrefix); it.ValidForPrefix(accountKeyPrefix); it.Next() {
		item := it.Item()
		key := item.Key()
		if len(key) != len(accountKeyPrefix)+address.Size {
			continue
		}
		var addr address.Address
		copy(addr[:], key[len(accountKeyPrefix):])
		val, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		acct, err := decodeAccount(addr, val)
		if err != nil {
			return nil, err
		}
		if acct.Owner != owner || !bytes.HasPrefix(acct.Data, dataPrefix) {
			continue
		}
		ret = append(ret, acct)
	}
	return ret, nil
}

// badgerLogger routes badger's printf-style logging into slog
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(logger *slog.Logger) *badgerLogger {
	return &badgerLogger{logger: logger}
}

func (b *badgerLogger) Errorf(msg string, args ...any) {
	b.logger.Error(fmt.Sprintf(msg, args...), "component", "devnet")
}

func (b *badgerLogger) Warningf(msg string, args ...any) {
	b.logger.Warn(fmt.Sprintf(msg, args...), "component", "devnet")
}

func (b *badgerLogger) Infof(msg string, args ...any) {
	b.logger.Info(fmt.Sprintf(msg, args...), "component", "devnet")
}

func (b *badgerLogger) Debugf(msg string, args ...any) {
	b.logger.Debug(fmt.Sprintf(msg, args...), "component", "devnet")
}
