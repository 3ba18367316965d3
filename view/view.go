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

// Package view keeps a SQL snapshot of committed records.
//
// The snapshot changes only when the orchestrator publishes the accounts it
// re-read after a commit, so it never holds state the ledger has not
// accepted. It is a read model for profile and listing screens; builders
// always read the ledger itself.
package view

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/derive"
	"github.com/blinklabs-io/supplychain/entity"
	"github.com/blinklabs-io/supplychain/event"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrNotFound = errors.New("view: record not found")

type Config struct {
	Logger *slog.Logger
	// Driver is DriverSqlite (default) or DriverPostgres
	Driver string
	// DSN is the postgres connection string
	DSN string
	// DataDir holds the sqlite file. Empty means in-memory.
	DataDir   string
	ProgramID address.Address
}

type Store struct {
	db      *gorm.DB
	logger  *slog.Logger
	deriver *derive.Deriver
	mu      sync.Mutex
	bus     *event.EventBus
	subId   event.EventSubscriberId
}

// New opens the snapshot database and creates its tables
func New(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	gormCfg := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	}
	var db *gorm.DB
	var err error
	switch cfg.Driver {
	case "", DriverSqlite:
		db, err = openSqlite(cfg.DataDir, gormCfg)
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, errors.New("view: postgres driver needs a DSN")
		}
		db, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	default:
		return nil, fmt.Errorf("view: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("view: open database: %w", err)
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("view: configure tracing: %w", err)
	}
	s := &Store{
		db:      db,
		logger:  cfg.Logger.With("component", "view"),
		deriver: derive.New(cfg.ProgramID),
	}
	for _, model := range MigrateModels {
		if err := db.AutoMigrate(model); err != nil {
			s.Close()
			return nil, fmt.Errorf("view: migrate: %w", err)
		}
	}
	return s, nil
}

func openSqlite(dataDir string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if dataDir == "" {
		db, err := gorm.Open(sqlite.Open(":memory:"), gormCfg)
		if err != nil {
			return nil, err
		}
		// every connection to :memory: is its own database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}
	if err := os.MkdirAll(dataDir, fs.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	path := filepath.Join(dataDir, "view.sqlite")
	return gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", path)),
		gormCfg,
	)
}

// Attach applies every AccountsRefreshed event published on bus until
// Close
func (s *Store) Attach(bus *event.EventBus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bus != nil {
		return
	}
	s.bus = bus
	s.subId = bus.SubscribeFunc(
		event.AccountsRefreshedEventType,
		func(evt event.Event) {
			data, ok := evt.Data.(event.AccountsRefreshedEvent)
			if !ok {
				return
			}
			if err := s.Apply(context.Background(), data); err != nil {
				s.logger.Error(
					"failed to apply refreshed accounts",
					"op_id", data.OperationID.String(),
					"error", err,
				)
			}
		},
	)
}

// Apply writes the re-read accounts of one commit. A record is only
// replaced by one from the same or a later slot, so events applied out of
// order cannot roll the snapshot back.
func (s *Store) Apply(ctx context.Context, evt event.AccountsRefreshedEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, acct := range evt.Accounts {
			var existing Record
			res := tx.Where("address = ?", acct.Address).Limit(1).Find(&existing)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 && uint64(existing.Slot) > evt.Slot {
				continue
			}
			if !acct.Exists {
				if err := tx.Delete(&Record{}, "address = ?", acct.Address).Error; err != nil {
					return err
				}
				continue
			}
			rec, err := newRecord(acct, evt.Slot)
			if err != nil {
				// wallets and the system program are not program records
				s.logger.Debug(
					"skipping account",
					"address", acct.Address,
					"error", err,
				)
				continue
			}
			if err := tx.Save(rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func newRecord(acct event.RefreshedAccount, slot uint64) (*Record, error) {
	ent, err := entity.DecodeAny(acct.Data)
	if err != nil {
		return nil, err
	}
	rec := &Record{
		Address: acct.Address,
		Kind:    ent.Kind().String(),
		Data:    acct.Data,
		Slot:    Uint64(slot),
	}
	if owned, ok := ent.(entity.Owned); ok {
		rec.Owner = owned.OwnerAddress().String()
	}
	if funded, ok := ent.(entity.Funded); ok {
		rec.Balance = Uint64(funded.BalanceLamports())
	}
	return rec, nil
}

// Get returns the snapshot of the record at addr
func (s *Store) Get(ctx context.Context, addr address.Address) (entity.Entity, uint64, error) {
	var rec Record
	res := s.db.WithContext(ctx).Where("address = ?", addr.String()).Limit(1).Find(&rec)
	if res.Error != nil {
		return nil, 0, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, addr)
	}
	ent, err := entity.DecodeAny(rec.Data)
	if err != nil {
		return nil, 0, err
	}
	return ent, uint64(rec.Slot), nil
}

// Profile returns the snapshot of the wallet's user record
func (s *Store) Profile(ctx context.Context, wallet address.Address) (*entity.User, error) {
	addr, err := s.deriver.User(wallet)
	if err != nil {
		return nil, err
	}
	ent, _, err := s.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	user, ok := ent.(*entity.User)
	if !ok {
		return nil, fmt.Errorf("%w: %s holds a %s", ErrNotFound, addr, ent.Kind())
	}
	return user, nil
}

// OwnedBy returns the snapshot records of one kind owned by wallet
func (s *Store) OwnedBy(
	ctx context.Context,
	kind entity.Kind,
	wallet address.Address,
) ([]entity.Entity, error) {
	var recs []Record
	err := s.db.WithContext(ctx).
		Where("kind = ? AND owner = ?", kind.String(), wallet.String()).
		Order("address").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	ret := make([]entity.Entity, 0, len(recs))
	for _, rec := range recs {
		ent, err := entity.DecodeAny(rec.Data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", rec.Address, err)
		}
		ret = append(ret, ent)
	}
	return ret, nil
}

// Count returns the number of snapshot records of kind
func (s *Store) Count(ctx context.Context, kind entity.Kind) (int64, error) {
	var ret int64
	err := s.db.WithContext(ctx).Model(&Record{}).Where("kind = ?", kind.String()).Count(&ret).Error
	return ret, err
}

// Close detaches from the event bus and closes the database
func (s *Store) Close() error {
	s.mu.Lock()
	if s.bus != nil {
		s.bus.Unsubscribe(event.AccountsRefreshedEventType, s.subId)
		s.bus = nil
	}
	s.mu.Unlock()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
