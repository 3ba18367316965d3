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

// Package repository is the read path: it fetches stored records by
// address and lists records of a kind filtered on the client.
//
// A missing record is a normal negative result reported as ErrNotFound
// (classified as errs.ErrReferenceNotFound). Bytes that cannot be decoded
// are always reported as errs.ErrDecodeError.
package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/derive"
	"github.com/blinklabs-io/supplychain/entity"
	"github.com/blinklabs-io/supplychain/errs"
	"github.com/blinklabs-io/supplychain/ledger"
)

// ErrNotFound is wrapped by every lookup that finds no record of the
// expected kind
var ErrNotFound = errors.New("entity not found")

const (
	// DefaultBatchSize is the number of addresses fetched per read in GetMany
	DefaultBatchSize = 100
	// DefaultConcurrency bounds the reads GetMany keeps in flight
	DefaultConcurrency = 8
)

// Entry is one listed record with the address it is stored at
type Entry struct {
	Entity   entity.Entity
	Address  address.Address
	Lamports uint64
}

// Predicate selects records in ListByKind
type Predicate func(entity.Entity) bool

type Config struct {
	Reader      ledger.Reader
	Logger      *slog.Logger
	ProgramID   address.Address
	BatchSize   int
	Concurrency int
}

type Repository struct {
	reader      ledger.Reader
	logger      *slog.Logger
	deriver     *derive.Deriver
	programID   address.Address
	batchSize   int
	concurrency int
}

func New(cfg Config) *Repository {
	r := &Repository{
		reader:      cfg.Reader,
		logger:      cfg.Logger,
		programID:   cfg.ProgramID,
		deriver:     derive.New(cfg.ProgramID),
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if r.batchSize <= 0 {
		r.batchSize = DefaultBatchSize
	}
	if r.concurrency <= 0 {
		r.concurrency = DefaultConcurrency
	}
	return r
}

func (r *Repository) ProgramID() address.Address {
	return r.programID
}

func notFound(op string, kind entity.Kind, addr address.Address) error {
	return &errs.Error{
		Kind:   errs.KindReferenceNotFound,
		Op:     op,
		Reason: fmt.Sprintf("no %s at %s", kind, addr),
		Err:    ErrNotFound,
	}
}

// decodeAs turns raw account data into a record of kind. A record of a
// different known kind is reported as not found; anything else that fails
// to parse is a decode error.
func (r *Repository) decodeAs(
	op string,
	kind entity.Kind,
	acct *ledger.Account,
	addr address.Address,
) (entity.Entity, error) {
	if acct == nil || acct.Owner != r.programID {
		return nil, notFound(op, kind, addr)
	}
	if got, ok := entity.KindOf(acct.Data); ok && got != kind {
		return nil, notFound(op, kind, addr)
	}
	ret, err := entity.New(kind)
	if err != nil {
		return nil, errs.Validation(op, "%s", err)
	}
	if err := entity.Decode(acct.Data, ret); err != nil {
		return nil, errs.Decode(op, fmt.Errorf("%s: %w", addr, err))
	}
	return ret, nil
}

// Get fetches and decodes the record of kind stored at addr
func (r *Repository) Get(
	ctx context.Context,
	kind entity.Kind,
	addr address.Address,
) (entity.Entity, error) {
	acct, err := r.reader.GetAccount(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", kind, addr, err)
	}
	return r.decodeAs("repository.Get", kind, acct, addr)
}

// Exists reports whether any account is stored at addr
func (r *Repository) Exists(ctx context.Context, addr address.Address) (bool, error) {
	acct, err := r.reader.GetAccount(ctx, addr)
	if err != nil {
		return false, err
	}
	return acct != nil, nil
}

// GetMany fetches the records of kind at addrs. Reads are split into
// batches issued concurrently. The result has one entry per address, nil
// where no record of kind is stored.
func (r *Repository) GetMany(
	ctx context.Context,
	kind entity.Kind,
	addrs []address.Address,
) ([]entity.Entity, error) {
	const op = "repository.GetMany"
	ret := make([]entity.Entity, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for start := 0; start < len(addrs); start += r.batchSize {
		end := min(start+r.batchSize, len(addrs))
		g.Go(func() error {
			accts, err := r.reader.GetMultipleAccounts(gctx, addrs[start:end])
			if err != nil {
				return fmt.Errorf("get %d accounts: %w", end-start, err)
			}
			if len(accts) != end-start {
				return fmt.Errorf(
					"get %d accounts: reader returned %d",
					end-start,
					len(accts),
				)
			}
			for i, acct := range accts {
				rec, err := r.decodeAs(op, kind, acct, addrs[start+i])
				if errors.Is(err, ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				// each goroutine owns a disjoint range of ret
				ret[start+i] = rec
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ret, nil
}

// ListByKind fetches every record of kind and keeps those pred accepts. A
// nil pred keeps everything. Order is unspecified.
func (r *Repository) ListByKind(
	ctx context.Context,
	kind entity.Kind,
	pred Predicate,
) ([]Entry, error) {
	const op = "repository.ListByKind"
	if !kind.Valid() {
		return nil, errs.Validation(op, "unknown kind %s", kind)
	}
	disc := kind.Discriminator()
	accts, err := r.reader.GetProgramAccounts(ctx, r.programID, disc[:])
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	ret := make([]Entry, 0, len(accts))
	for _, acct := range accts {
		rec, err := r.decodeAs(op, kind, acct, acct.Address)
		if err != nil {
			return nil, err
		}
		if pred != nil && !pred(rec) {
			continue
		}
		ret = append(ret, Entry{
			Entity:   rec,
			Address:  acct.Address,
			Lamports: acct.Lamports,
		})
	}
	r.logger.Debug(
		"listed records",
		"component", "repository",
		"kind", kind.String(),
		"scanned", len(accts),
		"matched", len(ret),
	)
	return ret, nil
}

// Item is a typed record with its address
type Item[P entity.Entity] struct {
	Value   P
	Address address.Address
}

// record constrains P to a pointer to a record struct
type record[T any] interface {
	*T
	entity.Entity
}

// Get is the typed form of Repository.Get:
//
//	factory, err := repository.Get[entity.Factory](ctx, repo, addr)
func Get[T any, P record[T]](
	ctx context.Context,
	r *Repository,
	addr address.Address,
) (P, error) {
	var zero T
	rec, err := r.Get(ctx, P(&zero).Kind(), addr)
	if err != nil {
		return nil, err
	}
	return rec.(P), nil
}

// List is the typed form of Repository.ListByKind
func List[T any, P record[T]](
	ctx context.Context,
	r *Repository,
	pred func(P) bool,
) ([]Item[P], error) {
	var zero T
	entries, err := r.ListByKind(ctx, P(&zero).Kind(), func(e entity.Entity) bool {
		return pred == nil || pred(e.(P))
	})
	if err != nil {
		return nil, err
	}
	ret := make([]Item[P], 0, len(entries))
	for _, e := range entries {
		ret = append(ret, Item[P]{Value: e.Entity.(P), Address: e.Address})
	}
	return ret, nil
}
