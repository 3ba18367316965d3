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

// Package builder turns business actions into unsubmitted ledger
// operations.
//
// Every builder reads the current state it depends on, derives the
// addresses of new records from freshly read counters, and checks locally
// what the ledger program would refuse: text lengths, coordinates, amounts,
// stock, escrow balances and wallet funds. Failures are reported as
// errs.ErrValidationFailed or errs.ErrReferenceNotFound and never reach
// the ledger.
package builder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/bits"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/counter"
	"github.com/blinklabs-io/supplychain/derive"
	"github.com/blinklabs-io/supplychain/entity"
	"github.com/blinklabs-io/supplychain/errs"
	"github.com/blinklabs-io/supplychain/lamports"
	"github.com/blinklabs-io/supplychain/ledger"
	"github.com/blinklabs-io/supplychain/program"
	"github.com/blinklabs-io/supplychain/repository"
)

type Config struct {
	Reader    ledger.Reader
	Logger    *slog.Logger
	ProgramID address.Address
}

type Builder struct {
	reader    ledger.Reader
	logger    *slog.Logger
	repo      *repository.Repository
	tracker   *counter.Tracker
	deriver   *derive.Deriver
	programID address.Address
}

func New(cfg Config) *Builder {
	b := &Builder{
		reader:    cfg.Reader,
		logger:    cfg.Logger,
		programID: cfg.ProgramID,
		deriver:   derive.New(cfg.ProgramID),
	}
	if b.logger == nil {
		b.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	b.repo = repository.New(repository.Config{
		Reader:    cfg.Reader,
		Logger:    b.logger,
		ProgramID: cfg.ProgramID,
	})
	b.tracker = counter.New(cfg.Reader, b.deriver)
	return b
}

func (b *Builder) operation(
	op string,
	args program.Args,
	accounts map[string]address.Address,
) (*program.Operation, error) {
	ret, err := program.NewOperation(b.programID, args, accounts)
	if err != nil {
		return nil, errs.Wrap(op, errs.KindValidationFailed, err)
	}
	b.logger.Debug(
		"built operation",
		"component", "builder",
		"action", ret.Instruction.String(),
		"op_id", ret.ID.String(),
		"accounts", len(ret.Accounts),
	)
	return ret, nil
}

// user reads the wallet's user record. A wallet that never registered has
// no record to build on.
func (b *Builder) user(
	ctx context.Context,
	op string,
	wallet address.Address,
	field entity.CounterField,
) (*entity.User, *counter.Reading, error) {
	userAddr, err := b.deriver.User(wallet)
	if err != nil {
		return nil, nil, err
	}
	r, err := b.tracker.Read(ctx, userAddr, field)
	if err != nil {
		return nil, nil, annotate(op, err)
	}
	user := r.Record.(*entity.User)
	if user.Owner != wallet {
		return nil, nil, errs.Validation(op, "user record %s is not owned by %s", userAddr, wallet)
	}
	return user, r, nil
}

// roleUser is user plus a role gate. The counter read is the one the role
// advances when it creates its record.
func (b *Builder) roleUser(
	ctx context.Context,
	op string,
	wallet address.Address,
	role entity.Role,
) (*entity.User, *counter.Reading, error) {
	return b.roleUserCounter(ctx, op, wallet, role, role.CounterField())
}

// roleUserCounter is roleUser reading a counter other than the role's own
func (b *Builder) roleUserCounter(
	ctx context.Context,
	op string,
	wallet address.Address,
	role entity.Role,
	field entity.CounterField,
) (*entity.User, *counter.Reading, error) {
	user, r, err := b.user(ctx, op, wallet, field)
	if err != nil {
		return nil, nil, err
	}
	got, err := user.RoleValue()
	if err != nil {
		return nil, nil, errs.Decode(op, err)
	}
	if got != role {
		return nil, nil, errs.Validation(op, "wallet is registered as %s, not %s", got, role)
	}
	return user, r, nil
}

// annotate prefixes op onto classified errors and wraps the rest
func annotate(op string, err error) error {
	if kind := errs.KindOf(err); kind != errs.KindUnknown {
		return errs.Wrap(op, kind, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// owned fails unless rec belongs to wallet
func owned(op string, rec entity.Owned, addr, wallet address.Address) error {
	if rec.OwnerAddress() != wallet {
		return errs.Validation(op, "%s %s is not owned by %s", rec.Kind(), addr, wallet)
	}
	return nil
}

// walletFunds fails unless wallet holds at least amount lamports
func (b *Builder) walletFunds(
	ctx context.Context,
	op string,
	wallet address.Address,
	amount uint64,
) error {
	bal, err := b.reader.GetBalance(ctx, wallet)
	if err != nil {
		return fmt.Errorf("%s: read wallet balance: %w", op, err)
	}
	if bal < amount {
		return errs.Validation(
			op,
			"wallet holds %s SOL, %s SOL needed",
			lamports.Format(bal),
			lamports.Format(amount),
		)
	}
	return nil
}

func checkText(op, field, value string, limit int) error {
	if value == "" {
		return errs.Validation(op, "%s is required", field)
	}
	if len(value) > limit {
		return errs.Validation(op, "%s is %d bytes, limit is %d", field, len(value), limit)
	}
	return nil
}

// checkOptionalText allows an empty value
func checkOptionalText(op, field, value string, limit int) error {
	if len(value) > limit {
		return errs.Validation(op, "%s is %d bytes, limit is %d", field, len(value), limit)
	}
	return nil
}

func checkCoordinates(op string, lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return errs.Validation(op, "latitude %v out of range", lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return errs.Validation(op, "longitude %v out of range", lon)
	}
	return nil
}

// amount converts a SOL string to lamports. Zero is refused when positive
// is set.
func amount(op, field, sol string, positive bool) (uint64, error) {
	ret, err := lamports.Parse(sol)
	if err != nil {
		return 0, errs.Validation(op, "%s: %s", field, err)
	}
	if positive && ret == 0 {
		return 0, errs.Validation(op, "%s must be greater than zero", field)
	}
	return ret, nil
}

// total is price times quantity with overflow detection
func total(op string, price, qty uint64) (uint64, error) {
	hi, lo := bits.Mul64(price, qty)
	if hi != 0 {
		return 0, errs.Validation(op, "total of %d units at %d lamports overflows", qty, price)
	}
	return lo, nil
}

func checkQuantity(op string, qty, available uint64, what string) error {
	if qty == 0 {
		return errs.Validation(op, "quantity must be greater than zero")
	}
	if qty > available {
		return errs.Validation(op, "requested %d units, %s has %d", qty, what, available)
	}
	return nil
}
