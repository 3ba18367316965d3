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
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/derive"
	"github.com/blinklabs-io/supplychain/entity"
	"github.com/blinklabs-io/supplychain/ledger"
	"github.com/blinklabs-io/supplychain/program"
	badger "github.com/dgraph-io/badger/v4"
)

// execution is the state of one operation running inside a badger
// read-write transaction
type execution struct {
	txn       *badger.Txn
	op        *program.Operation
	deriver   *derive.Deriver
	now       uint64
	signer    address.Address
	programID address.Address
}

func (x *execution) run() error {
	if err := x.checkAccounts(); err != nil {
		return err
	}
	args, err := x.op.Args()
	if err != nil {
		return ledger.NewProgramRejection(
			program.CodeInstructionDidNotDeserialize,
			x.programID,
		)
	}
	handler, ok := handlers[x.op.Instruction]
	if !ok {
		return ledger.NewProgramRejection(
			program.CodeInstructionFallbackNotFound,
			x.programID,
		)
	}
	return handler(x, args)
}

// checkAccounts enforces the instruction's account layout: count, signer
// and writable flags, and the fixed system program slot
func (x *execution) checkAccounts() error {
	specs := x.op.Instruction.Accounts()
	if len(x.op.Accounts) != len(specs) {
		return ledger.NewProgramRejection(
			program.CodeAccountNotEnoughKeys,
			x.programID,
		)
	}
	for i, spec := range specs {
		acct := x.op.Accounts[i]
		if spec.Signer && (!acct.Signer || acct.Address != x.signer) {
			return ledger.NewProgramRejection(
				program.CodeConstraintSigner,
				acct.Address,
			)
		}
		if spec.Writable && !acct.Writable {
			return ledger.NewProgramRejection(
				program.CodeConstraintMut,
				acct.Address,
			)
		}
		if spec.Name == program.AccountSystemProgram &&
			acct.Address != address.SystemProgram {
			return ledger.NewProgramRejection(
				program.CodeInvalidProgramID,
				acct.Address,
			)
		}
	}
	return nil
}

func (x *execution) addr(name string) address.Address {
	ret, _ := x.op.Account(name)
	return ret
}

func (x *execution) fail(code program.ErrorCode, name string) error {
	return ledger.NewProgramRejection(code, x.addr(name))
}

// load decodes the record in the named slot
func (x *execution) load(name string, out entity.Entity) error {
	addr := x.addr(name)
	acct, err := getAccount(x.txn, addr)
	if err != nil {
		return err
	}
	if acct == nil {
		return ledger.NewProgramRejection(program.CodeAccountNotInitialized, addr)
	}
	if acct.Owner != x.programID {
		return ledger.NewProgramRejection(
			program.CodeAccountDiscriminatorMismatch,
			addr,
		)
	}
	if err := entity.Decode(acct.Data, out); err != nil {
		if errors.Is(err, entity.ErrDiscriminatorMismatch) ||
			errors.Is(err, entity.ErrShortData) {
			return ledger.NewProgramRejection(
				program.CodeAccountDiscriminatorMismatch,
				addr,
			)
		}
		return ledger.NewProgramRejection(
			program.CodeAccountDidNotDeserialize,
			addr,
		)
	}
	return nil
}

// loadUser loads the signer's user record and checks that the slot holds
// the address derived from the signer
func (x *execution) loadUser(name string) (*entity.User, error) {
	want, err := x.deriver.User(x.signer)
	if err != nil {
		return nil, err
	}
	if x.addr(name) != want {
		return nil, x.fail(program.CodeConstraintSeeds, name)
	}
	user := &entity.User{}
	if err := x.load(name, user); err != nil {
		return nil, err
	}
	if user.Owner != x.signer {
		return nil, x.fail(program.CodeUnauthorizedAccess, name)
	}
	return user, nil
}

// loadRole is loadUser plus a role gate
func (x *execution) loadRole(name string, role entity.Role) (*entity.User, error) {
	user, err := x.loadUser(name)
	if err != nil {
		return nil, err
	}
	got, err := user.RoleValue()
	if err != nil || got != role {
		return nil, x.fail(program.CodeInvalidRole, name)
	}
	return user, nil
}

// store writes a record into the named slot, preserving its lamports
func (x *execution) store(name string, e entity.Entity) error {
	addr := x.addr(name)
	data, err := entity.Encode(e)
	if err != nil {
		return err
	}
	acct, err := getAccount(x.txn, addr)
	if err != nil {
		return err
	}
	if acct == nil {
		acct = &ledger.Account{Address: addr, Owner: x.programID}
	}
	acct.Data = data
	return putAccount(x.txn, acct)
}

// create initializes a new record in the named slot. The slot must hold the
// address derived from parent and seq, and must be empty.
func (x *execution) create(
	name string,
	e entity.Entity,
	parent address.Address,
	seq uint64,
) error {
	addr := x.addr(name)
	var want address.Address
	var err error
	if e.Kind() == entity.KindUser {
		want, err = x.deriver.User(parent)
	} else {
		want, err = x.deriver.Child(e.Kind(), parent, seq)
	}
	if err != nil {
		return err
	}
	if addr != want {
		return ledger.NewProgramRejection(program.CodeConstraintSeeds, addr)
	}
	existing, err := getAccount(x.txn, addr)
	if err != nil {
		return err
	}
	if existing != nil {
		return &ledger.Rejection{
			Reason:  ledger.ReasonAccountInUse,
			Account: addr,
			Message: fmt.Sprintf("address %s already in use", addr),
		}
	}
	return x.store(name, e)
}

// record writes a Transaction entry under the signer's user record and
// advances its transaction counter
func (x *execution) record(
	user *entity.User,
	from address.Address,
	to address.Address,
	amount uint64,
) error {
	next, err := x.increment(user.TransactionCount, program.AccountTransaction)
	if err != nil {
		return err
	}
	txRecord := &entity.Transaction{
		TransactionID: next,
		From:          from,
		To:            to,
		Amount:        amount,
		Timestamp:     x.now,
		Status:        true,
	}
	if err := x.create(
		program.AccountTransaction,
		txRecord,
		x.addr(program.AccountUser),
		next,
	); err != nil {
		return err
	}
	user.TransactionCount = next
	return nil
}

func (x *execution) increment(counter uint64, name string) (uint64, error) {
	if counter == math.MaxUint64 {
		return 0, x.fail(program.CodeOverflow, name)
	}
	return counter + 1, nil
}

func (x *execution) add(a, b uint64, name string) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, x.fail(program.CodeOverflow, name)
	}
	return sum, nil
}

func (x *execution) mul(a, b uint64, name string) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, x.fail(program.CodeOverflow, name)
	}
	return lo, nil
}

// debit moves lamports from the signer's wallet into the named slot
func (x *execution) debit(name string, amount uint64) error {
	return x.move(x.signer, x.addr(name), amount)
}

// credit moves lamports from the named slot to the signer's wallet
func (x *execution) credit(name string, amount uint64) error {
	return x.move(x.addr(name), x.signer, amount)
}

func (x *execution) move(from, to address.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	src, err := getAccount(x.txn, from)
	if err != nil {
		return err
	}
	if src == nil || src.Lamports < amount {
		return &ledger.Rejection{
			Reason:  ledger.ReasonInsufficientFunds,
			Account: from,
			Message: fmt.Sprintf("%s cannot pay %d lamports", from, amount),
		}
	}
	dst, err := getAccount(x.txn, to)
	if err != nil {
		return err
	}
	if dst == nil {
		dst = &ledger.Account{Address: to, Owner: address.SystemProgram}
	}
	if dst.Lamports > math.MaxUint64-amount {
		return ledger.NewProgramRejection(program.CodeOverflow, to)
	}
	src.Lamports -= amount
	dst.Lamports += amount
	if err := putAccount(x.txn, src); err != nil {
		return err
	}
	return putAccount(x.txn, dst)
}

func (x *execution) checkLen(s string, limit int, code program.ErrorCode) error {
	if len(s) > limit {
		return ledger.NewProgramRejection(code, x.programID)
	}
	return nil
}
