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

// Package ledgertest provides a map-backed ledger for unit tests. It stores
// whatever the test puts into it and reports scripted outcomes for
// submitted operations without executing them.
package ledgertest

import (
	"bytes"
	"context"
	"sync"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/entity"
	"github.com/blinklabs-io/supplychain/ledger"
	"github.com/blinklabs-io/supplychain/program"
)

// OutcomeFunc decides the status reported for a submitted operation on
// each Status call. polls counts previous Status calls for it.
type OutcomeFunc func(sop *ledger.SignedOperation, polls int) ledger.Status

type Ledger struct {
	// SubmitErr, when set, is returned by Submit instead of accepting
	SubmitErr error
	// ReadErr, when set, fails every GetMultipleAccounts call
	ReadErr error
	// Outcome defaults to committing on the first poll
	Outcome   OutcomeFunc
	accounts  map[address.Address]*ledger.Account
	submitted map[ledger.Signature]*ledger.SignedOperation
	polls     map[ledger.Signature]int
	order     []ledger.Signature
	programID address.Address
	reads     int
	mu        sync.Mutex
}

func New() *Ledger {
	return &Ledger{
		programID: address.MustParse(program.DefaultProgramID),
		accounts:  make(map[address.Address]*ledger.Account),
		submitted: make(map[ledger.Signature]*ledger.SignedOperation),
		polls:     make(map[ledger.Signature]int),
	}
}

func (l *Ledger) ProgramID() address.Address {
	return l.programID
}

// Put stores an encoded record owned by the program
func (l *Ledger) Put(addr address.Address, e entity.Entity) {
	data, err := entity.Encode(e)
	if err != nil {
		panic(err)
	}
	l.PutRaw(addr, data)
}

func (l *Ledger) PutRaw(addr address.Address, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct := l.accounts[addr]
	if acct == nil {
		acct = &ledger.Account{Address: addr}
		l.accounts[addr] = acct
	}
	acct.Owner = l.programID
	acct.Data = append([]byte(nil), data...)
}

// SetBalance sets the lamports of a wallet account
func (l *Ledger) SetBalance(addr address.Address, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct := l.accounts[addr]
	if acct == nil {
		acct = &ledger.Account{Address: addr, Owner: address.SystemProgram}
		l.accounts[addr] = acct
	}
	acct.Lamports = lamports
}

// Reads returns the number of read calls made so far
func (l *Ledger) Reads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

// Submitted returns accepted operations in submission order
func (l *Ledger) Submitted() []*ledger.SignedOperation {
	l.mu.Lock()
	defer l.mu.Unlock()
	ret := make([]*ledger.SignedOperation, 0, len(l.order))
	for _, sig := range l.order {
		ret = append(ret, l.submitted[sig])
	}
	return ret
}

func (l *Ledger) copyAccount(addr address.Address) *ledger.Account {
	acct, ok := l.accounts[addr]
	if !ok {
		return nil
	}
	ret := *acct
	ret.Data = append([]byte(nil), acct.Data...)
	return &ret
}

func (l *Ledger) GetAccount(
	ctx context.Context,
	addr address.Address,
) (*ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	return l.copyAccount(addr), nil
}

func (l *Ledger) GetMultipleAccounts(
	ctx context.Context,
	addrs []address.Address,
) ([]*ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	if l.ReadErr != nil {
		return nil, l.ReadErr
	}
	ret := make([]*ledger.Account, len(addrs))
	for i, addr := range addrs {
		ret[i] = l.copyAccount(addr)
	}
	return ret, nil
}

func (l *Ledger) GetProgramAccounts(
	ctx context.Context,
	programID address.Address,
	prefix []byte,
) ([]*ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	var ret []*ledger.Account
	for addr, acct := range l.accounts {
		if acct.Owner == programID && bytes.HasPrefix(acct.Data, prefix) {
			ret = append(ret, l.copyAccount(addr))
		}
	}
	return ret, nil
}

func (l *Ledger) GetBalance(
	ctx context.Context,
	addr address.Address,
) (uint64, error) {
	acct, err := l.GetAccount(ctx, addr)
	if err != nil || acct == nil {
		return 0, err
	}
	return acct.Lamports, nil
}

func (l *Ledger) Submit(
	ctx context.Context,
	sop *ledger.SignedOperation,
) (ledger.Signature, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Signature{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.SubmitErr != nil {
		return ledger.Signature{}, l.SubmitErr
	}
	if _, ok := l.submitted[sop.Signature]; ok {
		return ledger.Signature{}, &ledger.Rejection{
			Reason: ledger.ReasonAlreadyProcessed,
		}
	}
	l.submitted[sop.Signature] = sop
	l.order = append(l.order, sop.Signature)
	return sop.Signature, nil
}

func (l *Ledger) Status(
	ctx context.Context,
	sig ledger.Signature,
) (ledger.Status, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Status{}, err
	}
	l.mu.Lock()
	sop, ok := l.submitted[sig]
	polls := l.polls[sig]
	l.polls[sig] = polls + 1
	outcome := l.Outcome
	l.mu.Unlock()
	if !ok {
		return ledger.Status{State: ledger.StateUnknown}, nil
	}
	if outcome == nil {
		return ledger.Status{State: ledger.StateCommitted, Slot: 1}, nil
	}
	return outcome(sop, polls), nil
}
