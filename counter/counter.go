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

// Package counter reads a parent record's sequence counters ahead of
// creating a child record
package counter

import (
	"context"
	"math"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/derive"
	"github.com/blinklabs-io/supplychain/entity"
	"github.com/blinklabs-io/supplychain/errs"
	"github.com/blinklabs-io/supplychain/ledger"
)

// Reading is the result of one fetch of a parent record. Record holds
// every field of the parent, so callers needing other parent fields (such
// as its balance) do not fetch again.
type Reading struct {
	Record  entity.Entity
	Field   entity.CounterField
	Current uint64
	Next    uint64
	Parent  address.Address
	// Child is the derived address of the record numbered Next
	Child address.Address
}

type Tracker struct {
	reader  ledger.Reader
	deriver *derive.Deriver
}

func New(reader ledger.Reader, deriver *derive.Deriver) *Tracker {
	return &Tracker{reader: reader, deriver: deriver}
}

// Next returns the sequence number following current. It fails when the
// counter is exhausted.
func Next(current uint64) (uint64, error) {
	if current == math.MaxUint64 {
		return 0, errs.Validation("counter", "counter exhausted")
	}
	return current + 1, nil
}

// Read fetches the parent record once and computes the next child address
// for field. Nothing is cached between calls.
func (t *Tracker) Read(
	ctx context.Context,
	parent address.Address,
	field entity.CounterField,
) (*Reading, error) {
	const op = "counter.Read"
	kind := field.ParentKind()
	if !kind.Valid() {
		return nil, errs.Validation(op, "unknown counter field %s", field)
	}
	acct, err := t.reader.GetAccount(ctx, parent)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, errs.ReferenceNotFound(op, "%s %s", kind, parent)
	}
	record, err := entity.New(kind)
	if err != nil {
		return nil, err
	}
	if err := entity.Decode(acct.Data, record); err != nil {
		return nil, errs.Decode(op, err)
	}
	current, err := entity.Counter(record, field)
	if err != nil {
		return nil, errs.Decode(op, err)
	}
	next, err := Next(current)
	if err != nil {
		return nil, err
	}
	child, err := t.deriver.Child(field.ChildKind(), parent, next)
	if err != nil {
		return nil, err
	}
	return &Reading{
		Record:  record,
		Field:   field,
		Current: current,
		Next:    next,
		Parent:  parent,
		Child:   child,
	}, nil
}

// NextSequence is Read reduced to the sequence number
func (t *Tracker) NextSequence(
	ctx context.Context,
	parent address.Address,
	field entity.CounterField,
) (uint64, error) {
	r, err := t.Read(ctx, parent, field)
	if err != nil {
		return 0, err
	}
	return r.Next, nil
}

// ChildAfter derives the address of the record following a counter value
// already in hand, for operations that consume a second counter on a
// parent record fetched earlier
func (t *Tracker) ChildAfter(
	record entity.Entity,
	parent address.Address,
	field entity.CounterField,
) (address.Address, uint64, error) {
	current, err := entity.Counter(record, field)
	if err != nil {
		return address.Address{}, 0, errs.Decode("counter.ChildAfter", err)
	}
	next, err := Next(current)
	if err != nil {
		return address.Address{}, 0, err
	}
	child, err := t.deriver.Child(field.ChildKind(), parent, next)
	return child, next, err
}
