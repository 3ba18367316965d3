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

// Package derive maps (entity kind, parent address, sequence number) to the
// storage address the ledger program expects for that record.
package derive

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/entity"
)

const programStateSeed = "program_state"

var (
	ErrZeroSequence = errors.New("sequence numbers start at 1")
	ErrRootKind     = errors.New("kind has no parent record")
)

// Deriver computes derived addresses for a single program
type Deriver struct {
	programID address.Address
}

func New(programID address.Address) *Deriver {
	return &Deriver{programID: programID}
}

func (d *Deriver) ProgramID() address.Address {
	return d.programID
}

// Derive is the general form: the kind's seed tag, the parent address and
// any suffix seeds
func (d *Deriver) Derive(
	kind entity.Kind,
	parent address.Address,
	suffix ...[]byte,
) (address.Address, uint8, error) {
	if !kind.Valid() {
		return address.Address{}, 0, fmt.Errorf("derive: unknown kind %s", kind)
	}
	seeds := make([][]byte, 0, 2+len(suffix))
	seeds = append(seeds, []byte(kind.Seed()), parent[:])
	seeds = append(seeds, suffix...)
	return address.FindProgramAddress(seeds, d.programID)
}

// User returns the user record address for a wallet
func (d *Deriver) User(wallet address.Address) (address.Address, error) {
	addr, _, err := d.Derive(entity.KindUser, wallet)
	return addr, err
}

// Child returns the address of the seq-th record of kind under parent.
// Callers pass the parent's current counter plus one.
func (d *Deriver) Child(
	kind entity.Kind,
	parent address.Address,
	seq uint64,
) (address.Address, error) {
	if kind.Parent() == entity.KindUnknown {
		return address.Address{}, fmt.Errorf("%w: %s", ErrRootKind, kind)
	}
	if seq == 0 {
		return address.Address{}, ErrZeroSequence
	}
	addr, _, err := d.Derive(kind, parent, Sequence(seq))
	return addr, err
}

// ProgramState returns the program's singleton configuration address
func (d *Deriver) ProgramState() (address.Address, error) {
	addr, _, err := address.FindProgramAddress(
		[][]byte{[]byte(programStateSeed)},
		d.programID,
	)
	return addr, err
}

// Sequence encodes a counter value as the 8-byte little-endian seed
func Sequence(seq uint64) []byte {
	return binary.LittleEndian.AppendUint64(make([]byte, 0, 8), seq)
}
