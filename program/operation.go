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

package program

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/google/uuid"
)

var (
	ErrMissingAccount = errors.New("missing account")
	ErrMalformed      = errors.New("malformed operation message")
)

// AccountMeta is one resolved account slot of an operation
type AccountMeta struct {
	Name     string
	Address  address.Address
	Writable bool
	Signer   bool
}

// Operation is a fully assembled, unsubmitted ledger write
type Operation struct {
	// ID is a client-side correlation id and also makes every built
	// operation sign to a distinct message
	ID          uuid.UUID
	ProgramID   address.Address
	Instruction Instruction
	Accounts    []AccountMeta
	Data        []byte
}

// NewOperation orders the given named addresses according to the
// instruction's account layout. The system program slot is filled in.
func NewOperation(
	programID address.Address,
	args Args,
	accounts map[string]address.Address,
) (*Operation, error) {
	ix := args.Instruction()
	specs := ix.Accounts()
	if specs == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownInstruction, uint8(ix))
	}
	data, err := EncodeData(args)
	if err != nil {
		return nil, err
	}
	op := &Operation{
		ID:          uuid.New(),
		ProgramID:   programID,
		Instruction: ix,
		Accounts:    make([]AccountMeta, 0, len(specs)),
		Data:        data,
	}
	for _, spec := range specs {
		addr, ok := accounts[spec.Name]
		if !ok {
			if spec.Name != AccountSystemProgram {
				return nil, fmt.Errorf(
					"%w: %s requires %q",
					ErrMissingAccount,
					ix,
					spec.Name,
				)
			}
			addr = address.SystemProgram
		}
		op.Accounts = append(op.Accounts, AccountMeta{
			Name:     spec.Name,
			Address:  addr,
			Writable: spec.Writable,
			Signer:   spec.Signer,
		})
	}
	for name := range accounts {
		if ix.AccountIndex(name) < 0 {
			return nil, fmt.Errorf("%s: unexpected account %q", ix, name)
		}
	}
	return op, nil
}

// Account returns the address in the named slot
func (o *Operation) Account(name string) (address.Address, bool) {
	for _, acct := range o.Accounts {
		if acct.Name == name {
			return acct.Address, true
		}
	}
	return address.Address{}, false
}

// Signers returns the addresses that must sign the operation
func (o *Operation) Signers() []address.Address {
	var ret []address.Address
	for _, acct := range o.Accounts {
		if acct.Signer {
			ret = append(ret, acct.Address)
		}
	}
	return ret
}

// Writable returns the addresses the operation may modify, excluding
// signers, in layout order
func (o *Operation) Writable() []address.Address {
	var ret []address.Address
	for _, acct := range o.Accounts {
		if acct.Writable && !acct.Signer {
			ret = append(ret, acct.Address)
		}
	}
	return ret
}

// Args decodes the operation's argument payload
func (o *Operation) Args() (Args, error) {
	return DecodeData(o.Data)
}

const (
	flagWritable = 1 << 0
	flagSigner   = 1 << 1
)

// Message is the canonical byte form that signers sign:
//
//	id(16) | program(32) | count(u8) | count * (address(32) | flags(u8)) |
//	len(u32 LE) | data
//
// Account names are not part of the message.
func (o *Operation) Message() []byte {
	size := 16 + address.Size + 1 + len(o.Accounts)*(address.Size+1) + 4 + len(o.Data)
	ret := make([]byte, 0, size)
	ret = append(ret, o.ID[:]...)
	ret = append(ret, o.ProgramID[:]...)
	ret = append(ret, uint8(len(o.Accounts)))
	for _, acct := range o.Accounts {
		ret = append(ret, acct.Address[:]...)
		var flags uint8
		if acct.Writable {
			flags |= flagWritable
		}
		if acct.Signer {
			flags |= flagSigner
		}
		ret = append(ret, flags)
	}
	ret = binary.LittleEndian.AppendUint32(ret, uint32(len(o.Data)))
	return append(ret, o.Data...)
}

// ParseMessage rebuilds an operation from its message form. Account names
// are restored from the instruction layout.
func ParseMessage(msg []byte) (*Operation, error) {
	const header = 16 + address.Size + 1
	if len(msg) < header {
		return nil, fmt.Errorf("%w: short header", ErrMalformed)
	}
	op := &Operation{}
	copy(op.ID[:], msg[:16])
	copy(op.ProgramID[:], msg[16:16+address.Size])
	count := int(msg[header-1])
	pos := header
	if len(msg) < pos+count*(address.Size+1)+4 {
		return nil, fmt.Errorf("%w: short account list", ErrMalformed)
	}
	op.Accounts = make([]AccountMeta, count)
	for i := range count {
		copy(op.Accounts[i].Address[:], msg[pos:pos+address.Size])
		flags := msg[pos+address.Size]
		op.Accounts[i].Writable = flags&flagWritable != 0
		op.Accounts[i].Signer = flags&flagSigner != 0
		pos += address.Size + 1
	}
	dataLen := int(binary.LittleEndian.Uint32(msg[pos : pos+4]))
	pos += 4
	if len(msg) != pos+dataLen {
		return nil, fmt.Errorf("%w: data length", ErrMalformed)
	}
	op.Data = append([]byte(nil), msg[pos:]...)
	ix, ok := InstructionOf(op.Data)
	if !ok {
		return nil, fmt.Errorf("%w: unknown instruction", ErrMalformed)
	}
	op.Instruction = ix
	specs := ix.Accounts()
	for i := range op.Accounts {
		if i < len(specs) {
			op.Accounts[i].Name = specs[i].Name
		}
	}
	return op, nil
}
