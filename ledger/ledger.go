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

// Package ledger defines the boundary to the external ledger: reading raw
// account records and submitting signed operations.
package ledger

import (
	"context"
	"fmt"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/program"
	"github.com/btcsuite/btcd/btcutil/base58"
)

const SignatureSize = 64

// LamportsPerSol is the number of base units in one native token
const LamportsPerSol = 1_000_000_000

// Signature is an ed25519 signature over an operation message. It also
// serves as the commitment identifier.
type Signature [SignatureSize]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (s Signature) IsZero() bool {
	return s == Signature{}
}

func ParseSignature(str string) (Signature, error) {
	var ret Signature
	decoded := base58.Decode(str)
	if len(decoded) != SignatureSize {
		return ret, fmt.Errorf("invalid signature %q", str)
	}
	copy(ret[:], decoded)
	return ret, nil
}

// Account is a raw stored record
type Account struct {
	Address  address.Address
	Owner    address.Address
	Data     []byte
	Lamports uint64
}

// Reader is the read boundary. Absence of a record is not an error:
// GetAccount returns nil, nil.
type Reader interface {
	GetAccount(ctx context.Context, addr address.Address) (*Account, error)
	// GetMultipleAccounts returns one entry per input address, nil where
	// nothing is stored
	GetMultipleAccounts(ctx context.Context, addrs []address.Address) ([]*Account, error)
	// GetProgramAccounts returns all accounts owned by program whose data
	// begins with prefix. Order is unspecified.
	GetProgramAccounts(ctx context.Context, program address.Address, prefix []byte) ([]*Account, error)
	// GetBalance returns the lamports held by addr, zero when absent
	GetBalance(ctx context.Context, addr address.Address) (uint64, error)
}

// SignedOperation is an operation together with its fee payer signature
type SignedOperation struct {
	Operation *program.Operation
	Signer    address.Address
	Signature Signature
}

// Submitter is the write boundary. Submit either accepts the operation for
// execution and returns its signature, or refuses it up front with a
// *Rejection.
type Submitter interface {
	Submit(ctx context.Context, op *SignedOperation) (Signature, error)
	Status(ctx context.Context, sig Signature) (Status, error)
}

// Ledger is the full capability set consumed by the client
type Ledger interface {
	Reader
	Submitter
}

// Signer produces signatures for one wallet identity
type Signer interface {
	PublicKey() address.Address
	Sign(msg []byte) (Signature, error)
}
