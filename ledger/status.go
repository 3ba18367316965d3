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

package ledger

import (
	"fmt"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/program"
)

type State int

const (
	// StateUnknown means the ledger has no record of the signature
	StateUnknown State = iota
	StatePending
	StateCommitted
	StateRejected
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCommitted:
		return "committed"
	case StateRejected:
		return "rejected"
	}
	return "unknown"
}

func (s State) Terminal() bool {
	return s == StateCommitted || s == StateRejected
}

type Status struct {
	Rejection *Rejection
	State     State
	Slot      uint64
}

// RejectReason groups ledger refusals by cause
type RejectReason int

const (
	ReasonCustom RejectReason = iota
	// ReasonAccountInUse: a record already exists at an address the
	// operation wanted to create
	ReasonAccountInUse
	// ReasonSeedsMismatch: an address did not match the program's own
	// derivation, typically from a stale counter
	ReasonSeedsMismatch
	ReasonAccountNotFound
	ReasonAlreadyProcessed
	ReasonSignatureInvalid
	ReasonInsufficientFunds
)

func (r RejectReason) String() string {
	switch r {
	case ReasonAccountInUse:
		return "account already in use"
	case ReasonSeedsMismatch:
		return "seeds constraint violated"
	case ReasonAccountNotFound:
		return "account not found"
	case ReasonAlreadyProcessed:
		return "already processed"
	case ReasonSignatureInvalid:
		return "signature verification failed"
	case ReasonInsufficientFunds:
		return "insufficient funds"
	}
	return "program error"
}

// Rejection is the ledger's reported reason for refusing an operation
type Rejection struct {
	Message string
	Account address.Address
	Reason  RejectReason
	Code    program.ErrorCode
}

func (r *Rejection) Error() string {
	ret := r.Reason.String()
	if r.Code != 0 {
		ret = fmt.Sprintf("%s: %s", ret, r.Code)
	}
	if r.Message != "" {
		ret = fmt.Sprintf("%s: %s", ret, r.Message)
	}
	return ret
}

// Collision reports whether the refusal means a derived address was
// already taken or computed from a stale counter
func (r *Rejection) Collision() bool {
	return r.Reason == ReasonAccountInUse ||
		r.Reason == ReasonSeedsMismatch ||
		r.Code == program.CodeConstraintSeeds
}

// NewProgramRejection builds a rejection for a program error code
func NewProgramRejection(code program.ErrorCode, account address.Address) *Rejection {
	reason := ReasonCustom
	switch code {
	case program.CodeConstraintSeeds:
		reason = ReasonSeedsMismatch
	case program.CodeAccountNotInitialized:
		reason = ReasonAccountNotFound
	}
	return &Rejection{
		Reason:  reason,
		Code:    code,
		Account: account,
	}
}
