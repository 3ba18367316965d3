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

package event

import (
	"github.com/google/uuid"
)

const (
	OperationSubmittedEventType = EventType("operation.submitted")
	OperationCommittedEventType = EventType("operation.committed")
	OperationRejectedEventType  = EventType("operation.rejected")
	// OperationUnknownEventType is emitted when no terminal state was seen
	// before the commit timeout
	OperationUnknownEventType = EventType("operation.unknown")

	// AccountsRefreshedEventType carries the records re-read after a commit
	AccountsRefreshedEventType = EventType("accounts.refreshed")

	// LedgerExecutedEventType is emitted by the development ledger after it
	// executes a queued operation, whether or not it succeeded
	LedgerExecutedEventType = EventType("ledger.executed")
)

// OperationEvent describes one step of an operation's lifecycle
type OperationEvent struct {
	Action    string
	Signature string
	Signer    string
	Error     string
	Slot      uint64
	ID        uuid.UUID
}

// RefreshedAccount is one record re-read from the ledger after a commit.
// Data is the raw stored bytes; Exists is false if nothing is stored.
type RefreshedAccount struct {
	Address string
	Data    []byte
	Exists  bool
}

type AccountsRefreshedEvent struct {
	Accounts    []RefreshedAccount
	Slot        uint64
	OperationID uuid.UUID
}

type LedgerExecutedEvent struct {
	Instruction string
	Signature   string
	Error       string
	Slot        uint64
	Committed   bool
}
