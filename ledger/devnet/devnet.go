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

// Package devnet is an in-process ledger that executes the supply-chain
// program's rules against a badger account store. Each queued operation
// runs inside one badger transaction, so it either commits all of its
// effects or none of them.
package devnet

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/derive"
	"github.com/blinklabs-io/supplychain/event"
	"github.com/blinklabs-io/supplychain/ledger"
	"github.com/blinklabs-io/supplychain/program"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultQueueCapacity = 64

var ErrClosed = errors.New("devnet ledger closed")

type QueueFullError struct {
	Capacity int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("submission queue full: capacity=%d", e.Capacity)
}

type Config struct {
	PromRegistry prometheus.Registerer
	Logger       *slog.Logger
	EventBus     *event.EventBus
	// Clock supplies record timestamps, time.Now when nil
	Clock func() time.Time
	// DataDir holds the account store. Empty means in-memory.
	DataDir       string
	ProgramID     address.Address
	QueueCapacity int
}

type Ledger struct {
	config   Config
	logger   *slog.Logger
	db       *badger.DB
	deriver  *derive.Deriver
	metrics  *devnetMetrics
	queue    chan *ledger.SignedOperation
	statuses map[ledger.Signature]ledger.Status
	gate     chan struct{}
	stopCh   chan struct{}
	wg       sync.WaitGroup
	slot     uint64
	mu       sync.RWMutex
	gateMu   sync.Mutex
	closed   bool
}

func New(cfg Config) (*Ledger, error) {
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.ProgramID.IsZero() {
		cfg.ProgramID = address.MustParse(program.DefaultProgramID)
	}
	db, err := openBadger(cfg.DataDir, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("open account store: %w", err)
	}
	l := &Ledger{
		config:   cfg,
		logger:   cfg.Logger,
		db:       db,
		deriver:  derive.New(cfg.ProgramID),
		metrics:  newDevnetMetrics(cfg.PromRegistry),
		queue:    make(chan *ledger.SignedOperation, cfg.QueueCapacity),
		statuses: make(map[ledger.Signature]ledger.Status),
		stopCh:   make(chan struct{}),
	}
	l.wg.Add(1)
	go l.worker()
	return l, nil
}

// Close stops the worker and closes the account store. Operations still
// queued remain pending.
func (l *Ledger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	close(l.stopCh)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Ledger) ProgramID() address.Address {
	return l.config.ProgramID
}

// Submit verifies the operation's signature and queues it for execution
func (l *Ledger) Submit(
	ctx context.Context,
	sop *ledger.SignedOperation,
) (ledger.Signature, error) {
	var zero ledger.Signature
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if sop == nil || sop.Operation == nil {
		return zero, errors.New("nil operation")
	}
	op := sop.Operation
	if op.ProgramID != l.config.ProgramID {
		return zero, &ledger.Rejection{
			Reason:  ledger.ReasonCustom,
			Code:    program.CodeInvalidProgramID,
			Account: op.ProgramID,
		}
	}
	signers := op.Signers()
	if len(signers) != 1 || signers[0] != sop.Signer {
		return zero, &ledger.Rejection{
			Reason:  ledger.ReasonSignatureInvalid,
			Account: sop.Signer,
			Message: "signer does not match operation",
		}
	}
	if !ed25519.Verify(sop.Signer[:], op.Message(), sop.Signature[:]) {
		return zero, &ledger.Rejection{
			Reason:  ledger.ReasonSignatureInvalid,
			Account: sop.Signer,
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return zero, ErrClosed
	}
	if _, ok := l.statuses[sop.Signature]; ok {
		return zero, &ledger.Rejection{
			Reason:  ledger.ReasonAlreadyProcessed,
			Message: sop.Signature.String(),
		}
	}
	select {
	case l.queue <- sop:
	default:
		return zero, &QueueFullError{Capacity: l.config.QueueCapacity}
	}
	l.statuses[sop.Signature] = ledger.Status{State: ledger.StatePending}
	l.metrics.queueDepth.Set(float64(len(l.queue)))
	l.logger.Debug(
		"queued operation",
		"component", "devnet",
		"op_id", op.ID.String(),
		"action", op.Instruction.String(),
		"signature", sop.Signature.String(),
	)
	return sop.Signature, nil
}

func (l *Ledger) Status(
	ctx context.Context,
	sig ledger.Signature,
) (ledger.Status, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Status{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.statuses[sig], nil
}

// Slot returns the number of operations executed so far
func (l *Ledger) Slot() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.slot
}

// Pause holds the worker before its next operation until Resume is called
func (l *Ledger) Pause() {
	l.gateMu.Lock()
	defer l.gateMu.Unlock()
	if l.gate == nil {
		l.gate = make(chan struct{})
	}
}

func (l *Ledger) Resume() {
	l.gateMu.Lock()
	defer l.gateMu.Unlock()
	if l.gate != nil {
		close(l.gate)
		l.gate = nil
	}
}

// Airdrop credits lamports to a wallet account, creating it if needed
func (l *Ledger) Airdrop(
	ctx context.Context,
	wallet address.Address,
	lamports uint64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.db.Update(func(txn *badger.Txn) error {
		acct, err := getAccount(txn, wallet)
		if err != nil {
			return err
		}
		if acct == nil {
			acct = &ledger.Account{Address: wallet, Owner: address.SystemProgram}
		}
		if acct.Lamports > math.MaxUint64-lamports {
			return fmt.Errorf("airdrop overflows balance of %s", wallet)
		}
		acct.Lamports += lamports
		return putAccount(txn, acct)
	})
}

func (l *Ledger) GetAccount(
	ctx context.Context,
	addr address.Address,
) (*ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ret *ledger.Account
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		ret, err = getAccount(txn, addr)
		return err
	})
	return ret, err
}

func (l *Ledger) GetMultipleAccounts(
	ctx context.Context,
	addrs []address.Address,
) ([]*ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ret := make([]*ledger.Account, len(addrs))
	err := l.db.View(func(txn *badger.Txn) error {
		for i, addr := range addrs {
			acct, err := getAccount(txn, addr)
			if err != nil {
				return err
			}
			ret[i] = acct
		}
		return nil
	})
	return ret, err
}

func (l *Ledger) GetProgramAccounts(
	ctx context.Context,
	programID address.Address,
	prefix []byte,
) ([]*ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ret []*ledger.Account
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		ret, err = scanAccounts(txn, programID, prefix)
		return err
	})
	return ret, err
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

func (l *Ledger) worker() {
	defer l.wg.Done()
	for {
		select {
		case <-l.stopCh:
			return
		case sop := <-l.queue:
			l.metrics.queueDepth.Set(float64(len(l.queue)))
			l.gateMu.Lock()
			gate := l.gate
			l.gateMu.Unlock()
			if gate != nil {
				select {
				case <-gate:
				case <-l.stopCh:
					return
				}
			}
			l.execute(sop)
		}
	}
}

func (l *Ledger) execute(sop *ledger.SignedOperation) {
	op := sop.Operation
	l.mu.RLock()
	slot := l.slot + 1
	l.mu.RUnlock()
	err := l.db.Update(func(txn *badger.Txn) error {
		x := &execution{
			txn:       txn,
			op:        op,
			signer:    sop.Signer,
			programID: l.config.ProgramID,
			deriver:   l.deriver,
			now:       uint64(l.config.Clock().Unix()), //nolint:gosec
		}
		return x.run()
	})
	status := ledger.Status{State: ledger.StateCommitted, Slot: slot}
	if err != nil {
		var rej *ledger.Rejection
		if !errors.As(err, &rej) {
			rej = &ledger.Rejection{
				Reason:  ledger.ReasonCustom,
				Message: err.Error(),
			}
		}
		status = ledger.Status{
			State:     ledger.StateRejected,
			Slot:      slot,
			Rejection: rej,
		}
	}
	l.mu.Lock()
	l.slot = slot
	l.statuses[sop.Signature] = status
	l.mu.Unlock()
	l.metrics.slot.Set(float64(slot))
	l.metrics.operations.WithLabelValues(
		op.Instruction.String(),
		status.State.String(),
	).Inc()
	evt := event.LedgerExecutedEvent{
		Instruction: op.Instruction.String(),
		Signature:   sop.Signature.String(),
		Slot:        slot,
		Committed:   err == nil,
	}
	if err != nil {
		evt.Error = status.Rejection.Error()
		l.logger.Debug(
			"operation rejected",
			"component", "devnet",
			"op_id", op.ID.String(),
			"action", op.Instruction.String(),
			"signature", sop.Signature.String(),
			"error", status.Rejection,
		)
	} else {
		l.logger.Debug(
			"operation committed",
			"component", "devnet",
			"op_id", op.ID.String(),
			"action", op.Instruction.String(),
			"signature", sop.Signature.String(),
			"slot", slot,
		)
	}
	if l.config.EventBus != nil {
		l.config.EventBus.PublishAsync(
			event.LedgerExecutedEventType,
			event.NewEvent(event.LedgerExecutedEventType, evt),
		)
	}
}
