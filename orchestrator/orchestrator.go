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

// Package orchestrator submits built operations to the ledger and waits
// for their outcome.
//
// Each submission moves through Built, Submitted and then exactly one of
// Committed, Rejected or Unknown. The caller's context only gates the
// phase before the ledger accepts the operation: once submitted an
// operation cannot be withdrawn, so waiting continues until a terminal
// state or the commit timeout. Nothing is retried. After a commit every
// account the operation wrote is read again from the ledger and handed to
// the Refreshed hook before Submit returns.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/entity"
	"github.com/blinklabs-io/supplychain/errs"
	"github.com/blinklabs-io/supplychain/event"
	"github.com/blinklabs-io/supplychain/ledger"
	"github.com/blinklabs-io/supplychain/program"
)

const (
	DefaultCommitTimeout = 30 * time.Second
	DefaultPollInterval  = 200 * time.Millisecond
	// refreshAttempts bounds the post-commit re-read
	refreshAttempts = 3
)

// State is the position of a submission in its lifecycle
type State int

const (
	StateBuilt State = iota
	StateSubmitted
	StateCommitted
	StateRejected
	StateUnknown
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateSubmitted:
		return "submitted"
	case StateCommitted:
		return "committed"
	case StateRejected:
		return "rejected"
	case StateUnknown:
		return "unknown"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// CommitHandle reports the outcome of one submission. After a commit,
// Accounts holds the re-read state of every account the operation wrote,
// nil for any that hold nothing.
type CommitHandle struct {
	Operation  *program.Operation
	Accounts   map[address.Address]*ledger.Account
	RefreshErr error
	Signature  ledger.Signature
	State      State
	Slot       uint64
}

// Entity decodes the refreshed record stored at addr
func (h *CommitHandle) Entity(addr address.Address) (entity.Entity, error) {
	acct, ok := h.Accounts[addr]
	if !ok || acct == nil {
		return nil, errs.ReferenceNotFound("orchestrator.Entity", "no refreshed record at %s", addr)
	}
	ret, err := entity.DecodeAny(acct.Data)
	if err != nil {
		return nil, errs.Decode("orchestrator.Entity", err)
	}
	return ret, nil
}

// Record returns the refreshed record in the named account slot of the
// operation
func (h *CommitHandle) Record(slot string) (entity.Entity, error) {
	addr, ok := h.Operation.Account(slot)
	if !ok {
		return nil, errs.Validation("orchestrator.Record", "%s has no %q account", h.Operation.Instruction, slot)
	}
	return h.Entity(addr)
}

// RefreshFunc receives the re-read accounts of a commit. It runs inside
// Submit, so state it keeps is current when Submit returns.
type RefreshFunc func(context.Context, event.AccountsRefreshedEvent) error

type Config struct {
	Ledger        ledger.Ledger
	Logger        *slog.Logger
	EventBus      *event.EventBus
	PromRegistry  prometheus.Registerer
	TraceProvider trace.TracerProvider
	Refreshed     RefreshFunc
	CommitTimeout time.Duration
	PollInterval  time.Duration
}

type Orchestrator struct {
	ledger        ledger.Ledger
	logger        *slog.Logger
	eventBus      *event.EventBus
	metrics       *orchestratorMetrics
	tracer        trace.Tracer
	refreshed     RefreshFunc
	commitTimeout time.Duration
	pollInterval  time.Duration
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("orchestrator: ledger is required")
	}
	o := &Orchestrator{
		ledger:        cfg.Ledger,
		logger:        cfg.Logger,
		eventBus:      cfg.EventBus,
		metrics:       newMetrics(cfg.PromRegistry),
		refreshed:     cfg.Refreshed,
		commitTimeout: cfg.CommitTimeout,
		pollInterval:  cfg.PollInterval,
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if o.commitTimeout <= 0 {
		o.commitTimeout = DefaultCommitTimeout
	}
	if o.pollInterval <= 0 {
		o.pollInterval = DefaultPollInterval
	}
	tp := cfg.TraceProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	o.tracer = tp.Tracer("github.com/blinklabs-io/supplychain/orchestrator")
	return o, nil
}

// Submit signs op with signer, submits it and blocks until the outcome is
// known. The returned handle is non-nil whenever the operation reached the
// ledger, including on rejection and timeout.
func (o *Orchestrator) Submit(
	ctx context.Context,
	op *program.Operation,
	signer ledger.Signer,
) (*CommitHandle, error) {
	const opName = "orchestrator.Submit"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	action := op.Instruction.String()
	ctx, span := o.tracer.Start(
		ctx,
		"supplychain.submit",
		trace.WithAttributes(
			attribute.String("action", action),
			attribute.String("op_id", op.ID.String()),
		),
	)
	defer span.End()

	handle := &CommitHandle{Operation: op, State: StateBuilt}
	if !slices.Contains(op.Signers(), signer.PublicKey()) {
		return handle, errs.Validation(
			opName,
			"%s is not a signer of %s",
			signer.PublicKey(),
			action,
		)
	}
	sig, err := signer.Sign(op.Message())
	if err != nil {
		return handle, fmt.Errorf("%s: sign: %w", opName, err)
	}
	sop := &ledger.SignedOperation{
		Operation: op,
		Signer:    signer.PublicKey(),
		Signature: sig,
	}
	handle.Signature = sig
	logger := o.logger.With(
		"component", "orchestrator",
		"op_id", op.ID.String(),
		"action", action,
		"signature", sig.String(),
	)

	accepted, err := o.ledger.Submit(ctx, sop)
	if err != nil {
		var rej *ledger.Rejection
		if errors.As(err, &rej) {
			// refused up front, nothing was executed
			handle.State = StateRejected
			return handle, o.rejected(span, logger, handle, rej)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		return handle, fmt.Errorf("%s: %w", opName, err)
	}
	handle.Signature = accepted
	handle.State = StateSubmitted
	o.metrics.inFlight.Inc()
	defer o.metrics.inFlight.Dec()
	o.publish(event.OperationSubmittedEventType, handle, signer.PublicKey(), nil)
	logger.Debug("operation submitted")

	// the operation is irrevocable from here on, so only the commit
	// timeout bounds the wait
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.commitTimeout)
	defer cancel()
	start := time.Now()
	status, err := o.await(waitCtx, logger, accepted)
	o.metrics.commitLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		handle.State = StateUnknown
		o.metrics.outcomes.WithLabelValues(action, handle.State.String()).Inc()
		o.publish(event.OperationUnknownEventType, handle, signer.PublicKey(), err)
		span.SetStatus(codes.Error, "outcome unknown")
		logger.Warn("operation outcome unknown", "error", err)
		return handle, err
	}
	handle.Slot = status.Slot
	if status.State == ledger.StateRejected {
		handle.State = StateRejected
		rej := status.Rejection
		if rej == nil {
			rej = &ledger.Rejection{Reason: ledger.ReasonCustom, Message: "no reason reported"}
		}
		return handle, o.rejected(span, logger, handle, rej)
	}

	handle.State = StateCommitted
	o.metrics.outcomes.WithLabelValues(action, handle.State.String()).Inc()
	span.SetAttributes(attribute.Int64("slot", int64(status.Slot)))
	logger.Info("operation committed", "slot", status.Slot)
	o.publish(event.OperationCommittedEventType, handle, signer.PublicKey(), nil)
	refreshCtx, cancelRefresh := context.WithTimeout(context.WithoutCancel(ctx), o.commitTimeout)
	defer cancelRefresh()
	o.refresh(refreshCtx, logger, handle)
	return handle, nil
}

// await polls the ledger until sig reaches a terminal state or ctx, which
// carries the commit timeout, expires
func (o *Orchestrator) await(
	ctx context.Context,
	logger *slog.Logger,
	sig ledger.Signature,
) (ledger.Status, error) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()
	for {
		status, err := o.ledger.Status(ctx, sig)
		if err != nil {
			logger.Debug("status check failed", "error", err)
		} else if status.State.Terminal() {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return ledger.Status{}, errs.Timeout(
				"orchestrator.Submit",
				"no terminal state for %s within %s",
				sig,
				o.commitTimeout,
			)
		case <-ticker.C:
		}
	}
}

// refresh re-reads the accounts the operation wrote. A failed re-read
// leaves the commit standing and is reported on the handle.
func (o *Orchestrator) refresh(
	ctx context.Context,
	logger *slog.Logger,
	handle *CommitHandle,
) {
	addrs := handle.Operation.Writable()
	accts, err := o.readAccounts(ctx, logger, addrs)
	if err != nil {
		handle.RefreshErr = err
		return
	}
	handle.Accounts = make(map[address.Address]*ledger.Account, len(addrs))
	refreshed := make([]event.RefreshedAccount, 0, len(addrs))
	for i, addr := range addrs {
		handle.Accounts[addr] = accts[i]
		ra := event.RefreshedAccount{Address: addr.String()}
		if accts[i] != nil {
			ra.Exists = true
			ra.Data = accts[i].Data
		}
		refreshed = append(refreshed, ra)
	}
	evt := event.AccountsRefreshedEvent{
		Accounts:    refreshed,
		Slot:        handle.Slot,
		OperationID: handle.Operation.ID,
	}
	if o.refreshed != nil {
		if err := o.refreshed(ctx, evt); err != nil {
			logger.Warn("refresh hook failed", "error", err)
			handle.RefreshErr = fmt.Errorf("apply refreshed accounts: %w", err)
		}
	}
	if o.eventBus != nil {
		o.eventBus.Publish(
			event.AccountsRefreshedEventType,
			event.NewEvent(event.AccountsRefreshedEventType, evt),
		)
	}
}

// readAccounts reads addrs in one call, retrying on the poll interval
// until it succeeds, the attempts run out or ctx expires
func (o *Orchestrator) readAccounts(
	ctx context.Context,
	logger *slog.Logger,
	addrs []address.Address,
) ([]*ledger.Account, error) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()
	var err error
	for attempt := 1; ; attempt++ {
		var accts []*ledger.Account
		accts, err = o.ledger.GetMultipleAccounts(ctx, addrs)
		if err == nil && len(accts) != len(addrs) {
			err = fmt.Errorf("read %d accounts, got %d", len(addrs), len(accts))
		}
		if err == nil {
			return accts, nil
		}
		logger.Warn("re-read after commit failed", "attempt", attempt, "error", err)
		if attempt >= refreshAttempts {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w (last error: %w)", ctx.Err(), err)
		case <-ticker.C:
		}
	}
}

// rejected maps a ledger refusal to an error kind, keeping the ledger's
// reason
func (o *Orchestrator) rejected(
	span trace.Span,
	logger *slog.Logger,
	handle *CommitHandle,
	rej *ledger.Rejection,
) error {
	const opName = "orchestrator.Submit"
	var err error
	if rej.Collision() {
		err = errs.Collision(opName, rej.Error(), uint32(rej.Code), rej)
	} else {
		err = errs.Rejected(opName, rej.Error(), uint32(rej.Code), rej)
	}
	o.metrics.outcomes.WithLabelValues(
		handle.Operation.Instruction.String(),
		handle.State.String(),
	).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, rej.Reason.String())
	logger.Info("operation rejected", "reason", rej.Error())
	var signer address.Address
	if signers := handle.Operation.Signers(); len(signers) > 0 {
		signer = signers[0]
	}
	o.publish(event.OperationRejectedEventType, handle, signer, err)
	return err
}

func (o *Orchestrator) publish(
	eventType event.EventType,
	handle *CommitHandle,
	signer address.Address,
	err error,
) {
	if o.eventBus == nil {
		return
	}
	data := event.OperationEvent{
		Action:    handle.Operation.Instruction.String(),
		Signature: handle.Signature.String(),
		Signer:    signer.String(),
		Slot:      handle.Slot,
		ID:        handle.Operation.ID,
	}
	if err != nil {
		data.Error = err.Error()
	}
	o.eventBus.Publish(eventType, event.NewEvent(eventType, data))
}
