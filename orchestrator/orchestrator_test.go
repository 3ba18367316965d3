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

package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/entity"
	"github.com/blinklabs-io/supplychain/errs"
	"github.com/blinklabs-io/supplychain/event"
	"github.com/blinklabs-io/supplychain/internal/test/ledgertest"
	"github.com/blinklabs-io/supplychain/internal/test/testutil"
	"github.com/blinklabs-io/supplychain/keystore"
	"github.com/blinklabs-io/supplychain/ledger"
	"github.com/blinklabs-io/supplychain/program"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	factoryAddr = address.Address{0: 0xfa, 31: 0x01}
	userAddr    = address.Address{0: 0x05, 31: 0x02}
)

type fixture struct {
	ledger   *ledgertest.Ledger
	registry *prometheus.Registry
	bus      *event.EventBus
	o        *Orchestrator
	key      *keystore.Key
}

func newFixture(t *testing.T, commitTimeout time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		ledger:   ledgertest.New(),
		registry: prometheus.NewRegistry(),
		bus:      event.NewEventBus(nil, nil),
	}
	t.Cleanup(f.bus.Stop)
	var err error
	f.key, err = keystore.NewKeyFromSeed(bytes.Repeat([]byte{0x2a}, 32))
	require.NoError(t, err)
	f.o, err = New(Config{
		Ledger:        f.ledger,
		EventBus:      f.bus,
		PromRegistry:  f.registry,
		CommitTimeout: commitTimeout,
		PollInterval:  5 * time.Millisecond,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) createFactory(t *testing.T) *program.Operation {
	t.Helper()
	op, err := program.NewOperation(
		f.ledger.ProgramID(),
		program.CreateFactoryArgs{Name: "Mill", Description: "steel", ContactInfo: "mill@example.com"},
		map[string]address.Address{
			"owner":   f.key.PublicKey(),
			"factory": factoryAddr,
			"user":    userAddr,
		},
	)
	require.NoError(t, err)
	return op
}

func (f *fixture) outcomes(action string, state State) float64 {
	return promtestutil.ToFloat64(
		f.o.metrics.outcomes.WithLabelValues(action, state.String()),
	)
}

// rejectWith makes the ledger refuse every operation on its first poll
func rejectWith(rej *ledger.Rejection) ledgertest.OutcomeFunc {
	return func(*ledger.SignedOperation, int) ledger.Status {
		return ledger.Status{State: ledger.StateRejected, Rejection: rej, Slot: 7}
	}
}

func TestSubmitCommitted(t *testing.T) {
	f := newFixture(t, time.Second)
	_, committed := f.bus.Subscribe(event.OperationCommittedEventType)
	_, refreshed := f.bus.Subscribe(event.AccountsRefreshedEventType)
	f.ledger.Outcome = func(_ *ledger.SignedOperation, polls int) ledger.Status {
		if polls < 2 {
			return ledger.Status{State: ledger.StatePending}
		}
		f.ledger.Put(factoryAddr, &entity.Factory{FactoryID: 1, Name: "Mill", Owner: f.key.PublicKey()})
		f.ledger.Put(userAddr, &entity.User{Name: "Ann", Role: "FACTORY", Owner: f.key.PublicKey(), FactoryCount: 1})
		return ledger.Status{State: ledger.StateCommitted, Slot: 42}
	}
	op := f.createFactory(t)

	handle, err := f.o.Submit(context.Background(), op, f.key)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, handle.State)
	assert.Equal(t, uint64(42), handle.Slot)
	assert.False(t, handle.Signature.IsZero())
	require.NoError(t, handle.RefreshErr)
	require.Len(t, handle.Accounts, 2)

	rec, err := handle.Record("factory")
	require.NoError(t, err)
	factory, ok := rec.(*entity.Factory)
	require.True(t, ok)
	assert.Equal(t, uint64(1), factory.FactoryID)

	rec, err = handle.Record("user")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.(*entity.User).FactoryCount)

	_, err = handle.Record("inspector")
	assert.ErrorIs(t, err, errs.ErrValidationFailed)

	evt := testutil.RequireReceive(t, committed, time.Second, "commit event")
	data := evt.Data.(event.OperationEvent)
	assert.Equal(t, "createFactory", data.Action)
	assert.Equal(t, op.ID, data.ID)
	assert.Equal(t, uint64(42), data.Slot)
	assert.Equal(t, f.key.PublicKey().String(), data.Signer)

	evt = testutil.RequireReceive(t, refreshed, time.Second, "refresh event")
	accts := evt.Data.(event.AccountsRefreshedEvent)
	assert.Equal(t, op.ID, accts.OperationID)
	assert.Len(t, accts.Accounts, 2)
	for _, a := range accts.Accounts {
		assert.True(t, a.Exists, a.Address)
	}

	assert.Equal(t, 1.0, f.outcomes("createFactory", StateCommitted))
	assert.Equal(t, 0.0, promtestutil.ToFloat64(f.o.metrics.inFlight))
	assert.Equal(t, 1, promtestutil.CollectAndCount(f.o.metrics.commitLatency))
	assert.Len(t, f.ledger.Submitted(), 1)
}

func TestSubmitCommittedRecordMissing(t *testing.T) {
	f := newFixture(t, time.Second)
	handle, err := f.o.Submit(context.Background(), f.createFactory(t), f.key)
	require.NoError(t, err)
	require.NoError(t, handle.RefreshErr)
	// committed but the fake holds nothing at the new address
	assert.Contains(t, handle.Accounts, factoryAddr)
	_, err = handle.Entity(factoryAddr)
	assert.ErrorIs(t, err, errs.ErrReferenceNotFound)
}

func TestSubmitRejected(t *testing.T) {
	tests := []struct {
		name   string
		rej    *ledger.Rejection
		kind   error
		reason string
		code   uint32
	}{
		{
			name:   "stale counter",
			rej:    ledger.NewProgramRejection(program.CodeConstraintSeeds, factoryAddr),
			kind:   errs.ErrAddressCollision,
			reason: "2006",
			code:   2006,
		},
		{
			name:   "account in use",
			rej:    &ledger.Rejection{Reason: ledger.ReasonAccountInUse, Account: factoryAddr},
			kind:   errs.ErrAddressCollision,
			reason: ledger.ReasonAccountInUse.String(),
		},
		{
			name:   "program error",
			rej:    &ledger.Rejection{Reason: ledger.ReasonCustom, Code: program.CodeInsufficientStock, Message: "only 3 left"},
			kind:   errs.ErrLedgerRejected,
			reason: "only 3 left",
			code:   uint32(program.CodeInsufficientStock),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, time.Second)
			_, rejected := f.bus.Subscribe(event.OperationRejectedEventType)
			f.ledger.Outcome = rejectWith(tc.rej)

			handle, err := f.o.Submit(context.Background(), f.createFactory(t), f.key)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.kind)
			assert.Contains(t, err.Error(), tc.reason)
			var classified *errs.Error
			require.True(t, errors.As(err, &classified))
			assert.Equal(t, tc.code, classified.Code)
			var rej *ledger.Rejection
			require.True(t, errors.As(err, &rej))
			assert.Same(t, tc.rej, rej)

			require.NotNil(t, handle)
			assert.Equal(t, StateRejected, handle.State)
			assert.Nil(t, handle.Accounts)
			assert.Equal(t, 1.0, f.outcomes("createFactory", StateRejected))

			evt := testutil.RequireReceive(t, rejected, time.Second, "reject event")
			assert.NotEmpty(t, evt.Data.(event.OperationEvent).Error)
		})
	}
}

func TestSubmitRefusedUpFront(t *testing.T) {
	f := newFixture(t, time.Second)
	op := f.createFactory(t)
	_, err := f.o.Submit(context.Background(), op, f.key)
	require.NoError(t, err)

	// the same operation signs to the same signature
	handle, err := f.o.Submit(context.Background(), op, f.key)
	require.ErrorIs(t, err, errs.ErrLedgerRejected)
	assert.NotErrorIs(t, err, errs.ErrAddressCollision)
	assert.Equal(t, StateRejected, handle.State)
	assert.Len(t, f.ledger.Submitted(), 1)
}

func TestSubmitTransportError(t *testing.T) {
	f := newFixture(t, time.Second)
	f.ledger.SubmitErr = errors.New("connection refused")
	handle, err := f.o.Submit(context.Background(), f.createFactory(t), f.key)
	require.Error(t, err)
	assert.Equal(t, errs.KindUnknown, errs.KindOf(err))
	assert.Equal(t, StateBuilt, handle.State)
}

func TestSubmitTimeout(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)
	_, unknown := f.bus.Subscribe(event.OperationUnknownEventType)
	f.ledger.Outcome = func(*ledger.SignedOperation, int) ledger.Status {
		return ledger.Status{State: ledger.StatePending}
	}

	handle, err := f.o.Submit(context.Background(), f.createFactory(t), f.key)
	require.ErrorIs(t, err, errs.ErrTimeout)
	require.NotNil(t, handle)
	assert.Equal(t, StateUnknown, handle.State)
	assert.False(t, handle.Signature.IsZero())
	assert.Equal(t, 1.0, f.outcomes("createFactory", StateUnknown))
	testutil.RequireReceive(t, unknown, time.Second, "unknown event")
}

// stallingLedger holds every status query until the caller's context ends
type stallingLedger struct {
	*ledgertest.Ledger
	queries atomic.Int32
}

func (l *stallingLedger) Status(ctx context.Context, _ ledger.Signature) (ledger.Status, error) {
	l.queries.Add(1)
	<-ctx.Done()
	return ledger.Status{}, ctx.Err()
}

func TestSubmitTimeoutWhileStatusBlocks(t *testing.T) {
	l := &stallingLedger{Ledger: ledgertest.New()}
	f := newFixture(t, time.Second)
	o, err := New(Config{
		Ledger:        l,
		PromRegistry:  prometheus.NewRegistry(),
		CommitTimeout: 50 * time.Millisecond,
		PollInterval:  5 * time.Millisecond,
	})
	require.NoError(t, err)

	op := f.createFactory(t)
	done := make(chan struct{})
	var handle *CommitHandle
	go func() {
		defer close(done)
		handle, err = o.Submit(context.Background(), op, f.key)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit still waiting long after the commit timeout")
	}
	require.ErrorIs(t, err, errs.ErrTimeout)
	assert.Equal(t, StateUnknown, handle.State)
	assert.Equal(t, int32(1), l.queries.Load())
}

func TestSubmitRefreshHookRunsBeforeReturn(t *testing.T) {
	f := newFixture(t, time.Second)
	var applied []event.AccountsRefreshedEvent
	o, err := New(Config{
		Ledger:       f.ledger,
		PromRegistry: prometheus.NewRegistry(),
		Refreshed: func(_ context.Context, evt event.AccountsRefreshedEvent) error {
			applied = append(applied, evt)
			return nil
		},
		PollInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	f.ledger.Put(factoryAddr, &entity.Factory{FactoryID: 1, Name: "Mill", Owner: f.key.PublicKey()})
	op := f.createFactory(t)

	handle, err := o.Submit(context.Background(), op, f.key)
	require.NoError(t, err)
	require.NoError(t, handle.RefreshErr)
	require.Len(t, applied, 1)
	assert.Equal(t, op.ID, applied[0].OperationID)
	assert.Equal(t, handle.Slot, applied[0].Slot)
	assert.Len(t, applied[0].Accounts, len(op.Writable()))
}

func TestSubmitRefreshHookError(t *testing.T) {
	f := newFixture(t, time.Second)
	o, err := New(Config{
		Ledger:       f.ledger,
		PromRegistry: prometheus.NewRegistry(),
		Refreshed: func(context.Context, event.AccountsRefreshedEvent) error {
			return errors.New("disk full")
		},
		PollInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	handle, err := o.Submit(context.Background(), f.createFactory(t), f.key)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, handle.State)
	require.Error(t, handle.RefreshErr)
	assert.Contains(t, handle.RefreshErr.Error(), "disk full")
}

func TestSubmitRefreshReadFailureKeepsCommit(t *testing.T) {
	f := newFixture(t, time.Second)
	f.ledger.ReadErr = errors.New("node unavailable")
	_, refreshed := f.bus.Subscribe(event.AccountsRefreshedEventType)

	handle, err := f.o.Submit(context.Background(), f.createFactory(t), f.key)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, handle.State)
	require.ErrorContains(t, handle.RefreshErr, "node unavailable")
	assert.Nil(t, handle.Accounts)
	assert.Equal(t, refreshAttempts, f.ledger.Reads())
	testutil.RequireNoReceive(t, refreshed, 50*time.Millisecond, "refresh event")
}

func TestSubmitCancelledBeforeSubmit(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handle, err := f.o.Submit(ctx, f.createFactory(t), f.key)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, handle)
	assert.Empty(t, f.ledger.Submitted())
}

func TestSubmitCancelledAfterSubmit(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.ledger.Outcome = func(_ *ledger.SignedOperation, polls int) ledger.Status {
		if polls == 0 {
			// the caller gives up while the operation is in flight
			cancel()
			return ledger.Status{State: ledger.StatePending}
		}
		return ledger.Status{State: ledger.StateCommitted, Slot: 3}
	}

	handle, err := f.o.Submit(ctx, f.createFactory(t), f.key)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, handle.State)
	assert.Equal(t, uint64(3), handle.Slot)
}

func TestSubmitWrongSigner(t *testing.T) {
	f := newFixture(t, time.Second)
	other, err := keystore.NewKeyFromSeed(bytes.Repeat([]byte{0x01}, 32))
	require.NoError(t, err)

	handle, err := f.o.Submit(context.Background(), f.createFactory(t), other)
	require.ErrorIs(t, err, errs.ErrValidationFailed)
	assert.True(t, errs.KindOf(err).PreSubmit())
	assert.Equal(t, StateBuilt, handle.State)
	assert.Empty(t, f.ledger.Submitted())
}

func TestNewRequiresLedger(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
