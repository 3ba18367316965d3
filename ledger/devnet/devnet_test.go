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

package devnet_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/derive"
	"github.com/blinklabs-io/supplychain/entity"
	"github.com/blinklabs-io/supplychain/internal/test/testutil"
	"github.com/blinklabs-io/supplychain/ledger"
	"github.com/blinklabs-io/supplychain/ledger/devnet"
	"github.com/blinklabs-io/supplychain/program"
)

type testWallet struct {
	key  ed25519.PrivateKey
	addr address.Address
}

func newTestWallet(t *testing.T) *testWallet {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	addr, err := address.FromBytes(pub)
	require.NoError(t, err)
	return &testWallet{key: priv, addr: addr}
}

func (w *testWallet) sign(op *program.Operation) *ledger.SignedOperation {
	var sig ledger.Signature
	copy(sig[:], ed25519.Sign(w.key, op.Message()))
	return &ledger.SignedOperation{Operation: op, Signer: w.addr, Signature: sig}
}

type harness struct {
	t       *testing.T
	ledger  *devnet.Ledger
	deriver *derive.Deriver
	reg     *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg := prometheus.NewRegistry()
	l, err := devnet.New(devnet.Config{
		PromRegistry: reg,
		Clock: func() time.Time {
			return time.Unix(1_700_000_000, 0)
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, l.Close())
	})
	return &harness{
		t:       t,
		ledger:  l,
		deriver: derive.New(l.ProgramID()),
		reg:     reg,
	}
}

func (h *harness) op(args program.Args, accounts map[string]address.Address) *program.Operation {
	h.t.Helper()
	op, err := program.NewOperation(h.ledger.ProgramID(), args, accounts)
	require.NoError(h.t, err)
	return op
}

// run submits and waits for a terminal state
func (h *harness) run(w *testWallet, op *program.Operation) ledger.Status {
	h.t.Helper()
	ctx := context.Background()
	sig, err := h.ledger.Submit(ctx, w.sign(op))
	require.NoError(h.t, err)
	return testutil.WaitForTerminal(h.t, h.ledger, sig, 5*time.Second)
}

func (h *harness) mustCommit(w *testWallet, op *program.Operation) {
	h.t.Helper()
	status := h.run(w, op)
	require.Equal(h.t, ledger.StateCommitted, status.State, "rejection: %v", status.Rejection)
}

func (h *harness) read(addr address.Address, out entity.Entity) {
	h.t.Helper()
	acct, err := h.ledger.GetAccount(context.Background(), addr)
	require.NoError(h.t, err)
	require.NotNil(h.t, acct, "no account at %s", addr)
	require.NoError(h.t, entity.Decode(acct.Data, out))
}

func (h *harness) user(w *testWallet, role entity.Role) address.Address {
	h.t.Helper()
	userAddr, err := h.deriver.User(w.addr)
	require.NoError(h.t, err)
	h.mustCommit(w, h.op(
		program.CreateUserArgs{Name: "user", Role: role.String()},
		map[string]address.Address{"user": userAddr, "owner": w.addr},
	))
	return userAddr
}

func (h *harness) factory(w *testWallet, userAddr address.Address, seq uint64) address.Address {
	h.t.Helper()
	factoryAddr, err := h.deriver.Child(entity.KindFactory, userAddr, seq)
	require.NoError(h.t, err)
	h.mustCommit(w, h.op(
		program.CreateFactoryArgs{Name: "Acme", Description: "widgets"},
		map[string]address.Address{
			"owner": w.addr, "factory": factoryAddr, "user": userAddr,
		},
	))
	return factoryAddr
}

func TestCreateFactoryAdvancesCounter(t *testing.T) {
	h := newHarness(t)
	w := newTestWallet(t)
	userAddr := h.user(w, entity.RoleFactory)
	h.factory(w, userAddr, 1)
	h.factory(w, userAddr, 2)
	user := &entity.User{}
	h.read(userAddr, user)
	assert.Equal(t, uint64(2), user.FactoryCount)
	assert.Equal(t, "FACTORY", user.Role)
	assert.Equal(t, w.addr, user.Owner)
	assert.True(t, user.IsInitialized)

	factoryAddr := h.factory(w, userAddr, 3)
	h.read(userAddr, user)
	assert.Equal(t, uint64(3), user.FactoryCount)
	factory := &entity.Factory{}
	h.read(factoryAddr, factory)
	assert.Equal(t, uint64(3), factory.FactoryID)
	assert.Equal(t, "Acme", factory.Name)
	assert.Equal(t, uint64(1_700_000_000), factory.CreatedAt)
}

func TestStaleCounterIsCollision(t *testing.T) {
	h := newHarness(t)
	w := newTestWallet(t)
	userAddr := h.user(w, entity.RoleFactory)
	first := h.factory(w, userAddr, 1)
	// a second operation built from the same stale counter read
	status := h.run(w, h.op(
		program.CreateFactoryArgs{Name: "Acme"},
		map[string]address.Address{"owner": w.addr, "factory": first, "user": userAddr},
	))
	require.Equal(t, ledger.StateRejected, status.State)
	require.NotNil(t, status.Rejection)
	assert.True(t, status.Rejection.Collision())
	assert.Equal(t, program.CodeConstraintSeeds, status.Rejection.Code)

	// creating the user twice hits an occupied address
	status = h.run(w, h.op(
		program.CreateUserArgs{Name: "again", Role: "SELLER"},
		map[string]address.Address{"user": userAddr, "owner": w.addr},
	))
	require.Equal(t, ledger.StateRejected, status.State)
	assert.Equal(t, ledger.ReasonAccountInUse, status.Rejection.Reason)
}

func TestResubmitSameSignature(t *testing.T) {
	h := newHarness(t)
	w := newTestWallet(t)
	userAddr, err := h.deriver.User(w.addr)
	require.NoError(t, err)
	sop := w.sign(h.op(
		program.CreateUserArgs{Name: "u", Role: "FACTORY"},
		map[string]address.Address{"user": userAddr, "owner": w.addr},
	))
	ctx := context.Background()
	_, err = h.ledger.Submit(ctx, sop)
	require.NoError(t, err)
	_, err = h.ledger.Submit(ctx, sop)
	var rej *ledger.Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ledger.ReasonAlreadyProcessed, rej.Reason)
}

func TestSubmitRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	w := newTestWallet(t)
	other := newTestWallet(t)
	userAddr, err := h.deriver.User(w.addr)
	require.NoError(t, err)
	op := h.op(
		program.CreateUserArgs{Name: "u", Role: "FACTORY"},
		map[string]address.Address{"user": userAddr, "owner": w.addr},
	)
	sop := other.sign(op)
	sop.Signer = w.addr
	_, err = h.ledger.Submit(context.Background(), sop)
	var rej *ledger.Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ledger.ReasonSignatureInvalid, rej.Reason)

	// signer is not the operation's signing slot
	_, err = h.ledger.Submit(context.Background(), other.sign(op))
	require.ErrorAs(t, err, &rej)
}

func TestRoleGate(t *testing.T) {
	h := newHarness(t)
	w := newTestWallet(t)
	userAddr := h.user(w, entity.RoleSeller)
	factoryAddr, err := h.deriver.Child(entity.KindFactory, userAddr, 1)
	require.NoError(t, err)
	status := h.run(w, h.op(
		program.CreateFactoryArgs{Name: "Acme"},
		map[string]address.Address{"owner": w.addr, "factory": factoryAddr, "user": userAddr},
	))
	require.Equal(t, ledger.StateRejected, status.State)
	assert.Equal(t, program.CodeInvalidRole, status.Rejection.Code)
	acct, err := h.ledger.GetAccount(context.Background(), factoryAddr)
	require.NoError(t, err)
	assert.Nil(t, acct)
}

func TestPurchaseIsAtomic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fw := newTestWallet(t)
	iw := newTestWallet(t)
	ww := newTestWallet(t)
	fUser := h.user(fw, entity.RoleFactory)
	factoryAddr := h.factory(fw, fUser, 1)
	productAddr, err := h.deriver.Child(entity.KindProduct, factoryAddr, 1)
	require.NoError(t, err)
	h.mustCommit(fw, h.op(
		program.CreateProductArgs{
			ProductName: "bolt", BatchNumber: "B1",
			ProductPrice: 2_000_000_000, ProductStock: 10, Mrp: 3_000_000_000,
		},
		map[string]address.Address{"owner": fw.addr, "product": productAddr, "factory": factoryAddr},
	))

	iUser := h.user(iw, entity.RoleInspector)
	inspection, err := h.deriver.Child(entity.KindProductInspector, iUser, 1)
	require.NoError(t, err)
	h.mustCommit(iw, h.op(
		program.InspectProductArgs{
			Name: "insp", ProductID: 1, InspectionOutcome: "PASS",
			FeeChargePerProduct: 100,
		},
		map[string]address.Address{
			"inspectionDetails": inspection, "product": productAddr,
			"factory": factoryAddr, "user": iUser, "owner": iw.addr,
		},
	))
	product := &entity.Product{}
	h.read(productAddr, product)
	require.True(t, product.QualityChecked)
	assert.Equal(t, inspection, product.InspectorAddress)

	wUser := h.user(ww, entity.RoleWarehouse)
	warehouseAddr, err := h.deriver.Child(entity.KindWarehouse, wUser, 1)
	require.NoError(t, err)
	h.mustCommit(ww, h.op(
		program.CreateWarehouseArgs{Name: "Depot", FactoryID: 1, WarehouseSize: 100},
		map[string]address.Address{
			"warehouse": warehouseAddr, "user": wUser, "product": productAddr,
			"factory": factoryAddr, "owner": ww.addr,
		},
	))
	txAddr, err := h.deriver.Child(entity.KindTransaction, wUser, 1)
	require.NoError(t, err)
	buy := func() ledger.Status {
		return h.run(ww, h.op(
			program.BuyProductAsWarehouseArgs{ProductID: 1, FactoryID: 1, StockToPurchase: 3},
			map[string]address.Address{
				"transaction": txAddr, "user": wUser, "warehouse": warehouseAddr,
				"product": productAddr, "factory": factoryAddr, "warehouseOwner": ww.addr,
			},
		))
	}
	// wallet cannot cover 6 SOL, nothing changes
	status := buy()
	require.Equal(t, ledger.StateRejected, status.State)
	assert.Equal(t, ledger.ReasonInsufficientFunds, status.Rejection.Reason)
	h.read(productAddr, product)
	assert.Equal(t, uint64(10), product.ProductStock)
	acct, err := h.ledger.GetAccount(ctx, txAddr)
	require.NoError(t, err)
	assert.Nil(t, acct)

	require.NoError(t, h.ledger.Airdrop(ctx, ww.addr, 10_000_000_000))
	h.mustCommit(ww, h.op(
		program.BuyProductAsWarehouseArgs{ProductID: 1, FactoryID: 1, StockToPurchase: 3},
		map[string]address.Address{
			"transaction": txAddr, "user": wUser, "warehouse": warehouseAddr,
			"product": productAddr, "factory": factoryAddr, "warehouseOwner": ww.addr,
		},
	))
	h.read(productAddr, product)
	assert.Equal(t, uint64(7), product.ProductStock)
	warehouse := &entity.Warehouse{}
	h.read(warehouseAddr, warehouse)
	assert.Equal(t, uint64(3), warehouse.ProductCount)
	factory := &entity.Factory{}
	h.read(factoryAddr, factory)
	assert.Equal(t, uint64(6_000_000_000), factory.Balance)
	balance, err := h.ledger.GetBalance(ctx, ww.addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(4_000_000_000), balance)
	txRecord := &entity.Transaction{}
	h.read(txAddr, txRecord)
	assert.Equal(t, factoryAddr, txRecord.To)
	assert.Equal(t, uint64(6_000_000_000), txRecord.Amount)

	// factory withdraws more than its balance
	fTx, err := h.deriver.Child(entity.KindTransaction, fUser, 1)
	require.NoError(t, err)
	withdraw := func(amount uint64) ledger.Status {
		return h.run(fw, h.op(
			program.WithdrawArgs{Amount: amount, From: program.WithdrawFactoryBalance},
			map[string]address.Address{
				"owner": fw.addr, "transaction": fTx, "factory": factoryAddr, "user": fUser,
			},
		))
	}
	status = withdraw(7_000_000_000)
	require.Equal(t, ledger.StateRejected, status.State)
	assert.Equal(t, program.CodeInsufficientBalance, status.Rejection.Code)
	require.Equal(t, ledger.StateCommitted, withdraw(5_000_000_000).State)
	h.read(factoryAddr, factory)
	assert.Equal(t, uint64(1_000_000_000), factory.Balance)
	balance, err = h.ledger.GetBalance(ctx, fw.addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000_000), balance)

	assert.InDelta(t, 1.0, h.opsCount("withdrawBalanceAsFactory", "rejected"), 0)
	assert.InDelta(t, 1.0, h.opsCount("withdrawBalanceAsFactory", "committed"), 0)
}

func (h *harness) opsCount(ix, result string) float64 {
	h.t.Helper()
	mfs, err := h.reg.Gather()
	require.NoError(h.t, err)
	for _, mf := range mfs {
		if mf.GetName() != "supplychain_devnet_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["instruction"] == ix && labels["result"] == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestPauseKeepsOperationPending(t *testing.T) {
	h := newHarness(t)
	w := newTestWallet(t)
	userAddr, err := h.deriver.User(w.addr)
	require.NoError(t, err)
	h.ledger.Pause()
	ctx := context.Background()
	sig, err := h.ledger.Submit(ctx, w.sign(h.op(
		program.CreateUserArgs{Name: "u", Role: "FACTORY"},
		map[string]address.Address{"user": userAddr, "owner": w.addr},
	)))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	status, err := h.ledger.Status(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatePending, status.State)
	h.ledger.Resume()
	status = testutil.WaitForTerminal(t, h.ledger, sig, 5*time.Second)
	assert.Equal(t, ledger.StateCommitted, status.State)

	unknown, err := h.ledger.Status(ctx, ledger.Signature{9})
	require.NoError(t, err)
	assert.Equal(t, ledger.StateUnknown, unknown.State)
}

func TestQueueFull(t *testing.T) {
	l, err := devnet.New(devnet.Config{QueueCapacity: 1})
	require.NoError(t, err)
	defer l.Close()
	d := derive.New(l.ProgramID())
	l.Pause()
	defer l.Resume()
	ctx := context.Background()
	var queueErr error
	for range 4 {
		w := newTestWallet(t)
		userAddr, err := d.User(w.addr)
		require.NoError(t, err)
		op, err := program.NewOperation(
			l.ProgramID(),
			program.CreateUserArgs{Name: "u", Role: "SELLER"},
			map[string]address.Address{"user": userAddr, "owner": w.addr},
		)
		require.NoError(t, err)
		if _, err := l.Submit(ctx, w.sign(op)); err != nil {
			queueErr = err
			break
		}
	}
	var full *devnet.QueueFullError
	require.ErrorAs(t, queueErr, &full)
	assert.Equal(t, 1, full.Capacity)
}

func TestGetProgramAccountsFiltersByKind(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	w := newTestWallet(t)
	userAddr := h.user(w, entity.RoleFactory)
	h.factory(w, userAddr, 1)
	h.factory(w, userAddr, 2)
	require.NoError(t, h.ledger.Airdrop(ctx, w.addr, 5))
	disc := entity.KindFactory.Discriminator()
	accts, err := h.ledger.GetProgramAccounts(ctx, h.ledger.ProgramID(), disc[:])
	require.NoError(t, err)
	assert.Len(t, accts, 2)
	all, err := h.ledger.GetProgramAccounts(ctx, h.ledger.ProgramID(), nil)
	require.NoError(t, err)
	// user plus two factories, the wallet is not program owned
	assert.Len(t, all, 3)
	multi, err := h.ledger.GetMultipleAccounts(ctx, []address.Address{userAddr, {7}})
	require.NoError(t, err)
	require.Len(t, multi, 2)
	assert.NotNil(t, multi[0])
	assert.Nil(t, multi[1])
}
