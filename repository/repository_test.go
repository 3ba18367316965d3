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

package repository_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/derive"
	"github.com/blinklabs-io/supplychain/entity"
	"github.com/blinklabs-io/supplychain/errs"
	"github.com/blinklabs-io/supplychain/internal/test/ledgertest"
	"github.com/blinklabs-io/supplychain/repository"
)

func wallet(b byte) address.Address {
	return address.Address{0: b, 31: 0xaa}
}

func newRepo(t *testing.T) (*repository.Repository, *ledgertest.Ledger, *derive.Deriver) {
	t.Helper()
	l := ledgertest.New()
	repo := repository.New(repository.Config{
		Reader:    l,
		ProgramID: l.ProgramID(),
		BatchSize: 2,
	})
	return repo, l, derive.New(l.ProgramID())
}

func child(t *testing.T, d *derive.Deriver, kind entity.Kind, parent address.Address, seq uint64) address.Address {
	t.Helper()
	addr, err := d.Child(kind, parent, seq)
	require.NoError(t, err)
	return addr
}

func TestGet(t *testing.T) {
	repo, l, d := newRepo(t)
	user, err := d.User(wallet(1))
	require.NoError(t, err)
	addr := child(t, d, entity.KindFactory, user, 1)
	l.Put(addr, &entity.Factory{FactoryID: 1, Name: "mill", Owner: wallet(1)})

	f, err := repository.Get[entity.Factory](context.Background(), repo, addr)
	require.NoError(t, err)
	assert.Equal(t, "mill", f.Name)

	rec, err := repo.Get(context.Background(), entity.KindFactory, addr)
	require.NoError(t, err)
	assert.Equal(t, entity.KindFactory, rec.Kind())
}

func TestGetNotFound(t *testing.T) {
	repo, l, d := newRepo(t)
	user, err := d.User(wallet(1))
	require.NoError(t, err)

	_, err = repository.Get[entity.User](context.Background(), repo, user)
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.ErrorIs(t, err, errs.ErrReferenceNotFound)

	// a record of another kind is not the record asked for
	l.Put(user, &entity.Seller{Name: "shop"})
	_, err = repository.Get[entity.User](context.Background(), repo, user)
	require.ErrorIs(t, err, repository.ErrNotFound)

	// a plain wallet is not a program record
	l.SetBalance(wallet(2), 5)
	_, err = repo.Get(context.Background(), entity.KindUser, wallet(2))
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetDecodeError(t *testing.T) {
	repo, l, d := newRepo(t)
	user, err := d.User(wallet(1))
	require.NoError(t, err)
	disc := entity.KindUser.Discriminator()
	l.PutRaw(user, append(disc[:], 0x01, 0x02))

	_, err = repository.Get[entity.User](context.Background(), repo, user)
	require.ErrorIs(t, err, errs.ErrDecodeError)
	assert.NotErrorIs(t, err, repository.ErrNotFound)
}

func TestAvailableLogistics(t *testing.T) {
	repo, l, d := newRepo(t)
	user, err := d.User(wallet(3))
	require.NoError(t, err)
	balances := []uint64{0, 250, 0, 1, 999}
	var want []address.Address
	for i, bal := range balances {
		addr := child(t, d, entity.KindLogistics, user, uint64(i+1))
		l.Put(addr, &entity.Logistics{
			LogisticID: uint64(i + 1),
			Balance:    bal,
			Owner:      wallet(3),
		})
		if bal == 0 {
			want = append(want, addr)
		}
	}
	// records of other kinds are never scanned into the result
	l.Put(child(t, d, entity.KindFactory, user, 1), &entity.Factory{})

	got, err := repo.AvailableLogistics(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	var addrs []address.Address
	for _, item := range got {
		assert.Zero(t, item.Value.Balance)
		addrs = append(addrs, item.Address)
	}
	assert.ElementsMatch(t, want, addrs)
}

func TestListByKindDecodeErrorSurfaces(t *testing.T) {
	repo, l, d := newRepo(t)
	user, err := d.User(wallet(1))
	require.NoError(t, err)
	l.Put(child(t, d, entity.KindSeller, user, 1), &entity.Seller{Name: "ok"})
	disc := entity.KindSeller.Discriminator()
	l.PutRaw(child(t, d, entity.KindSeller, user, 2), disc[:])

	_, err = repo.ListByKind(context.Background(), entity.KindSeller, nil)
	require.ErrorIs(t, err, errs.ErrDecodeError)
}

func TestOwnedBy(t *testing.T) {
	repo, l, d := newRepo(t)
	for _, w := range []byte{1, 2} {
		user, err := d.User(wallet(w))
		require.NoError(t, err)
		for seq := uint64(1); seq <= uint64(w); seq++ {
			l.Put(child(t, d, entity.KindWarehouse, user, seq), &entity.Warehouse{
				WarehouseID:  seq,
				Owner:        wallet(w),
				ProductCount: seq - 1,
			})
		}
	}

	mine, err := repo.OwnedBy(context.Background(), entity.KindWarehouse, wallet(2))
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	stocked, err := repo.WarehousesWithStock(context.Background())
	require.NoError(t, err)
	require.Len(t, stocked, 1)
	assert.Equal(t, uint64(1), stocked[0].Value.ProductCount)

	// orders have no owner field
	none, err := repo.OwnedBy(context.Background(), entity.KindOrder, wallet(2))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTransactionsOf(t *testing.T) {
	repo, l, d := newRepo(t)
	user, err := d.User(wallet(4))
	require.NoError(t, err)
	l.Put(user, &entity.User{Owner: wallet(4), TransactionCount: 5})
	for seq := uint64(1); seq <= 5; seq++ {
		if seq == 3 {
			continue
		}
		l.Put(child(t, d, entity.KindTransaction, user, seq), &entity.Transaction{
			TransactionID: seq,
			From:          wallet(4),
			Amount:        seq * 10,
		})
	}

	txs, err := repo.TransactionsOf(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, txs, 4)
	var ids []uint64
	for _, tx := range txs {
		ids = append(ids, tx.Value.TransactionID)
	}
	assert.Equal(t, []uint64{1, 2, 4, 5}, ids)
}

func TestInspectionOfProduct(t *testing.T) {
	repo, l, d := newRepo(t)
	inspectorUser, err := d.User(wallet(5))
	require.NoError(t, err)
	inspection := child(t, d, entity.KindProductInspector, inspectorUser, 1)
	l.Put(inspection, &entity.ProductInspector{InspectorID: 1, ProductID: 9, Owner: wallet(5)})

	_, err = repo.InspectionOfProduct(context.Background(), &entity.Product{ProductID: 9})
	require.ErrorIs(t, err, repository.ErrNotFound)

	got, err := repo.InspectionOfProduct(context.Background(), &entity.Product{
		ProductID:        9,
		QualityChecked:   true,
		InspectionID:     1,
		InspectorAddress: inspection,
	})
	require.NoError(t, err)
	assert.Equal(t, wallet(5), got.Owner)
}

func TestGetManyPreservesPositions(t *testing.T) {
	repo, l, d := newRepo(t)
	user, err := d.User(wallet(6))
	require.NoError(t, err)
	var addrs []address.Address
	for seq := uint64(1); seq <= 5; seq++ {
		addr := child(t, d, entity.KindSeller, user, seq)
		addrs = append(addrs, addr)
		if seq%2 == 1 {
			l.Put(addr, &entity.Seller{SellerID: seq})
		}
	}

	recs, err := repo.GetMany(context.Background(), entity.KindSeller, addrs)
	require.NoError(t, err)
	require.Len(t, recs, 5)
	for i, rec := range recs {
		if i%2 == 1 {
			assert.Nil(t, rec)
			continue
		}
		require.NotNil(t, rec)
		assert.Equal(t, uint64(i+1), rec.(*entity.Seller).SellerID)
	}
	// batch size 2 splits five addresses into three reads
	assert.Equal(t, 3, l.Reads())
}

func TestChildrenOfRefusesHugeCounter(t *testing.T) {
	repo, l, d := newRepo(t)
	user, err := d.User(wallet(5))
	require.NoError(t, err)
	l.Put(user, &entity.User{Owner: wallet(5), TransactionCount: math.MaxUint64})

	_, err = repo.TransactionsOf(context.Background(), user)
	require.ErrorIs(t, err, errs.ErrValidationFailed)
	_, err = repo.ChildrenOf(context.Background(), entity.KindFactory, user, repository.MaxChildren+1)
	require.ErrorIs(t, err, errs.ErrValidationFailed)
	assert.Equal(t, 1, l.Reads())
}
