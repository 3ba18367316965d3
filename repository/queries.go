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

package repository

import (
	"context"
	"fmt"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/entity"
	"github.com/blinklabs-io/supplychain/errs"
)

// UserAddress returns the derived user record address for wallet
func (r *Repository) UserAddress(wallet address.Address) (address.Address, error) {
	return r.deriver.User(wallet)
}

// User fetches the user record of wallet
func (r *Repository) User(
	ctx context.Context,
	wallet address.Address,
) (*entity.User, address.Address, error) {
	addr, err := r.deriver.User(wallet)
	if err != nil {
		return nil, address.Address{}, err
	}
	user, err := Get[entity.User](ctx, r, addr)
	if err != nil {
		return nil, addr, err
	}
	return user, addr, nil
}

// OwnedBy lists records of kind whose owner is wallet. Kinds without an
// owner field match nothing.
func (r *Repository) OwnedBy(
	ctx context.Context,
	kind entity.Kind,
	wallet address.Address,
) ([]Entry, error) {
	return r.ListByKind(ctx, kind, func(e entity.Entity) bool {
		o, ok := e.(entity.Owned)
		return ok && o.OwnerAddress() == wallet
	})
}

// AvailableLogistics lists shipments not currently carrying a payment
func (r *Repository) AvailableLogistics(ctx context.Context) ([]Item[*entity.Logistics], error) {
	return List[entity.Logistics](ctx, r, func(l *entity.Logistics) bool {
		return l.Balance == 0
	})
}

// WarehousesWithStock lists warehouses holding at least one unit
func (r *Repository) WarehousesWithStock(ctx context.Context) ([]Item[*entity.Warehouse], error) {
	return List[entity.Warehouse](ctx, r, func(w *entity.Warehouse) bool {
		return w.ProductCount > 0
	})
}

// QualityCheckedProducts lists products that passed inspection and can be
// bought by warehouses
func (r *Repository) QualityCheckedProducts(ctx context.Context) ([]Item[*entity.Product], error) {
	return List[entity.Product](ctx, r, func(p *entity.Product) bool {
		return p.QualityChecked
	})
}

// UninspectedProducts lists products still waiting for an inspection
func (r *Repository) UninspectedProducts(ctx context.Context) ([]Item[*entity.Product], error) {
	return List[entity.Product](ctx, r, func(p *entity.Product) bool {
		return !p.QualityChecked
	})
}

// ProductsOf lists the products created under factory
func (r *Repository) ProductsOf(
	ctx context.Context,
	factory address.Address,
) ([]Item[*entity.Product], error) {
	return List[entity.Product](ctx, r, func(p *entity.Product) bool {
		return p.FactoryAddress == factory
	})
}

// SellerStock lists the stock records received by seller
func (r *Repository) SellerStock(
	ctx context.Context,
	seller address.Address,
) ([]Item[*entity.SellerProductStock], error) {
	return List[entity.SellerProductStock](ctx, r, func(s *entity.SellerProductStock) bool {
		return s.SellerAddress == seller
	})
}

func (r *Repository) OrdersForSeller(
	ctx context.Context,
	seller address.Address,
) ([]Item[*entity.Order], error) {
	return List[entity.Order](ctx, r, func(o *entity.Order) bool {
		return o.SellerAddress == seller
	})
}

func (r *Repository) OrdersForWarehouse(
	ctx context.Context,
	warehouse address.Address,
) ([]Item[*entity.Order], error) {
	return List[entity.Order](ctx, r, func(o *entity.Order) bool {
		return o.WarehouseAddress == warehouse
	})
}

// TransactionsOf returns the transaction entries recorded under a user, in
// sequence order. Addresses come from the user's counter, so no scan of
// the whole program is needed.
func (r *Repository) TransactionsOf(
	ctx context.Context,
	user address.Address,
) ([]Item[*entity.Transaction], error) {
	u, err := Get[entity.User](ctx, r, user)
	if err != nil {
		return nil, err
	}
	return children[entity.Transaction](ctx, r, user, u.TransactionCount)
}

// MaxChildren bounds the counter ChildrenOf will enumerate
const MaxChildren = 10_000

// ChildrenOf returns the records numbered 1..count of kind under parent.
// Sequence numbers with no stored record are skipped. A count above
// MaxChildren is refused.
func (r *Repository) ChildrenOf(
	ctx context.Context,
	kind entity.Kind,
	parent address.Address,
	count uint64,
) ([]Entry, error) {
	if count > MaxChildren {
		return nil, errs.Validation(
			"repository.ChildrenOf",
			"%s count %d of %s exceeds %d",
			kind,
			count,
			parent,
			MaxChildren,
		)
	}
	addrs := make([]address.Address, 0, count)
	for seq := uint64(1); seq <= count; seq++ {
		addr, err := r.deriver.Child(kind, parent, seq)
		if err != nil {
			return nil, fmt.Errorf("derive %s %d: %w", kind, seq, err)
		}
		addrs = append(addrs, addr)
	}
	recs, err := r.GetMany(ctx, kind, addrs)
	if err != nil {
		return nil, err
	}
	ret := make([]Entry, 0, len(recs))
	for i, rec := range recs {
		if rec == nil {
			continue
		}
		ret = append(ret, Entry{Entity: rec, Address: addrs[i]})
	}
	return ret, nil
}

func children[T any, P record[T]](
	ctx context.Context,
	r *Repository,
	parent address.Address,
	count uint64,
) ([]Item[P], error) {
	var zero T
	entries, err := r.ChildrenOf(ctx, P(&zero).Kind(), parent, count)
	if err != nil {
		return nil, err
	}
	ret := make([]Item[P], 0, len(entries))
	for _, e := range entries {
		ret = append(ret, Item[P]{Value: e.Entity.(P), Address: e.Address})
	}
	return ret, nil
}

// FactoryOfProduct follows the product's stored factory address
func (r *Repository) FactoryOfProduct(
	ctx context.Context,
	product *entity.Product,
) (*entity.Factory, error) {
	return Get[entity.Factory](ctx, r, product.FactoryAddress)
}

// InspectionOfProduct follows the product's stored inspection address.
// Records are correlated by address only; numeric ids are not unique
// across inspectors.
func (r *Repository) InspectionOfProduct(
	ctx context.Context,
	product *entity.Product,
) (*entity.ProductInspector, error) {
	const op = "repository.InspectionOfProduct"
	if !product.QualityChecked || product.InspectorAddress.IsZero() {
		return nil, &errs.Error{
			Kind:   errs.KindReferenceNotFound,
			Op:     op,
			Reason: fmt.Sprintf("product %d has not been inspected", product.ProductID),
			Err:    ErrNotFound,
		}
	}
	return Get[entity.ProductInspector](ctx, r, product.InspectorAddress)
}

// PendingInspectionFees lists quality-checked products of factory whose
// inspector has not been paid yet
func (r *Repository) PendingInspectionFees(
	ctx context.Context,
	factory address.Address,
) ([]Item[*entity.Product], error) {
	return List[entity.Product](ctx, r, func(p *entity.Product) bool {
		return p.FactoryAddress == factory && p.QualityChecked && !p.InspectionFeePaid
	})
}
