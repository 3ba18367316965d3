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

package entity

import (
	"errors"
	"fmt"
)

var ErrCounterMismatch = errors.New("counter does not belong to record")

// CounterField names a per-parent sequence counter
type CounterField uint8

const (
	FieldUnknown CounterField = iota
	FieldFactoryCount
	FieldWarehouseCount
	FieldLogisticsCount
	FieldSellerCount
	FieldInspectorCount
	FieldTransactionCount
	FieldProductCount
	FieldProductsCount
	FieldOrderCount
)

type counterInfo struct {
	name   string
	parent Kind
	child  Kind
}

var counters = map[CounterField]counterInfo{
	FieldFactoryCount:     {"factoryCount", KindUser, KindFactory},
	FieldWarehouseCount:   {"warehouseCount", KindUser, KindWarehouse},
	FieldLogisticsCount:   {"logisticsCount", KindUser, KindLogistics},
	FieldSellerCount:      {"sellerCount", KindUser, KindSeller},
	FieldInspectorCount:   {"inspectorCount", KindUser, KindProductInspector},
	FieldTransactionCount: {"transactionCount", KindUser, KindTransaction},
	FieldProductCount:     {"productCount", KindFactory, KindProduct},
	FieldProductsCount:    {"productsCount", KindSeller, KindSellerProductStock},
	FieldOrderCount:       {"orderCount", KindSeller, KindOrder},
}

func (f CounterField) String() string {
	if info, ok := counters[f]; ok {
		return info.name
	}
	return fmt.Sprintf("CounterField(%d)", uint8(f))
}

// ParentKind is the record kind that stores this counter
func (f CounterField) ParentKind() Kind {
	return counters[f].parent
}

// ChildKind is the record kind sequenced by this counter
func (f CounterField) ChildKind() Kind {
	return counters[f].child
}

// CounterFor returns the counter that sequences records of kind k
func CounterFor(k Kind) (CounterField, bool) {
	for field, info := range counters {
		if info.child == k {
			return field, true
		}
	}
	return FieldUnknown, false
}

// Counter reads a counter value from a decoded record
func Counter(e Entity, f CounterField) (uint64, error) {
	info, ok := counters[f]
	if !ok {
		return 0, fmt.Errorf("unknown counter field %d", uint8(f))
	}
	if e == nil || e.Kind() != info.parent {
		return 0, fmt.Errorf("%w: %s on %v", ErrCounterMismatch, f, e)
	}
	switch r := e.(type) {
	case *User:
		switch f {
		case FieldFactoryCount:
			return r.FactoryCount, nil
		case FieldWarehouseCount:
			return r.WarehouseCount, nil
		case FieldLogisticsCount:
			return r.LogisticsCount, nil
		case FieldSellerCount:
			return r.SellerCount, nil
		case FieldInspectorCount:
			return r.InspectorCount, nil
		case FieldTransactionCount:
			return r.TransactionCount, nil
		}
	case *Factory:
		return r.ProductCount, nil
	case *Seller:
		if f == FieldOrderCount {
			return r.OrderCount, nil
		}
		return r.ProductsCount, nil
	}
	return 0, fmt.Errorf("%w: %s on %T", ErrCounterMismatch, f, e)
}
