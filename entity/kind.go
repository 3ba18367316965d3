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
	"crypto/sha256"
	"fmt"
	"strings"
)

const DiscriminatorSize = 8

// Discriminator is the 8-byte prefix that tags the record type stored in an
// account
type Discriminator [DiscriminatorSize]byte

// Kind identifies one of the supply-chain record types
type Kind uint8

const (
	KindUnknown Kind = iota
	KindUser
	KindFactory
	KindProduct
	KindProductInspector
	KindWarehouse
	KindLogistics
	KindSeller
	KindSellerProductStock
	KindOrder
	KindTransaction
)

type kindInfo struct {
	name string
	seed string
	// kind whose address is the parent seed, KindUnknown for roots
	parent Kind
	disc   Discriminator
}

var kinds = map[Kind]*kindInfo{
	KindUser:               {name: "User", seed: "user"},
	KindFactory:            {name: "Factory", seed: "factory", parent: KindUser},
	KindProduct:            {name: "Product", seed: "product", parent: KindFactory},
	KindProductInspector:   {name: "ProductInspector", seed: "product_inspector", parent: KindUser},
	KindWarehouse:          {name: "Warehouse", seed: "warehouse", parent: KindUser},
	KindLogistics:          {name: "Logistics", seed: "logistics", parent: KindUser},
	KindSeller:             {name: "Seller", seed: "seller", parent: KindUser},
	KindSellerProductStock: {name: "SellerProductStock", seed: "seller_product", parent: KindSeller},
	KindOrder:              {name: "Order", seed: "order", parent: KindSeller},
	KindTransaction:        {name: "Transaction", seed: "transaction", parent: KindUser},
}

var kindByDiscriminator = map[Discriminator]Kind{}

func init() {
	for kind, info := range kinds {
		info.disc = AccountDiscriminator(info.name)
		kindByDiscriminator[info.disc] = kind
	}
}

// AccountDiscriminator computes the record tag for an account type name
func AccountDiscriminator(name string) Discriminator {
	var ret Discriminator
	sum := sha256.Sum256([]byte("account:" + name))
	copy(ret[:], sum[:DiscriminatorSize])
	return ret
}

// Kinds returns all known kinds in declaration order
func Kinds() []Kind {
	ret := make([]Kind, 0, len(kinds))
	for k := KindUser; k <= KindTransaction; k++ {
		ret = append(ret, k)
	}
	return ret
}

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Seed returns the textual seed tag that prefixes the derived address
func (k Kind) Seed() string {
	if info, ok := kinds[k]; ok {
		return info.seed
	}
	return ""
}

// Parent returns the kind whose address is used as the parent seed when
// deriving an address of this kind. User records are rooted at a wallet.
func (k Kind) Parent() Kind {
	if info, ok := kinds[k]; ok {
		return info.parent
	}
	return KindUnknown
}

func (k Kind) Discriminator() Discriminator {
	if info, ok := kinds[k]; ok {
		return info.disc
	}
	return Discriminator{}
}

// KindOf returns the kind tagged by the leading bytes of account data
func KindOf(data []byte) (Kind, bool) {
	if len(data) < DiscriminatorSize {
		return KindUnknown, false
	}
	var d Discriminator
	copy(d[:], data[:DiscriminatorSize])
	k, ok := kindByDiscriminator[d]
	return k, ok
}

// ParseKind accepts the type name in any case, with or without separators
func ParseKind(s string) (Kind, error) {
	norm := strings.NewReplacer("_", "", "-", "", " ", "").
		Replace(strings.ToLower(s))
	for kind, info := range kinds {
		if strings.ToLower(info.name) == norm {
			return kind, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown entity kind: %q", s)
}
