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

// Package entity defines the supply-chain records stored on the ledger and
// their binary account layout.
//
// Every account begins with an 8-byte discriminator derived from the record
// type name, followed by the record fields in declaration order. Integers
// are little-endian, strings carry a u32 length prefix and addresses are raw
// 32-byte values.
package entity

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/near/borsh-go"
)

var (
	ErrShortData             = errors.New("account data shorter than discriminator")
	ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")
	ErrUnknownDiscriminator  = errors.New("unknown account discriminator")
)

// Entity is implemented by every stored record type
type Entity interface {
	Kind() Kind
}

// New returns a zero record of the given kind
func New(k Kind) (Entity, error) {
	switch k {
	case KindUser:
		return &User{}, nil
	case KindFactory:
		return &Factory{}, nil
	case KindProduct:
		return &Product{}, nil
	case KindProductInspector:
		return &ProductInspector{}, nil
	case KindWarehouse:
		return &Warehouse{}, nil
	case KindLogistics:
		return &Logistics{}, nil
	case KindSeller:
		return &Seller{}, nil
	case KindSellerProductStock:
		return &SellerProductStock{}, nil
	case KindOrder:
		return &Order{}, nil
	case KindTransaction:
		return &Transaction{}, nil
	}
	return nil, fmt.Errorf("unknown entity kind %d", uint8(k))
}

// Encode serializes a record with its discriminator prefix
func Encode(e Entity) ([]byte, error) {
	if e == nil {
		return nil, errors.New("nil entity")
	}
	disc := e.Kind().Discriminator()
	// borsh treats pointers as optional values, so always hand it the struct
	body, err := borsh.Serialize(reflect.Indirect(reflect.ValueOf(e)).Interface())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Kind(), err)
	}
	ret := make([]byte, 0, len(disc)+len(body))
	ret = append(ret, disc[:]...)
	return append(ret, body...), nil
}

// Decode parses account data into out, which must be a pointer to a record
// type. The discriminator must match the record type.
func Decode(data []byte, out Entity) error {
	if len(data) < DiscriminatorSize {
		return fmt.Errorf("%w: %d bytes", ErrShortData, len(data))
	}
	want := out.Kind().Discriminator()
	if !bytes.Equal(data[:DiscriminatorSize], want[:]) {
		got, ok := KindOf(data)
		if ok {
			return fmt.Errorf(
				"%w: expected %s, found %s",
				ErrDiscriminatorMismatch,
				out.Kind(),
				got,
			)
		}
		return fmt.Errorf(
			"%w: expected %s, found %x",
			ErrDiscriminatorMismatch,
			out.Kind(),
			data[:DiscriminatorSize],
		)
	}
	if err := borsh.Deserialize(out, data[DiscriminatorSize:]); err != nil {
		return fmt.Errorf("decode %s: %w", out.Kind(), err)
	}
	return nil
}

// DecodeAny inspects the discriminator and decodes into the matching type
func DecodeAny(data []byte) (Entity, error) {
	if len(data) < DiscriminatorSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortData, len(data))
	}
	kind, ok := KindOf(data)
	if !ok {
		return nil, fmt.Errorf(
			"%w: %x",
			ErrUnknownDiscriminator,
			data[:DiscriminatorSize],
		)
	}
	ret, err := New(kind)
	if err != nil {
		return nil, err
	}
	if err := Decode(data, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Owned is implemented by records that carry the wallet that controls them
type Owned interface {
	Entity
	OwnerAddress() address.Address
}

// Funded is implemented by records that hold an escrowed lamport balance
type Funded interface {
	Entity
	BalanceLamports() uint64
}
