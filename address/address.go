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

// Package address implements 32-byte ledger addresses, their base58 text
// form, and the program-derived address search used to place entities.
package address

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const Size = 32

var (
	ErrInvalidAddress = errors.New("invalid address")

	// SystemProgram is the native program that owns wallets and creates
	// accounts. Its address is all zero bytes.
	SystemProgram = Address{}
)

// Address identifies a ledger account
type Address [Size]byte

// Parse decodes the base58 text form of an address
func Parse(s string) (Address, error) {
	var ret Address
	if s == "" {
		return ret, fmt.Errorf("%w: empty string", ErrInvalidAddress)
	}
	decoded := base58.Decode(s)
	if len(decoded) != Size {
		return ret, fmt.Errorf(
			"%w: %q decodes to %d bytes",
			ErrInvalidAddress,
			s,
			len(decoded),
		)
	}
	copy(ret[:], decoded)
	return ret, nil
}

// MustParse is like Parse but panics on error. It is intended for constants.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromBytes copies a 32-byte slice into an Address
func FromBytes(b []byte) (Address, error) {
	var ret Address
	if len(b) != Size {
		return ret, fmt.Errorf(
			"%w: expected %d bytes, got %d",
			ErrInvalidAddress,
			Size,
			len(b),
		)
	}
	copy(ret[:], b)
	return ret, nil
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) Bytes() []byte {
	return bytes.Clone(a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) Equal(other Address) bool {
	return a == other
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(data []byte) error {
	tmp, err := Parse(string(data))
	if err != nil {
		return err
	}
	*a = tmp
	return nil
}

// Decode implements envconfig.Decoder
func (a *Address) Decode(value string) error {
	return a.UnmarshalText([]byte(value))
}
