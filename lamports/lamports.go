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

// Package lamports converts between human currency amounts and the ledger's
// smallest indivisible unit
package lamports

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	PerSol   = 1_000_000_000
	Decimals = 9
)

var (
	ErrNegative  = errors.New("amount is negative")
	ErrPrecision = errors.New("amount is finer than one lamport")
	ErrOverflow  = errors.New("amount overflows 64 bits")
)

var (
	perSol    = decimal.New(1, Decimals)
	maxAmount = decimal.NewFromUint64(math.MaxUint64)
)

// Parse converts a decimal SOL string such as "1.5" into lamports
func Parse(sol string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(sol))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", sol, err)
	}
	return FromDecimal(d)
}

// FromDecimal converts a SOL amount into lamports using exact decimal
// arithmetic
func FromDecimal(sol decimal.Decimal) (uint64, error) {
	if sol.IsNegative() {
		return 0, fmt.Errorf("%w: %s", ErrNegative, sol)
	}
	l := sol.Mul(perSol)
	if !l.IsInteger() {
		return 0, fmt.Errorf("%w: %s", ErrPrecision, sol)
	}
	if l.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: %s", ErrOverflow, sol)
	}
	return l.BigInt().Uint64(), nil
}

// ToDecimal converts lamports into SOL
func ToDecimal(l uint64) decimal.Decimal {
	return decimal.NewFromUint64(l).Shift(-Decimals)
}

// Format renders lamports as a SOL string without trailing zeros
func Format(l uint64) string {
	return ToDecimal(l).String()
}

// Whole converts a whole number of SOL
func Whole(sol uint64) (uint64, error) {
	if sol > math.MaxUint64/PerSol {
		return 0, fmt.Errorf("%w: %d SOL", ErrOverflow, sol)
	}
	return sol * PerSol, nil
}
