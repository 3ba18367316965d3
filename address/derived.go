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

package address

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	MaxSeeds      = 16
	MaxSeedLength = 32

	derivedAddressMarker = "ProgramDerivedAddress"
)

var (
	ErrMaxSeedLength  = errors.New("seed exceeds maximum length")
	ErrTooManySeeds   = errors.New("too many seeds")
	ErrOnCurve        = errors.New("derived address lies on the ed25519 curve")
	ErrNoViableBump   = errors.New("unable to find a viable bump seed")
	errInvalidSeedSet = errors.New("invalid seed set")
)

// IsOnCurve reports whether b is the encoding of a point on the ed25519
// curve. Non-canonical encodings of valid points count as on the curve.
func IsOnCurve(b []byte) bool {
	if len(b) != Size {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// CreateProgramAddress hashes the seeds with the program id. The result
// must not be a valid curve point, so that no private key can sign for it.
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Address{}, fmt.Errorf("%w: %d", ErrTooManySeeds, len(seeds))
	}
	h := sha256.New()
	for idx, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Address{}, fmt.Errorf(
				"%w: seed %d has %d bytes",
				ErrMaxSeedLength,
				idx,
				len(seed),
			)
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(derivedAddressMarker))
	var ret Address
	copy(ret[:], h.Sum(nil))
	if IsOnCurve(ret[:]) {
		return Address{}, ErrOnCurve
	}
	return ret, nil
}

// FindProgramAddress searches bump seeds from 255 down to 0 and returns the
// first off-curve address along with the bump that produced it
func FindProgramAddress(
	seeds [][]byte,
	programID Address,
) (Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		// one slot is reserved for the bump
		return Address{}, 0, fmt.Errorf(
			"%w: %w: %d",
			errInvalidSeedSet,
			ErrTooManySeeds,
			len(seeds),
		)
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	bump := []byte{0}
	withBump[len(seeds)] = bump
	for b := 255; b >= 0; b-- {
		bump[0] = uint8(b)
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(b), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}
