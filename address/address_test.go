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

package address_test

import (
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProgramID = "3H967UCXdgSYn8tTK7bYXxGHSsiDNF8NLKXQ4tPSb1JL"

func testWallet() address.Address {
	var ret address.Address
	for i := range ret {
		ret[i] = byte(i + 1)
	}
	return ret
}

func seq(n uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, n)
}

func TestParseRoundTrip(t *testing.T) {
	programID, err := address.Parse(testProgramID)
	require.NoError(t, err)
	assert.Equal(
		t,
		"21d9cfe42e80c5c60de102c2836f35248588716bb7ff89ff56113ab8b0b250cd",
		hex.EncodeToString(programID[:]),
	)
	assert.Equal(t, testProgramID, programID.String())
	assert.Equal(
		t,
		"4wBqpZM9xaSheZzJSMawUKKwhdpChKbZ5eu5ky4Vigw",
		testWallet().String(),
	)
	assert.Equal(
		t,
		"11111111111111111111111111111111",
		address.SystemProgram.String(),
	)
}

func TestParseInvalid(t *testing.T) {
	for _, input := range []string{"", "abc", "0OIl", testProgramID + "1"} {
		_, err := address.Parse(input)
		assert.ErrorIs(t, err, address.ErrInvalidAddress, "input %q", input)
	}
}

func TestTextMarshaling(t *testing.T) {
	var a address.Address
	require.NoError(t, a.UnmarshalText([]byte(testProgramID)))
	out, err := a.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, testProgramID, string(out))
}

func TestIsOnCurve(t *testing.T) {
	basepoint, err := hex.DecodeString(
		"5866666666666666666666666666666666666666666666666666666666666666",
	)
	require.NoError(t, err)
	assert.True(t, address.IsOnCurve(basepoint))
	assert.False(t, address.IsOnCurve(basepoint[:31]))
}

func TestFindProgramAddressVectors(t *testing.T) {
	programID := address.MustParse(testProgramID)
	wallet := testWallet()
	user, bump, err := address.FindProgramAddress(
		[][]byte{[]byte("user"), wallet[:]},
		programID,
	)
	require.NoError(t, err)
	assert.Equal(t, "6xK24yjU32EvqycccJPDsau1NbZH6SSiC5Gxd5TLpC4S", user.String())
	assert.Equal(t, uint8(255), bump)

	testDefs := []struct {
		name     string
		seeds    [][]byte
		expected string
		bump     uint8
	}{
		{
			name:     "factory 3",
			seeds:    [][]byte{[]byte("factory"), user[:], seq(3)},
			expected: "H8ozkZDrAz9rT9uck717KP4EsM5jNV9G96k4WybA9rfU",
			bump:     255,
		},
		{
			name:     "factory 1",
			seeds:    [][]byte{[]byte("factory"), user[:], seq(1)},
			expected: "HvzUaHSXhtKZ6pnfdG2vLbjXEDFmrsdo6oBHw27LPReX",
			bump:     255,
		},
		{
			name:     "transaction 2",
			seeds:    [][]byte{[]byte("transaction"), user[:], seq(2)},
			expected: "3LT9WttZMeYJf6iJoiD4wX8JqsKGKTiddZf9WE2z1v8h",
			bump:     254,
		},
		{
			name:     "program state",
			seeds:    [][]byte{[]byte("program_state")},
			expected: "59AdD9JEQniZK4vAsQv6HbfXCdanQ1Wbov5VcUS6BZdu",
			bump:     255,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			addr, bump, err := address.FindProgramAddress(
				testDef.seeds,
				programID,
			)
			require.NoError(t, err)
			assert.Equal(t, testDef.expected, addr.String())
			assert.Equal(t, testDef.bump, bump)
			assert.False(t, address.IsOnCurve(addr[:]))
		})
	}

	factory := address.MustParse("H8ozkZDrAz9rT9uck717KP4EsM5jNV9G96k4WybA9rfU")
	product, bump, err := address.FindProgramAddress(
		[][]byte{[]byte("product"), factory[:], seq(1)},
		programID,
	)
	require.NoError(t, err)
	assert.Equal(t, "9FbAspdpQKhLMvzVL5QBbkKqv7eMYJb3nMrTUDWt2H9L", product.String())
	assert.Equal(t, uint8(253), bump)
}

func TestFindProgramAddressSeedLimits(t *testing.T) {
	programID := address.MustParse(testProgramID)
	_, _, err := address.FindProgramAddress(
		[][]byte{make([]byte, address.MaxSeedLength+1)},
		programID,
	)
	assert.ErrorIs(t, err, address.ErrMaxSeedLength)

	tooMany := make([][]byte, address.MaxSeeds)
	_, _, err = address.FindProgramAddress(tooMany, programID)
	assert.ErrorIs(t, err, address.ErrTooManySeeds)
}
