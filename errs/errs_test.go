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

package errs_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/blinklabs-io/supplychain/errs"
	"github.com/stretchr/testify/assert"
)

func TestSentinelMatching(t *testing.T) {
	err := fmt.Errorf(
		"outer: %w",
		errs.Validation("withdraw", "amount %d exceeds balance %d", 2, 1),
	)
	assert.ErrorIs(t, err, errs.ErrValidationFailed)
	assert.NotErrorIs(t, err, errs.ErrLedgerRejected)
	assert.Equal(t, errs.KindValidationFailed, errs.KindOf(err))
	assert.True(t, errs.KindOf(err).PreSubmit())
	assert.Equal(
		t,
		"outer: withdraw: validation failed: amount 2 exceeds balance 1",
		err.Error(),
	)
}

func TestRejectedCarriesCode(t *testing.T) {
	cause := errors.New("insufficient balance")
	err := errs.Rejected("withdraw", "insufficientBalance", 6003, cause)
	assert.ErrorIs(t, err, errs.ErrLedgerRejected)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "(code 6003)")
	assert.False(t, errs.KindLedgerRejected.PreSubmit())
}

func TestWrap(t *testing.T) {
	assert.NoError(t, errs.Wrap("op", errs.KindDecodeError, nil))

	wrapped := errs.Wrap("read", errs.KindDecodeError, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, wrapped, errs.ErrDecodeError)
	assert.ErrorIs(t, wrapped, io.ErrUnexpectedEOF)

	inner := errs.Timeout("", "no terminal state after %s", "1s")
	rewrapped := errs.Wrap("submit", errs.KindLedgerRejected, inner)
	assert.ErrorIs(t, rewrapped, errs.ErrTimeout)
	assert.Equal(t, "submit: timeout: no terminal state after 1s", rewrapped.Error())

	assert.Equal(t, errs.KindUnknown, errs.KindOf(io.EOF))
}
