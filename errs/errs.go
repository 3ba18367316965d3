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

// Package errs classifies failures of business operations.
//
// ReferenceNotFound and ValidationFailed are raised before anything is sent
// to the ledger. AddressCollision, LedgerRejected and Timeout are raised
// after submission. DecodeError marks stored data that does not match the
// expected record layout and is never recoverable.
//
// Callers match with errors.Is against the sentinel values:
//
//	if errors.Is(err, errs.ErrValidationFailed) { ... }
package errs

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindReferenceNotFound
	KindValidationFailed
	KindAddressCollision
	KindLedgerRejected
	KindTimeout
	KindDecodeError
)

func (k Kind) String() string {
	switch k {
	case KindReferenceNotFound:
		return "reference not found"
	case KindValidationFailed:
		return "validation failed"
	case KindAddressCollision:
		return "address collision"
	case KindLedgerRejected:
		return "ledger rejected"
	case KindTimeout:
		return "timeout"
	case KindDecodeError:
		return "decode error"
	}
	return "unknown error"
}

// PreSubmit reports whether errors of this kind are raised before the
// ledger is contacted
func (k Kind) PreSubmit() bool {
	return k == KindReferenceNotFound || k == KindValidationFailed
}

var (
	ErrReferenceNotFound = &Error{Kind: KindReferenceNotFound}
	ErrValidationFailed  = &Error{Kind: KindValidationFailed}
	ErrAddressCollision  = &Error{Kind: KindAddressCollision}
	ErrLedgerRejected    = &Error{Kind: KindLedgerRejected}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrDecodeError       = &Error{Kind: KindDecodeError}
)

// Error is a classified failure. Code carries the ledger program's error
// code when the ledger reported one.
type Error struct {
	Err    error
	Op     string
	Reason string
	Kind   Kind
	Code   uint32
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.String())
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	if e.Code != 0 {
		fmt.Fprintf(&sb, " (code %d)", e.Code)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the package sentinels work
// with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the classification of err, or KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func ReferenceNotFound(op string, format string, args ...any) *Error {
	return &Error{
		Kind:   KindReferenceNotFound,
		Op:     op,
		Reason: fmt.Sprintf(format, args...),
	}
}

func Validation(op string, format string, args ...any) *Error {
	return &Error{
		Kind:   KindValidationFailed,
		Op:     op,
		Reason: fmt.Sprintf(format, args...),
	}
}

func Collision(op string, reason string, code uint32, err error) *Error {
	return &Error{
		Kind:   KindAddressCollision,
		Op:     op,
		Reason: reason,
		Code:   code,
		Err:    err,
	}
}

func Rejected(op string, reason string, code uint32, err error) *Error {
	return &Error{
		Kind:   KindLedgerRejected,
		Op:     op,
		Reason: reason,
		Code:   code,
		Err:    err,
	}
}

func Timeout(op string, format string, args ...any) *Error {
	return &Error{
		Kind:   KindTimeout,
		Op:     op,
		Reason: fmt.Sprintf(format, args...),
	}
}

func Decode(op string, err error) *Error {
	return &Error{
		Kind: KindDecodeError,
		Op:   op,
		Err:  err,
	}
}

// Wrap attaches an operation name to a classified error, or classifies an
// unclassified one as kind
func Wrap(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Op == "" {
			cp := *e
			cp.Op = op
			return &cp
		}
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
