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

package program

import "fmt"

// ErrorCode is a numeric refusal reported by the program or its framework
type ErrorCode uint32

// Program-defined codes
const (
	CodeUnauthorizedAccess ErrorCode = 6000 + iota
	CodeInvalidProductID
	CodeInsufficientStock
	CodeInsufficientBalance
	CodeInvalidWarehouse
	CodeInvalidLogistics
	CodeInvalidInspectionOutcome
	CodeInvalidNotes
	CodeInvalidName
	CodeInvalidDescription
	CodeInvalidContactInfo
	CodeInvalidRole
	CodeInvalidFactory
	CodeQualityChecked
	CodeProductNotQualityChecked
	CodeInvalidInspectorID
	CodeInvalidInspector
	CodeInvalidUser
	CodeOverflow
)

// Framework codes raised by account validation before program logic runs
const (
	CodeInstructionFallbackNotFound  ErrorCode = 101
	CodeInstructionDidNotDeserialize ErrorCode = 102
	CodeConstraintMut                ErrorCode = 2000
	CodeConstraintSigner             ErrorCode = 2002
	CodeConstraintSeeds              ErrorCode = 2006
	CodeAccountDiscriminatorMismatch ErrorCode = 3002
	CodeAccountDidNotDeserialize     ErrorCode = 3003
	CodeAccountNotEnoughKeys         ErrorCode = 3005
	CodeInvalidProgramID             ErrorCode = 3008
	CodeAccountNotInitialized        ErrorCode = 3012
)

type errorInfo struct {
	name string
	msg  string
}

var errorTable = map[ErrorCode]errorInfo{
	CodeUnauthorizedAccess:           {"unauthorizedAccess", "unauthorized access"},
	CodeInvalidProductID:             {"invalidProductId", "invalid product id"},
	CodeInsufficientStock:            {"insufficientStock", "insufficient stock"},
	CodeInsufficientBalance:          {"insufficientBalance", "insufficient balance"},
	CodeInvalidWarehouse:             {"invalidWarehouse", "warehouse not found"},
	CodeInvalidLogistics:             {"invalidLogistics", "logistics not found"},
	CodeInvalidInspectionOutcome:     {"invalidInspectionOutcome", "inspection outcome too long"},
	CodeInvalidNotes:                 {"invalidNotes", "notes too long"},
	CodeInvalidName:                  {"invalidName", "name too long"},
	CodeInvalidDescription:           {"invalidDescription", "description too long"},
	CodeInvalidContactInfo:           {"invalidContactInfo", "contact info too long"},
	CodeInvalidRole:                  {"invalidRole", "invalid role"},
	CodeInvalidFactory:               {"invalidFactory", "invalid factory"},
	CodeQualityChecked:               {"qualityChecked", "quality already checked"},
	CodeProductNotQualityChecked:     {"productNotQualityChecked", "product not quality checked"},
	CodeInvalidInspectorID:           {"invalidInspectorId", "invalid inspector id"},
	CodeInvalidInspector:             {"invalidInspector", "invalid inspector"},
	CodeInvalidUser:                  {"invalidUser", "invalid user"},
	CodeOverflow:                     {"overflow", "overflow"},
	CodeInstructionFallbackNotFound:  {"InstructionFallbackNotFound", "Fallback functions are not supported"},
	CodeInstructionDidNotDeserialize: {"InstructionDidNotDeserialize", "The program could not deserialize the given instruction"},
	CodeConstraintMut:                {"ConstraintMut", "A mut constraint was violated"},
	CodeConstraintSigner:             {"ConstraintSigner", "A signer constraint was violated"},
	CodeConstraintSeeds:              {"ConstraintSeeds", "A seeds constraint was violated"},
	CodeAccountDiscriminatorMismatch: {"AccountDiscriminatorMismatch", "Account discriminator did not match what was expected"},
	CodeAccountDidNotDeserialize:     {"AccountDidNotDeserialize", "Failed to deserialize the account"},
	CodeAccountNotEnoughKeys:         {"AccountNotEnoughKeys", "Not enough account keys given to the instruction"},
	CodeInvalidProgramID:             {"InvalidProgramId", "Program ID was not as expected"},
	CodeAccountNotInitialized:        {"AccountNotInitialized", "The program expected this account to be already initialized"},
}

func (c ErrorCode) Name() string {
	if info, ok := errorTable[c]; ok {
		return info.name
	}
	return fmt.Sprintf("error%d", uint32(c))
}

func (c ErrorCode) Message() string {
	if info, ok := errorTable[c]; ok {
		return info.msg
	}
	return "unknown program error"
}

func (c ErrorCode) Known() bool {
	_, ok := errorTable[c]
	return ok
}

func (c ErrorCode) String() string {
	return fmt.Sprintf("%s (%d): %s", c.Name(), uint32(c), c.Message())
}
