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

// Package program describes the supply-chain ledger program's instruction
// set: discriminators, ordered account layouts and argument payloads.
package program

import (
	"crypto/sha256"
	"fmt"
)

// DefaultProgramID is the deployed supply-chain program
const DefaultProgramID = "3H967UCXdgSYn8tTK7bYXxGHSsiDNF8NLKXQ4tPSb1JL"

const DiscriminatorSize = 8

type Discriminator [DiscriminatorSize]byte

// Instruction identifies one program entrypoint
type Instruction uint8

const (
	InstructionUnknown Instruction = iota
	CreateUser
	CreateFactory
	CreateProduct
	InspectProduct
	PayProductInspector
	WithdrawFactoryBalance
	WithdrawWarehouseBalance
	WithdrawLogisticsBalance
	WithdrawInspectorBalance
	CreateWarehouse
	BuyProductAsWarehouse
	CreateLogistics
	SendLogisticsToSeller
	CreateSeller
	ReceiveProductAsSeller
	CreateOrderAsSeller
)

// AccountSpec is one slot of an instruction's ordered account list
type AccountSpec struct {
	Name     string
	Writable bool
	Signer   bool
}

// Slot names shared by several instructions
const (
	AccountSystemProgram = "systemProgram"
	AccountUser          = "user"
	AccountTransaction   = "transaction"
)

type instructionInfo struct {
	// method name as exposed by the program interface
	name string
	// entrypoint name the discriminator is computed from
	entrypoint string
	accounts   []AccountSpec
	disc       Discriminator
}

func w(name string) AccountSpec  { return AccountSpec{Name: name, Writable: true} }
func ws(name string) AccountSpec { return AccountSpec{Name: name, Writable: true, Signer: true} }

var sysProgram = AccountSpec{Name: AccountSystemProgram}

// Entrypoint names below match the deployed program, including its spelling
var instructions = map[Instruction]*instructionInfo{
	CreateUser: {
		name:       "createUser",
		entrypoint: "create_user",
		accounts:   []AccountSpec{w("user"), ws("owner"), sysProgram},
	},
	CreateFactory: {
		name:       "createFactory",
		entrypoint: "create_factory",
		accounts:   []AccountSpec{ws("owner"), w("factory"), w("user"), sysProgram},
	},
	CreateProduct: {
		name:       "createProduct",
		entrypoint: "create_product",
		accounts:   []AccountSpec{ws("owner"), w("product"), w("factory"), sysProgram},
	},
	InspectProduct: {
		name:       "inspectProductInstruction",
		entrypoint: "inspect_product_instruction",
		accounts: []AccountSpec{
			w("inspectionDetails"), w("product"), w("factory"), w("user"),
			ws("owner"), sysProgram,
		},
	},
	PayProductInspector: {
		name:       "payProductInspectorInstruction",
		entrypoint: "pay_product_inspector_instruction",
		accounts: []AccountSpec{
			w("transaction"), w("user"), w("inspector"), w("product"),
			ws("payer"), sysProgram,
		},
	},
	WithdrawFactoryBalance: {
		name:       "withdrawBalanceAsFactory",
		entrypoint: "withdraw_balance_as_factory",
		accounts: []AccountSpec{
			ws("owner"), w("transaction"), w("factory"), w("user"), sysProgram,
		},
	},
	WithdrawWarehouseBalance: {
		name:       "withdrawBalanceAsWarehouseInstruction",
		entrypoint: "withdraw_balance_as_warehouse_instruction",
		accounts: []AccountSpec{
			ws("owner"), w("transaction"), w("warehouse"), w("user"), sysProgram,
		},
	},
	WithdrawLogisticsBalance: {
		name:       "withdrawBalanceAsLogisticsInstruction",
		entrypoint: "withdraw_balance_as_logistics_instruction",
		accounts: []AccountSpec{
			ws("owner"), w("transaction"), w("user"), w("logistics"), sysProgram,
		},
	},
	WithdrawInspectorBalance: {
		name:       "withdrawInspectorBalance",
		entrypoint: "withdraw_inspector_balance",
		accounts: []AccountSpec{
			ws("payer"), w("transaction"), w("user"), w("inspector"), sysProgram,
		},
	},
	CreateWarehouse: {
		name:       "createWarehouseInstrution",
		entrypoint: "create_warehouse_instrution",
		accounts: []AccountSpec{
			w("warehouse"), w("user"), w("product"), w("factory"),
			ws("owner"), sysProgram,
		},
	},
	BuyProductAsWarehouse: {
		name:       "buyProductAsWarehouse",
		entrypoint: "buy_product_as_warehouse",
		accounts: []AccountSpec{
			w("transaction"), w("user"), w("warehouse"), w("product"),
			w("factory"), ws("warehouseOwner"), sysProgram,
		},
	},
	CreateLogistics: {
		name:       "createLogisticsInstruction",
		entrypoint: "create_logistics_instruction",
		accounts: []AccountSpec{
			ws("owner"), w("logistics"), w("user"), w("warehouse"),
			w("product"), sysProgram,
		},
	},
	SendLogisticsToSeller: {
		name:       "sendLogisticsToSellerInstruction",
		entrypoint: "send_logistics_to_seller_instruction",
		accounts: []AccountSpec{
			ws("signer"), w("logistics"), w("transaction"), w("warehouse"),
			w("product"), w("user"), w("order"), sysProgram,
		},
	},
	CreateSeller: {
		name:       "createSellerInstruction",
		entrypoint: "create_seller_instruction",
		accounts:   []AccountSpec{ws("owner"), w("seller"), w("user"), sysProgram},
	},
	ReceiveProductAsSeller: {
		name:       "receiveProductInstructionAsSeller",
		entrypoint: "receive_product_instruction_as_seller",
		accounts: []AccountSpec{
			ws("signer"), w("sellerProductStock"), w("user"), w("seller"),
			w("order"), w("logistics"), sysProgram,
		},
	},
	CreateOrderAsSeller: {
		name:       "createOrderInstructionAsSeller",
		entrypoint: "create_order_instruction_as_seller",
		accounts: []AccountSpec{
			ws("sellerAccount"), w("order"), w("transaction"), w("warehouse"),
			w("product"), w("user"), w("seller"), sysProgram,
		},
	},
}

var instructionByDiscriminator = map[Discriminator]Instruction{}

func init() {
	for ix, info := range instructions {
		info.disc = InstructionDiscriminator(info.entrypoint)
		instructionByDiscriminator[info.disc] = ix
	}
}

// InstructionDiscriminator computes the 8-byte entrypoint selector
func InstructionDiscriminator(entrypoint string) Discriminator {
	var ret Discriminator
	sum := sha256.Sum256([]byte("global:" + entrypoint))
	copy(ret[:], sum[:DiscriminatorSize])
	return ret
}

// Instructions returns every instruction in declaration order
func Instructions() []Instruction {
	ret := make([]Instruction, 0, len(instructions))
	for ix := CreateUser; ix <= CreateOrderAsSeller; ix++ {
		ret = append(ret, ix)
	}
	return ret
}

// ParseInstruction looks an instruction up by its method name
func ParseInstruction(name string) (Instruction, error) {
	for ix, info := range instructions {
		if info.name == name {
			return ix, nil
		}
	}
	return InstructionUnknown, fmt.Errorf("unknown instruction %q", name)
}

func (i Instruction) String() string {
	if info, ok := instructions[i]; ok {
		return info.name
	}
	return fmt.Sprintf("Instruction(%d)", uint8(i))
}

func (i Instruction) Valid() bool {
	_, ok := instructions[i]
	return ok
}

func (i Instruction) Discriminator() Discriminator {
	if info, ok := instructions[i]; ok {
		return info.disc
	}
	return Discriminator{}
}

// Accounts returns a copy of the instruction's ordered account layout
func (i Instruction) Accounts() []AccountSpec {
	info, ok := instructions[i]
	if !ok {
		return nil
	}
	ret := make([]AccountSpec, len(info.accounts))
	copy(ret, info.accounts)
	return ret
}

// AccountIndex returns the position of a named slot, or -1
func (i Instruction) AccountIndex(name string) int {
	info, ok := instructions[i]
	if !ok {
		return -1
	}
	for idx, spec := range info.accounts {
		if spec.Name == name {
			return idx
		}
	}
	return -1
}

// InstructionOf looks up the instruction selected by the leading bytes of
// instruction data
func InstructionOf(data []byte) (Instruction, bool) {
	if len(data) < DiscriminatorSize {
		return InstructionUnknown, false
	}
	var d Discriminator
	copy(d[:], data[:DiscriminatorSize])
	ix, ok := instructionByDiscriminator[d]
	return ix, ok
}
