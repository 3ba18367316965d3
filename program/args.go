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

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	"github.com/near/borsh-go"
)

var ErrUnknownInstruction = errors.New("unknown instruction")

// Args is the argument payload of one instruction. Field order is the wire
// order.
type Args interface {
	Instruction() Instruction
}

type CreateUserArgs struct {
	Name string
	Role string
}

func (CreateUserArgs) Instruction() Instruction { return CreateUser }

type CreateFactoryArgs struct {
	Name        string
	Description string
	Latitude    float64
	Longitude   float64
	ContactInfo string
}

func (CreateFactoryArgs) Instruction() Instruction { return CreateFactory }

type CreateProductArgs struct {
	ProductName        string
	ProductDescription string
	BatchNumber        string
	ProductPrice       uint64
	ProductStock       uint64
	Mrp                uint64
}

func (CreateProductArgs) Instruction() Instruction { return CreateProduct }

type InspectProductArgs struct {
	Name                string
	Latitude            float64
	Longitude           float64
	ProductID           uint64
	InspectionOutcome   string
	Notes               string
	FeeChargePerProduct uint64
}

func (InspectProductArgs) Instruction() Instruction { return InspectProduct }

type PayProductInspectorArgs struct {
	InspectorID uint64
	ProductID   uint64
}

func (PayProductInspectorArgs) Instruction() Instruction { return PayProductInspector }

// WithdrawArgs is shared by the four balance withdrawal entrypoints
type WithdrawArgs struct {
	Amount uint64
	// From selects the entrypoint and is not part of the payload
	From Instruction `borsh_skip:"true"`
}

func (a WithdrawArgs) Instruction() Instruction { return a.From }

type CreateWarehouseArgs struct {
	Name           string
	Description    string
	ContactDetails string
	FactoryID      uint64
	WarehouseSize  uint64
	Latitude       float64
	Longitude      float64
}

func (CreateWarehouseArgs) Instruction() Instruction { return CreateWarehouse }

type BuyProductAsWarehouseArgs struct {
	ProductID       uint64
	FactoryID       uint64
	StockToPurchase uint64
}

func (BuyProductAsWarehouseArgs) Instruction() Instruction { return BuyProductAsWarehouse }

type CreateLogisticsArgs struct {
	Name               string
	TransportationMode string
	ContactInfo        string
	ProductID          uint64
	ProductStock       uint64
	WarehouseID        uint64
	Latitude           float64
	Longitude          float64
}

func (CreateLogisticsArgs) Instruction() Instruction { return CreateLogistics }

type SendLogisticsToSellerArgs struct {
	LogisticsID  uint64
	ProductID    uint64
	WarehouseID  uint64
	ShippingCost uint64
}

func (SendLogisticsToSellerArgs) Instruction() Instruction { return SendLogisticsToSeller }

type CreateSellerArgs struct {
	Name        string
	Description string
	Latitude    float64
	Longitude   float64
	ContactInfo string
}

func (CreateSellerArgs) Instruction() Instruction { return CreateSeller }

type ReceiveProductAsSellerArgs struct{}

func (ReceiveProductAsSellerArgs) Instruction() Instruction { return ReceiveProductAsSeller }

type CreateOrderAsSellerArgs struct {
	WarehouseID  uint64
	ProductID    uint64
	ProductStock uint64
}

func (CreateOrderAsSellerArgs) Instruction() Instruction { return CreateOrderAsSeller }

func isWithdraw(ix Instruction) bool {
	switch ix {
	case WithdrawFactoryBalance,
		WithdrawWarehouseBalance,
		WithdrawLogisticsBalance,
		WithdrawInspectorBalance:
		return true
	}
	return false
}

func newArgs(ix Instruction) (Args, error) {
	switch ix {
	case CreateUser:
		return &CreateUserArgs{}, nil
	case CreateFactory:
		return &CreateFactoryArgs{}, nil
	case CreateProduct:
		return &CreateProductArgs{}, nil
	case InspectProduct:
		return &InspectProductArgs{}, nil
	case PayProductInspector:
		return &PayProductInspectorArgs{}, nil
	case WithdrawFactoryBalance,
		WithdrawWarehouseBalance,
		WithdrawLogisticsBalance,
		WithdrawInspectorBalance:
		return &WithdrawArgs{From: ix}, nil
	case CreateWarehouse:
		return &CreateWarehouseArgs{}, nil
	case BuyProductAsWarehouse:
		return &BuyProductAsWarehouseArgs{}, nil
	case CreateLogistics:
		return &CreateLogisticsArgs{}, nil
	case SendLogisticsToSeller:
		return &SendLogisticsToSellerArgs{}, nil
	case CreateSeller:
		return &CreateSellerArgs{}, nil
	case ReceiveProductAsSeller:
		return &ReceiveProductAsSellerArgs{}, nil
	case CreateOrderAsSeller:
		return &CreateOrderAsSellerArgs{}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownInstruction, uint8(ix))
}

// EncodeData builds instruction data: the discriminator followed by the
// argument payload
func EncodeData(args Args) ([]byte, error) {
	ix := args.Instruction()
	if !ix.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownInstruction, uint8(ix))
	}
	switch args.(type) {
	case WithdrawArgs, *WithdrawArgs:
		if !isWithdraw(ix) {
			return nil, fmt.Errorf("%s is not a withdrawal instruction", ix)
		}
	}
	body, err := borsh.Serialize(reflect.Indirect(reflect.ValueOf(args)).Interface())
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", ix, err)
	}
	disc := ix.Discriminator()
	return append(disc[:], body...), nil
}

// DecodeData parses instruction data back into its typed arguments. The
// returned value is a pointer to one of the *Args types.
func DecodeData(data []byte) (Args, error) {
	ix, ok := InstructionOf(data)
	if !ok {
		if len(data) < DiscriminatorSize {
			return nil, fmt.Errorf("%w: short data", ErrUnknownInstruction)
		}
		return nil, fmt.Errorf(
			"%w: discriminator %x",
			ErrUnknownInstruction,
			data[:DiscriminatorSize],
		)
	}
	args, err := newArgs(ix)
	if err != nil {
		return nil, err
	}
	body := data[DiscriminatorSize:]
	if err := borsh.Deserialize(args, body); err != nil {
		return nil, fmt.Errorf("decode %s args: %w", ix, err)
	}
	// reject trailing bytes, which would indicate a layout mismatch
	check, err := borsh.Serialize(reflect.Indirect(reflect.ValueOf(args)).Interface())
	if err != nil || !bytes.Equal(check, body) {
		return nil, fmt.Errorf("decode %s args: payload length mismatch", ix)
	}
	if wa, ok := args.(*WithdrawArgs); ok {
		wa.From = ix
	}
	return args, nil
}
