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

package entity

import (
	"github.com/blinklabs-io/supplychain/address"
)

// Field order in these structs is the on-ledger layout. Do not reorder.

// Shipment and order status values written by the ledger program
const (
	LogisticsStatusCreated   = "CREATED"
	LogisticsStatusInTransit = "IN_TRANSIT"
	LogisticsStatusDelivered = "DELIVERED"

	OrderStatusPending   = "PENDING"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
)

type User struct {
	Name             string
	Role             string
	CreatedAt        uint64
	Owner            address.Address
	FactoryCount     uint64
	TransactionCount uint64
	WarehouseCount   uint64
	LogisticsCount   uint64
	SellerCount      uint64
	InspectorCount   uint64
	IsInitialized    bool
}

func (User) Kind() Kind { return KindUser }

func (u *User) OwnerAddress() address.Address { return u.Owner }

// RoleValue parses the stored role string
func (u *User) RoleValue() (Role, error) {
	return ParseRole(u.Role)
}

type Factory struct {
	FactoryID    uint64
	Name         string
	Description  string
	Owner        address.Address
	CreatedAt    uint64
	Latitude     float64
	Longitude    float64
	ContactInfo  string
	ProductCount uint64
	Balance      uint64
}

func (Factory) Kind() Kind { return KindFactory }

func (f *Factory) OwnerAddress() address.Address { return f.Owner }

func (f *Factory) BalanceLamports() uint64 { return f.Balance }

type Product struct {
	ProductID          uint64
	ProductName        string
	ProductDescription string
	BatchNumber        string
	FactoryID          uint64
	FactoryAddress     address.Address
	ProductPrice       uint64
	ProductStock       uint64
	QualityChecked     bool
	InspectionID       uint64
	InspectorAddress   address.Address
	InspectionFeePaid  bool
	Mrp                uint64
	CreatedAt          uint64
}

func (Product) Kind() Kind { return KindProduct }

// ProductInspector is an inspection record created by an inspector for
// one product
type ProductInspector struct {
	InspectorID         uint64
	Name                string
	Latitude            float64
	Longitude           float64
	ProductID           uint64
	InspectionOutcome   string
	Notes               string
	InspectionDate      uint64
	FeeChargePerProduct uint64
	Balance             uint64
	Owner               address.Address
}

func (ProductInspector) Kind() Kind { return KindProductInspector }

func (p *ProductInspector) OwnerAddress() address.Address { return p.Owner }

func (p *ProductInspector) BalanceLamports() uint64 { return p.Balance }

type Warehouse struct {
	WarehouseID    uint64
	FactoryID      uint64
	CreatedAt      uint64
	Name           string
	Description    string
	ProductID      uint64
	ProductAddress address.Address
	ProductCount   uint64
	Latitude       float64
	Longitude      float64
	Balance        uint64
	ContactDetails string
	Owner          address.Address
	WarehouseSize  uint64
	LogisticCount  uint64
}

func (Warehouse) Kind() Kind { return KindWarehouse }

func (w *Warehouse) OwnerAddress() address.Address { return w.Owner }

func (w *Warehouse) BalanceLamports() uint64 { return w.Balance }

// Logistics is a carrier shipment record. A zero balance means the carrier
// holds no unpaid shipment and is available.
type Logistics struct {
	LogisticID         uint64
	Name               string
	TransportationMode string
	ContactInfo        string
	Status             string
	ShipmentCost       uint64
	ProductID          uint64
	// ProductRef is stored by the program as an integer, not an address
	ProductRef        uint64
	ProductStock      uint64
	DeliveryConfirmed bool
	Balance           uint64
	WarehouseID       uint64
	ShipmentStartedAt uint64
	ShipmentEndedAt   uint64
	Delivered         bool
	Latitude          float64
	Longitude         float64
	Owner             address.Address
}

func (Logistics) Kind() Kind { return KindLogistics }

func (l *Logistics) OwnerAddress() address.Address { return l.Owner }

func (l *Logistics) BalanceLamports() uint64 { return l.Balance }

type Seller struct {
	SellerID      uint64
	Name          string
	Description   string
	ProductsCount uint64
	Latitude      float64
	Longitude     float64
	ContactInfo   string
	RegisteredAt  uint64
	OrderCount    uint64
	Owner         address.Address
}

func (Seller) Kind() Kind { return KindSeller }

func (s *Seller) OwnerAddress() address.Address { return s.Owner }

type SellerProductStock struct {
	SellerID       uint64
	SellerAddress  address.Address
	ProductID      uint64
	ProductAddress address.Address
	StockQuantity  uint64
	StockPrice     uint64
	CreatedAt      uint64
}

func (SellerProductStock) Kind() Kind { return KindSellerProductStock }

type Order struct {
	OrderID          uint64
	ProductID        uint64
	ProductAddress   address.Address
	ProductStock     uint64
	WarehouseID      uint64
	WarehouseAddress address.Address
	TotalPrice       uint64
	Timestamp        uint64
	SellerID         uint64
	SellerAddress    address.Address
	LogisticID       uint64
	LogisticAddress  address.Address
	Status           string
}

func (Order) Kind() Kind { return KindOrder }

// Transaction is a payment ledger entry written alongside every lamport
// movement
type Transaction struct {
	TransactionID uint64
	From          address.Address
	To            address.Address
	Amount        uint64
	Timestamp     uint64
	Status        bool
}

func (Transaction) Kind() Kind { return KindTransaction }
