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

package builder

import (
	"context"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/entity"
	"github.com/blinklabs-io/supplychain/errs"
	"github.com/blinklabs-io/supplychain/lamports"
	"github.com/blinklabs-io/supplychain/program"
	"github.com/blinklabs-io/supplychain/repository"
)

type CreateUserRequest struct {
	Name string
	// Role is one of WAREHOUSE, FACTORY, SELLER or INSPECTOR
	Role string
}

// CreateUser registers wallet under a role
func (b *Builder) CreateUser(
	ctx context.Context,
	wallet address.Address,
	req CreateUserRequest,
) (*program.Operation, error) {
	const op = "builder.CreateUser"
	if err := checkText(op, "name", req.Name, program.MaxNameLength); err != nil {
		return nil, err
	}
	role, err := entity.ParseRole(req.Role)
	if err != nil {
		return nil, errs.Validation(op, "%s", err)
	}
	userAddr, err := b.deriver.User(wallet)
	if err != nil {
		return nil, err
	}
	exists, err := b.repo.Exists(ctx, userAddr)
	if err != nil {
		return nil, annotate(op, err)
	}
	if exists {
		return nil, errs.Validation(op, "wallet %s is already registered", wallet)
	}
	return b.operation(op, program.CreateUserArgs{
		Name: req.Name,
		Role: role.String(),
	}, map[string]address.Address{
		"user":  userAddr,
		"owner": wallet,
	})
}

// Site is the descriptive part shared by factory, seller and warehouse
// registrations
type Site struct {
	Name        string
	Description string
	ContactInfo string
	Latitude    float64
	Longitude   float64
}

func (s Site) check(op string) error {
	if err := checkText(op, "name", s.Name, program.MaxNameLength); err != nil {
		return err
	}
	if err := checkOptionalText(op, "description", s.Description, program.MaxDescriptionLength); err != nil {
		return err
	}
	if err := checkOptionalText(op, "contact info", s.ContactInfo, program.MaxShortTextLength); err != nil {
		return err
	}
	return checkCoordinates(op, s.Latitude, s.Longitude)
}

// CreateFactory registers the next factory of a FACTORY user
func (b *Builder) CreateFactory(
	ctx context.Context,
	wallet address.Address,
	req Site,
) (*program.Operation, error) {
	const op = "builder.CreateFactory"
	if err := req.check(op); err != nil {
		return nil, err
	}
	_, r, err := b.roleUser(ctx, op, wallet, entity.RoleFactory)
	if err != nil {
		return nil, err
	}
	return b.operation(op, program.CreateFactoryArgs{
		Name:        req.Name,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		ContactInfo: req.ContactInfo,
	}, map[string]address.Address{
		"owner":   wallet,
		"factory": r.Child,
		"user":    r.Parent,
	})
}

// CreateSeller registers the next seller of a SELLER user
func (b *Builder) CreateSeller(
	ctx context.Context,
	wallet address.Address,
	req Site,
) (*program.Operation, error) {
	const op = "builder.CreateSeller"
	if err := req.check(op); err != nil {
		return nil, err
	}
	_, r, err := b.roleUser(ctx, op, wallet, entity.RoleSeller)
	if err != nil {
		return nil, err
	}
	return b.operation(op, program.CreateSellerArgs{
		Name:        req.Name,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		ContactInfo: req.ContactInfo,
	}, map[string]address.Address{
		"owner":  wallet,
		"seller": r.Child,
		"user":   r.Parent,
	})
}

type CreateProductRequest struct {
	Factory     address.Address
	Name        string
	Description string
	BatchNumber string
	// Price and Mrp are SOL amounts such as "0.25"
	Price string
	Mrp   string
	Stock uint64
}

// CreateProduct adds the next product to a factory owned by wallet
func (b *Builder) CreateProduct(
	ctx context.Context,
	wallet address.Address,
	req CreateProductRequest,
) (*program.Operation, error) {
	const op = "builder.CreateProduct"
	if err := checkText(op, "name", req.Name, program.MaxNameLength); err != nil {
		return nil, err
	}
	if err := checkOptionalText(op, "description", req.Description, program.MaxDescriptionLength); err != nil {
		return nil, err
	}
	if err := checkOptionalText(op, "batch number", req.BatchNumber, program.MaxShortTextLength); err != nil {
		return nil, err
	}
	price, err := amount(op, "price", req.Price, true)
	if err != nil {
		return nil, err
	}
	mrp, err := amount(op, "mrp", req.Mrp, false)
	if err != nil {
		return nil, err
	}
	if req.Stock == 0 {
		return nil, errs.Validation(op, "stock must be greater than zero")
	}
	r, err := b.tracker.Read(ctx, req.Factory, entity.FieldProductCount)
	if err != nil {
		return nil, annotate(op, err)
	}
	if err := owned(op, r.Record.(*entity.Factory), req.Factory, wallet); err != nil {
		return nil, err
	}
	return b.operation(op, program.CreateProductArgs{
		ProductName:        req.Name,
		ProductDescription: req.Description,
		BatchNumber:        req.BatchNumber,
		ProductPrice:       price,
		ProductStock:       req.Stock,
		Mrp:                mrp,
	}, map[string]address.Address{
		"owner":   wallet,
		"product": r.Child,
		"factory": req.Factory,
	})
}

type InspectProductRequest struct {
	Product   address.Address
	Name      string
	Outcome   string
	Notes     string
	Latitude  float64
	Longitude float64
	// Fee is the SOL amount charged per product
	Fee string
}

// InspectProduct records the single inspection a product may receive
func (b *Builder) InspectProduct(
	ctx context.Context,
	wallet address.Address,
	req InspectProductRequest,
) (*program.Operation, error) {
	const op = "builder.InspectProduct"
	if err := checkText(op, "name", req.Name, program.MaxNameLength); err != nil {
		return nil, err
	}
	if err := checkText(op, "outcome", req.Outcome, program.MaxShortTextLength); err != nil {
		return nil, err
	}
	if err := checkOptionalText(op, "notes", req.Notes, program.MaxNotesLength); err != nil {
		return nil, err
	}
	if err := checkCoordinates(op, req.Latitude, req.Longitude); err != nil {
		return nil, err
	}
	fee, err := amount(op, "fee", req.Fee, false)
	if err != nil {
		return nil, err
	}
	product, err := repository.Get[entity.Product](ctx, b.repo, req.Product)
	if err != nil {
		return nil, annotate(op, err)
	}
	if product.QualityChecked {
		return nil, errs.Validation(op, "product %d was already inspected", product.ProductID)
	}
	if _, err := b.repo.FactoryOfProduct(ctx, product); err != nil {
		return nil, annotate(op, err)
	}
	_, r, err := b.roleUser(ctx, op, wallet, entity.RoleInspector)
	if err != nil {
		return nil, err
	}
	return b.operation(op, program.InspectProductArgs{
		Name:                req.Name,
		Latitude:            req.Latitude,
		Longitude:           req.Longitude,
		ProductID:           product.ProductID,
		InspectionOutcome:   req.Outcome,
		Notes:               req.Notes,
		FeeChargePerProduct: fee,
	}, map[string]address.Address{
		"inspectionDetails": r.Child,
		"product":           req.Product,
		"factory":           product.FactoryAddress,
		"user":              r.Parent,
		"owner":             wallet,
	})
}

type PayInspectorRequest struct {
	Product address.Address
}

// PayInspector moves an inspection fee from wallet into the inspection
// record's escrow
func (b *Builder) PayInspector(
	ctx context.Context,
	wallet address.Address,
	req PayInspectorRequest,
) (*program.Operation, error) {
	const op = "builder.PayInspector"
	product, err := repository.Get[entity.Product](ctx, b.repo, req.Product)
	if err != nil {
		return nil, annotate(op, err)
	}
	inspection, err := b.repo.InspectionOfProduct(ctx, product)
	if err != nil {
		return nil, annotate(op, err)
	}
	if product.InspectionFeePaid {
		return nil, errs.Validation(op, "inspection of product %d is already paid", product.ProductID)
	}
	_, r, err := b.user(ctx, op, wallet, entity.FieldTransactionCount)
	if err != nil {
		return nil, err
	}
	if err := b.walletFunds(ctx, op, wallet, inspection.FeeChargePerProduct); err != nil {
		return nil, err
	}
	return b.operation(op, program.PayProductInspectorArgs{
		InspectorID: inspection.InspectorID,
		ProductID:   product.ProductID,
	}, map[string]address.Address{
		"transaction": r.Child,
		"user":        r.Parent,
		"inspector":   product.InspectorAddress,
		"product":     req.Product,
		"payer":       wallet,
	})
}

type WithdrawRequest struct {
	// Record is the factory, warehouse, logistics or inspection record
	// holding the balance
	Record address.Address
	// Amount is a SOL amount such as "1.5"
	Amount string
}

// WithdrawFactoryBalance pays part of a factory's escrow back to wallet
func (b *Builder) WithdrawFactoryBalance(
	ctx context.Context,
	wallet address.Address,
	req WithdrawRequest,
) (*program.Operation, error) {
	return withdraw[entity.Factory](ctx, b, wallet, req, program.WithdrawFactoryBalance, "factory")
}

func (b *Builder) WithdrawWarehouseBalance(
	ctx context.Context,
	wallet address.Address,
	req WithdrawRequest,
) (*program.Operation, error) {
	return withdraw[entity.Warehouse](ctx, b, wallet, req, program.WithdrawWarehouseBalance, "warehouse")
}

func (b *Builder) WithdrawLogisticsBalance(
	ctx context.Context,
	wallet address.Address,
	req WithdrawRequest,
) (*program.Operation, error) {
	return withdraw[entity.Logistics](ctx, b, wallet, req, program.WithdrawLogisticsBalance, "logistics")
}

func (b *Builder) WithdrawInspectorBalance(
	ctx context.Context,
	wallet address.Address,
	req WithdrawRequest,
) (*program.Operation, error) {
	return withdraw[entity.ProductInspector](ctx, b, wallet, req, program.WithdrawInspectorBalance, "inspector")
}

type escrow interface {
	entity.Owned
	entity.Funded
}

func withdraw[T any, P interface {
	*T
	escrow
}](
	ctx context.Context,
	b *Builder,
	wallet address.Address,
	req WithdrawRequest,
	ix program.Instruction,
	slot string,
) (*program.Operation, error) {
	op := "builder." + ix.String()
	amt, err := amount(op, "amount", req.Amount, true)
	if err != nil {
		return nil, err
	}
	var zero T
	found, err := b.repo.Get(ctx, P(&zero).Kind(), req.Record)
	if err != nil {
		return nil, annotate(op, err)
	}
	rec := found.(P)
	if err := owned(op, rec, req.Record, wallet); err != nil {
		return nil, err
	}
	if bal := rec.BalanceLamports(); amt > bal {
		return nil, errs.Validation(
			op,
			"withdrawal of %s SOL exceeds the %s SOL balance",
			req.Amount,
			lamports.Format(bal),
		)
	}
	_, r, err := b.user(ctx, op, wallet, entity.FieldTransactionCount)
	if err != nil {
		return nil, err
	}
	signer := "owner"
	if ix == program.WithdrawInspectorBalance {
		signer = "payer"
	}
	return b.operation(op, program.WithdrawArgs{
		Amount: amt,
		From:   ix,
	}, map[string]address.Address{
		signer:        wallet,
		"transaction": r.Child,
		slot:          req.Record,
		"user":        r.Parent,
	})
}

type CreateWarehouseRequest struct {
	// Product is the factory product the warehouse stocks
	Product address.Address
	Site
	Size uint64
}

// CreateWarehouse registers the next warehouse of a WAREHOUSE user
func (b *Builder) CreateWarehouse(
	ctx context.Context,
	wallet address.Address,
	req CreateWarehouseRequest,
) (*program.Operation, error) {
	const op = "builder.CreateWarehouse"
	if err := req.check(op); err != nil {
		return nil, err
	}
	if req.Size == 0 {
		return nil, errs.Validation(op, "warehouse size must be greater than zero")
	}
	product, err := repository.Get[entity.Product](ctx, b.repo, req.Product)
	if err != nil {
		return nil, annotate(op, err)
	}
	factory, err := b.repo.FactoryOfProduct(ctx, product)
	if err != nil {
		return nil, annotate(op, err)
	}
	_, r, err := b.roleUser(ctx, op, wallet, entity.RoleWarehouse)
	if err != nil {
		return nil, err
	}
	return b.operation(op, program.CreateWarehouseArgs{
		Name:           req.Name,
		Description:    req.Description,
		ContactDetails: req.ContactInfo,
		FactoryID:      factory.FactoryID,
		WarehouseSize:  req.Size,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
	}, map[string]address.Address{
		"warehouse": r.Child,
		"user":      r.Parent,
		"product":   req.Product,
		"factory":   product.FactoryAddress,
		"owner":     wallet,
	})
}

type BuyStockRequest struct {
	Warehouse address.Address
	Product   address.Address
	Quantity  uint64
}

// BuyStock buys inspected product stock from its factory into a warehouse.
// The price is paid from wallet into the factory's escrow.
func (b *Builder) BuyStock(
	ctx context.Context,
	wallet address.Address,
	req BuyStockRequest,
) (*program.Operation, error) {
	const op = "builder.BuyStock"
	warehouse, err := repository.Get[entity.Warehouse](ctx, b.repo, req.Warehouse)
	if err != nil {
		return nil, annotate(op, err)
	}
	if err := owned(op, warehouse, req.Warehouse, wallet); err != nil {
		return nil, err
	}
	product, err := repository.Get[entity.Product](ctx, b.repo, req.Product)
	if err != nil {
		return nil, annotate(op, err)
	}
	if !product.QualityChecked {
		return nil, errs.Validation(op, "product %d has not passed inspection", product.ProductID)
	}
	if err := checkQuantity(op, req.Quantity, product.ProductStock, "product"); err != nil {
		return nil, err
	}
	factory, err := b.repo.FactoryOfProduct(ctx, product)
	if err != nil {
		return nil, annotate(op, err)
	}
	cost, err := total(op, product.ProductPrice, req.Quantity)
	if err != nil {
		return nil, err
	}
	_, r, err := b.user(ctx, op, wallet, entity.FieldTransactionCount)
	if err != nil {
		return nil, err
	}
	if err := b.walletFunds(ctx, op, wallet, cost); err != nil {
		return nil, err
	}
	return b.operation(op, program.BuyProductAsWarehouseArgs{
		ProductID:       product.ProductID,
		FactoryID:       factory.FactoryID,
		StockToPurchase: req.Quantity,
	}, map[string]address.Address{
		"transaction":    r.Child,
		"user":           r.Parent,
		"warehouse":      req.Warehouse,
		"product":        req.Product,
		"factory":        product.FactoryAddress,
		"warehouseOwner": wallet,
	})
}

type CreateLogisticsRequest struct {
	Warehouse          address.Address
	Name               string
	TransportationMode string
	ContactInfo        string
	Latitude           float64
	Longitude          float64
	// Stock is the number of warehouse units the shipment can carry
	Stock uint64
}

// CreateLogistics registers a shipment for a warehouse owned by wallet
func (b *Builder) CreateLogistics(
	ctx context.Context,
	wallet address.Address,
	req CreateLogisticsRequest,
) (*program.Operation, error) {
	const op = "builder.CreateLogistics"
	if err := checkText(op, "name", req.Name, program.MaxNameLength); err != nil {
		return nil, err
	}
	if err := checkText(op, "transportation mode", req.TransportationMode, program.MaxShortTextLength); err != nil {
		return nil, err
	}
	if err := checkOptionalText(op, "contact info", req.ContactInfo, program.MaxShortTextLength); err != nil {
		return nil, err
	}
	if err := checkCoordinates(op, req.Latitude, req.Longitude); err != nil {
		return nil, err
	}
	warehouse, err := repository.Get[entity.Warehouse](ctx, b.repo, req.Warehouse)
	if err != nil {
		return nil, annotate(op, err)
	}
	if err := owned(op, warehouse, req.Warehouse, wallet); err != nil {
		return nil, err
	}
	product, err := repository.Get[entity.Product](ctx, b.repo, warehouse.ProductAddress)
	if err != nil {
		return nil, annotate(op, err)
	}
	if err := checkQuantity(op, req.Stock, warehouse.ProductCount, "warehouse"); err != nil {
		return nil, err
	}
	_, r, err := b.roleUserCounter(ctx, op, wallet, entity.RoleWarehouse, entity.FieldLogisticsCount)
	if err != nil {
		return nil, err
	}
	return b.operation(op, program.CreateLogisticsArgs{
		Name:               req.Name,
		TransportationMode: req.TransportationMode,
		ContactInfo:        req.ContactInfo,
		ProductID:          product.ProductID,
		ProductStock:       req.Stock,
		WarehouseID:        warehouse.WarehouseID,
		Latitude:           req.Latitude,
		Longitude:          req.Longitude,
	}, map[string]address.Address{
		"owner":     wallet,
		"logistics": r.Child,
		"user":      r.Parent,
		"warehouse": req.Warehouse,
		"product":   warehouse.ProductAddress,
	})
}

type ShipOrderRequest struct {
	Logistics address.Address
	Order     address.Address
	// ShippingCost is a SOL amount paid from wallet into the shipment's
	// escrow
	ShippingCost string
}

// ShipOrder assigns an available shipment to a pending order
func (b *Builder) ShipOrder(
	ctx context.Context,
	wallet address.Address,
	req ShipOrderRequest,
) (*program.Operation, error) {
	const op = "builder.ShipOrder"
	cost, err := amount(op, "shipping cost", req.ShippingCost, true)
	if err != nil {
		return nil, err
	}
	order, err := repository.Get[entity.Order](ctx, b.repo, req.Order)
	if err != nil {
		return nil, annotate(op, err)
	}
	if order.Status != entity.OrderStatusPending {
		return nil, errs.Validation(op, "order %d is %s", order.OrderID, order.Status)
	}
	warehouse, err := repository.Get[entity.Warehouse](ctx, b.repo, order.WarehouseAddress)
	if err != nil {
		return nil, annotate(op, err)
	}
	if err := owned(op, warehouse, order.WarehouseAddress, wallet); err != nil {
		return nil, err
	}
	logistics, err := repository.Get[entity.Logistics](ctx, b.repo, req.Logistics)
	if err != nil {
		return nil, annotate(op, err)
	}
	if err := owned(op, logistics, req.Logistics, wallet); err != nil {
		return nil, err
	}
	if logistics.Balance != 0 {
		return nil, errs.Validation(op, "logistics %d is already carrying a shipment", logistics.LogisticID)
	}
	product, err := repository.Get[entity.Product](ctx, b.repo, order.ProductAddress)
	if err != nil {
		return nil, annotate(op, err)
	}
	_, r, err := b.user(ctx, op, wallet, entity.FieldTransactionCount)
	if err != nil {
		return nil, err
	}
	if err := b.walletFunds(ctx, op, wallet, cost); err != nil {
		return nil, err
	}
	return b.operation(op, program.SendLogisticsToSellerArgs{
		LogisticsID:  logistics.LogisticID,
		ProductID:    product.ProductID,
		WarehouseID:  warehouse.WarehouseID,
		ShippingCost: cost,
	}, map[string]address.Address{
		"signer":      wallet,
		"logistics":   req.Logistics,
		"transaction": r.Child,
		"warehouse":   order.WarehouseAddress,
		"product":     order.ProductAddress,
		"user":        r.Parent,
		"order":       req.Order,
	})
}

type ReceiveProductRequest struct {
	Order address.Address
}

// ReceiveProduct confirms delivery of a shipped order into the seller's
// stock
func (b *Builder) ReceiveProduct(
	ctx context.Context,
	wallet address.Address,
	req ReceiveProductRequest,
) (*program.Operation, error) {
	const op = "builder.ReceiveProduct"
	order, err := repository.Get[entity.Order](ctx, b.repo, req.Order)
	if err != nil {
		return nil, annotate(op, err)
	}
	if order.Status != entity.OrderStatusShipped {
		return nil, errs.Validation(op, "order %d is %s", order.OrderID, order.Status)
	}
	if _, err := repository.Get[entity.Logistics](ctx, b.repo, order.LogisticAddress); err != nil {
		return nil, annotate(op, err)
	}
	r, err := b.tracker.Read(ctx, order.SellerAddress, entity.FieldProductsCount)
	if err != nil {
		return nil, annotate(op, err)
	}
	if err := owned(op, r.Record.(*entity.Seller), order.SellerAddress, wallet); err != nil {
		return nil, err
	}
	userAddr, err := b.deriver.User(wallet)
	if err != nil {
		return nil, err
	}
	if _, err := repository.Get[entity.User](ctx, b.repo, userAddr); err != nil {
		return nil, annotate(op, err)
	}
	return b.operation(op, program.ReceiveProductAsSellerArgs{}, map[string]address.Address{
		"signer":             wallet,
		"sellerProductStock": r.Child,
		"user":               userAddr,
		"seller":             order.SellerAddress,
		"order":              req.Order,
		"logistics":          order.LogisticAddress,
	})
}

type CreateOrderRequest struct {
	Seller    address.Address
	Warehouse address.Address
	Quantity  uint64
}

// CreateOrder orders warehouse stock for a seller owned by wallet. The
// total is paid from wallet into the warehouse's escrow.
func (b *Builder) CreateOrder(
	ctx context.Context,
	wallet address.Address,
	req CreateOrderRequest,
) (*program.Operation, error) {
	const op = "builder.CreateOrder"
	r, err := b.tracker.Read(ctx, req.Seller, entity.FieldOrderCount)
	if err != nil {
		return nil, annotate(op, err)
	}
	if err := owned(op, r.Record.(*entity.Seller), req.Seller, wallet); err != nil {
		return nil, err
	}
	warehouse, err := repository.Get[entity.Warehouse](ctx, b.repo, req.Warehouse)
	if err != nil {
		return nil, annotate(op, err)
	}
	product, err := repository.Get[entity.Product](ctx, b.repo, warehouse.ProductAddress)
	if err != nil {
		return nil, annotate(op, err)
	}
	if err := checkQuantity(op, req.Quantity, warehouse.ProductCount, "warehouse"); err != nil {
		return nil, err
	}
	cost, err := total(op, product.ProductPrice, req.Quantity)
	if err != nil {
		return nil, err
	}
	_, tx, err := b.user(ctx, op, wallet, entity.FieldTransactionCount)
	if err != nil {
		return nil, err
	}
	if err := b.walletFunds(ctx, op, wallet, cost); err != nil {
		return nil, err
	}
	return b.operation(op, program.CreateOrderAsSellerArgs{
		WarehouseID:  warehouse.WarehouseID,
		ProductID:    product.ProductID,
		ProductStock: req.Quantity,
	}, map[string]address.Address{
		"sellerAccount": wallet,
		"order":         r.Child,
		"transaction":   tx.Child,
		"warehouse":     req.Warehouse,
		"product":       warehouse.ProductAddress,
		"user":          tx.Parent,
		"seller":        req.Seller,
	})
}
