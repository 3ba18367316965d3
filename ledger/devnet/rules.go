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

package devnet

import (
	"github.com/blinklabs-io/supplychain/entity"
	"github.com/blinklabs-io/supplychain/program"
)

type handlerFunc func(x *execution, args program.Args) error

var handlers = map[program.Instruction]handlerFunc{
	program.CreateUser:               createUser,
	program.CreateFactory:            createFactory,
	program.CreateProduct:            createProduct,
	program.InspectProduct:           inspectProduct,
	program.PayProductInspector:      payProductInspector,
	program.WithdrawFactoryBalance:   withdraw,
	program.WithdrawWarehouseBalance: withdraw,
	program.WithdrawLogisticsBalance: withdraw,
	program.WithdrawInspectorBalance: withdraw,
	program.CreateWarehouse:          createWarehouse,
	program.BuyProductAsWarehouse:    buyProductAsWarehouse,
	program.CreateLogistics:          createLogistics,
	program.SendLogisticsToSeller:    sendLogisticsToSeller,
	program.CreateSeller:             createSeller,
	program.ReceiveProductAsSeller:   receiveProductAsSeller,
	program.CreateOrderAsSeller:      createOrderAsSeller,
}

func checkLens(x *execution, checks ...lenCheck) error {
	for _, c := range checks {
		if err := x.checkLen(c.value, c.limit, c.code); err != nil {
			return err
		}
	}
	return nil
}

type lenCheck struct {
	value string
	limit int
	code  program.ErrorCode
}

func nameCheck(s string) lenCheck {
	return lenCheck{s, program.MaxNameLength, program.CodeInvalidName}
}

func descriptionCheck(s string) lenCheck {
	return lenCheck{s, program.MaxDescriptionLength, program.CodeInvalidDescription}
}

func contactCheck(s string) lenCheck {
	return lenCheck{s, program.MaxShortTextLength, program.CodeInvalidContactInfo}
}

func createUser(x *execution, a program.Args) error {
	args := a.(*program.CreateUserArgs)
	if err := checkLens(x, nameCheck(args.Name)); err != nil {
		return err
	}
	role, err := entity.ParseRole(args.Role)
	if err != nil {
		return x.fail(program.CodeInvalidRole, "user")
	}
	return x.create("user", &entity.User{
		Name:          args.Name,
		Role:          role.String(),
		CreatedAt:     x.now,
		Owner:         x.signer,
		IsInitialized: true,
	}, x.signer, 0)
}

func createFactory(x *execution, a program.Args) error {
	args := a.(*program.CreateFactoryArgs)
	user, err := x.loadRole("user", entity.RoleFactory)
	if err != nil {
		return err
	}
	if err := checkLens(
		x,
		nameCheck(args.Name),
		descriptionCheck(args.Description),
		contactCheck(args.ContactInfo),
	); err != nil {
		return err
	}
	next, err := x.increment(user.FactoryCount, "user")
	if err != nil {
		return err
	}
	if err := x.create("factory", &entity.Factory{
		FactoryID:   next,
		Name:        args.Name,
		Description: args.Description,
		Owner:       x.signer,
		CreatedAt:   x.now,
		Latitude:    args.Latitude,
		Longitude:   args.Longitude,
		ContactInfo: args.ContactInfo,
	}, x.addr("user"), next); err != nil {
		return err
	}
	user.FactoryCount = next
	return x.store("user", user)
}

func createProduct(x *execution, a program.Args) error {
	args := a.(*program.CreateProductArgs)
	factory := &entity.Factory{}
	if err := x.load("factory", factory); err != nil {
		return err
	}
	if factory.Owner != x.signer {
		return x.fail(program.CodeUnauthorizedAccess, "factory")
	}
	if err := checkLens(
		x,
		nameCheck(args.ProductName),
		descriptionCheck(args.ProductDescription),
		lenCheck{args.BatchNumber, program.MaxShortTextLength, program.CodeInvalidDescription},
	); err != nil {
		return err
	}
	next, err := x.increment(factory.ProductCount, "factory")
	if err != nil {
		return err
	}
	if err := x.create("product", &entity.Product{
		ProductID:          next,
		ProductName:        args.ProductName,
		ProductDescription: args.ProductDescription,
		BatchNumber:        args.BatchNumber,
		FactoryID:          factory.FactoryID,
		FactoryAddress:     x.addr("factory"),
		ProductPrice:       args.ProductPrice,
		ProductStock:       args.ProductStock,
		Mrp:                args.Mrp,
		CreatedAt:          x.now,
	}, x.addr("factory"), next); err != nil {
		return err
	}
	factory.ProductCount = next
	return x.store("factory", factory)
}

func inspectProduct(x *execution, a program.Args) error {
	args := a.(*program.InspectProductArgs)
	user, err := x.loadRole("user", entity.RoleInspector)
	if err != nil {
		return err
	}
	product := &entity.Product{}
	if err := x.load("product", product); err != nil {
		return err
	}
	if err := x.load("factory", &entity.Factory{}); err != nil {
		return err
	}
	if product.FactoryAddress != x.addr("factory") {
		return x.fail(program.CodeInvalidFactory, "factory")
	}
	if product.ProductID != args.ProductID {
		return x.fail(program.CodeInvalidProductID, "product")
	}
	if product.QualityChecked {
		return x.fail(program.CodeQualityChecked, "product")
	}
	if err := checkLens(
		x,
		nameCheck(args.Name),
		lenCheck{args.InspectionOutcome, program.MaxShortTextLength, program.CodeInvalidInspectionOutcome},
		lenCheck{args.Notes, program.MaxNotesLength, program.CodeInvalidNotes},
	); err != nil {
		return err
	}
	next, err := x.increment(user.InspectorCount, "user")
	if err != nil {
		return err
	}
	if err := x.create("inspectionDetails", &entity.ProductInspector{
		InspectorID:         next,
		Name:                args.Name,
		Latitude:            args.Latitude,
		Longitude:           args.Longitude,
		ProductID:           args.ProductID,
		InspectionOutcome:   args.InspectionOutcome,
		Notes:               args.Notes,
		InspectionDate:      x.now,
		FeeChargePerProduct: args.FeeChargePerProduct,
		Owner:               x.signer,
	}, x.addr("user"), next); err != nil {
		return err
	}
	user.InspectorCount = next
	product.QualityChecked = true
	product.InspectionID = next
	product.InspectorAddress = x.addr("inspectionDetails")
	if err := x.store("product", product); err != nil {
		return err
	}
	return x.store("user", user)
}

func payProductInspector(x *execution, a program.Args) error {
	args := a.(*program.PayProductInspectorArgs)
	user, err := x.loadUser("user")
	if err != nil {
		return err
	}
	inspector := &entity.ProductInspector{}
	if err := x.load("inspector", inspector); err != nil {
		return err
	}
	product := &entity.Product{}
	if err := x.load("product", product); err != nil {
		return err
	}
	if product.InspectorAddress != x.addr("inspector") {
		return x.fail(program.CodeInvalidInspector, "inspector")
	}
	if inspector.InspectorID != args.InspectorID {
		return x.fail(program.CodeInvalidInspectorID, "inspector")
	}
	if product.ProductID != args.ProductID {
		return x.fail(program.CodeInvalidProductID, "product")
	}
	if !product.QualityChecked {
		return x.fail(program.CodeProductNotQualityChecked, "product")
	}
	if product.InspectionFeePaid {
		return x.fail(program.CodeUnauthorizedAccess, "product")
	}
	fee := inspector.FeeChargePerProduct
	if inspector.Balance, err = x.add(inspector.Balance, fee, "inspector"); err != nil {
		return err
	}
	if err := x.debit("inspector", fee); err != nil {
		return err
	}
	product.InspectionFeePaid = true
	if err := x.record(user, x.signer, x.addr("inspector"), fee); err != nil {
		return err
	}
	if err := x.store("inspector", inspector); err != nil {
		return err
	}
	if err := x.store("product", product); err != nil {
		return err
	}
	return x.store("user", user)
}

// withdraw serves all four balance withdrawals
func withdraw(x *execution, a program.Args) error {
	args := a.(*program.WithdrawArgs)
	user, err := x.loadUser("user")
	if err != nil {
		return err
	}
	var slot string
	var record interface {
		entity.Owned
		entity.Funded
	}
	switch args.From {
	case program.WithdrawFactoryBalance:
		slot, record = "factory", &entity.Factory{}
	case program.WithdrawWarehouseBalance:
		slot, record = "warehouse", &entity.Warehouse{}
	case program.WithdrawLogisticsBalance:
		slot, record = "logistics", &entity.Logistics{}
	case program.WithdrawInspectorBalance:
		slot, record = "inspector", &entity.ProductInspector{}
	default:
		return x.fail(program.CodeInstructionFallbackNotFound, "user")
	}
	if err := x.load(slot, record); err != nil {
		return err
	}
	if record.OwnerAddress() != x.signer {
		return x.fail(program.CodeUnauthorizedAccess, slot)
	}
	if args.Amount > record.BalanceLamports() {
		return x.fail(program.CodeInsufficientBalance, slot)
	}
	remaining := record.BalanceLamports() - args.Amount
	switch r := record.(type) {
	case *entity.Factory:
		r.Balance = remaining
	case *entity.Warehouse:
		r.Balance = remaining
	case *entity.Logistics:
		r.Balance = remaining
	case *entity.ProductInspector:
		r.Balance = remaining
	}
	if err := x.credit(slot, args.Amount); err != nil {
		return err
	}
	if err := x.record(user, x.addr(slot), x.signer, args.Amount); err != nil {
		return err
	}
	if err := x.store(slot, record); err != nil {
		return err
	}
	return x.store("user", user)
}

func createWarehouse(x *execution, a program.Args) error {
	args := a.(*program.CreateWarehouseArgs)
	user, err := x.loadRole("user", entity.RoleWarehouse)
	if err != nil {
		return err
	}
	factory := &entity.Factory{}
	if err := x.load("factory", factory); err != nil {
		return err
	}
	if factory.FactoryID != args.FactoryID {
		return x.fail(program.CodeInvalidFactory, "factory")
	}
	product := &entity.Product{}
	if err := x.load("product", product); err != nil {
		return err
	}
	if product.FactoryAddress != x.addr("factory") {
		return x.fail(program.CodeInvalidProductID, "product")
	}
	if err := checkLens(
		x,
		nameCheck(args.Name),
		descriptionCheck(args.Description),
		contactCheck(args.ContactDetails),
	); err != nil {
		return err
	}
	next, err := x.increment(user.WarehouseCount, "user")
	if err != nil {
		return err
	}
	if err := x.create("warehouse", &entity.Warehouse{
		WarehouseID:    next,
		FactoryID:      args.FactoryID,
		CreatedAt:      x.now,
		Name:           args.Name,
		Description:    args.Description,
		ProductID:      product.ProductID,
		ProductAddress: x.addr("product"),
		Latitude:       args.Latitude,
		Longitude:      args.Longitude,
		ContactDetails: args.ContactDetails,
		Owner:          x.signer,
		WarehouseSize:  args.WarehouseSize,
	}, x.addr("user"), next); err != nil {
		return err
	}
	user.WarehouseCount = next
	return x.store("user", user)
}

func buyProductAsWarehouse(x *execution, a program.Args) error {
	args := a.(*program.BuyProductAsWarehouseArgs)
	user, err := x.loadUser("user")
	if err != nil {
		return err
	}
	warehouse := &entity.Warehouse{}
	if err := x.load("warehouse", warehouse); err != nil {
		return err
	}
	if warehouse.Owner != x.signer {
		return x.fail(program.CodeUnauthorizedAccess, "warehouse")
	}
	product := &entity.Product{}
	if err := x.load("product", product); err != nil {
		return err
	}
	factory := &entity.Factory{}
	if err := x.load("factory", factory); err != nil {
		return err
	}
	if !product.QualityChecked {
		return x.fail(program.CodeProductNotQualityChecked, "product")
	}
	if product.ProductID != args.ProductID {
		return x.fail(program.CodeInvalidProductID, "product")
	}
	if product.FactoryAddress != x.addr("factory") ||
		factory.FactoryID != args.FactoryID {
		return x.fail(program.CodeInvalidFactory, "factory")
	}
	qty := args.StockToPurchase
	if qty == 0 || qty > product.ProductStock {
		return x.fail(program.CodeInsufficientStock, "product")
	}
	cost, err := x.mul(product.ProductPrice, qty, "product")
	if err != nil {
		return err
	}
	if factory.Balance, err = x.add(factory.Balance, cost, "factory"); err != nil {
		return err
	}
	if warehouse.ProductCount, err = x.add(warehouse.ProductCount, qty, "warehouse"); err != nil {
		return err
	}
	if err := x.debit("factory", cost); err != nil {
		return err
	}
	product.ProductStock -= qty
	warehouse.ProductID = product.ProductID
	warehouse.ProductAddress = x.addr("product")
	warehouse.FactoryID = factory.FactoryID
	if err := x.record(user, x.signer, x.addr("factory"), cost); err != nil {
		return err
	}
	for slot, record := range map[string]entity.Entity{
		"warehouse": warehouse,
		"product":   product,
		"factory":   factory,
		"user":      user,
	} {
		if err := x.store(slot, record); err != nil {
			return err
		}
	}
	return nil
}

func createLogistics(x *execution, a program.Args) error {
	args := a.(*program.CreateLogisticsArgs)
	user, err := x.loadRole("user", entity.RoleWarehouse)
	if err != nil {
		return err
	}
	warehouse := &entity.Warehouse{}
	if err := x.load("warehouse", warehouse); err != nil {
		return err
	}
	if warehouse.Owner != x.signer {
		return x.fail(program.CodeUnauthorizedAccess, "warehouse")
	}
	if warehouse.WarehouseID != args.WarehouseID {
		return x.fail(program.CodeInvalidWarehouse, "warehouse")
	}
	product := &entity.Product{}
	if err := x.load("product", product); err != nil {
		return err
	}
	if warehouse.ProductAddress != x.addr("product") ||
		product.ProductID != args.ProductID {
		return x.fail(program.CodeInvalidProductID, "product")
	}
	if args.ProductStock > warehouse.ProductCount {
		return x.fail(program.CodeInsufficientStock, "warehouse")
	}
	if err := checkLens(
		x,
		nameCheck(args.Name),
		contactCheck(args.ContactInfo),
		contactCheck(args.TransportationMode),
	); err != nil {
		return err
	}
	next, err := x.increment(user.LogisticsCount, "user")
	if err != nil {
		return err
	}
	if err := x.create("logistics", &entity.Logistics{
		LogisticID:         next,
		Name:               args.Name,
		TransportationMode: args.TransportationMode,
		ContactInfo:        args.ContactInfo,
		Status:             entity.LogisticsStatusCreated,
		ProductID:          args.ProductID,
		ProductRef:         product.ProductID,
		ProductStock:       args.ProductStock,
		WarehouseID:        args.WarehouseID,
		Latitude:           args.Latitude,
		Longitude:          args.Longitude,
		Owner:              x.signer,
	}, x.addr("user"), next); err != nil {
		return err
	}
	user.LogisticsCount = next
	if warehouse.LogisticCount, err = x.increment(warehouse.LogisticCount, "warehouse"); err != nil {
		return err
	}
	if err := x.store("warehouse", warehouse); err != nil {
		return err
	}
	return x.store("user", user)
}

func createSeller(x *execution, a program.Args) error {
	args := a.(*program.CreateSellerArgs)
	user, err := x.loadRole("user", entity.RoleSeller)
	if err != nil {
		return err
	}
	if err := checkLens(
		x,
		nameCheck(args.Name),
		descriptionCheck(args.Description),
		contactCheck(args.ContactInfo),
	); err != nil {
		return err
	}
	next, err := x.increment(user.SellerCount, "user")
	if err != nil {
		return err
	}
	if err := x.create("seller", &entity.Seller{
		SellerID:     next,
		Name:         args.Name,
		Description:  args.Description,
		Latitude:     args.Latitude,
		Longitude:    args.Longitude,
		ContactInfo:  args.ContactInfo,
		RegisteredAt: x.now,
		Owner:        x.signer,
	}, x.addr("user"), next); err != nil {
		return err
	}
	user.SellerCount = next
	return x.store("user", user)
}

func createOrderAsSeller(x *execution, a program.Args) error {
	args := a.(*program.CreateOrderAsSellerArgs)
	user, err := x.loadUser("user")
	if err != nil {
		return err
	}
	seller := &entity.Seller{}
	if err := x.load("seller", seller); err != nil {
		return err
	}
	if seller.Owner != x.signer {
		return x.fail(program.CodeUnauthorizedAccess, "seller")
	}
	warehouse := &entity.Warehouse{}
	if err := x.load("warehouse", warehouse); err != nil {
		return err
	}
	if warehouse.WarehouseID != args.WarehouseID {
		return x.fail(program.CodeInvalidWarehouse, "warehouse")
	}
	product := &entity.Product{}
	if err := x.load("product", product); err != nil {
		return err
	}
	if warehouse.ProductAddress != x.addr("product") ||
		product.ProductID != args.ProductID {
		return x.fail(program.CodeInvalidProductID, "product")
	}
	qty := args.ProductStock
	if qty == 0 || qty > warehouse.ProductCount {
		return x.fail(program.CodeInsufficientStock, "warehouse")
	}
	total, err := x.mul(product.ProductPrice, qty, "product")
	if err != nil {
		return err
	}
	if warehouse.Balance, err = x.add(warehouse.Balance, total, "warehouse"); err != nil {
		return err
	}
	next, err := x.increment(seller.OrderCount, "seller")
	if err != nil {
		return err
	}
	if err := x.debit("warehouse", total); err != nil {
		return err
	}
	warehouse.ProductCount -= qty
	if err := x.create("order", &entity.Order{
		OrderID:          next,
		ProductID:        product.ProductID,
		ProductAddress:   x.addr("product"),
		ProductStock:     qty,
		WarehouseID:      warehouse.WarehouseID,
		WarehouseAddress: x.addr("warehouse"),
		TotalPrice:       total,
		Timestamp:        x.now,
		SellerID:         seller.SellerID,
		SellerAddress:    x.addr("seller"),
		Status:           entity.OrderStatusPending,
	}, x.addr("seller"), next); err != nil {
		return err
	}
	seller.OrderCount = next
	if err := x.record(user, x.signer, x.addr("warehouse"), total); err != nil {
		return err
	}
	for slot, record := range map[string]entity.Entity{
		"warehouse": warehouse,
		"seller":    seller,
		"user":      user,
	} {
		if err := x.store(slot, record); err != nil {
			return err
		}
	}
	return nil
}

func sendLogisticsToSeller(x *execution, a program.Args) error {
	args := a.(*program.SendLogisticsToSellerArgs)
	user, err := x.loadUser("user")
	if err != nil {
		return err
	}
	warehouse := &entity.Warehouse{}
	if err := x.load("warehouse", warehouse); err != nil {
		return err
	}
	if warehouse.Owner != x.signer {
		return x.fail(program.CodeUnauthorizedAccess, "warehouse")
	}
	if warehouse.WarehouseID != args.WarehouseID {
		return x.fail(program.CodeInvalidWarehouse, "warehouse")
	}
	logistics := &entity.Logistics{}
	if err := x.load("logistics", logistics); err != nil {
		return err
	}
	if logistics.Owner != x.signer {
		return x.fail(program.CodeUnauthorizedAccess, "logistics")
	}
	if logistics.LogisticID != args.LogisticsID || logistics.Balance != 0 {
		return x.fail(program.CodeInvalidLogistics, "logistics")
	}
	product := &entity.Product{}
	if err := x.load("product", product); err != nil {
		return err
	}
	if product.ProductID != args.ProductID ||
		warehouse.ProductAddress != x.addr("product") {
		return x.fail(program.CodeInvalidProductID, "product")
	}
	order := &entity.Order{}
	if err := x.load("order", order); err != nil {
		return err
	}
	if order.WarehouseAddress != x.addr("warehouse") {
		return x.fail(program.CodeInvalidWarehouse, "order")
	}
	if order.ProductAddress != x.addr("product") {
		return x.fail(program.CodeInvalidProductID, "order")
	}
	if order.Status != entity.OrderStatusPending {
		return x.fail(program.CodeInvalidLogistics, "order")
	}
	cost := args.ShippingCost
	if err := x.debit("logistics", cost); err != nil {
		return err
	}
	logistics.Balance = cost
	logistics.ShipmentCost = cost
	logistics.Status = entity.LogisticsStatusInTransit
	logistics.ShipmentStartedAt = x.now
	logistics.ProductStock = order.ProductStock
	order.LogisticID = logistics.LogisticID
	order.LogisticAddress = x.addr("logistics")
	order.Status = entity.OrderStatusShipped
	if err := x.record(user, x.signer, x.addr("logistics"), cost); err != nil {
		return err
	}
	for slot, record := range map[string]entity.Entity{
		"logistics": logistics,
		"order":     order,
		"user":      user,
	} {
		if err := x.store(slot, record); err != nil {
			return err
		}
	}
	return nil
}

func receiveProductAsSeller(x *execution, _ program.Args) error {
	if _, err := x.loadUser("user"); err != nil {
		return err
	}
	seller := &entity.Seller{}
	if err := x.load("seller", seller); err != nil {
		return err
	}
	if seller.Owner != x.signer {
		return x.fail(program.CodeUnauthorizedAccess, "seller")
	}
	order := &entity.Order{}
	if err := x.load("order", order); err != nil {
		return err
	}
	if order.SellerAddress != x.addr("seller") {
		return x.fail(program.CodeUnauthorizedAccess, "order")
	}
	if order.LogisticAddress != x.addr("logistics") ||
		order.Status != entity.OrderStatusShipped {
		return x.fail(program.CodeInvalidLogistics, "order")
	}
	logistics := &entity.Logistics{}
	if err := x.load("logistics", logistics); err != nil {
		return err
	}
	next, err := x.increment(seller.ProductsCount, "seller")
	if err != nil {
		return err
	}
	var unitPrice uint64
	if order.ProductStock > 0 {
		unitPrice = order.TotalPrice / order.ProductStock
	}
	if err := x.create("sellerProductStock", &entity.SellerProductStock{
		SellerID:       seller.SellerID,
		SellerAddress:  x.addr("seller"),
		ProductID:      order.ProductID,
		ProductAddress: order.ProductAddress,
		StockQuantity:  order.ProductStock,
		StockPrice:     unitPrice,
		CreatedAt:      x.now,
	}, x.addr("seller"), next); err != nil {
		return err
	}
	seller.ProductsCount = next
	logistics.Delivered = true
	logistics.DeliveryConfirmed = true
	logistics.Status = entity.LogisticsStatusDelivered
	logistics.ShipmentEndedAt = x.now
	order.Status = entity.OrderStatusDelivered
	for slot, record := range map[string]entity.Entity{
		"seller":    seller,
		"order":     order,
		"logistics": logistics,
	} {
		if err := x.store(slot, record); err != nil {
			return err
		}
	}
	return nil
}
