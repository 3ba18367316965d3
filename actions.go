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

package supplychain

import (
	"context"

	"github.com/blinklabs-io/supplychain/builder"
	"github.com/blinklabs-io/supplychain/ledger"
	"github.com/blinklabs-io/supplychain/orchestrator"
)

// Each action builds its operation for signer's wallet, submits it and
// waits for the outcome. Validation and missing-reference errors are
// returned before anything is submitted.

func (c *Client) CreateUser(
	ctx context.Context,
	signer ledger.Signer,
	req builder.CreateUserRequest,
) (*orchestrator.CommitHandle, error) {
	return submit(ctx, c, signer, c.builder.CreateUser, req)
}

func (c *Client) CreateFactory(
	ctx context.Context,
	signer ledger.Signer,
	req builder.Site,
) (*orchestrator.CommitHandle, error) {
	return submit(ctx, c, signer, c.builder.CreateFactory, req)
}

func (c *Client) CreateProduct(
	ctx context.Context,
	signer ledger.Signer,
	req builder.CreateProductRequest,
) (*orchestrator.CommitHandle, error) {
	return submit(ctx, c, signer, c.builder.CreateProduct, req)
}

func (c *Client) InspectProduct(
	ctx context.Context,
	signer ledger.Signer,
	req builder.InspectProductRequest,
) (*orchestrator.CommitHandle, error) {
	return submit(ctx, c, signer, c.builder.InspectProduct, req)
}

// PayInspector pays the inspection fee of a product from signer's wallet
func (c *Client) PayInspector(
	ctx context.Context,
	signer ledger.Signer,
	req builder.PayInspectorRequest,
) (*orchestrator.CommitHandle, error) {
	return submit(ctx, c, signer, c.builder.PayInspector, req)
}

func (c *Client) WithdrawFactoryBalance(
	ctx context.Context,
	signer ledger.Signer,
	req builder.WithdrawRequest,
) (*orchestrator.CommitHandle, error) {
	return submit(ctx, c, signer, c.builder.WithdrawFactoryBalance, req)
}

func (c *Client) WithdrawWarehouseBalance(
	ctx context.Context,
	signer ledger.Signer,
	req builder.WithdrawRequest,
) (*orchestrator.CommitHandle, error) {
	return submit(ctx, c, signer, c.builder.WithdrawWarehouseBalance, req)
}

func (c *Client) WithdrawLogisticsBalance(
	ctx context.Context,
	signer ledger.Signer,
	req builder.WithdrawRequest,
) (*orchestrator.CommitHandle, error) {
	return submit(ctx, c, signer, c.builder.WithdrawLogisticsBalance, req)
}

func (c *Client) WithdrawInspectorBalance(
	ctx context.Context,
	signer ledger.Signer,
	req builder.WithdrawRequest,
) (*orchestrator.CommitHandle, error) {
	return submit(ctx, c, signer, c.builder.WithdrawInspectorBalance, req)
}

func (c *Client) CreateWarehouse(
	ctx context.Context,
	signer ledger.Signer,
	req builder.CreateWarehouseRequest,
) (*orchestrator.CommitHandle, error) {
	return submit(ctx, c, signer, c.builder.CreateWarehouse, req)
}

// BuyStock buys inspected factory stock into signer's warehouse
func (c *Client) BuyStock(
	ctx context.Context,
	signer ledger.Signer,
	req builder.BuyStockRequest,
) (*orchestrator.CommitHandle, error) {
	return submit(ctx, c, signer, c.builder.BuyStock, req)
}

func (c *Client) CreateLogistics(
	ctx context.Context,
	signer ledger.Signer,
	req builder.CreateLogisticsRequest,
) (*orchestrator.CommitHandle, error) {
	return submit(ctx, c, signer, c.builder.CreateLogistics, req)
}

// ShipOrder sends a pending order with one of signer's logistics records
func (c *Client) ShipOrder(
	ctx context.Context,
	signer ledger.Signer,
	req builder.ShipOrderRequest,
) (*orchestrator.CommitHandle, error) {
	return submit(ctx, c, signer, c.builder.ShipOrder, req)
}

func (c *Client) CreateSeller(
	ctx context.Context,
	signer ledger.Signer,
	req builder.Site,
) (*orchestrator.CommitHandle, error) {
	return submit(ctx, c, signer, c.builder.CreateSeller, req)
}

func (c *Client) ReceiveProduct(
	ctx context.Context,
	signer ledger.Signer,
	req builder.ReceiveProductRequest,
) (*orchestrator.CommitHandle, error) {
	return submit(ctx, c, signer, c.builder.ReceiveProduct, req)
}

func (c *Client) CreateOrder(
	ctx context.Context,
	signer ledger.Signer,
	req builder.CreateOrderRequest,
) (*orchestrator.CommitHandle, error) {
	return submit(ctx, c, signer, c.builder.CreateOrder, req)
}
