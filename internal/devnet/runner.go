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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/blinklabs-io/supplychain"
	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/builder"
	"github.com/blinklabs-io/supplychain/entity"
	"github.com/blinklabs-io/supplychain/errs"
	"github.com/blinklabs-io/supplychain/keystore"
	"github.com/blinklabs-io/supplychain/lamports"
	"github.com/blinklabs-io/supplychain/ledger"
	"github.com/blinklabs-io/supplychain/orchestrator"
)

// Participant wallet names. They double as key file names.
const (
	WalletFactory   = "factory"
	WalletInspector = "inspector"
	WalletWarehouse = "warehouse"
	WalletSeller    = "seller"
)

// DefaultAirdrop is credited to each participant before the run
const DefaultAirdrop = 10 * ledger.LamportsPerSol

// Funder credits native balance to a wallet
type Funder interface {
	Airdrop(ctx context.Context, wallet address.Address, lamports uint64) error
}

// KeySource hands out participant keys by name. *keystore.KeyStore
// satisfies it.
type KeySource interface {
	LoadOrCreate(name string) (*keystore.Key, error)
}

// Step is one committed action of a run
type Step struct {
	Action    string
	Wallet    string
	Signature string
	// Record is the address created or updated in the action's main slot
	Record   address.Address
	Slot     uint64
	Duration time.Duration
}

type Report struct {
	Steps []Step
	// Records maps lifecycle names (factory, product, order, ...) to
	// addresses
	Records map[string]address.Address
	// Balances holds each participant's final wallet balance in SOL
	Balances map[string]decimal.Decimal
	// Delivered is the seller stock record created on receipt
	Delivered *entity.SellerProductStock
}

// RunnerOptionFunc configures a Runner
type RunnerOptionFunc func(*Runner)

type Runner struct {
	client   *supplychain.Client
	funder   Funder
	keys     KeySource
	logger   *slog.Logger
	scenario Scenario
	airdrop  uint64
}

// NewRunner creates a runner submitting through client. Participant keys
// are generated in memory unless WithKeySource is given.
func NewRunner(
	client *supplychain.Client,
	funder Funder,
	opts ...RunnerOptionFunc,
) *Runner {
	r := &Runner{
		client:   client,
		funder:   funder,
		keys:     &memoryKeys{keys: make(map[string]*keystore.Key)},
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
		scenario: DefaultScenario(),
		airdrop:  DefaultAirdrop,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func WithKeySource(keys KeySource) RunnerOptionFunc {
	return func(r *Runner) {
		r.keys = keys
	}
}

func WithLogger(logger *slog.Logger) RunnerOptionFunc {
	return func(r *Runner) {
		r.logger = logger
	}
}

func WithScenario(s Scenario) RunnerOptionFunc {
	return func(r *Runner) {
		r.scenario = s
	}
}

// WithAirdrop overrides the lamports credited to each participant. Zero
// disables funding.
func WithAirdrop(lamports uint64) RunnerOptionFunc {
	return func(r *Runner) {
		r.airdrop = lamports
	}
}

// run is the state of one Run call
type run struct {
	*Runner
	wallets map[string]*keystore.Key
	report  *Report
}

// Run executes the lifecycle and stops at the first failing action
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if err := r.scenario.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	x := &run{
		Runner:  r,
		wallets: make(map[string]*keystore.Key),
		report: &Report{
			Records:  make(map[string]address.Address),
			Balances: make(map[string]decimal.Decimal),
		},
	}
	steps := []func(context.Context) error{
		x.setup,
		x.register,
		x.manufacture,
		x.inspect,
		x.stock,
		x.sell,
		x.deliver,
		x.settle,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return x.report, err
		}
	}
	for name, key := range x.wallets {
		bal, err := r.client.Balance(ctx, key.PublicKey())
		if err != nil {
			return x.report, err
		}
		x.report.Balances[name] = bal
	}
	r.logger.Info(
		"scenario complete",
		"component", "devnet",
		"steps", len(x.report.Steps),
	)
	return x.report, nil
}

func (x *run) setup(ctx context.Context) error {
	for _, name := range []string{WalletFactory, WalletInspector, WalletWarehouse, WalletSeller} {
		key, err := x.keys.LoadOrCreate(name)
		if err != nil {
			return fmt.Errorf("load %s key: %w", name, err)
		}
		x.wallets[name] = key
		if x.airdrop == 0 || x.funder == nil {
			continue
		}
		if err := x.funder.Airdrop(ctx, key.PublicKey(), x.airdrop); err != nil {
			return fmt.Errorf("fund %s wallet: %w", name, err)
		}
	}
	return nil
}

// commit records a committed action. slot names the operation account
// the step's record lives in; an empty slot records nothing.
func (x *run) commit(
	wallet string,
	slot string,
	start time.Time,
	h *orchestrator.CommitHandle,
	err error,
) (address.Address, error) {
	if err != nil {
		action := "action"
		if h != nil {
			action = h.Operation.Instruction.String()
		}
		return address.Address{}, fmt.Errorf("%s by %s: %w", action, wallet, err)
	}
	step := Step{
		Action:    h.Operation.Instruction.String(),
		Wallet:    wallet,
		Signature: h.Signature.String(),
		Slot:      h.Slot,
		Duration:  time.Since(start),
	}
	if slot != "" {
		step.Record, _ = h.Operation.Account(slot)
	}
	x.report.Steps = append(x.report.Steps, step)
	x.logger.Info(
		"committed",
		"component", "devnet",
		"action", step.Action,
		"wallet", wallet,
		"signature", step.Signature,
		"slot", step.Slot,
	)
	return step.Record, nil
}

func (x *run) register(ctx context.Context) error {
	roles := map[string]entity.Role{
		WalletFactory:   entity.RoleFactory,
		WalletInspector: entity.RoleInspector,
		WalletWarehouse: entity.RoleWarehouse,
		WalletSeller:    entity.RoleSeller,
	}
	for _, name := range []string{WalletFactory, WalletInspector, WalletWarehouse, WalletSeller} {
		key := x.wallets[name]
		user, err := x.client.Profile(ctx, key.PublicKey())
		switch {
		case err == nil:
			if user.Role != roles[name].String() {
				return fmt.Errorf("%s wallet is already registered as %s", name, user.Role)
			}
			continue
		case !errors.Is(err, errs.ErrReferenceNotFound):
			return err
		}
		start := time.Now()
		h, err := x.client.CreateUser(ctx, key, builder.CreateUserRequest{
			Name: name,
			Role: roles[name].String(),
		})
		if _, err := x.commit(name, "user", start, h, err); err != nil {
			return err
		}
	}
	return nil
}

func (x *run) manufacture(ctx context.Context) error {
	key := x.wallets[WalletFactory]
	start := time.Now()
	h, err := x.client.CreateFactory(ctx, key, builder.Site{
		Name:        x.scenario.FactoryName,
		Description: "devnet scenario factory",
		Latitude:    12.97,
		Longitude:   77.59,
	})
	factory, err := x.commit(WalletFactory, "factory", start, h, err)
	if err != nil {
		return err
	}
	x.report.Records["factory"] = factory

	start = time.Now()
	h, err = x.client.CreateProduct(ctx, key, builder.CreateProductRequest{
		Factory:     factory,
		Name:        x.scenario.ProductName,
		BatchNumber: "B-001",
		Price:       x.scenario.Price,
		Mrp:         x.scenario.Mrp,
		Stock:       x.scenario.Stock,
	})
	product, err := x.commit(WalletFactory, "product", start, h, err)
	if err != nil {
		return err
	}
	x.report.Records["product"] = product
	return nil
}

func (x *run) inspect(ctx context.Context) error {
	product := x.report.Records["product"]
	start := time.Now()
	h, err := x.client.InspectProduct(ctx, x.wallets[WalletInspector], builder.InspectProductRequest{
		Product: product,
		Name:    "line inspection",
		Outcome: "PASS",
		Fee:     x.scenario.InspectionFee,
	})
	inspection, err := x.commit(WalletInspector, "inspectionDetails", start, h, err)
	if err != nil {
		return err
	}
	x.report.Records["inspection"] = inspection

	start = time.Now()
	h, err = x.client.PayInspector(ctx, x.wallets[WalletFactory], builder.PayInspectorRequest{
		Product: product,
	})
	_, err = x.commit(WalletFactory, "inspector", start, h, err)
	return err
}

func (x *run) stock(ctx context.Context) error {
	key := x.wallets[WalletWarehouse]
	start := time.Now()
	h, err := x.client.CreateWarehouse(ctx, key, builder.CreateWarehouseRequest{
		Product: x.report.Records["product"],
		Site:    builder.Site{Name: "Central Depot", ContactInfo: "depot@example.com"},
		Size:    x.scenario.BuyQuantity * 10,
	})
	warehouse, err := x.commit(WalletWarehouse, "warehouse", start, h, err)
	if err != nil {
		return err
	}
	x.report.Records["warehouse"] = warehouse

	start = time.Now()
	h, err = x.client.BuyStock(ctx, key, builder.BuyStockRequest{
		Warehouse: warehouse,
		Product:   x.report.Records["product"],
		Quantity:  x.scenario.BuyQuantity,
	})
	if _, err := x.commit(WalletWarehouse, "warehouse", start, h, err); err != nil {
		return err
	}

	start = time.Now()
	h, err = x.client.CreateLogistics(ctx, key, builder.CreateLogisticsRequest{
		Warehouse:          warehouse,
		Name:               "Coastal Freight",
		TransportationMode: "TRUCK",
		Stock:              x.scenario.LogisticsStock,
	})
	logistics, err := x.commit(WalletWarehouse, "logistics", start, h, err)
	if err != nil {
		return err
	}
	x.report.Records["logistics"] = logistics
	return nil
}

func (x *run) sell(ctx context.Context) error {
	key := x.wallets[WalletSeller]
	start := time.Now()
	h, err := x.client.CreateSeller(ctx, key, builder.Site{Name: "Market Street Store"})
	seller, err := x.commit(WalletSeller, "seller", start, h, err)
	if err != nil {
		return err
	}
	x.report.Records["seller"] = seller

	start = time.Now()
	h, err = x.client.CreateOrder(ctx, key, builder.CreateOrderRequest{
		Seller:    seller,
		Warehouse: x.report.Records["warehouse"],
		Quantity:  x.scenario.OrderQuantity,
	})
	order, err := x.commit(WalletSeller, "order", start, h, err)
	if err != nil {
		return err
	}
	x.report.Records["order"] = order
	return nil
}

func (x *run) deliver(ctx context.Context) error {
	start := time.Now()
	h, err := x.client.ShipOrder(ctx, x.wallets[WalletWarehouse], builder.ShipOrderRequest{
		Logistics:    x.report.Records["logistics"],
		Order:        x.report.Records["order"],
		ShippingCost: x.scenario.ShippingCost,
	})
	if _, err := x.commit(WalletWarehouse, "order", start, h, err); err != nil {
		return err
	}

	start = time.Now()
	h, err = x.client.ReceiveProduct(ctx, x.wallets[WalletSeller], builder.ReceiveProductRequest{
		Order: x.report.Records["order"],
	})
	stock, err := x.commit(WalletSeller, "sellerProductStock", start, h, err)
	if err != nil {
		return err
	}
	x.report.Records["sellerStock"] = stock
	rec, err := h.Entity(stock)
	if err != nil {
		return fmt.Errorf("read delivered stock: %w", err)
	}
	delivered, ok := rec.(*entity.SellerProductStock)
	if !ok {
		return fmt.Errorf("delivered stock %s holds a %s", stock, rec.Kind())
	}
	x.report.Delivered = delivered
	return nil
}

// settle withdraws every escrow the run funded
func (x *run) settle(ctx context.Context) error {
	type escrow struct {
		wallet   string
		record   string
		kind     entity.Kind
		withdraw func(context.Context, ledger.Signer, builder.WithdrawRequest) (*orchestrator.CommitHandle, error)
		slot     string
	}
	escrows := []escrow{
		{WalletFactory, "factory", entity.KindFactory, x.client.WithdrawFactoryBalance, "factory"},
		{WalletInspector, "inspection", entity.KindProductInspector, x.client.WithdrawInspectorBalance, "inspector"},
		{WalletWarehouse, "warehouse", entity.KindWarehouse, x.client.WithdrawWarehouseBalance, "warehouse"},
		{WalletWarehouse, "logistics", entity.KindLogistics, x.client.WithdrawLogisticsBalance, "logistics"},
	}
	for _, e := range escrows {
		addr := x.report.Records[e.record]
		rec, err := x.client.Repository().Get(ctx, e.kind, addr)
		if err != nil {
			return err
		}
		funded, ok := rec.(entity.Funded)
		if !ok || funded.BalanceLamports() == 0 {
			continue
		}
		start := time.Now()
		h, err := e.withdraw(ctx, x.wallets[e.wallet], builder.WithdrawRequest{
			Record: addr,
			Amount: lamports.Format(funded.BalanceLamports()),
		})
		if _, err := x.commit(e.wallet, e.slot, start, h, err); err != nil {
			return err
		}
	}
	return nil
}

// memoryKeys generates keys on first use and keeps them for the life of
// the runner
type memoryKeys struct {
	mu   sync.Mutex
	keys map[string]*keystore.Key
}

func (m *memoryKeys) LoadOrCreate(name string) (*keystore.Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key, ok := m.keys[name]; ok {
		return key, nil
	}
	key, err := keystore.Generate()
	if err != nil {
		return nil, err
	}
	m.keys[name] = key
	return key, nil
}
