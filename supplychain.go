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

// Package supplychain is the client for the on-ledger supply-chain program.
//
// A Client turns business actions (register a factory, inspect a product,
// buy stock, ship an order, withdraw an escrow) into ledger operations,
// submits them and reports the committed result. Every action reads the
// ledger state it depends on first, so an action built from a stale counter
// is refused by the ledger as errs.ErrAddressCollision rather than
// overwriting anything.
package supplychain

import (
	"context"
	"errors"
	"fmt"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/builder"
	"github.com/blinklabs-io/supplychain/derive"
	"github.com/blinklabs-io/supplychain/event"
	"github.com/blinklabs-io/supplychain/ledger"
	"github.com/blinklabs-io/supplychain/orchestrator"
	"github.com/blinklabs-io/supplychain/program"
	"github.com/blinklabs-io/supplychain/repository"
	"github.com/blinklabs-io/supplychain/view"
)

type Client struct {
	config       Config
	eventBus     *event.EventBus
	ownsBus      bool
	builder      *builder.Builder
	orchestrator *orchestrator.Orchestrator
	repo         *repository.Repository
	deriver      *derive.Deriver
	view         *view.Store
}

func New(cfg Config) (*Client, error) {
	if cfg.ledger == nil {
		return nil, errors.New("supplychain: a ledger is required")
	}
	if cfg.programID.IsZero() {
		cfg.programID = address.MustParse(program.DefaultProgramID)
	}
	c := &Client{
		config:   cfg,
		eventBus: cfg.eventBus,
		deriver:  derive.New(cfg.programID),
	}
	if c.eventBus == nil {
		c.eventBus = event.NewEventBus(cfg.promRegistry, cfg.logger)
		c.ownsBus = true
	}
	c.builder = builder.New(builder.Config{
		Reader:    cfg.ledger,
		Logger:    cfg.logger,
		ProgramID: cfg.programID,
	})
	c.repo = repository.New(repository.Config{
		Reader:    cfg.ledger,
		Logger:    cfg.logger,
		ProgramID: cfg.programID,
	})
	var refreshed orchestrator.RefreshFunc
	if cfg.view {
		var err error
		c.view, err = view.New(view.Config{
			Logger:    cfg.logger,
			Driver:    cfg.viewDriver,
			DSN:       cfg.viewDsn,
			DataDir:   cfg.viewDataDir,
			ProgramID: cfg.programID,
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("supplychain: %w", err)
		}
		// this client's commits are applied before Submit returns; a shared
		// bus also carries the commits of other clients
		refreshed = c.view.Apply
		if !c.ownsBus {
			c.view.Attach(c.eventBus)
		}
	}
	var err error
	c.orchestrator, err = orchestrator.New(orchestrator.Config{
		Ledger:        cfg.ledger,
		Logger:        cfg.logger,
		EventBus:      c.eventBus,
		PromRegistry:  cfg.promRegistry,
		TraceProvider: cfg.traceProvider,
		Refreshed:     refreshed,
		CommitTimeout: cfg.commitTimeout,
		PollInterval:  cfg.pollInterval,
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the view store and, when the client created it, the
// event bus. The ledger is left open.
func (c *Client) Close() error {
	var err error
	if c.view != nil {
		err = c.view.Close()
	}
	if c.ownsBus {
		c.eventBus.Stop()
	}
	return err
}

func (c *Client) ProgramID() address.Address {
	return c.config.programID
}

func (c *Client) EventBus() *event.EventBus {
	return c.eventBus
}

// Repository gives direct access to the record queries
func (c *Client) Repository() *repository.Repository {
	return c.repo
}

// Deriver computes record addresses for this client's program
func (c *Client) Deriver() *derive.Deriver {
	return c.deriver
}

// View returns the snapshot store, or nil unless WithView was given
func (c *Client) View() *view.Store {
	return c.view
}

type buildFunc[R any] func(context.Context, address.Address, R) (*program.Operation, error)

// submit builds an operation for the signer's wallet and submits it
func submit[R any](
	ctx context.Context,
	c *Client,
	signer ledger.Signer,
	build buildFunc[R],
	req R,
) (*orchestrator.CommitHandle, error) {
	op, err := build(ctx, signer.PublicKey(), req)
	if err != nil {
		return nil, err
	}
	return c.orchestrator.Submit(ctx, op, signer)
}

// Submit sends an operation that was built elsewhere
func (c *Client) Submit(
	ctx context.Context,
	op *program.Operation,
	signer ledger.Signer,
) (*orchestrator.CommitHandle, error) {
	return c.orchestrator.Submit(ctx, op, signer)
}
