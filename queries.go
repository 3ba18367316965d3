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
	"errors"

	"github.com/shopspring/decimal"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/entity"
	"github.com/blinklabs-io/supplychain/lamports"
	"github.com/blinklabs-io/supplychain/view"
)

// Profile returns the user record of wallet. With a view configured the
// committed snapshot is used when present; the ledger is read otherwise.
func (c *Client) Profile(ctx context.Context, wallet address.Address) (*entity.User, error) {
	if c.view != nil {
		user, err := c.view.Profile(ctx, wallet)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, view.ErrNotFound) {
			c.config.logger.Warn(
				"profile snapshot unavailable, reading ledger",
				"component", "supplychain",
				"wallet", wallet.String(),
				"error", err,
			)
		}
	}
	user, _, err := c.repo.User(ctx, wallet)
	return user, err
}

// Balance returns the native balance of wallet in whole-token units
func (c *Client) Balance(ctx context.Context, wallet address.Address) (decimal.Decimal, error) {
	l, err := c.config.ledger.GetBalance(ctx, wallet)
	if err != nil {
		return decimal.Zero, err
	}
	return lamports.ToDecimal(l), nil
}
