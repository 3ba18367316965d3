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

// Package devnet drives a complete supply-chain lifecycle through the
// client: four participants register, a product is made, inspected, bought
// into a warehouse, ordered by a seller, shipped and received, and every
// escrow is withdrawn again.
package devnet

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/blinklabs-io/supplychain/lamports"
)

// Scenario holds the values the lifecycle is run with. Amounts are SOL.
type Scenario struct {
	FactoryName    string `yaml:"factoryName"`
	ProductName    string `yaml:"productName"`
	Price          string `yaml:"price"`
	Mrp            string `yaml:"mrp"`
	InspectionFee  string `yaml:"inspectionFee"`
	ShippingCost   string `yaml:"shippingCost"`
	Stock          uint64 `yaml:"stock"`
	BuyQuantity    uint64 `yaml:"buyQuantity"`
	LogisticsStock uint64 `yaml:"logisticsStock"`
	OrderQuantity  uint64 `yaml:"orderQuantity"`
}

func DefaultScenario() Scenario {
	return Scenario{
		FactoryName:    "Riverside Plant",
		ProductName:    "Solar Lantern",
		Price:          "0.5",
		Mrp:            "0.8",
		InspectionFee:  "0.1",
		ShippingCost:   "0.05",
		Stock:          100,
		BuyQuantity:    10,
		LogisticsStock: 4,
		OrderQuantity:  4,
	}
}

// LoadScenario reads a YAML scenario file. Fields it leaves out keep
// their defaults.
func LoadScenario(path string) (Scenario, error) {
	ret := DefaultScenario()
	data, err := os.ReadFile(path)
	if err != nil {
		return ret, fmt.Errorf("LoadScenario: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &ret); err != nil {
		return ret, fmt.Errorf("LoadScenario: parsing %s: %w", path, err)
	}
	if err := ret.Validate(); err != nil {
		return ret, fmt.Errorf("LoadScenario: %s: %w", path, err)
	}
	return ret, nil
}

// Validate checks that every step of the lifecycle can succeed with these
// quantities
func (s Scenario) Validate() error {
	if s.FactoryName == "" || s.ProductName == "" {
		return errors.New("factory and product names are required")
	}
	for name, amt := range map[string]string{
		"price":         s.Price,
		"inspectionFee": s.InspectionFee,
		"shippingCost":  s.ShippingCost,
	} {
		l, err := lamports.Parse(amt)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if l == 0 {
			return fmt.Errorf("%s must be greater than zero", name)
		}
	}
	if s.Mrp != "" {
		if _, err := lamports.Parse(s.Mrp); err != nil {
			return fmt.Errorf("invalid mrp: %w", err)
		}
	}
	switch {
	case s.BuyQuantity == 0 || s.BuyQuantity > s.Stock:
		return fmt.Errorf("buyQuantity %d must be between 1 and stock %d", s.BuyQuantity, s.Stock)
	case s.LogisticsStock == 0 || s.LogisticsStock > s.BuyQuantity:
		return fmt.Errorf("logisticsStock %d must be between 1 and buyQuantity %d", s.LogisticsStock, s.BuyQuantity)
	case s.OrderQuantity == 0 || s.OrderQuantity > s.BuyQuantity:
		return fmt.Errorf("orderQuantity %d must be between 1 and buyQuantity %d", s.OrderQuantity, s.BuyQuantity)
	}
	return nil
}
