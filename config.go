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
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/event"
	"github.com/blinklabs-io/supplychain/ledger"
)

type Config struct {
	promRegistry  prometheus.Registerer
	logger        *slog.Logger
	ledger        ledger.Ledger
	eventBus      *event.EventBus
	traceProvider trace.TracerProvider
	viewDriver    string
	viewDsn       string
	viewDataDir   string
	programID     address.Address
	commitTimeout time.Duration
	pollInterval  time.Duration
	view          bool
}

// ConfigOptionFunc is a type that represents functions that modify the client config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new client config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLedger specifies the ledger the client reads from and submits to
func WithLedger(l ledger.Ledger) ConfigOptionFunc {
	return func(c *Config) {
		c.ledger = l
	}
}

// WithProgramID specifies the supply-chain program address. The default
// is program.DefaultProgramID.
func WithProgramID(programID address.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.programID = programID
	}
}

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithEventBus shares an existing event bus. The client creates and owns
// one otherwise.
func WithEventBus(bus *event.EventBus) ConfigOptionFunc {
	return func(c *Config) {
		c.eventBus = bus
	}
}

// WithTracerProvider specifies the OpenTelemetry provider for submission
// spans. The global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) ConfigOptionFunc {
	return func(c *Config) {
		c.traceProvider = tp
	}
}

// WithCommitTimeout bounds how long a submission waits for a terminal
// state
func WithCommitTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.commitTimeout = timeout
	}
}

func WithPollInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.pollInterval = interval
	}
}

// WithView enables the snapshot store fed by post-commit re-reads. An
// empty driver selects sqlite, in memory when dataDir is empty.
func WithView(driver, dsn, dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.view = true
		c.viewDriver = driver
		c.viewDsn = dsn
		c.viewDataDir = dataDir
	}
}
