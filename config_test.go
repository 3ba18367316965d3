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
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/event"
	"github.com/blinklabs-io/supplychain/internal/test/ledgertest"
	"github.com/blinklabs-io/supplychain/program"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg.logger)
	assert.Nil(t, cfg.ledger)
	assert.False(t, cfg.view)
	assert.True(t, cfg.programID.IsZero())
}

func TestNewConfigOptions(t *testing.T) {
	l := ledgertest.New()
	reg := prometheus.NewRegistry()
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	cfg := NewConfig(
		WithLedger(l),
		WithProgramID(l.ProgramID()),
		WithPrometheusRegistry(reg),
		WithEventBus(bus),
		WithCommitTimeout(3*time.Second),
		WithPollInterval(10*time.Millisecond),
		WithView("sqlite", "", "/tmp/view"),
	)
	assert.Same(t, l, cfg.ledger)
	assert.Equal(t, l.ProgramID(), cfg.programID)
	assert.Same(t, reg, cfg.promRegistry)
	assert.Same(t, bus, cfg.eventBus)
	assert.Equal(t, 3*time.Second, cfg.commitTimeout)
	assert.Equal(t, 10*time.Millisecond, cfg.pollInterval)
	assert.True(t, cfg.view)
	assert.Equal(t, "sqlite", cfg.viewDriver)
	assert.Equal(t, "/tmp/view", cfg.viewDataDir)
}

func TestNewDefaultsProgramID(t *testing.T) {
	c, err := New(NewConfig(WithLedger(ledgertest.New())))
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, address.MustParse(program.DefaultProgramID), c.ProgramID())
	assert.True(t, c.ownsBus)
	assert.Nil(t, c.View())
}

func TestSharedEventBusIsNotStopped(t *testing.T) {
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	c, err := New(NewConfig(WithLedger(ledgertest.New()), WithEventBus(bus)))
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.Same(t, bus, c.EventBus())

	_, ch := bus.Subscribe(event.OperationCommittedEventType)
	bus.Publish(event.OperationCommittedEventType, event.NewEvent(event.OperationCommittedEventType, nil))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("shared bus stopped by client Close")
	}
}
