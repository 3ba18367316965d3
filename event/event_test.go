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

package event_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/supplychain/event"
	sctest "github.com/blinklabs-io/supplychain/internal/test/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEventBusSingleSubscriber(t *testing.T) {
	testEvtType := event.OperationCommittedEventType
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, subCh := eb.Subscribe(testEvtType)
	eb.Publish(
		testEvtType,
		event.NewEvent(testEvtType, event.OperationEvent{Action: "createFactory"}),
	)
	select {
	case evt, ok := <-subCh:
		require.True(t, ok, "event channel closed unexpectedly")
		data, ok := evt.Data.(event.OperationEvent)
		require.True(t, ok, "unexpected event data type %T", evt.Data)
		assert.Equal(t, "createFactory", data.Action)
		assert.Equal(t, testEvtType, evt.Type)
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for event")
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	testEvtType := event.EventType("test.event")
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, sub1Ch := eb.Subscribe(testEvtType)
	_, sub2Ch := eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 999))
	for _, ch := range []<-chan event.Event{sub1Ch, sub2Ch} {
		select {
		case evt := <-ch:
			assert.Equal(t, 999, evt.Data)
		case <-time.After(1 * time.Second):
			t.Fatalf("timeout waiting for event")
		}
	}
}

func TestEventBusDeliversOnlySubscribedType(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, committed := eb.Subscribe(event.OperationCommittedEventType)
	_, rejected := eb.Subscribe(event.OperationRejectedEventType)
	eb.Publish(
		event.OperationRejectedEventType,
		event.NewEvent(event.OperationRejectedEventType, event.OperationEvent{Error: "boom"}),
	)
	evt := sctest.RequireReceive(t, rejected, time.Second, "rejected event")
	assert.Equal(t, "boom", evt.Data.(event.OperationEvent).Error)
	sctest.RequireNoReceive(t, committed, 50*time.Millisecond, "committed subscriber")
}

func TestEventBusUnsubscribe(t *testing.T) {
	testEvtType := event.EventType("test.event")
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	subId, subCh := eb.Subscribe(testEvtType)
	eb.Unsubscribe(testEvtType, subId)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 1))
	select {
	case _, ok := <-subCh:
		assert.False(t, ok, "received unexpected event")
	case <-time.After(1 * time.Second):
		t.Fatalf("subscriber channel was not closed after Unsubscribe")
	}
	// unknown ids are ignored
	eb.Unsubscribe(testEvtType, subId+10)
}

func TestEventBusPublishAsync(t *testing.T) {
	testEvtType := event.EventType("test.async")
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	var received atomic.Int32
	eb.SubscribeFunc(testEvtType, func(evt event.Event) {
		received.Add(1)
	})
	for range 5 {
		require.True(t, eb.PublishAsync(testEvtType, event.NewEvent(testEvtType, nil)))
	}
	require.Eventually(t, func() bool {
		return received.Load() == 5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventBusStop(t *testing.T) {
	testEvtType := event.EventType("test.event")
	eb := event.NewEventBus(nil, nil)
	_, subCh := eb.Subscribe(testEvtType)
	eb.Stop()
	select {
	case _, ok := <-subCh:
		assert.False(t, ok)
	case <-time.After(1 * time.Second):
		t.Fatal("subscriber channel was not closed by Stop")
	}
	assert.False(t, eb.PublishAsync(testEvtType, event.NewEvent(testEvtType, nil)))
	// second Stop is a no-op
	eb.Stop()
}

func TestSubscribeFuncPanicRecovery(t *testing.T) {
	testEvtType := event.EventType("test.panic")
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	var received atomic.Int32
	eb.SubscribeFunc(testEvtType, func(evt event.Event) {
		if received.Add(1) == 1 {
			panic("intentional test panic")
		}
	})
	eb.Publish(testEvtType, event.NewEvent(testEvtType, "panic"))
	eb.Publish(testEvtType, event.NewEvent(testEvtType, "after-panic"))
	require.Eventually(t, func() bool {
		return received.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond,
		"handler should continue processing events after a panic",
	)
}

func TestEventBusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	testEvtType := event.OperationRejectedEventType
	eb := event.NewEventBus(reg, nil)
	defer eb.Stop()
	subId, subCh := eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, nil))
	<-subCh
	eb.Publish(testEvtType, event.NewEvent(testEvtType, nil))
	<-subCh
	count, err := testutil.GatherAndCount(reg, "supplychain_events_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "supplychain_events_total" {
			assert.InDelta(t, 2.0, mf.GetMetric()[0].GetCounter().GetValue(), 0)
		}
	}
	eb.Unsubscribe(testEvtType, subId)
}
