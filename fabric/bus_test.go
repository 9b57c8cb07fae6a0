package fabric

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-automation/meridian/meta"
)

func addr(t *testing.T, s string) meta.Address {
	t.Helper()
	a, err := meta.ParseAddress(s)
	require.NoError(t, err)
	return a
}

func TestBusPublishMatchesWildcardSubscribers(t *testing.T) {
	bus := NewBus(time.Second, nil)
	received := make(chan PropertyChanged, 1)

	unsub := bus.Subscribe(meta.MustParseName("room1.*"), func(_ context.Context, msg Message) (any, error) {
		pc, ok := msg.(PropertyChanged)
		if ok {
			received <- pc
		}
		return nil, nil
	})
	defer unsub()

	evt := PropertyChanged{
		MessageBase: NewBase(addr(t, "hub::room1.lamp"), time.Now()),
		Property:    meta.MustParseName("brightness"),
	}
	require.NoError(t, bus.Publish(context.Background(), evt))

	select {
	case got := <-received:
		assert.Equal(t, "brightness", got.Property.String())
	case <-time.After(time.Second):
		t.Fatal("expected subscriber to receive matching event")
	}
}

func TestBusPublishSkipsNonMatchingSubscribers(t *testing.T) {
	bus := NewBus(time.Second, nil)
	received := make(chan Message, 1)

	unsub := bus.Subscribe(meta.MustParseName("room2.*"), func(_ context.Context, msg Message) (any, error) {
		received <- msg
		return nil, nil
	})
	defer unsub()

	evt := PropertyChanged{MessageBase: NewBase(addr(t, "hub::room1.lamp"), time.Now())}
	require.NoError(t, bus.Publish(context.Background(), evt))

	select {
	case <-received:
		t.Fatal("subscriber should not have matched a different room")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusSendRoutesToExactTopicHandler(t *testing.T) {
	bus := NewBus(time.Second, nil)
	topic := meta.MustParseName("room1.lamp")
	var got Message
	require.NoError(t, bus.RegisterHandler(topic, func(_ context.Context, msg Message) (any, error) {
		got = msg
		return nil, nil
	}))

	cmd := BinaryDataRequest{MessageBase: NewBase(addr(t, "hub::room1.lamp"), time.Now())}
	require.NoError(t, bus.Send(context.Background(), cmd))
	assert.NotNil(t, got)
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	bus := NewBus(time.Second, nil)
	cb := NewCircuitBreakerMiddleware(2, time.Hour, nil)
	bus.AddMiddleware(cb)

	topic := meta.MustParseName("room1.lamp")
	calls := 0
	require.NoError(t, bus.RegisterHandler(topic, func(_ context.Context, msg Message) (any, error) {
		calls++
		return nil, assert.AnError
	}))

	cmd := BinaryDataRequest{MessageBase: NewBase(addr(t, "hub::room1.lamp"), time.Now())}
	_ = bus.Send(context.Background(), cmd)
	_ = bus.Send(context.Background(), cmd)
	_ = bus.Send(context.Background(), cmd)

	assert.Equal(t, 2, calls, "circuit should open after 2 failures and block the 3rd call")
	assert.Equal(t, "open", cb.States()[topic.String()])
}

func TestAuditLogReplayEvents(t *testing.T) {
	bus := NewBus(time.Second, nil)
	audit := NewAuditLog(bus, 16)

	evt := PropertyChanged{MessageBase: NewBase(addr(t, "hub::room1.lamp"), time.Now())}
	require.NoError(t, bus.Publish(context.Background(), evt))

	recs := audit.ReplayEvents(time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.Len(t, recs, 1)
}
