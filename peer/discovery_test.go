package peer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticDiscoveryEmitsInitialPeersOnSubscribe(t *testing.T) {
	d := NewStaticDiscovery(map[string]string{"hub-2": "10.0.0.2:7700"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := d.Discover(ctx)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, HubAppeared, ev.Kind)
		assert.Equal(t, "hub-2", ev.Name)
		assert.Equal(t, "10.0.0.2:7700", ev.Target)
	case <-time.After(time.Second):
		t.Fatal("expected an initial HubAppeared event")
	}
}

func TestStaticDiscoveryBroadcastsUpdateAndRemove(t *testing.T) {
	d := NewStaticDiscovery(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := d.Discover(ctx)
	require.NoError(t, err)

	d.Update("hub-3", "10.0.0.3:7700")
	select {
	case ev := <-events:
		assert.Equal(t, HubAppeared, ev.Kind)
		assert.Equal(t, "hub-3", ev.Name)
	case <-time.After(time.Second):
		t.Fatal("expected HubAppeared after Update")
	}

	d.Remove("hub-3")
	select {
	case ev := <-events:
		assert.Equal(t, HubDisappeared, ev.Kind)
		assert.Equal(t, "hub-3", ev.Name)
	case <-time.After(time.Second):
		t.Fatal("expected HubDisappeared after Remove")
	}
}

func TestStaticDiscoveryClosesChannelWhenContextCancelled(t *testing.T) {
	d := NewStaticDiscovery(nil)
	ctx, cancel := context.WithCancel(context.Background())
	events, err := d.Discover(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok, "channel should be closed after context cancellation")
	case <-time.After(time.Second):
		t.Fatal("expected channel to close after cancellation")
	}
}
