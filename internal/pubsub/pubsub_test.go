package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBroker_PublishReachesAllSubscribers(t *testing.T) {
	b := NewBroker[string]()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := b.Subscribe(ctx)
	c := b.Subscribe(ctx)
	require.Equal(t, 2, b.SubscriberCount())

	b.Publish(CreatedEvent, "payload")

	for _, sub := range []<-chan Event[string]{a, c} {
		ev := <-sub
		require.Equal(t, CreatedEvent, ev.Type)
		require.Equal(t, "payload", ev.Payload)
		require.WithinDuration(t, time.Now(), ev.Timestamp, time.Second)
	}
}

func TestBroker_CancelRemovesSubscriber(t *testing.T) {
	b := NewBroker[int]()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub := b.Subscribe(ctx)
	cancel()

	require.Eventually(t, func() bool {
		return b.SubscriberCount() == 0
	}, time.Second, 5*time.Millisecond)

	_, open := <-sub
	require.False(t, open)
}

func TestBroker_CloseClosesSubscribers(t *testing.T) {
	b := NewBroker[int]()
	ctx := context.Background()
	sub := b.Subscribe(ctx)

	b.Close()
	_, open := <-sub
	require.False(t, open)

	// Operations after close are harmless no-ops.
	b.Publish(UpdatedEvent, 1)
	b.Close()
	late := b.Subscribe(ctx)
	_, open = <-late
	require.False(t, open)
}

func TestBroker_FullSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBrokerWithBuffer[int](1)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := b.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		b.Publish(CreatedEvent, 1)
		b.Publish(CreatedEvent, 2) // buffer full: dropped
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	ev := <-sub
	require.Equal(t, 1, ev.Payload)
	select {
	case ev := <-sub:
		t.Fatalf("unexpected second event: %v", ev.Payload)
	default:
	}
}
