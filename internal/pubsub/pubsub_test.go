package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBroker_PublishDeliversToSubscriber(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := broker.Subscribe(ctx)
	broker.Publish(StageStarted, "acquire-repos")

	select {
	case event := <-ch:
		require.Equal(t, StageStarted, event.Type)
		require.Equal(t, "acquire-repos", event.Payload)
		require.False(t, event.Timestamp.IsZero())
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "timeout waiting for event")
	}
}

func TestBroker_MultipleSubscribersEachReceive(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	ctx := context.Background()
	a := broker.Subscribe(ctx)
	b := broker.Subscribe(ctx)

	broker.Publish(RunFinished, 42)

	for _, ch := range []<-chan Event[int]{a, b} {
		select {
		case event := <-ch:
			require.Equal(t, 42, event.Payload)
		case <-time.After(100 * time.Millisecond):
			require.Fail(t, "timeout waiting for event")
		}
	}
}

func TestBroker_ClosedBrokerReturnsClosedChannel(t *testing.T) {
	broker := NewBroker[string]()
	broker.Close()

	ch := broker.Subscribe(context.Background())
	_, open := <-ch
	require.False(t, open)

	// Publishing after close must not panic.
	broker.Publish(LogEvent, "late")
}

func TestBroker_CancelledContextRemovesSubscriber(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}
