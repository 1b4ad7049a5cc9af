package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusSendReceiveDelete(t *testing.T) {
	bus := NewMemoryBus(time.Second)
	ctx := context.Background()

	require.NoError(t, bus.Send(ctx, "q", []byte("one")))
	require.NoError(t, bus.Send(ctx, "q", []byte("two")))

	msgs, err := bus.Receive(ctx, "q", 10, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", string(msgs[0].Body))
	assert.Equal(t, "q", msgs[0].SourceQueue)
	assert.NotEmpty(t, msgs[0].ReceiptHandle)

	for _, m := range msgs {
		require.NoError(t, bus.Delete(ctx, m))
	}
	assert.Equal(t, 0, bus.Len("q"))
}

func TestMemoryBusEmptyQueueReturnsNil(t *testing.T) {
	bus := NewMemoryBus(time.Second)
	msgs, err := bus.Receive(context.Background(), "empty", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMemoryBusInvisibleWhileInFlight(t *testing.T) {
	bus := NewMemoryBus(time.Second)
	ctx := context.Background()
	require.NoError(t, bus.Send(ctx, "q", []byte("payload")))

	first, err := bus.Receive(ctx, "q", 1, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// In flight: a second receive within the visibility window sees
	// nothing.
	second, err := bus.Receive(ctx, "q", 1, 0)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestMemoryBusRedeliversUndeleted(t *testing.T) {
	bus := NewMemoryBus(50 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, bus.Send(ctx, "q", []byte("payload")))

	first, err := bus.Receive(ctx, "q", 1, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	time.Sleep(60 * time.Millisecond)

	again, err := bus.Receive(ctx, "q", 1, 1)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "payload", string(again[0].Body))
	assert.NotEqual(t, first[0].ReceiptHandle, again[0].ReceiptHandle)

	// The old handle is dead after redelivery.
	assert.Error(t, bus.Delete(ctx, first[0]))
	assert.NoError(t, bus.Delete(ctx, again[0]))
}

func TestMemoryBusDeleteUnknownHandle(t *testing.T) {
	bus := NewMemoryBus(time.Second)
	err := bus.Delete(context.Background(), Message{SourceQueue: "q", ReceiptHandle: "bogus"})
	assert.Error(t, err)
}
