package relay_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairlink/internal/domain"
	"pairlink/internal/errs"
	"pairlink/internal/relay"
)

type inbox struct {
	mu   sync.Mutex
	msgs []string
}

func (in *inbox) handler(_ context.Context, _ domain.Topic, payload []byte) {
	in.mu.Lock()
	in.msgs = append(in.msgs, string(payload))
	in.mu.Unlock()
}

func (in *inbox) snapshot() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]string(nil), in.msgs...)
}

func TestMemory_DeliversInOrderAndSkipsSelf(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	a, b := hub.Client(), hub.Client()
	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))

	var aIn, bIn inbox
	require.NoError(t, a.Subscribe(ctx, "t", aIn.handler))
	require.NoError(t, b.Subscribe(ctx, "t", bIn.handler))

	for _, m := range []string{"1", "2", "3"} {
		require.NoError(t, a.Publish(ctx, "t", []byte(m)))
	}

	require.Eventually(t, func() bool { return len(bIn.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"1", "2", "3"}, bIn.snapshot())
	assert.Empty(t, aIn.snapshot())
}

func TestMemory_ResubscribeReplacesHandler(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	a, b := hub.Client(), hub.Client()
	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))

	var first, second inbox
	require.NoError(t, b.Subscribe(ctx, "t", first.handler))
	require.NoError(t, b.Subscribe(ctx, "t", second.handler))
	assert.Equal(t, 1, b.Subscriptions())

	require.NoError(t, a.Publish(ctx, "t", []byte("x")))
	require.Eventually(t, func() bool { return len(second.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, first.snapshot())
}

func TestMemory_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	a, b := hub.Client(), hub.Client()
	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))

	var in inbox
	require.NoError(t, b.Subscribe(ctx, "t", in.handler))
	require.NoError(t, b.Unsubscribe(ctx, "t"))
	assert.False(t, b.Subscribed("t"))

	require.NoError(t, a.Publish(ctx, "t", []byte("x")))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, in.snapshot())
}

func TestMemory_RequiresStart(t *testing.T) {
	c := relay.NewMemoryHub().Client()
	err := c.Publish(context.Background(), "t", nil)
	assert.True(t, errs.Is(err, errs.CodeTransport))
}
