package relay_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairlink/internal/domain"
	"pairlink/internal/relay"
)

func TestHTTP_PublishSubscribe(t *testing.T) {
	srv := httptest.NewServer(relay.NewServer().Handler())
	defer srv.Close()

	ctx := context.Background()
	a := relay.NewHTTP(srv.URL, srv.Client())
	b := relay.NewHTTP(srv.URL, srv.Client())
	a.PollWait, b.PollWait = 200*time.Millisecond, 200*time.Millisecond
	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))
	defer a.Stop(ctx)
	defer b.Stop(ctx)

	var aIn, bIn inbox
	require.NoError(t, a.Subscribe(ctx, "topic", aIn.handler))
	require.NoError(t, b.Subscribe(ctx, "topic", bIn.handler))

	require.NoError(t, a.Publish(ctx, "topic", []byte("hello")))
	require.NoError(t, a.Publish(ctx, "topic", []byte("world")))

	require.Eventually(t, func() bool { return len(bIn.snapshot()) == 2 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"hello", "world"}, bIn.snapshot())
	assert.Empty(t, aIn.snapshot())
	assert.Equal(t, relay.ProtocolHTTP, a.Protocol().Protocol)
}

func TestHTTP_SubscribeStartsAtHead(t *testing.T) {
	srv := httptest.NewServer(relay.NewServer().Handler())
	defer srv.Close()

	ctx := context.Background()
	a := relay.NewHTTP(srv.URL, srv.Client())
	b := relay.NewHTTP(srv.URL, srv.Client())
	b.PollWait = 100 * time.Millisecond
	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))
	defer b.Stop(ctx)

	require.NoError(t, a.Publish(ctx, "topic", []byte("old")))

	var bIn inbox
	require.NoError(t, b.Subscribe(ctx, "topic", bIn.handler))
	require.NoError(t, a.Publish(ctx, "topic", []byte("new")))

	require.Eventually(t, func() bool { return len(bIn.snapshot()) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"new"}, bIn.snapshot())
}

func TestHTTP_StartFailsWithoutServer(t *testing.T) {
	c := relay.NewHTTP("http://127.0.0.1:1", nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, c.Start(ctx))
}

func TestHTTP_SubscribeDoesNotBlockOtherTopics(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }

	inner := relay.NewServer().Handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/topics/slow" && r.URL.Query().Get("cursor") == "-1" {
			entered <- struct{}{}
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}
		inner.ServeHTTP(w, r)
	}))
	defer srv.Close()
	defer unblock()

	ctx := context.Background()
	c := relay.NewHTTP(srv.URL, srv.Client())
	c.PollWait = 100 * time.Millisecond
	require.NoError(t, c.Start(ctx))
	defer c.Stop(ctx)

	subscribed := make(chan error, 1)
	go func() {
		subscribed <- c.Subscribe(ctx, "slow", func(context.Context, domain.Topic, []byte) {})
	}()
	<-entered

	published := make(chan error, 1)
	go func() { published <- c.Publish(ctx, "fast", []byte("x")) }()
	select {
	case err := <-published:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("publish waited on another topic's subscribe")
	}
	assert.True(t, c.Connected())
	require.NoError(t, c.Unsubscribe(ctx, "fast"))

	unblock()
	require.NoError(t, <-subscribed)
}
