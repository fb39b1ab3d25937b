package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/crypt-ledger/internal/common/jwtverify"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
)

type routerFunc func(ctx context.Context, client *Client, msg *WSMessage) error

func (f routerFunc) Route(ctx context.Context, client *Client, msg *WSMessage) error {
	return f(ctx, client, msg)
}

func testClient(externalID string) *Client {
	c := &Client{ctx: context.Background()}
	c.Authenticate(jwtverify.Claims{ExternalID: externalID})
	return c
}

func TestMessageProcessor_ShardIsStablePerUser(t *testing.T) {
	p := NewMessageProcessor(4, routerFunc(func(context.Context, *Client, *WSMessage) error { return nil }), logger.NewDiscard(), 4, time.Second)
	defer p.Shutdown()

	for _, id := range []string{"100", "200", "300"} {
		shard := p.shardFor(id)
		assert.GreaterOrEqual(t, shard, 0)
		assert.Less(t, shard, 4)
		assert.Equal(t, shard, p.shardFor(id))
	}
}

func TestMessageProcessor_RecoversFromPanic(t *testing.T) {
	var calls atomic.Int32
	processed := make(chan struct{})
	router := routerFunc(func(ctx context.Context, client *Client, msg *WSMessage) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		close(processed)
		return nil
	})
	p := NewMessageProcessor(1, router, logger.NewDiscard(), 4, time.Second)
	defer p.Shutdown()

	client := testClient("100")
	require.True(t, p.Submit(context.Background(), client, &WSMessage{Type: TypeCommand}))
	require.True(t, p.Submit(context.Background(), client, &WSMessage{Type: TypeCommand}))

	select {
	case <-processed:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
}

func TestMessageProcessor_RejectsWhenFull(t *testing.T) {
	release := make(chan struct{})
	router := routerFunc(func(ctx context.Context, client *Client, msg *WSMessage) error {
		<-release
		return nil
	})
	p := NewMessageProcessor(1, router, logger.NewDiscard(), 1, time.Second)

	client := testClient("100")
	accepted := 0
	for i := 0; i < 5; i++ {
		if p.Submit(context.Background(), client, &WSMessage{Type: TypeCommand}) {
			accepted++
		}
	}
	assert.Less(t, accepted, 5)

	close(release)
	p.Shutdown()
	assert.False(t, p.Submit(context.Background(), client, &WSMessage{Type: TypeCommand}))
}

func TestMessageProcessor_ShutdownDrainsQueue(t *testing.T) {
	var mu sync.Mutex
	var seen []MessageType
	router := routerFunc(func(ctx context.Context, client *Client, msg *WSMessage) error {
		mu.Lock()
		seen = append(seen, msg.Type)
		mu.Unlock()
		return nil
	})
	p := NewMessageProcessor(2, router, logger.NewDiscard(), 8, time.Second)

	client := testClient("100")
	require.True(t, p.Submit(context.Background(), client, &WSMessage{Type: TypeCommand}))
	require.True(t, p.Submit(context.Background(), client, &WSMessage{Type: TypeMessage}))
	p.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []MessageType{TypeCommand, TypeMessage}, seen)
}
