package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
)

func TestStartWithGracefulShutdownAndHooks_RunsHooksOnCancel(t *testing.T) {
	srv := NewServer(DefaultServerConfig("0"), http.NotFoundHandler())
	srv.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	hookCalled := make(chan struct{}, 1)
	hooks := []ShutdownHook{func(ctx context.Context) error {
		hookCalled <- struct{}{}
		return nil
	}}

	done := make(chan error, 1)
	go func() {
		done <- StartWithGracefulShutdownAndHooks(ctx, srv, logger.NewDiscard(), "test", hooks)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Len(t, hookCalled, 1)
}
