package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kasuganosora/crayonmonsters/server/cache/local"
	cacheredis "github.com/kasuganosora/crayonmonsters/server/cache/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCacheDefaultsToLocal(t *testing.T) {
	c, err := NewCache(CacheConfig{})
	require.NoError(t, err)
	lc, ok := c.(*local.LocalCache)
	require.True(t, ok, "empty redis_addr must select the local cache")
	defer lc.Close()

	_, err = c.Get(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(local.ErrNotFound))
	assert.True(t, IsNotFound(cacheredis.ErrNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("load team: %w", local.ErrNotFound)))
	assert.False(t, IsNotFound(errors.New("connection refused")))
	assert.False(t, IsNotFound(nil))
}

func TestLocalPubSubAdapter(t *testing.T) {
	ps, err := NewPubSub(CacheConfig{LocalPubSubBuf: 4})
	require.NoError(t, err)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "match:42")
	require.NoError(t, err)

	require.NoError(t, ps.Publish(ctx, "match:42", `{"type":"turn_result"}`))
	select {
	case msg := <-ch:
		assert.Equal(t, "match:42", msg.Channel)
		assert.Equal(t, `{"type":"turn_result"}`, msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "adapter channel must close after cancel")
	case <-time.After(time.Second):
		t.Fatal("adapter channel not closed")
	}
}
