package redis

import (
	"testing"
	"time"

	"github.com/rocketscienceinc/tictactoe-program/internal/entity"
	"github.com/rocketscienceinc/tictactoe-program/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_PublishSubscribe(t *testing.T) {
	ctx, st := suite.New(t)

	client := New(st.Storage)
	followed := entity.Key{0x01}

	// Given: a subscriber following one account
	updates, closeFn, err := client.Subscribe(ctx, followed)
	require.NoError(t, err)
	defer closeFn()

	// When: both that account and another one change
	require.NoError(t, client.Publish(ctx, entity.Key{0x02}, []byte("other")))
	require.NoError(t, client.Publish(ctx, followed, []byte("mine")))

	// Then: only the followed account's change arrives
	select {
	case payload := <-updates:
		assert.Equal(t, []byte("mine"), payload)
	case <-time.After(5 * time.Second):
		t.Fatal("no update received")
	}
}
