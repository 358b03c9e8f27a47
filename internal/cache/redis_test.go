package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-inbox/internal/calls"
)

func newSnapshots(t *testing.T, ttl time.Duration) (*RedisSnapshots, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisSnapshots(rdb, "", ttl), mr
}

func TestRedisSnapshots_RoundTrip(t *testing.T) {
	c, _ := newSnapshots(t, 0)
	ctx := context.Background()

	list := []calls.Call{{
		ID:        "c1",
		CallType:  calls.CallTypeVoicemail,
		Direction: calls.DirectionInbound,
		CreatedAt: time.Date(2022, 1, 5, 9, 15, 20, 0, time.UTC),
		Duration:  42,
		From:      "+1",
		To:        "+2",
		Notes:     []calls.Note{{ID: "n1", Content: "left a message"}},
	}}
	require.NoError(t, c.Save(ctx, 7, list))

	got, version, err := c.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), version)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ID)
	assert.True(t, got[0].CreatedAt.Equal(list[0].CreatedAt))
	assert.Equal(t, "left a message", got[0].Notes[0].Content)
}

func TestRedisSnapshots_Miss(t *testing.T) {
	c, _ := newSnapshots(t, 0)
	_, _, err := c.Restore(context.Background())
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisSnapshots_Expires(t *testing.T) {
	c, mr := newSnapshots(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Save(ctx, 1, nil))

	mr.FastForward(2 * time.Minute)

	_, _, err := c.Restore(ctx)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisSnapshots_Clear(t *testing.T) {
	c, mr := newSnapshots(t, 0)
	ctx := context.Background()
	require.NoError(t, c.Save(ctx, 1, nil))
	require.NoError(t, c.Clear(ctx))
	assert.False(t, mr.Exists(defaultKey))
}

func TestRedisSnapshots_CorruptPayload(t *testing.T) {
	c, mr := newSnapshots(t, 0)
	require.NoError(t, mr.Set(defaultKey, "{not json"))
	_, _, err := c.Restore(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}
