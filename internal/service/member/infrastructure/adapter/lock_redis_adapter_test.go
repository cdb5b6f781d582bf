package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membermall/internal/service/member/domain"
)

func newLock(t *testing.T) (*RedemptionLockRedisAdapter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedemptionLockRedisAdapter(client, 30*time.Second), mr
}

func TestRedemptionLock(t *testing.T) {
	lock, _ := newLock(t)
	ctx := context.Background()

	release, err := lock.Acquire(ctx, "M001")
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, "M001")
	assert.ErrorIs(t, err, domain.ErrRedemptionInProgress)

	// 不同会员互不影响
	other, err := lock.Acquire(ctx, "M002")
	require.NoError(t, err)
	defer other(ctx)

	release(ctx)
	again, err := lock.Acquire(ctx, "M001")
	require.NoError(t, err)
	again(ctx)
}

func TestRedemptionLock_ExpiredLockIsNotReleasedByOldOwner(t *testing.T) {
	lock, mr := newLock(t)
	ctx := context.Background()

	stale, err := lock.Acquire(ctx, "M001")
	require.NoError(t, err)
	mr.FastForward(time.Minute)

	_, err = lock.Acquire(ctx, "M001")
	require.NoError(t, err)

	stale(ctx)
	_, err = lock.Acquire(ctx, "M001")
	assert.ErrorIs(t, err, domain.ErrRedemptionInProgress, "old owner must not delete the new lock")
}
