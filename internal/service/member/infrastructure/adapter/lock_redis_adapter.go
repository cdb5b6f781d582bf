package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"membermall/internal/pkg/logger"
	"membermall/internal/service/member/domain"
)

// releaseScript 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`)

// RedemptionLockRedisAdapter 实现了 port.RedemptionLock。
// 同一会员同一时刻只允许一笔兑换进入结算，TTL 兜底进程崩溃后遗留的锁。
type RedemptionLockRedisAdapter struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedemptionLockRedisAdapter(client redis.UniversalClient, ttl time.Duration) *RedemptionLockRedisAdapter {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedemptionLockRedisAdapter{client: client, ttl: ttl}
}

func (a *RedemptionLockRedisAdapter) Acquire(ctx context.Context, memberNumber string) (func(context.Context), error) {
	key := fmt.Sprintf("member-mall:redeem:{%s}", memberNumber)
	token := uuid.NewString()

	ok, err := a.client.SetNX(ctx, key, token, a.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire redemption lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrRedemptionInProgress
	}

	return func(releaseCtx context.Context) {
		if err := releaseScript.Run(releaseCtx, a.client, []string{key}, token).Err(); err != nil {
			logger.Ctx(releaseCtx).Warn().Err(err).Str("key", key).Msg("Failed to release redemption lock")
		}
	}, nil
}
