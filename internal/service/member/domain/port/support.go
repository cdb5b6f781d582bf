package port

import (
	"context"

	"membermall/internal/service/member/domain"
)

// SupportNotifier 是需要人工介入事件的出站端口。
type SupportNotifier interface {
	NotifyNeedsSupport(ctx context.Context, event domain.NeedsSupportEvent) error
}

// RedemptionLock 保证同一会员同一时刻只有一笔兑换在处理。
// 已被占用时返回 domain.ErrRedemptionInProgress。
type RedemptionLock interface {
	Acquire(ctx context.Context, memberNumber string) (release func(context.Context), err error)
}

// VisibilityRule 决定某个商品是否对会员可见
type VisibilityRule interface {
	Visible(ctx context.Context, m *domain.Member, p domain.Product) (bool, error)
}
