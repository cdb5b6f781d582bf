// internal/service/member/domain/repository.go
package domain

import "context"

// Session 是会员会话的读写能力。
// 实现可以是 cookie、redis 或内存；Load 在未登录时返回 (nil, nil)。
type Session interface {
	Load(ctx context.Context) (*Member, error)
	// Save 写入快照；m 为 nil 时清除会话。
	Save(ctx context.Context, m *Member) error
}

// RedemptionRepository 定义了兑换流水的持久化接口。
type RedemptionRepository interface {
	// Save 保存一条兑换（用于创建或更新）。
	Save(ctx context.Context, r *Redemption) error

	FindByID(ctx context.Context, id string) (*Redemption, error)

	// ListByState 供支持人员对账，按更新时间倒序。
	ListByState(ctx context.Context, state RedemptionState, limit int) ([]*Redemption, error)
}
