package saga

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"membermall/internal/pkg/logger"
	"membermall/internal/service/member/domain"
	"membermall/internal/service/member/domain/port"
)

// RedemptionContext 在结算链中传递上下文数据，所有外部依赖都是端口接口。
type RedemptionContext struct {
	Ctx        context.Context
	Redemption *domain.Redemption
	Member     *domain.Member
	Quote      domain.Quote
	Tracer     trace.Tracer

	Coupons        port.CouponIssuer
	Mailer         port.Mailer
	Store          port.MembershipStore
	Journal        domain.RedemptionRepository
	Support        port.SupportNotifier
	CouponValidity time.Duration

	// 链执行过程中产出的结果
	Coupon   *port.Coupon
	Balances domain.Balances

	// 出券之后的失败不回滚，补偿只负责登记人工处理
	compensations []func(ctx context.Context)
	compLock      sync.Mutex
}

func (c *RedemptionContext) AddCompensation(comp func(ctx context.Context)) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]func(context.Context){comp}, c.compensations...)
}

func (c *RedemptionContext) TriggerCompensation(ctx context.Context) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	logger.Ctx(ctx).Info().
		Str("redemption", c.Redemption.ID).
		Int("count", len(c.compensations)).
		Msg("Executing compensation functions")
	for _, comp := range c.compensations {
		comp(ctx)
	}
}

// fail 记录失败的步骤，供补偿与流水使用
func (c *RedemptionContext) fail(step string, err error) error {
	c.Redemption.FailedStep = step
	c.Redemption.FailureReason = err.Error()
	return err
}

// saveJournal 流水写入失败不影响结算结果，只记录日志
func (c *RedemptionContext) saveJournal(ctx context.Context) {
	if c.Journal == nil {
		return
	}
	if err := c.Journal.Save(ctx, c.Redemption); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("redemption", c.Redemption.ID).
			Str("state", string(c.Redemption.State)).
			Msg("Failed to save redemption journal")
	}
}

type Handler interface {
	SetNext(handler Handler) Handler
	Handle(rc *RedemptionContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(rc *RedemptionContext) error {
	if h.next != nil {
		return h.next.Handle(rc)
	}
	return nil
}

// NewChain 按 出券 -> 通知 -> 扣减 的顺序组装结算链，每一步成功后才进入下一步。
func NewChain() Handler {
	chain := new(IssueCouponHandler)
	chain.SetNext(new(NotifyHandler)).
		SetNext(new(DebitHandler))
	return chain
}
