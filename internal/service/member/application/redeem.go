// internal/service/member/application/redeem.go
package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"membermall/internal/pkg/logger"
	"membermall/internal/pkg/metrics"
	"membermall/internal/service/member/application/saga"
	"membermall/internal/service/member/domain"
	"membermall/internal/service/member/domain/port"
)

// RedemptionConfig 是结算流程的可调参数
type RedemptionConfig struct {
	ProcessingTimeout time.Duration
	CouponValidity    time.Duration
	QRImageURL        string
}

// RedemptionService 只关注结算流程编排。
type RedemptionService struct {
	cfg     RedemptionConfig
	tracer  trace.Tracer
	catalog *CatalogService

	store   port.MembershipStore
	coupons port.CouponIssuer
	mailer  port.Mailer
	journal domain.RedemptionRepository
	support port.SupportNotifier // 可为 nil
	lock    port.RedemptionLock  // 可为 nil
}

func NewRedemptionService(cfg RedemptionConfig, tracer trace.Tracer, catalog *CatalogService, store port.MembershipStore, coupons port.CouponIssuer, mailer port.Mailer, journal domain.RedemptionRepository, support port.SupportNotifier, lock port.RedemptionLock) *RedemptionService {
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 30 * time.Second
	}
	if cfg.CouponValidity <= 0 {
		cfg.CouponValidity = 365 * 24 * time.Hour
	}
	return &RedemptionService{
		cfg: cfg, tracer: tracer, catalog: catalog,
		store: store, coupons: coupons, mailer: mailer,
		journal: journal, support: support, lock: lock,
	}
}

// Quote 计算确认页的展示数据。Fixed 商品金额不合法时返回 enter_amount 状态而不是错误。
func (s *RedemptionService) Quote(ctx context.Context, sess domain.Session, req RedeemRequest) (*QuoteView, error) {
	ctx, span := s.tracer.Start(ctx, "app.Quote")
	defer span.End()

	m, err := currentMember(ctx, sess)
	if err != nil {
		return nil, err
	}
	product, err := s.catalog.Find(ctx, m, req.ProductID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	q, err := domain.NewQuote(product, req.Amount, domain.ParseDeduction(req.Deduction), m.Balances())
	if errors.Is(err, domain.ErrInvalidAmount) {
		return &QuoteView{
			ProductID: product.DocumentID,
			Kind:      product.Kind(),
			Button:    domain.ButtonEnterAmount,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return toQuoteView(q), nil
}

// Redeem 执行一次兑换：出券 -> 通知 -> 扣减。
// 会话快照上的校验失败不会产生任何结算调用；通过后以记录库的最新余额再计价一次。
// 流程一旦开始就不随请求取消，只受 ProcessingTimeout 限制。
func (s *RedemptionService) Redeem(ctx context.Context, sess domain.Session, req RedeemRequest) (*RedeemResult, error) {
	ctx, span := s.tracer.Start(ctx, "app.Redeem")
	defer span.End()
	start := time.Now()

	m, err := currentMember(ctx, sess)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("member.number", m.Number),
		attribute.String("product.id", req.ProductID),
	)

	product, err := s.catalog.Find(ctx, m, req.ProductID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	kind := string(product.Kind())
	requested := domain.ParseDeduction(req.Deduction)

	// 1. 会话快照预检
	q, err := domain.NewQuote(product, req.Amount, requested, m.Balances())
	if err == nil {
		err = q.Err()
	}
	if err != nil {
		metrics.Redemptions.WithLabelValues("rejected", kind).Inc()
		span.SetAttributes(attribute.String("redemption.rejected", err.Error()))
		return nil, err
	}

	// 下游未配置时在出券前拒绝，避免券已发出却通知不了
	if err := s.ready(ctx, q.Kind); err != nil {
		metrics.Redemptions.WithLabelValues("not_configured", kind).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "Settlement services not configured")
		return nil, err
	}

	if s.lock != nil {
		release, err := s.lock.Acquire(ctx, m.Number)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		defer release(context.WithoutCancel(ctx))
	}

	// 2. 与请求生命周期解耦，但保留 trace 与日志上下文
	processingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ProcessingTimeout)
	defer cancel()

	// 3. 以记录库的最新余额重新计价
	record, err := s.store.FindByNumberAndEmail(processingCtx, m.Number, m.Email)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to refresh balances")
		return nil, err
	}
	m.Refresh(record)
	q, err = domain.NewQuote(product, req.Amount, requested, m.Balances())
	if err == nil {
		err = q.Err()
	}
	if err != nil {
		metrics.Redemptions.WithLabelValues("rejected", kind).Inc()
		// 余额已变化，把最新值写回会话，前端据此刷新
		if saveErr := sess.Save(ctx, m); saveErr != nil {
			logger.Ctx(ctx).Warn().Err(saveErr).Msg("Failed to save refreshed session")
		}
		return nil, err
	}

	redemption, err := domain.NewRedemption(uuid.New().String(), m, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.journal.Save(processingCtx, redemption); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to save initial redemption")
		logger.Ctx(ctx).Error().Err(err).Str("redemption", redemption.ID).Msg("Failed to save initial redemption")
		return nil, err
	}
	span.SetAttributes(attribute.String("redemption.id", redemption.ID))

	rc := &saga.RedemptionContext{
		Ctx:            processingCtx,
		Redemption:     redemption,
		Member:         m,
		Quote:          q,
		Tracer:         s.tracer,
		Coupons:        s.coupons,
		Mailer:         s.mailer,
		Store:          s.store,
		Journal:        s.journal,
		Support:        s.support,
		CouponValidity: s.cfg.CouponValidity,
	}

	logger.Ctx(ctx).Info().
		Str("redemption", redemption.ID).
		Str("member", m.Number).
		Str("product", product.Name).
		Str("cash_due", q.CashDue.String()).
		Str("deduction", q.Deduction.String()).
		Msg("Starting redemption")

	if err := saga.NewChain().Handle(rc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Redemption chain failed")
		outcome := "failed"
		if redemption.CouponIssued() {
			outcome = "needs_support"
			rc.TriggerCompensation(processingCtx)
		} else {
			redemption.MarkFailed(redemption.FailedStep, redemption.FailureReason)
			if saveErr := s.journal.Save(processingCtx, redemption); saveErr != nil {
				logger.Ctx(ctx).Error().Err(saveErr).Str("redemption", redemption.ID).Msg("Failed to mark redemption as FAILED")
			}
		}
		metrics.Redemptions.WithLabelValues(outcome, kind).Inc()
		metrics.RedemptionDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		logger.Ctx(ctx).Error().Err(err).Str("redemption", redemption.ID).Str("outcome", outcome).Msg("Redemption failed")
		return nil, err
	}

	m.Cash = rc.Balances.Cash
	m.DiscountPoint = rc.Balances.Discount
	if err := sess.Save(ctx, m); err != nil {
		// 记录库已扣减，会话下次 resync 时会追上
		logger.Ctx(ctx).Warn().Err(err).Str("redemption", redemption.ID).Msg("Failed to update session after redemption")
	}

	metrics.Redemptions.WithLabelValues("settled", kind).Inc()
	metrics.RedemptionDuration.WithLabelValues("settled").Observe(time.Since(start).Seconds())
	logger.Ctx(ctx).Info().Str("redemption", redemption.ID).Str("coupon", redemption.CouponID).Msg("Redemption settled")

	return newRedeemResult(redemption, rc.Balances, s.cfg.QRImageURL), nil
}

// ready 检查本次兑换会用到的下游，现场付款不发邮件
func (s *RedemptionService) ready(ctx context.Context, kind domain.Kind) error {
	if err := s.coupons.Ready(ctx); err != nil {
		return err
	}
	if kind == domain.KindPayOnSite {
		return nil
	}
	return s.mailer.Ready(ctx)
}
