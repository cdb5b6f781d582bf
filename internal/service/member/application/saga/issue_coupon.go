package saga

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"membermall/internal/pkg/logger"
	"membermall/internal/service/member/domain"
	"membermall/internal/service/member/domain/port"
)

const StepIssueCoupon = "issue_coupon"

// IssueCouponHandler 向券服务申请一张 active 状态的券。
// 这一步失败时外部没有任何副作用。
type IssueCouponHandler struct {
	NextHandler
}

func (h *IssueCouponHandler) Handle(rc *RedemptionContext) error {
	ctx, span := rc.Tracer.Start(rc.Ctx, "saga.IssueCoupon")
	defer span.End()

	r := rc.Redemption
	span.SetAttributes(
		attribute.String("redemption.id", r.ID),
		attribute.String("coupon.value", r.CashDue.String()),
		attribute.String("coupon.assigned_from", r.Issuer),
	)
	logger.Ctx(ctx).Info().Str("redemption", r.ID).Msg("【Saga】=> 步骤 1: 申请券...")

	coupon, err := rc.Coupons.Issue(ctx, port.CouponRequest{
		Title:        rc.Quote.Product.Name,
		Description:  rc.Quote.Product.Description,
		Expiry:       time.Now().Add(rc.CouponValidity),
		AssignedFrom: r.Issuer,
		AssignedTo:   r.MemberName,
		Value:        r.CashDue,
	})
	if err == nil && !coupon.Active() {
		status := ""
		if coupon != nil {
			status = coupon.Status
		}
		err = fmt.Errorf("coupon status %q", status)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Coupon issuance failed")
		return rc.fail(StepIssueCoupon, fmt.Errorf("%w: %w", domain.ErrCouponIssueFailed, err))
	}

	if err := r.MarkCouponIssued(coupon.ID, coupon.QRData); err != nil {
		span.RecordError(err)
		return rc.fail(StepIssueCoupon, err)
	}
	rc.Coupon = coupon
	rc.saveJournal(ctx)

	// 券已存在，之后任何一步失败都只能登记人工处理
	rc.AddCompensation(func(compCtx context.Context) {
		compCtx, compSpan := rc.Tracer.Start(compCtx, "saga.compensation.NeedsSupport")
		defer compSpan.End()

		r.MarkNeedsSupport(r.FailedStep, r.FailureReason)
		rc.saveJournal(compCtx)

		logger.Ctx(compCtx).Error().
			Str("redemption", r.ID).
			Str("member", r.MemberNumber).
			Str("coupon", r.CouponID).
			Str("step", r.FailedStep).
			Str("reason", r.FailureReason).
			Msg("CRITICAL: coupon issued but redemption not settled, manual intervention required")

		if rc.Support == nil {
			return
		}
		if err := rc.Support.NotifyNeedsSupport(compCtx, domain.NewNeedsSupportEvent(r)); err != nil {
			compSpan.RecordError(err)
			logger.Ctx(compCtx).Error().Err(err).Str("redemption", r.ID).Msg("Failed to publish support event")
		}
	})

	span.AddEvent("Coupon issued")
	return h.executeNext(rc)
}
