package saga

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"membermall/internal/pkg/logger"
	"membermall/internal/service/member/domain"
	"membermall/internal/service/member/domain/port"
)

const StepNotify = "notify"

// NotifyHandler 把券通过邮件发给会员。到店付商品直接展示券码，跳过邮件。
// 与订单流程不同，这里邮件失败是阻断性的：未通知成功不扣余额。
type NotifyHandler struct {
	NextHandler
}

func (h *NotifyHandler) Handle(rc *RedemptionContext) error {
	ctx, span := rc.Tracer.Start(rc.Ctx, "saga.Notify")
	defer span.End()

	r := rc.Redemption
	span.SetAttributes(attribute.String("redemption.kind", string(r.Kind)))

	if r.Kind == domain.KindPayOnSite {
		span.AddEvent("Pay-on-site product, notification skipped")
	} else {
		logger.Ctx(ctx).Info().Str("redemption", r.ID).Msg("【Saga】=> 步骤 2: 发送券邮件...")
		err := rc.Mailer.SendCoupon(ctx, port.CouponMail{
			Name:   r.MemberName,
			Email:  r.MemberEmail,
			QRData: r.QRData,
			Title:  r.ProductName,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Coupon notification failed")
			return rc.fail(StepNotify, fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err))
		}
		span.AddEvent("Coupon mail sent")
	}

	if err := r.MarkNotified(); err != nil {
		span.RecordError(err)
		return rc.fail(StepNotify, err)
	}
	rc.saveJournal(ctx)

	return h.executeNext(rc)
}
