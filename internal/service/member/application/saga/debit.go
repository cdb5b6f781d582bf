package saga

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"membermall/internal/pkg/logger"
	"membermall/internal/service/member/domain"
	"membermall/internal/service/member/domain/port"
)

const StepDebit = "debit"

// DebitHandler 重新读取权威记录后扣减两种余额，并把券挂到会员名下。
type DebitHandler struct {
	NextHandler
}

func (h *DebitHandler) Handle(rc *RedemptionContext) error {
	ctx, span := rc.Tracer.Start(rc.Ctx, "saga.Debit")
	defer span.End()

	r := rc.Redemption
	logger.Ctx(ctx).Info().Str("redemption", r.ID).Msg("【Saga】=> 步骤 3: 扣减余额...")

	record, err := rc.Store.FindByNumberAndEmail(ctx, r.MemberNumber, r.MemberEmail)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to reload member record")
		return rc.fail(StepDebit, fmt.Errorf("%w: %w", domain.ErrSettlementIncomplete, err))
	}

	current := domain.NewMemberFromRecord(record).Balances()
	next := domain.Balances{
		Cash:     current.Cash.Sub(r.CashDue),
		Discount: current.Discount.Sub(r.Deduction),
	}
	// 记录在确认之后被其他渠道修改过
	if next.Cash.IsNegative() || next.Discount.IsNegative() {
		err := fmt.Errorf("%w: balance changed during redemption (cash %s, discount %s)",
			domain.ErrSettlementIncomplete, current.Cash, current.Discount)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Balance no longer sufficient")
		return rc.fail(StepDebit, err)
	}

	span.SetAttributes(
		attribute.String("balance.cash.before", current.Cash.String()),
		attribute.String("balance.cash.after", next.Cash.String()),
		attribute.String("balance.discount.after", next.Discount.String()),
	)

	err = rc.Store.Update(ctx, record.DocumentID, port.MembershipUpdate{
		Cash:          &next.Cash,
		DiscountPoint: &next.Discount,
		CouponIDs:     AppendCoupon(record.CouponIDs, r.CouponID),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Balance update failed")
		return rc.fail(StepDebit, fmt.Errorf("%w: %w", domain.ErrSettlementIncomplete, err))
	}

	rc.Balances = next
	if err := r.MarkSettled(); err != nil {
		span.RecordError(err)
	}
	rc.saveJournal(ctx)
	span.AddEvent("Balances debited")

	return h.executeNext(rc)
}

// AppendCoupon 追加券 id 并去重，保持原有顺序
func AppendCoupon(ids []string, id string) []string {
	seen := make(map[string]struct{}, len(ids)+1)
	out := make([]string, 0, len(ids)+1)
	for _, v := range append(ids[:len(ids):len(ids)], id) {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
