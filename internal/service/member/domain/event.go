// internal/service/member/domain/event.go
package domain

import "time"

// NeedsSupportEvent 在兑换停在不一致中间态时发布，供 support-relay 消费
type NeedsSupportEvent struct {
	RedemptionID string    `json:"redemptionId"`
	MemberNumber string    `json:"memberNumber"`
	MemberEmail  string    `json:"memberEmail"`
	ProductName  string    `json:"productName"`
	CouponID     string    `json:"couponId"`
	CashDue      string    `json:"cashDue"`
	Deduction    string    `json:"deduction"`
	FailedStep   string    `json:"failedStep"`
	Reason       string    `json:"reason"`
	At           time.Time `json:"at"`
}

// NewNeedsSupportEvent 从流水构造事件，金额保留原始精度的字符串形式
func NewNeedsSupportEvent(r *Redemption) NeedsSupportEvent {
	return NeedsSupportEvent{
		RedemptionID: r.ID,
		MemberNumber: r.MemberNumber,
		MemberEmail:  r.MemberEmail,
		ProductName:  r.ProductName,
		CouponID:     r.CouponID,
		CashDue:      r.CashDue.String(),
		Deduction:    r.Deduction.String(),
		FailedStep:   r.FailedStep,
		Reason:       r.FailureReason,
		At:           r.UpdatedAt,
	}
}
