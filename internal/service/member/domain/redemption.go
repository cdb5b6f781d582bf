// internal/service/member/domain/redemption.go
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// RedemptionState 定义了一次兑换在流水中的生命周期状态
type RedemptionState string

const (
	RedemptionPending      RedemptionState = "PENDING"       // 已通过计价校验，尚未出券
	RedemptionCouponIssued RedemptionState = "COUPON_ISSUED" // 券服务返回 active
	RedemptionNotified     RedemptionState = "NOTIFIED"      // 邮件已发送，或到店付商品跳过
	RedemptionSettled      RedemptionState = "SETTLED"       // 余额已扣减
	RedemptionFailed       RedemptionState = "FAILED"        // 出券前失败，无副作用
	RedemptionNeedsSupport RedemptionState = "NEEDS_SUPPORT" // 已出券但后续步骤失败
)

// Redemption 是兑换流水的聚合根。记录库不保存它，只有本服务的流水表保存。
type Redemption struct {
	ID           string
	MemberNumber string
	MemberName   string
	MemberEmail  string
	ProductID    string
	ProductName  string
	Kind         Kind
	Issuer       string

	Amount    decimal.Decimal
	Deduction decimal.Decimal
	CashDue   decimal.Decimal

	CouponID string
	QRData   string

	State         RedemptionState
	FailedStep    string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewRedemption 根据计价结果创建一条待处理的兑换
func NewRedemption(id string, m *Member, q Quote) (*Redemption, error) {
	if id == "" || m == nil || m.Number == "" {
		return nil, errors.New("cannot create redemption with empty required fields")
	}
	now := time.Now()
	return &Redemption{
		ID:           id,
		MemberNumber: m.Number,
		MemberName:   m.Name,
		MemberEmail:  m.Email,
		ProductID:    q.Product.DocumentID,
		ProductName:  q.Product.Name,
		Kind:         q.Kind,
		Issuer:       q.Product.Issuer(),
		Amount:       q.Price,
		Deduction:    q.Deduction,
		CashDue:      q.CashDue,
		State:        RedemptionPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (r *Redemption) MarkCouponIssued(couponID, qrData string) error {
	if r.State != RedemptionPending {
		return errors.New("coupon can only be recorded on a pending redemption")
	}
	r.CouponID = couponID
	r.QRData = qrData
	r.State = RedemptionCouponIssued
	r.UpdatedAt = time.Now()
	return nil
}

func (r *Redemption) MarkNotified() error {
	if r.State != RedemptionCouponIssued {
		return errors.New("only a redemption with an issued coupon can be notified")
	}
	r.State = RedemptionNotified
	r.UpdatedAt = time.Now()
	return nil
}

func (r *Redemption) MarkSettled() error {
	if r.State != RedemptionNotified {
		return errors.New("only a notified redemption can be settled")
	}
	r.State = RedemptionSettled
	r.UpdatedAt = time.Now()
	return nil
}

// MarkFailed 出券前失败。出券后的失败要走 MarkNeedsSupport。
func (r *Redemption) MarkFailed(step, reason string) {
	r.State = RedemptionFailed
	r.FailedStep = step
	r.FailureReason = reason
	r.UpdatedAt = time.Now()
}

// MarkNeedsSupport 记录一个已出券但未结算完成的不一致状态，等待人工处理
func (r *Redemption) MarkNeedsSupport(step, reason string) {
	r.State = RedemptionNeedsSupport
	r.FailedStep = step
	r.FailureReason = reason
	r.UpdatedAt = time.Now()
}

// CouponIssued 表示外部已经存在对应的券
func (r *Redemption) CouponIssued() bool {
	return r.CouponID != ""
}
