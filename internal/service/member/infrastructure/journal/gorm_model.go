package journal

import (
	"time"

	"github.com/shopspring/decimal"

	"membermall/internal/service/member/domain"
)

// RedemptionModel 对应数据库中的 redemption_journal 表
type RedemptionModel struct {
	ID            string          `gorm:"primaryKey;size:36"`
	MemberNumber  string          `gorm:"index;size:64"`
	MemberName    string          `gorm:"size:255"`
	MemberEmail   string          `gorm:"size:255"`
	ProductID     string          `gorm:"size:64"`
	ProductName   string          `gorm:"size:255"`
	Kind          string          `gorm:"size:16"`
	Issuer        string          `gorm:"size:128"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4)"`
	Deduction     decimal.Decimal `gorm:"type:decimal(18,4)"`
	CashDue       decimal.Decimal `gorm:"type:decimal(18,4)"`
	CouponID      string          `gorm:"size:128"`
	QRData        string          `gorm:"type:text"`
	State         string          `gorm:"index;size:16"`
	FailedStep    string          `gorm:"size:32"`
	FailureReason string          `gorm:"type:text"`
	CreatedAt     time.Time       `gorm:"index"`
	UpdatedAt     time.Time       `gorm:"index"`
}

// TableName 指定 GORM 应该使用的表名
func (RedemptionModel) TableName() string {
	return "redemption_journal"
}

func toModel(r *domain.Redemption) *RedemptionModel {
	return &RedemptionModel{
		ID:            r.ID,
		MemberNumber:  r.MemberNumber,
		MemberName:    r.MemberName,
		MemberEmail:   r.MemberEmail,
		ProductID:     r.ProductID,
		ProductName:   r.ProductName,
		Kind:          string(r.Kind),
		Issuer:        r.Issuer,
		Amount:        r.Amount,
		Deduction:     r.Deduction,
		CashDue:       r.CashDue,
		CouponID:      r.CouponID,
		QRData:        r.QRData,
		State:         string(r.State),
		FailedStep:    r.FailedStep,
		FailureReason: r.FailureReason,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func toDomain(m *RedemptionModel) *domain.Redemption {
	return &domain.Redemption{
		ID:            m.ID,
		MemberNumber:  m.MemberNumber,
		MemberName:    m.MemberName,
		MemberEmail:   m.MemberEmail,
		ProductID:     m.ProductID,
		ProductName:   m.ProductName,
		Kind:          domain.Kind(m.Kind),
		Issuer:        m.Issuer,
		Amount:        m.Amount,
		Deduction:     m.Deduction,
		CashDue:       m.CashDue,
		CouponID:      m.CouponID,
		QRData:        m.QRData,
		State:         domain.RedemptionState(m.State),
		FailedStep:    m.FailedStep,
		FailureReason: m.FailureReason,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
