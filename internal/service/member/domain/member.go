// internal/service/member/domain/member.go
package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MembershipStatus 是记录库中的 CurrentStatus 取值
type MembershipStatus string

const (
	StatusConfirmed MembershipStatus = "Confirmed" // 已审核，尚未设置密码
	StatusActive    MembershipStatus = "Active"
	StatusApplied   MembershipStatus = "Applied" // 申请审核中
	StatusSuspended MembershipStatus = "Suspended"
)

// MembershipRecord 是记录库中一条会员记录的规范化视图。
// 记录库里缺失的数值字段在这里保持为 nil，便于 resync 时区分"没有值"和"值为 0"。
type MembershipRecord struct {
	ID               int
	DocumentID       string
	MembershipNumber string
	Name             string
	Email            string
	Status           MembershipStatus
	Class            string
	Address          string
	ExpiryDate       string
	Phone            string
	Cash             *decimal.Decimal
	DiscountPoint    *decimal.Decimal
	LoyaltyPoint     *decimal.Decimal
	CouponValue      *decimal.Decimal
	TotalValue       *decimal.Decimal
	CouponIDs        []string
}

// Member 是已登录会员的会话快照。JSON 字段名与前端组件使用的 cookie 保持一致。
type Member struct {
	Name          string          `json:"name"`
	Number        string          `json:"number"`
	Email         string          `json:"email"`
	Class         string          `json:"class"`
	Address       string          `json:"address"`
	Expiry        string          `json:"exp"`
	Cash          decimal.Decimal `json:"points"`
	DiscountPoint decimal.Decimal `json:"discount_point"`
	LoyaltyPoint  decimal.Decimal `json:"loyalty_point"`

	Phone       string           `json:"phone,omitempty"`
	Status      string           `json:"status,omitempty"`
	CouponValue *decimal.Decimal `json:"coupon_value,omitempty"`
	TotalValue  *decimal.Decimal `json:"total_value,omitempty"`
}

// NewMemberFromRecord 在登录或激活成功后根据记录构造会话快照。缺失的余额记为 0。
func NewMemberFromRecord(r *MembershipRecord) *Member {
	m := &Member{
		Name:          r.Name,
		Number:        r.MembershipNumber,
		Email:         NormalizeEmail(r.Email),
		Class:         r.Class,
		Address:       r.Address,
		Expiry:        r.ExpiryDate,
		Phone:         r.Phone,
		Status:        string(r.Status),
		Cash:          valueOrZero(r.Cash),
		DiscountPoint: valueOrZero(r.DiscountPoint),
		LoyaltyPoint:  valueOrZero(r.LoyaltyPoint),
		CouponValue:   r.CouponValue,
		TotalValue:    r.TotalValue,
	}
	return m
}

// Refresh 用最新记录覆盖快照；记录中缺失的字段保留原值。
func (m *Member) Refresh(r *MembershipRecord) {
	m.Name = stringOr(r.Name, m.Name)
	m.Number = stringOr(r.MembershipNumber, m.Number)
	m.Email = stringOr(NormalizeEmail(r.Email), m.Email)
	m.Class = stringOr(r.Class, m.Class)
	m.Address = stringOr(r.Address, m.Address)
	m.Expiry = stringOr(r.ExpiryDate, m.Expiry)
	m.Phone = stringOr(r.Phone, m.Phone)
	m.Status = stringOr(string(r.Status), m.Status)
	if r.Cash != nil {
		m.Cash = *r.Cash
	}
	if r.DiscountPoint != nil {
		m.DiscountPoint = *r.DiscountPoint
	}
	if r.LoyaltyPoint != nil {
		m.LoyaltyPoint = *r.LoyaltyPoint
	}
	if r.CouponValue != nil {
		m.CouponValue = r.CouponValue
	}
	if r.TotalValue != nil {
		m.TotalValue = r.TotalValue
	}
}

// Balances 返回当前快照中的可用余额
func (m *Member) Balances() Balances {
	return Balances{Cash: m.Cash, Discount: m.DiscountPoint}
}

// Equal 按值比较两个快照，decimal 按数值比较。
func (m *Member) Equal(o *Member) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.Name == o.Name &&
		m.Number == o.Number &&
		m.Email == o.Email &&
		m.Class == o.Class &&
		m.Address == o.Address &&
		m.Expiry == o.Expiry &&
		m.Phone == o.Phone &&
		m.Status == o.Status &&
		m.Cash.Equal(o.Cash) &&
		m.DiscountPoint.Equal(o.DiscountPoint) &&
		m.LoyaltyPoint.Equal(o.LoyaltyPoint) &&
		optionalEqual(m.CouponValue, o.CouponValue) &&
		optionalEqual(m.TotalValue, o.TotalValue)
}

// NormalizeEmail 邮箱比较统一使用去空格、小写后的形式
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func valueOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func optionalEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func stringOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
