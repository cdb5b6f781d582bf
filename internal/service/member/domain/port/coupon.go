package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CouponStatusActive 是券服务成功创建券时返回的状态
const CouponStatusActive = "active"

// CouponRequest 描述要创建的券
type CouponRequest struct {
	Title        string
	Description  string
	Expiry       time.Time
	AssignedFrom string
	AssignedTo   string
	Value        decimal.Decimal
}

// Coupon 是券服务的返回
type Coupon struct {
	ID     string
	Status string
	QRData string
}

func (c *Coupon) Active() bool {
	return c != nil && c.Status == CouponStatusActive
}

// CouponIssuer 是券服务的出站端口。
type CouponIssuer interface {
	// Ready 在地址未配置时返回 domain.ErrNotConfigured，不发起请求。
	Ready(ctx context.Context) error
	Issue(ctx context.Context, req CouponRequest) (*Coupon, error)
}

// CouponMail 是发送给会员的券邮件
type CouponMail struct {
	Name   string
	Email  string
	QRData string
	Title  string
}

// Mailer 是邮件服务的出站端口。
type Mailer interface {
	Ready(ctx context.Context) error
	SendCoupon(ctx context.Context, mail CouponMail) error
}
