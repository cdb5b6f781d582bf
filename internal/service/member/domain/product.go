// internal/service/member/domain/product.go
package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultIssuer 是商品未配置供应商时券的发放方
const DefaultIssuer = "1club"

// Kind 区分两种结算方式
type Kind string

const (
	// KindFixedPrice 目录价商品，券通过邮件发送
	KindFixedPrice Kind = "fixed_price"
	// KindPayOnSite 由会员自行输入金额（记录库中的 Fixed 标记），券码直接展示给店员
	KindPayOnSite Kind = "pay_on_site"
)

// Product 是目录中的一个只读商品快照
type Product struct {
	ID           int
	DocumentID   string
	Name         string
	Description  string
	IconURL      string
	Price        decimal.Decimal
	Fixed        bool
	MaxDeduction decimal.Decimal
	ProviderName string
	Order        int
}

func (p Product) Kind() Kind {
	if p.Fixed {
		return KindPayOnSite
	}
	return KindFixedPrice
}

// Issuer 返回券的 assigned_from
func (p Product) Issuer() string {
	if name := strings.TrimSpace(p.ProviderName); name != "" {
		return name
	}
	return DefaultIssuer
}

// DisplayMaxDeduction 是商品卡片上展示的"最多可抵扣"
func (p Product) DisplayMaxDeduction() decimal.Decimal {
	if p.Fixed {
		return p.MaxDeduction
	}
	return decimal.Min(p.Price, p.MaxDeduction)
}

// MatchesQuery 按名称做不区分大小写的子串匹配，空查询匹配全部
func (p Product) MatchesQuery(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), q)
}
