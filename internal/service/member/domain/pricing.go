// internal/service/member/domain/pricing.go
package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Balances 是参与结算的两种余额
type Balances struct {
	Cash     decimal.Decimal
	Discount decimal.Decimal
}

// ButtonState 对应确认页按钮的展示状态
type ButtonState string

const (
	ButtonOK                   ButtonState = "ok"
	ButtonEnterAmount          ButtonState = "enter_amount"
	ButtonInsufficientCash     ButtonState = "insufficient_cash"
	ButtonInsufficientDiscount ButtonState = "insufficient_discount"
)

// Quote 是一次兑换的计价结果，纯计算，无副作用。
type Quote struct {
	Product Product
	Kind    Kind

	Price        decimal.Decimal // 实际价格：Fixed 商品为输入金额
	MaxDeduction decimal.Decimal // min(max_deduction, Price)
	MaxOffered   decimal.Decimal // min(MaxDeduction, 可用 360 币)
	Deduction    decimal.Decimal // 钳制后的抵扣额
	CashDue      decimal.Decimal

	Before Balances
	After  Balances

	SufficientCash     bool
	SufficientDiscount bool
}

// NewQuote 计算给定商品、输入金额与期望抵扣额下的结算结果。
// amount 只对 Fixed 商品生效。返回错误仅表示金额本身不合法。
func NewQuote(p Product, amount string, requested decimal.Decimal, bal Balances) (Quote, error) {
	price, err := EffectivePrice(p, amount)
	if err != nil {
		return Quote{}, err
	}

	ceiling := EffectiveMaxDeduction(p.MaxDeduction, price)
	deduction := ClampDeduction(requested, ceiling)
	cashDue := price.Sub(deduction)

	offered := decimal.Min(ceiling, bal.Discount)
	if offered.IsNegative() {
		offered = decimal.Zero
	}

	return Quote{
		Product:      p,
		Kind:         p.Kind(),
		Price:        price,
		MaxDeduction: ceiling,
		MaxOffered:   offered,
		Deduction:    deduction,
		CashDue:      cashDue,
		Before:       bal,
		After: Balances{
			Cash:     bal.Cash.Sub(cashDue),
			Discount: bal.Discount.Sub(deduction),
		},
		SufficientCash:     bal.Cash.GreaterThanOrEqual(cashDue),
		SufficientDiscount: !bal.Discount.Sub(deduction).IsNegative(),
	}, nil
}

// Err 返回不可兑换的原因；现金不足优先于 360 币不足。
func (q Quote) Err() error {
	switch {
	case !q.SufficientCash:
		return ErrInsufficientCash
	case !q.SufficientDiscount:
		return ErrInsufficientDiscount
	}
	return nil
}

func (q Quote) Button() ButtonState {
	switch {
	case !q.SufficientCash:
		return ButtonInsufficientCash
	case !q.SufficientDiscount:
		return ButtonInsufficientDiscount
	}
	return ButtonOK
}

// EffectivePrice 返回商品的实际价格。
// Fixed 商品的输入金额必须是大于 0 的数字；目录价不能为负。
func EffectivePrice(p Product, amount string) (decimal.Decimal, error) {
	if !p.Fixed {
		if p.Price.IsNegative() {
			return decimal.Zero, ErrInvalidAmount
		}
		return p.Price, nil
	}
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	v, err := decimal.NewFromString(amount)
	if err != nil || !v.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return v, nil
}

// EffectiveMaxDeduction = min(maxDeduction, price)，且不小于 0
func EffectiveMaxDeduction(maxDeduction, price decimal.Decimal) decimal.Decimal {
	ceiling := decimal.Min(maxDeduction, price)
	if ceiling.IsNegative() {
		return decimal.Zero
	}
	return ceiling
}

// ClampDeduction 把期望抵扣额限制在 [0, ceiling]
func ClampDeduction(requested, ceiling decimal.Decimal) decimal.Decimal {
	if requested.IsNegative() {
		return decimal.Zero
	}
	if requested.GreaterThan(ceiling) {
		return ceiling
	}
	return requested
}

// ParseDeduction 解析表单中的抵扣额，非数字按 0 处理
func ParseDeduction(s string) decimal.Decimal {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return v
}
