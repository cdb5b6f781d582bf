// internal/service/member/application/dto.go
package application

import (
	"net/url"

	"github.com/shopspring/decimal"

	"membermall/internal/service/member/domain"
)

// IdentityResult 是身份校验的输出
type IdentityResult struct {
	Step       domain.AuthStep `json:"step"`
	DocumentID string          `json:"documentId,omitempty"`
}

type ActivateRequest struct {
	Identity domain.Identity
	Password string
	Confirm  string
}

type LoginRequest struct {
	Identity domain.Identity
	Password string
}

type ChangePasswordRequest struct {
	Current string
	Next    string
	Confirm string
}

// ProductView 是目录卡片的展示数据
type ProductView struct {
	DocumentID   string          `json:"documentId"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	IconURL      string          `json:"iconUrl,omitempty"`
	Price        decimal.Decimal `json:"price"`
	PriceLabel   string          `json:"priceLabel"`
	Fixed        bool            `json:"fixed"`
	MaxDeduction decimal.Decimal `json:"maxDeduction"`
	Provider     string          `json:"provider"`
	Order        int             `json:"order"`
}

// CustomAmountLabel 是 Fixed 商品在卡片上的价格文案
const CustomAmountLabel = "自选金额"

func toProductView(p domain.Product) ProductView {
	label := p.Price.String()
	if p.Fixed {
		label = CustomAmountLabel
	}
	return ProductView{
		DocumentID:   p.DocumentID,
		Name:         p.Name,
		Description:  p.Description,
		IconURL:      p.IconURL,
		Price:        p.Price,
		PriceLabel:   label,
		Fixed:        p.Fixed,
		MaxDeduction: p.DisplayMaxDeduction(),
		Provider:     p.Issuer(),
		Order:        p.Order,
	}
}

// RedeemRequest 是确认页提交的数据。金额与抵扣额保持字符串，由领域层解析。
type RedeemRequest struct {
	ProductID string `json:"productId"`
	Amount    string `json:"amount"`
	Deduction string `json:"deduction"`
}

// QuoteView 是确认页的计价展示
type QuoteView struct {
	ProductID     string             `json:"productId"`
	Kind          domain.Kind        `json:"kind"`
	Price         decimal.Decimal    `json:"price"`
	MaxDeduction  decimal.Decimal    `json:"maxDeduction"`
	MaxOffered    decimal.Decimal    `json:"maxOffered"`
	Deduction     decimal.Decimal    `json:"deduction"`
	CashDue       decimal.Decimal    `json:"cashDue"`
	CashAfter     decimal.Decimal    `json:"cashAfter"`
	DiscountAfter decimal.Decimal    `json:"discountAfter"`
	Button        domain.ButtonState `json:"button"`
}

func toQuoteView(q domain.Quote) *QuoteView {
	return &QuoteView{
		ProductID:     q.Product.DocumentID,
		Kind:          q.Kind,
		Price:         q.Price,
		MaxDeduction:  q.MaxDeduction,
		MaxOffered:    q.MaxOffered,
		Deduction:     q.Deduction,
		CashDue:       q.CashDue,
		CashAfter:     q.After.Cash,
		DiscountAfter: q.After.Discount,
		Button:        q.Button(),
	}
}

// Receipt 是到店付商品的明细，金额固定两位小数
type Receipt struct {
	Amount    string `json:"amount"`
	Deduction string `json:"deduction"`
	Paid      string `json:"paid"`
}

// RedeemResult 是兑换成功后的展示数据
type RedeemResult struct {
	RedemptionID string          `json:"redemptionId"`
	Kind         domain.Kind     `json:"kind"`
	CouponID     string          `json:"couponId"`
	QRData       string          `json:"qrData,omitempty"`
	QRImageURL   string          `json:"qrImageUrl,omitempty"`
	Receipt      *Receipt        `json:"receipt,omitempty"`
	Message      string          `json:"message"`
	Cash         decimal.Decimal `json:"points"`
	Discount     decimal.Decimal `json:"discount_point"`
}

const (
	MessageCheckEmail = "兑换成功，请查收邮件。"
	MessageShowStaff  = "兑换成功，请向店员出示此券码。"
)

func newRedeemResult(r *domain.Redemption, bal domain.Balances, qrImageBase string) *RedeemResult {
	res := &RedeemResult{
		RedemptionID: r.ID,
		Kind:         r.Kind,
		CouponID:     r.CouponID,
		Message:      MessageCheckEmail,
		Cash:         bal.Cash,
		Discount:     bal.Discount,
	}
	if r.Kind == domain.KindPayOnSite {
		res.QRData = r.QRData
		if qrImageBase != "" && r.QRData != "" {
			res.QRImageURL = qrImageBase + url.QueryEscape(r.QRData)
		}
		res.Receipt = &Receipt{
			Amount:    r.Amount.StringFixed(2),
			Deduction: r.Deduction.StringFixed(2),
			Paid:      r.CashDue.StringFixed(2),
		}
		res.Message = MessageShowStaff
	}
	return res
}
