package adapter

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"membermall/internal/service/member/domain"
)

// flexString 兼容记录库里既可能是数字也可能是字符串的字段（例如会员号）
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

type documentRef struct {
	DocumentID string `json:"documentId"`
}

// membershipDTO 对应 one-club-memberships 集合中的一条记录
type membershipDTO struct {
	ID               int              `json:"id"`
	DocumentID       string           `json:"documentId"`
	MembershipNumber flexString       `json:"MembershipNumber"`
	Name             string           `json:"Name"`
	Email            string           `json:"Email"`
	CurrentStatus    string           `json:"CurrentStatus"`
	MembershipClass  string           `json:"MembershipClass"`
	Address          string           `json:"Address"`
	ExpiryDate       string           `json:"ExpiryDate"`
	Phone            flexString       `json:"Phone"`
	Point            *decimal.Decimal `json:"Point"`
	DiscountPoint    *decimal.Decimal `json:"DiscountPoint"`
	LoyaltyPoint     *decimal.Decimal `json:"LoyaltyPoint"`
	CouponValue      *decimal.Decimal `json:"CouponValue"`
	TotalValue       *decimal.Decimal `json:"TotalValue"`
	MyCoupon         []documentRef    `json:"MyCoupon"`
	AllowedProduct   []productDTO     `json:"AllowedProduct"`
}

func (d membershipDTO) toRecord() *domain.MembershipRecord {
	ids := make([]string, 0, len(d.MyCoupon))
	for _, c := range d.MyCoupon {
		if c.DocumentID != "" {
			ids = append(ids, c.DocumentID)
		}
	}
	return &domain.MembershipRecord{
		ID:               d.ID,
		DocumentID:       d.DocumentID,
		MembershipNumber: string(d.MembershipNumber),
		Name:             d.Name,
		Email:            d.Email,
		Status:           domain.MembershipStatus(d.CurrentStatus),
		Class:            d.MembershipClass,
		Address:          d.Address,
		ExpiryDate:       d.ExpiryDate,
		Phone:            string(d.Phone),
		Cash:             d.Point,
		DiscountPoint:    d.DiscountPoint,
		LoyaltyPoint:     d.LoyaltyPoint,
		CouponValue:      d.CouponValue,
		TotalValue:       d.TotalValue,
		CouponIDs:        ids,
	}
}

type mediaDTO struct {
	URL string `json:"url"`
}

// productDTO 对应 one-club-products 集合中的一条记录
type productDTO struct {
	ID           int              `json:"id"`
	DocumentID   string           `json:"documentId"`
	Name         string           `json:"Name"`
	Description  json.RawMessage  `json:"Description"`
	Icon         *mediaDTO        `json:"Icon"`
	Price        *decimal.Decimal `json:"Price"`
	MaxDeduction *decimal.Decimal `json:"MaxDeduction"`
	Fixed        bool             `json:"Fixed"`
	Order        int              `json:"Order"`
	Provider     json.RawMessage  `json:"Provider"`
}

func (d productDTO) toProduct(baseURL string) domain.Product {
	p := domain.Product{
		ID:           d.ID,
		DocumentID:   d.DocumentID,
		Name:         d.Name,
		Description:  plainText(d.Description),
		Fixed:        d.Fixed,
		Order:        d.Order,
		ProviderName: providerName(d.Provider),
		Price:        decimal.Zero,
		MaxDeduction: decimal.Zero,
	}
	if d.Price != nil {
		p.Price = *d.Price
	}
	if d.MaxDeduction != nil {
		p.MaxDeduction = *d.MaxDeduction
	}
	if d.Icon != nil && d.Icon.URL != "" {
		p.IconURL = resolveMediaURL(baseURL, d.Icon.URL)
	}
	return p
}

// providerName 兼容两种关联格式：{"Name": ...} 与 {"data": {"attributes": {"Name": ...}}}
func providerName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var p struct {
		Name string `json:"Name"`
		Data *struct {
			Attributes struct {
				Name string `json:"Name"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return ""
	}
	if p.Data != nil && p.Data.Attributes.Name != "" {
		return p.Data.Attributes.Name
	}
	return p.Name
}

// plainText 描述字段可能是纯文本，也可能是富文本块；富文本只提取文字节点
func plainText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []struct {
		Children []struct {
			Text string `json:"text"`
		} `json:"children"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		var sb strings.Builder
		for _, c := range b.Children {
			sb.WriteString(c.Text)
		}
		if sb.Len() > 0 {
			parts = append(parts, sb.String())
		}
	}
	return strings.Join(parts, "\n")
}

func resolveMediaURL(baseURL, u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(u, "/")
}

// membershipPayload 是 PUT 请求的 data 部分，只序列化非 nil 字段
type membershipPayload struct {
	Name          *string      `json:"Name,omitempty"`
	Email         *string      `json:"Email,omitempty"`
	CurrentStatus *string      `json:"CurrentStatus,omitempty"`
	Password      *string      `json:"Password,omitempty"`
	Phone         *string      `json:"Phone,omitempty"`
	Point         *json.Number `json:"Point,omitempty"`
	DiscountPoint *json.Number `json:"DiscountPoint,omitempty"`
	MyCoupon      []string     `json:"MyCoupon,omitempty"`
}

// decimalNumber 把金额以 JSON 数字而不是字符串写出
func decimalNumber(d *decimal.Decimal) *json.Number {
	if d == nil {
		return nil
	}
	n := json.Number(d.String())
	return &n
}
