package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"membermall/internal/pkg/httpclient"
	"membermall/internal/service/member/domain"
	"membermall/internal/service/member/domain/port"
)

const upstreamRecordStore = "record-store"

// StrapiOptions 是记录库的连接参数
type StrapiOptions struct {
	Endpoint             string
	APIKey               string
	MembershipCollection string
	ProductCollection    string
}

// StrapiHTTPAdapter 实现了 port.MembershipStore 与 port.ProductCatalog，
// 对接 Strapi 风格的 REST 接口（bearer token、filters 查询、{data: ...} 包裹）。
type StrapiHTTPAdapter struct {
	client *httpclient.Client
	opts   StrapiOptions
}

var (
	_ port.MembershipStore = (*StrapiHTTPAdapter)(nil)
	_ port.ProductCatalog  = (*StrapiHTTPAdapter)(nil)
)

func NewStrapiHTTPAdapter(client *httpclient.Client, opts StrapiOptions) *StrapiHTTPAdapter {
	opts.Endpoint = strings.TrimRight(opts.Endpoint, "/")
	return &StrapiHTTPAdapter{client: client, opts: opts}
}

// Ready 在缺少地址或密钥时返回 ErrNotConfigured
func (a *StrapiHTTPAdapter) Ready() error {
	if a.opts.Endpoint == "" || a.opts.APIKey == "" {
		return fmt.Errorf("%w: record store endpoint or api key missing", domain.ErrNotConfigured)
	}
	return nil
}

func (a *StrapiHTTPAdapter) FindByNumber(ctx context.Context, number string) (*domain.MembershipRecord, error) {
	q := url.Values{}
	q.Set("filters[MembershipNumber][$eq]", number)
	q.Set("populate", "MyCoupon")
	return a.findOne(ctx, q)
}

func (a *StrapiHTTPAdapter) FindByNumberAndEmail(ctx context.Context, number, email string) (*domain.MembershipRecord, error) {
	q := url.Values{}
	q.Set("filters[MembershipNumber][$eq]", number)
	q.Set("filters[Email][$eq]", email)
	q.Set("populate", "MyCoupon")
	return a.findOne(ctx, q)
}

func (a *StrapiHTTPAdapter) Get(ctx context.Context, documentID string) (*domain.MembershipRecord, error) {
	if err := a.Ready(); err != nil {
		return nil, err
	}
	var resp struct {
		Data *membershipDTO `json:"data"`
	}
	err := a.do(ctx, http.MethodGet, a.membershipURL(url.PathEscape(documentID), nil), nil, &resp)
	if err != nil {
		if httpclient.StatusCode(err) == http.StatusNotFound {
			return nil, domain.ErrMemberNotFound
		}
		return nil, classify(err, domain.ErrRecordStore)
	}
	if resp.Data == nil {
		return nil, domain.ErrMemberNotFound
	}
	return resp.Data.toRecord(), nil
}

func (a *StrapiHTTPAdapter) Update(ctx context.Context, documentID string, u port.MembershipUpdate) error {
	if err := a.Ready(); err != nil {
		return err
	}
	payload := membershipPayload{
		Name:          u.Name,
		Email:         u.Email,
		Password:      u.Password,
		Phone:         u.Phone,
		Point:         decimalNumber(u.Cash),
		DiscountPoint: decimalNumber(u.DiscountPoint),
		MyCoupon:      u.CouponIDs,
	}
	if u.Status != nil {
		status := string(*u.Status)
		payload.CurrentStatus = &status
	}
	body := map[string]any{"data": payload}
	if err := a.do(ctx, http.MethodPut, a.membershipURL(url.PathEscape(documentID), nil), body, nil); err != nil {
		return classify(err, domain.ErrRecordStore)
	}
	return nil
}

func (a *StrapiHTTPAdapter) VerifyPassword(ctx context.Context, number, password string) error {
	if err := a.Ready(); err != nil {
		return err
	}
	body := map[string]string{
		"membershipNumber": number,
		"password":         password,
	}
	err := a.do(ctx, http.MethodPost, a.membershipURL("verify-password", nil), body, nil)
	switch httpclient.StatusCode(err) {
	case 0:
		if err != nil {
			return classify(err, domain.ErrVerificationFailed)
		}
		return nil
	case http.StatusUnauthorized:
		return domain.ErrWrongPassword
	case http.StatusNotFound:
		return domain.ErrMemberNotFound
	default:
		return classify(err, domain.ErrVerificationFailed)
	}
}

func (a *StrapiHTTPAdapter) AllowedProducts(ctx context.Context, number string) ([]domain.Product, error) {
	if err := a.Ready(); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("filters[MembershipNumber][$eq]", number)
	q.Set("populate[AllowedProduct][populate]", "*")

	var resp struct {
		Data []membershipDTO `json:"data"`
	}
	if err := a.do(ctx, http.MethodGet, a.membershipURL("", q), nil, &resp); err != nil {
		return nil, classify(err, domain.ErrRecordStore)
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return a.toProducts(resp.Data[0].AllowedProduct), nil
}

func (a *StrapiHTTPAdapter) PublicProducts(ctx context.Context) ([]domain.Product, error) {
	if err := a.Ready(); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("filters[ForOneClub][$eq]", "True")
	q.Set("populate", "*")

	var resp struct {
		Data []productDTO `json:"data"`
	}
	u := fmt.Sprintf("%s/api/%s?%s", a.opts.Endpoint, a.opts.ProductCollection, q.Encode())
	if err := a.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return nil, classify(err, domain.ErrRecordStore)
	}
	return a.toProducts(resp.Data), nil
}

func (a *StrapiHTTPAdapter) toProducts(items []productDTO) []domain.Product {
	products := make([]domain.Product, 0, len(items))
	for _, it := range items {
		products = append(products, it.toProduct(a.opts.Endpoint))
	}
	return products
}

func (a *StrapiHTTPAdapter) findOne(ctx context.Context, q url.Values) (*domain.MembershipRecord, error) {
	if err := a.Ready(); err != nil {
		return nil, err
	}
	var resp struct {
		Data []membershipDTO `json:"data"`
	}
	if err := a.do(ctx, http.MethodGet, a.membershipURL("", q), nil, &resp); err != nil {
		return nil, classify(err, domain.ErrRecordStore)
	}
	if len(resp.Data) == 0 {
		return nil, domain.ErrMemberNotFound
	}
	return resp.Data[0].toRecord(), nil
}

func (a *StrapiHTTPAdapter) membershipURL(path string, q url.Values) string {
	u := fmt.Sprintf("%s/api/%s", a.opts.Endpoint, a.opts.MembershipCollection)
	if path != "" {
		u += "/" + path
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (a *StrapiHTTPAdapter) do(ctx context.Context, method, u string, body, out any) error {
	return a.client.Do(ctx, httpclient.Request{
		Upstream: upstreamRecordStore,
		Method:   method,
		URL:      u,
		Header:   http.Header{"Authorization": []string{"Bearer " + a.opts.APIKey}},
		Body:     body,
	}, out)
}

// classify 区分下游返回的错误与网络错误
func classify(err error, upstream error) error {
	if httpclient.StatusCode(err) != 0 {
		return fmt.Errorf("%w: %w", upstream, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
}
