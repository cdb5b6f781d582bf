package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"membermall/internal/pkg/httpclient"
	"membermall/internal/service/member/domain"
	"membermall/internal/service/member/domain/port"
)

const (
	upstreamCoupon = "coupon-service"
	upstreamEmail  = "email-service"

	// expiryLayout 与浏览器 toISOString 输出一致
	expiryLayout = "2006-01-02T15:04:05.000Z07:00"
)

// CouponHTTPAdapter 实现了 port.CouponIssuer 接口。
type CouponHTTPAdapter struct {
	client   *httpclient.Client
	endpoint httpclient.Endpoint
}

func NewCouponHTTPAdapter(client *httpclient.Client, endpoint httpclient.Endpoint) *CouponHTTPAdapter {
	return &CouponHTTPAdapter{client: client, endpoint: endpoint}
}

type createCouponRequest struct {
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Expiry       string      `json:"expiry"`
	AssignedFrom string      `json:"assigned_from"`
	AssignedTo   string      `json:"assigned_to"`
	Value        json.Number `json:"value"`
}

type createCouponResponse struct {
	CouponStatus string     `json:"couponStatus"`
	QRData       string     `json:"QRdata"`
	CID          flexString `json:"cid"`
}

func (a *CouponHTTPAdapter) Ready(ctx context.Context) error {
	_, err := a.baseURL(ctx)
	return err
}

func (a *CouponHTTPAdapter) baseURL(ctx context.Context) (string, error) {
	base, err := a.endpoint.BaseURL(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: coupon service: %w", domain.ErrNotConfigured, err)
	}
	return base, nil
}

// Issue 调用 POST /create-active-coupon。券状态由调用方判断。
func (a *CouponHTTPAdapter) Issue(ctx context.Context, req port.CouponRequest) (*port.Coupon, error) {
	base, err := a.baseURL(ctx)
	if err != nil {
		return nil, err
	}

	var resp createCouponResponse
	err = a.client.Do(ctx, httpclient.Request{
		Upstream: upstreamCoupon,
		Method:   http.MethodPost,
		URL:      base + "/create-active-coupon",
		Body: createCouponRequest{
			Title:        req.Title,
			Description:  req.Description,
			Expiry:       req.Expiry.UTC().Format(expiryLayout),
			AssignedFrom: req.AssignedFrom,
			AssignedTo:   req.AssignedTo,
			Value:        json.Number(req.Value.String()),
		},
	}, &resp)
	if err != nil {
		return nil, classify(err, domain.ErrCouponIssueFailed)
	}
	return &port.Coupon{
		ID:     string(resp.CID),
		Status: resp.CouponStatus,
		QRData: resp.QRData,
	}, nil
}

// EmailHTTPAdapter 实现了 port.Mailer 接口。
type EmailHTTPAdapter struct {
	client    *httpclient.Client
	endpoint  httpclient.Endpoint
	namespace string
}

func NewEmailHTTPAdapter(client *httpclient.Client, endpoint httpclient.Endpoint, namespace string) *EmailHTTPAdapter {
	return &EmailHTTPAdapter{client: client, endpoint: endpoint, namespace: namespace}
}

type couponMailRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Data  string `json:"data"`
	Title string `json:"title"`
}

// Ready 要求地址与 namespace 都已配置
func (a *EmailHTTPAdapter) Ready(ctx context.Context) error {
	_, err := a.baseURL(ctx)
	return err
}

func (a *EmailHTTPAdapter) baseURL(ctx context.Context) (string, error) {
	if a.namespace == "" {
		return "", fmt.Errorf("%w: email namespace missing", domain.ErrNotConfigured)
	}
	base, err := a.endpoint.BaseURL(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: email service: %w", domain.ErrNotConfigured, err)
	}
	return base, nil
}

// SendCoupon 调用 POST /{namespace}/coupon_distribute，任何 2xx 视为成功。
func (a *EmailHTTPAdapter) SendCoupon(ctx context.Context, mail port.CouponMail) error {
	base, err := a.baseURL(ctx)
	if err != nil {
		return err
	}
	err = a.client.Do(ctx, httpclient.Request{
		Upstream: upstreamEmail,
		Method:   http.MethodPost,
		URL:      fmt.Sprintf("%s/%s/coupon_distribute", base, a.namespace),
		Body: couponMailRequest{
			Name:  mail.Name,
			Email: mail.Email,
			Data:  mail.QRData,
			Title: mail.Title,
		},
	}, nil)
	if err != nil {
		return classify(err, domain.ErrNotificationFailed)
	}
	return nil
}
