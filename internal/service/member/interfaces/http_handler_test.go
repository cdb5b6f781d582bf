package interfaces

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"membermall/internal/service/member/application"
	"membermall/internal/service/member/domain"
	"membermall/internal/service/member/infrastructure/session"
	"membermall/internal/service/member/membertest"
)

type mallFixture struct {
	store   *membertest.Store
	mailer  *membertest.Mailer
	coupons *membertest.Coupons
	router  chi.Router
	cookies []*http.Cookie
}

func newMallFixture(t *testing.T) *mallFixture {
	t.Helper()
	tracer := noop.NewTracerProvider().Tracer("test")

	store := membertest.NewStore(&domain.MembershipRecord{
		DocumentID:       "doc-1",
		MembershipNumber: "M001",
		Name:             "Amy",
		Email:            "amy@example.com",
		Status:           domain.StatusActive,
		Class:            "Gold",
		Cash:             membertest.DecPtr("100"),
		DiscountPoint:    membertest.DecPtr("50"),
	})
	store.Passwords["M001"] = "correct-horse"
	store.Public = []domain.Product{
		{DocumentID: "dinner", Name: "Dinner", Price: membertest.Dec("100"), MaxDeduction: membertest.Dec("30"), Order: 1},
		{DocumentID: "tea", Name: "Afternoon Tea", Price: membertest.Dec("500"), MaxDeduction: membertest.Dec("10"), Order: 2},
	}

	f := &mallFixture{store: store, mailer: &membertest.Mailer{}, coupons: &membertest.Coupons{}}
	catalog := application.NewCatalogService(store, nil, tracer)
	redeem := application.NewRedemptionService(application.RedemptionConfig{ProcessingTimeout: 5 * time.Second},
		tracer, catalog, store, f.coupons, f.mailer, membertest.NewJournal(), &membertest.Support{}, &membertest.Lock{})

	h := NewMallHandler(
		application.NewAuthService(store, tracer),
		application.NewProfileService(store, tracer),
		catalog,
		redeem,
		session.NewCookieStore("user", time.Hour, false),
	)
	f.router = chi.NewRouter()
	h.RegisterRoutes(f.router)
	return f
}

// call 发送请求并携带之前响应写入的 cookie
func (f *mallFixture) call(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, ck := range f.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if written := rec.Result().Cookies(); len(written) > 0 {
		f.cookies = nil
		for _, ck := range written {
			if ck.MaxAge >= 0 {
				f.cookies = append(f.cookies, ck)
			}
		}
	}
	return rec
}

func (f *mallFixture) login(t *testing.T) {
	t.Helper()
	rec := f.call(t, http.MethodPost, "/api/auth/login", map[string]string{
		"name": "Amy", "email": "amy@example.com", "number": "M001", "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCheckIdentity(t *testing.T) {
	f := newMallFixture(t)

	rec := f.call(t, http.MethodPost, "/api/auth/identity", map[string]string{"name": "Amy", "email": "AMY@example.com", "number": "M001"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StepPasswordLogin, decodeBody[application.IdentityResult](t, rec).Step)

	rec = f.call(t, http.MethodPost, "/api/auth/identity", map[string]string{"name": "Amy", "email": "bob@example.com", "number": "M001"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.call(t, http.MethodPost, "/api/auth/identity", map[string]string{"number": "M999"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginProfileLogout(t *testing.T) {
	f := newMallFixture(t)

	rec := f.call(t, http.MethodGet, "/api/member", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.call(t, http.MethodPost, "/api/auth/login", map[string]string{
		"name": "Amy", "email": "amy@example.com", "number": "M001", "password": "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, msgWrongPassword, decodeBody[errorResponse](t, rec).Message)

	f.login(t)
	require.Len(t, f.cookies, 1)

	rec = f.call(t, http.MethodGet, "/api/member", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decodeBody[domain.Member](t, rec)
	assert.Equal(t, "Amy", m.Name)
	assert.True(t, m.Cash.Equal(decimal.NewFromInt(100)))

	rec = f.call(t, http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.cookies)

	rec = f.call(t, http.MethodGet, "/api/member", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePasswordAndPhone(t *testing.T) {
	f := newMallFixture(t)
	f.login(t)

	rec := f.call(t, http.MethodPut, "/api/member/password", map[string]string{
		"currentPassword": "correct-horse", "newPassword": "battery-staple", "confirmPassword": "battery-stapler",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.call(t, http.MethodPut, "/api/member/password", map[string]string{
		"currentPassword": "correct-horse", "newPassword": "battery-staple", "confirmPassword": "battery-staple",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "battery-staple", f.store.Passwords["M001"])

	rec = f.call(t, http.MethodPut, "/api/member/phone", map[string]string{"phone": "91234567"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "91234567", decodeBody[domain.Member](t, rec).Phone)
}

func TestProducts(t *testing.T) {
	f := newMallFixture(t)

	rec := f.call(t, http.MethodGet, "/api/products?q=tea", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[struct {
		Products []application.ProductView `json:"products"`
	}](t, rec)
	require.Len(t, body.Products, 1)
	assert.Equal(t, "tea", body.Products[0].DocumentID)

	// 已登录时先同步余额，同步出错也照常返回目录
	f.login(t)
	f.store.FindErr = domain.ErrNetwork
	rec = f.call(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestQuoteAndRedeem(t *testing.T) {
	f := newMallFixture(t)

	rec := f.call(t, http.MethodPost, "/api/redemptions", map[string]string{"productId": "dinner"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	f.login(t)

	rec = f.call(t, http.MethodPost, "/api/redemptions/quote", map[string]string{"productId": "tea", "deduction": "10"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ButtonInsufficientCash, decodeBody[application.QuoteView](t, rec).Button)

	rec = f.call(t, http.MethodPost, "/api/redemptions", map[string]string{"productId": "tea", "deduction": "10"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Zero(t, f.coupons.Count())

	rec = f.call(t, http.MethodPost, "/api/redemptions", map[string]string{"productId": "dinner", "deduction": "30"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[application.RedeemResult](t, rec)
	assert.True(t, res.Cash.Equal(decimal.NewFromInt(30)))
	assert.True(t, res.Discount.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, application.MessageCheckEmail, res.Message)

	// 新余额写回了 cookie
	rec = f.call(t, http.MethodGet, "/api/member", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[domain.Member](t, rec).Cash.Equal(decimal.NewFromInt(30)))
}

func TestRedeem_NotificationFailureAsksForSupport(t *testing.T) {
	f := newMallFixture(t)
	f.login(t)
	f.mailer.Err = errors.New("smtp down")

	rec := f.call(t, http.MethodPost, "/api/redemptions", map[string]string{"productId": "dinner", "deduction": "0"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decodeBody[errorResponse](t, rec)
	assert.Equal(t, msgContactSupport, resp.Message)
	assert.True(t, resp.Support)
}

func TestRedeem_MailNotConfiguredIs503(t *testing.T) {
	f := newMallFixture(t)
	f.login(t)
	f.mailer.NotReady = fmt.Errorf("%w: email service", domain.ErrNotConfigured)

	rec := f.call(t, http.MethodPost, "/api/redemptions", map[string]string{"productId": "dinner", "deduction": "0"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, msgNotConfigured, decodeBody[errorResponse](t, rec).Message)
	assert.Zero(t, f.coupons.Count())
}

func TestMalformedBody(t *testing.T) {
	f := newMallFixture(t)

	rec := f.call(t, http.MethodPost, "/api/auth/login", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInvalidInput, decodeBody[errorResponse](t, rec).Message)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{domain.ErrInvalidAmount, http.StatusBadRequest},
		{domain.ErrPhoneInvalid, http.StatusBadRequest},
		{domain.ErrInsufficientDiscount, http.StatusUnprocessableEntity},
		{domain.ErrRedemptionInProgress, http.StatusConflict},
		{domain.ErrProductNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: %w", domain.ErrCouponIssueFailed, domain.ErrNetwork), http.StatusBadGateway},
		{fmt.Errorf("%w: 503", domain.ErrRecordStore), http.StatusBadGateway},
		{fmt.Errorf("%w: coupon", domain.ErrNotConfigured), http.StatusServiceUnavailable},
		{domain.ErrSettlementIncomplete, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code, msg := statusOf(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
		assert.NotEmpty(t, msg)
	}

	_, msg := statusOf(fmt.Errorf("%w: %w", domain.ErrCouponIssueFailed, domain.ErrNetwork))
	assert.Equal(t, msgRedeemFailed, msg, "the failed step wins over the transport cause")
}
