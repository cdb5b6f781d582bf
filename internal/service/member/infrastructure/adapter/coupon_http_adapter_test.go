package adapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membermall/internal/pkg/httpclient"
	"membermall/internal/service/member/domain"
	"membermall/internal/service/member/domain/port"
	"membermall/internal/service/member/membertest"
)

func TestCouponIssue(t *testing.T) {
	var body map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/create-active-coupon", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"couponStatus":"active","QRdata":"QR-9","cid":42}`)
	}))
	defer srv.Close()

	a := NewCouponHTTPAdapter(newTestClient(), httpclient.StaticEndpoint(srv.URL+"/"))
	hk := time.FixedZone("HKT", 8*3600)
	coupon, err := a.Issue(context.Background(), port.CouponRequest{
		Title:        "Dinner",
		Description:  "Dinner for two",
		Expiry:       time.Date(2026, 12, 1, 8, 0, 0, 0, hk),
		AssignedFrom: "Hotel A",
		AssignedTo:   "M001",
		Value:        membertest.Dec("30.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, "42", coupon.ID)
	assert.Equal(t, "QR-9", coupon.QRData)
	assert.True(t, coupon.Active())

	assert.JSONEq(t, `"2026-12-01T00:00:00.000Z"`, string(body["expiry"]))
	assert.JSONEq(t, `"Hotel A"`, string(body["assigned_from"]))
	assert.JSONEq(t, `"M001"`, string(body["assigned_to"]))
	assert.Equal(t, "30", string(body["value"]))
}

func TestCouponIssue_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewCouponHTTPAdapter(newTestClient(), httpclient.StaticEndpoint(srv.URL)).
		Issue(context.Background(), port.CouponRequest{Value: membertest.Dec("1")})
	assert.ErrorIs(t, err, domain.ErrCouponIssueFailed)

	_, err = NewCouponHTTPAdapter(newTestClient(), httpclient.StaticEndpoint("")).
		Issue(context.Background(), port.CouponRequest{})
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestCouponIssue_InactiveStatusIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"couponStatus":"pending","cid":"c-7"}`)
	}))
	defer srv.Close()

	coupon, err := NewCouponHTTPAdapter(newTestClient(), httpclient.StaticEndpoint(srv.URL)).
		Issue(context.Background(), port.CouponRequest{Value: membertest.Dec("1")})
	require.NoError(t, err)
	assert.Equal(t, "c-7", coupon.ID)
	assert.False(t, coupon.Active())
}

func TestEmailSendCoupon(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oneclub/coupon_distribute" {
			http.NotFound(w, r)
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	mail := port.CouponMail{Name: "Amy", Email: "amy@example.com", QRData: "QR-1", Title: "Dinner"}

	ok := NewEmailHTTPAdapter(newTestClient(), httpclient.StaticEndpoint(srv.URL), "oneclub")
	require.NoError(t, ok.SendCoupon(context.Background(), mail))
	assert.Equal(t, map[string]string{"name": "Amy", "email": "amy@example.com", "data": "QR-1", "title": "Dinner"}, got)

	wrongNS := NewEmailHTTPAdapter(newTestClient(), httpclient.StaticEndpoint(srv.URL), "other")
	assert.ErrorIs(t, wrongNS.SendCoupon(context.Background(), mail), domain.ErrNotificationFailed)

	missing := NewEmailHTTPAdapter(newTestClient(), httpclient.StaticEndpoint(""), "oneclub")
	assert.ErrorIs(t, missing.SendCoupon(context.Background(), mail), domain.ErrNotConfigured)
}

func TestReady(t *testing.T) {
	ctx := context.Background()
	client := newTestClient()

	assert.NoError(t, NewCouponHTTPAdapter(client, httpclient.StaticEndpoint("https://coupon.example")).Ready(ctx))
	assert.ErrorIs(t, NewCouponHTTPAdapter(client, httpclient.StaticEndpoint("")).Ready(ctx), domain.ErrNotConfigured)

	assert.NoError(t, NewEmailHTTPAdapter(client, httpclient.StaticEndpoint("https://mail.example"), "1club").Ready(ctx))
	assert.ErrorIs(t, NewEmailHTTPAdapter(client, httpclient.StaticEndpoint(""), "1club").Ready(ctx), domain.ErrNotConfigured)

	noNS := NewEmailHTTPAdapter(client, httpclient.StaticEndpoint("https://mail.example"), "")
	assert.ErrorIs(t, noNS.Ready(ctx), domain.ErrNotConfigured)
	assert.ErrorIs(t, noNS.SendCoupon(ctx, port.CouponMail{}), domain.ErrNotConfigured)
}
