package saga

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"membermall/internal/service/member/domain"
	"membermall/internal/service/member/domain/port"
	"membermall/internal/service/member/membertest"
)

type fixture struct {
	store   *membertest.Store
	coupons *membertest.Coupons
	mailer  *membertest.Mailer
	journal *membertest.Journal
	support *membertest.Support
}

func newFixture() *fixture {
	return &fixture{
		store: membertest.NewStore(&domain.MembershipRecord{
			DocumentID:       "doc-1",
			MembershipNumber: "M001",
			Name:             "Amy",
			Email:            "amy@example.com",
			Status:           domain.StatusActive,
			Cash:             membertest.DecPtr("100"),
			DiscountPoint:    membertest.DecPtr("50"),
			CouponIDs:        []string{"old-1"},
		}),
		coupons: &membertest.Coupons{},
		mailer:  &membertest.Mailer{},
		journal: membertest.NewJournal(),
		support: &membertest.Support{},
	}
}

func (f *fixture) context(t *testing.T, p domain.Product, amount, deduction string) *RedemptionContext {
	t.Helper()
	record := f.store.Record("M001")
	m := domain.NewMemberFromRecord(record)
	q, err := domain.NewQuote(p, amount, membertest.Dec(deduction), m.Balances())
	require.NoError(t, err)
	r, err := domain.NewRedemption("r-1", m, q)
	require.NoError(t, err)
	return &RedemptionContext{
		Ctx:            context.Background(),
		Redemption:     r,
		Member:         m,
		Quote:          q,
		Tracer:         noop.NewTracerProvider().Tracer("test"),
		Coupons:        f.coupons,
		Mailer:         f.mailer,
		Store:          f.store,
		Journal:        f.journal,
		Support:        f.support,
		CouponValidity: 24 * time.Hour,
	}
}

var dinner = domain.Product{DocumentID: "p1", Name: "Dinner", Price: membertest.Dec("100"), MaxDeduction: membertest.Dec("30")}

func TestChain_Settles(t *testing.T) {
	f := newFixture()
	rc := f.context(t, dinner, "", "30")

	require.NoError(t, NewChain().Handle(rc))

	r := rc.Redemption
	assert.Equal(t, domain.RedemptionSettled, r.State)
	assert.Equal(t, "coupon-1", r.CouponID)
	assert.Equal(t, []domain.RedemptionState{
		domain.RedemptionCouponIssued,
		domain.RedemptionNotified,
		domain.RedemptionSettled,
	}, f.journal.History)

	require.Len(t, f.coupons.Requests, 1)
	req := f.coupons.Requests[0]
	assert.Equal(t, "Dinner", req.Title)
	assert.Equal(t, domain.DefaultIssuer, req.AssignedFrom)
	assert.Equal(t, "Amy", req.AssignedTo)
	assert.True(t, req.Value.Equal(membertest.Dec("70")))

	require.Len(t, f.mailer.Mails, 1)
	assert.Equal(t, "amy@example.com", f.mailer.Mails[0].Email)
	assert.Equal(t, "QR-1", f.mailer.Mails[0].QRData)

	record := f.store.Record("M001")
	assert.True(t, record.Cash.Equal(membertest.Dec("30")))
	assert.True(t, record.DiscountPoint.Equal(membertest.Dec("20")))
	assert.Equal(t, []string{"old-1", "coupon-1"}, record.CouponIDs)
	assert.True(t, rc.Balances.Cash.Equal(membertest.Dec("30")))
}

func TestChain_NoDebitWithoutActiveCoupon(t *testing.T) {
	tests := []struct {
		name    string
		coupons *membertest.Coupons
	}{
		{"service error", &membertest.Coupons{Err: errors.New("503")}},
		{"inactive coupon", &membertest.Coupons{Result: &port.Coupon{ID: "c", Status: "pending"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.coupons = tt.coupons
			rc := f.context(t, dinner, "", "30")

			err := NewChain().Handle(rc)
			require.ErrorIs(t, err, domain.ErrCouponIssueFailed)

			assert.False(t, rc.Redemption.CouponIssued())
			assert.Equal(t, StepIssueCoupon, rc.Redemption.FailedStep)
			assert.Zero(t, f.mailer.Count())
			assert.Zero(t, f.store.Writes())
		})
	}
}

func TestChain_NotificationFailureBlocksDebit(t *testing.T) {
	f := newFixture()
	f.mailer.Err = errors.New("smtp down")
	rc := f.context(t, dinner, "", "30")

	err := NewChain().Handle(rc)
	require.ErrorIs(t, err, domain.ErrNotificationFailed)
	assert.True(t, domain.NeedsSupport(err))
	assert.Zero(t, f.store.Writes(), "balances must not be debited")

	rc.TriggerCompensation(context.Background())

	assert.Equal(t, domain.RedemptionNeedsSupport, rc.Redemption.State)
	saved, err := f.journal.FindByID(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RedemptionNeedsSupport, saved.State)
	assert.Equal(t, StepNotify, saved.FailedStep)

	require.Len(t, f.support.Events, 1)
	assert.Equal(t, "coupon-1", f.support.Events[0].CouponID)
	assert.Equal(t, StepNotify, f.support.Events[0].FailedStep)
}

func TestChain_PayOnSiteSkipsMail(t *testing.T) {
	f := newFixture()
	spa := domain.Product{DocumentID: "p2", Name: "Spa", Fixed: true, MaxDeduction: membertest.Dec("10"), ProviderName: "Spa Co"}
	rc := f.context(t, spa, "25", "10")

	require.NoError(t, NewChain().Handle(rc))

	assert.Zero(t, f.mailer.Count())
	assert.Equal(t, domain.RedemptionSettled, rc.Redemption.State)
	assert.Equal(t, "Spa Co", f.coupons.Requests[0].AssignedFrom)
	assert.True(t, f.coupons.Requests[0].Value.Equal(membertest.Dec("15")))
	assert.True(t, f.store.Record("M001").Cash.Equal(membertest.Dec("85")))
}

func TestChain_BalanceChangedBeforeDebit(t *testing.T) {
	f := newFixture()
	rc := f.context(t, dinner, "", "30")

	// 确认之后记录被其他渠道扣减
	f.store.Records["M001"].Cash = membertest.DecPtr("10")

	err := NewChain().Handle(rc)
	require.ErrorIs(t, err, domain.ErrSettlementIncomplete)
	assert.Equal(t, StepDebit, rc.Redemption.FailedStep)
	assert.Zero(t, f.store.Writes())
	assert.Equal(t, 1, f.mailer.Count(), "notification already happened")
}

func TestChain_DebitUpdateFails(t *testing.T) {
	f := newFixture()
	f.store.UpdateErr = domain.ErrRecordStore
	rc := f.context(t, dinner, "", "0")

	err := NewChain().Handle(rc)
	require.ErrorIs(t, err, domain.ErrSettlementIncomplete)
	assert.ErrorIs(t, err, domain.ErrRecordStore)
	assert.True(t, rc.Redemption.CouponIssued())
}

func TestAppendCoupon(t *testing.T) {
	ids := make([]string, 2, 4)
	ids[0], ids[1] = "a", "b"

	out := AppendCoupon(ids, "c")
	assert.Equal(t, []string{"a", "b", "c"}, out)

	out2 := AppendCoupon(ids, "d")
	assert.Equal(t, []string{"a", "b", "d"}, out2)
	assert.Equal(t, []string{"a", "b", "c"}, out, "callers do not share backing arrays")

	assert.Equal(t, []string{"a", "b"}, AppendCoupon([]string{"a", "b", "a"}, "b"))
	assert.Equal(t, []string{"x"}, AppendCoupon(nil, "x"))
	assert.Equal(t, []string{"a"}, AppendCoupon([]string{"a"}, ""))
}

func TestCompensationOrder(t *testing.T) {
	rc := &RedemptionContext{Redemption: &domain.Redemption{ID: "r"}}
	var order []int
	rc.AddCompensation(func(context.Context) { order = append(order, 1) })
	rc.AddCompensation(func(context.Context) { order = append(order, 2) })

	rc.TriggerCompensation(context.Background())
	assert.Equal(t, []int{2, 1}, order)
}
