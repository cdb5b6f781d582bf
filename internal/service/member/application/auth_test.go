package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"membermall/internal/service/member/domain"
	"membermall/internal/service/member/infrastructure/session"
	"membermall/internal/service/member/membertest"
)

var testTracer = noop.NewTracerProvider().Tracer("test")

func confirmedRecord() *domain.MembershipRecord {
	return &domain.MembershipRecord{
		DocumentID:       "doc-new",
		MembershipNumber: "N100",
		Name:             "Ben",
		Email:            "",
		Status:           domain.StatusConfirmed,
		Cash:             membertest.DecPtr("10"),
	}
}

func activeRecord() *domain.MembershipRecord {
	return &domain.MembershipRecord{
		DocumentID:       "doc-1",
		MembershipNumber: "M001",
		Name:             "Amy",
		Email:            "amy@example.com",
		Status:           domain.StatusActive,
		Class:            "Gold",
		Cash:             membertest.DecPtr("100"),
		DiscountPoint:    membertest.DecPtr("50"),
	}
}

func TestCheckIdentity(t *testing.T) {
	store := membertest.NewStore(confirmedRecord(), activeRecord())
	svc := NewAuthService(store, testTracer)
	ctx := context.Background()

	res, err := svc.CheckIdentity(ctx, domain.Identity{Name: "Ben", Number: "N100"})
	require.NoError(t, err)
	assert.Equal(t, domain.StepPasswordSetup, res.Step)
	assert.Equal(t, "doc-new", res.DocumentID)

	res, err = svc.CheckIdentity(ctx, domain.Identity{Name: "Amy", Email: "AMY@example.com", Number: "M001"})
	require.NoError(t, err)
	assert.Equal(t, domain.StepPasswordLogin, res.Step)
	assert.Empty(t, res.DocumentID)

	_, err = svc.CheckIdentity(ctx, domain.Identity{Name: "Amy", Email: "x@example.com", Number: "M001"})
	assert.ErrorIs(t, err, domain.ErrIdentityMismatch)

	_, err = svc.CheckIdentity(ctx, domain.Identity{Number: "NOPE"})
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
}

func TestActivate(t *testing.T) {
	store := membertest.NewStore(confirmedRecord())
	svc := NewAuthService(store, testTracer)
	sess := session.NewMemory(nil)
	id := domain.Identity{Name: "Ben", Email: " Ben@Example.com ", Number: "N100"}

	_, err := svc.Activate(context.Background(), sess, ActivateRequest{Identity: id, Password: "password1", Confirm: "password2"})
	assert.ErrorIs(t, err, domain.ErrPasswordMismatch)
	_, err = svc.Activate(context.Background(), sess, ActivateRequest{Identity: id, Password: "short", Confirm: "short"})
	assert.ErrorIs(t, err, domain.ErrPasswordTooShort)
	assert.Zero(t, store.Writes(), "validation happens before any write")

	m, err := svc.Activate(context.Background(), sess, ActivateRequest{Identity: id, Password: "password1", Confirm: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "N100", m.Number)
	assert.Equal(t, "ben@example.com", m.Email)
	assert.Equal(t, string(domain.StatusActive), m.Status)

	record := store.Record("N100")
	assert.Equal(t, domain.StatusActive, record.Status)
	assert.Equal(t, "ben@example.com", record.Email)
	assert.Equal(t, "password1", store.Passwords["N100"])

	saved, err := sess.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, m.Equal(saved))

	// 激活后再次激活走的是登录分支
	_, err = svc.Activate(context.Background(), sess, ActivateRequest{Identity: id, Password: "password1", Confirm: "password1"})
	assert.ErrorIs(t, err, domain.ErrIdentityMismatch)
}

func TestLogin(t *testing.T) {
	store := membertest.NewStore(activeRecord())
	store.Passwords["M001"] = "correct-horse"
	svc := NewAuthService(store, testTracer)
	id := domain.Identity{Name: "Amy", Email: "amy@example.com", Number: "M001"}

	sess := session.NewMemory(nil)
	_, err := svc.Login(context.Background(), sess, LoginRequest{Identity: id, Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrWrongPassword)
	m, err := sess.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = svc.Login(context.Background(), sess, LoginRequest{Identity: id, Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "Gold", m.Class)
	assert.True(t, m.Cash.Equal(membertest.Dec("100")))

	require.NoError(t, svc.Logout(context.Background(), sess))
	m, err = sess.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestLogin_ConfirmedMemberMustActivate(t *testing.T) {
	store := membertest.NewStore(confirmedRecord())
	svc := NewAuthService(store, testTracer)

	_, err := svc.Login(context.Background(), session.NewMemory(nil), LoginRequest{
		Identity: domain.Identity{Name: "Ben", Number: "N100"},
		Password: "anything",
	})
	assert.ErrorIs(t, err, domain.ErrIdentityMismatch)
}
