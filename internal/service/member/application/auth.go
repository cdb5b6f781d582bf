// internal/service/member/application/auth.go
package application

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"membermall/internal/pkg/logger"
	"membermall/internal/pkg/metrics"
	"membermall/internal/service/member/domain"
	"membermall/internal/service/member/domain/port"
)

// AuthService 负责登录弹窗的三步流程：身份校验 -> 首次设置密码 | 密码登录。
type AuthService struct {
	store  port.MembershipStore
	tracer trace.Tracer
}

func NewAuthService(store port.MembershipStore, tracer trace.Tracer) *AuthService {
	return &AuthService{store: store, tracer: tracer}
}

// CheckIdentity 按会员号查记录，根据状态决定下一步。
func (s *AuthService) CheckIdentity(ctx context.Context, id domain.Identity) (*IdentityResult, error) {
	ctx, span := s.tracer.Start(ctx, "app.CheckIdentity")
	defer span.End()

	record, step, err := s.resolve(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Identity check failed")
		return nil, err
	}
	res := &IdentityResult{Step: step}
	if step == domain.StepPasswordSetup {
		res.DocumentID = record.DocumentID
	}
	return res, nil
}

func (s *AuthService) resolve(ctx context.Context, id domain.Identity) (*domain.MembershipRecord, domain.AuthStep, error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("member.number", id.Number))

	record, err := s.store.FindByNumber(ctx, id.Number)
	if err != nil {
		if errors.Is(err, domain.ErrMemberNotFound) {
			metrics.AuthOutcomes.WithLabelValues(string(domain.StepNotFound)).Inc()
		}
		return nil, domain.StepIdentityCheck, err
	}

	step, err := domain.Resolve(record, id)
	if err != nil {
		metrics.AuthOutcomes.WithLabelValues("identity_mismatch").Inc()
		logger.Ctx(ctx).Info().Str("member", id.Number).Str("status", string(record.Status)).Msg("Identity mismatch")
		return nil, step, err
	}
	metrics.AuthOutcomes.WithLabelValues(string(step)).Inc()
	span.SetAttributes(attribute.String("auth.step", string(step)))
	return record, step, nil
}

// Activate 为状态为 Confirmed 的会员设置密码并激活，成功后建立会话。
func (s *AuthService) Activate(ctx context.Context, sess domain.Session, req ActivateRequest) (*domain.Member, error) {
	ctx, span := s.tracer.Start(ctx, "app.Activate")
	defer span.End()

	if err := domain.ValidateNewPassword(req.Password, req.Confirm); err != nil {
		return nil, err
	}

	record, step, err := s.resolve(ctx, req.Identity)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if step != domain.StepPasswordSetup {
		return nil, domain.ErrIdentityMismatch
	}

	// 以文档 id 读取一次，确认记录仍然存在
	if _, err := s.store.Get(ctx, record.DocumentID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load record for activation")
		return nil, err
	}

	email := domain.NormalizeEmail(req.Identity.Email)
	name := req.Identity.Name
	status := domain.StatusActive
	err = s.store.Update(ctx, record.DocumentID, port.MembershipUpdate{
		Email:    &email,
		Name:     &name,
		Status:   &status,
		Password: &req.Password,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Activation update failed")
		return nil, err
	}

	fresh, err := s.store.FindByNumber(ctx, req.Identity.Number)
	if err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Str("member", req.Identity.Number).Msg("Membership activated but reload failed")
		if errors.Is(err, domain.ErrMemberNotFound) {
			return nil, domain.ErrActivationIncomplete
		}
		return nil, err
	}

	logger.Ctx(ctx).Info().Str("member", fresh.MembershipNumber).Msg("Membership activated")
	return s.establish(ctx, sess, fresh)
}

// Login 校验身份后调用记录库的密码校验接口，成功后建立会话。
func (s *AuthService) Login(ctx context.Context, sess domain.Session, req LoginRequest) (*domain.Member, error) {
	ctx, span := s.tracer.Start(ctx, "app.Login")
	defer span.End()

	record, step, err := s.resolve(ctx, req.Identity)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if step != domain.StepPasswordLogin {
		return nil, domain.ErrIdentityMismatch
	}

	if err := s.store.VerifyPassword(ctx, record.MembershipNumber, req.Password); err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrWrongPassword) {
			metrics.AuthOutcomes.WithLabelValues("wrong_password").Inc()
		}
		return nil, err
	}

	return s.establish(ctx, sess, record)
}

// Logout 清除会话
func (s *AuthService) Logout(ctx context.Context, sess domain.Session) error {
	return sess.Save(ctx, nil)
}

func (s *AuthService) establish(ctx context.Context, sess domain.Session, record *domain.MembershipRecord) (*domain.Member, error) {
	m := domain.NewMemberFromRecord(record)
	if err := sess.Save(ctx, m); err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("member", m.Number).Msg("Session established")
	return m, nil
}
