// internal/service/member/application/profile.go
package application

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"membermall/internal/pkg/logger"
	"membermall/internal/service/member/domain"
	"membermall/internal/service/member/domain/port"
)

// MinPhoneLength 是电话号码的最小长度
const MinPhoneLength = 4

// ProfileService 负责会员卡片的展示、余额同步以及密码、电话的修改。
type ProfileService struct {
	store  port.MembershipStore
	tracer trace.Tracer

	// 同一会员的并发同步请求合并为一次记录库读取
	resync singleflight.Group
}

func NewProfileService(store port.MembershipStore, tracer trace.Tracer) *ProfileService {
	return &ProfileService{store: store, tracer: tracer}
}

// Profile 返回会话中的会员快照
func (s *ProfileService) Profile(ctx context.Context, sess domain.Session) (*domain.Member, error) {
	return currentMember(ctx, sess)
}

// Resync 从记录库拉取最新记录并刷新会话，可在任意修改之后重复调用。
func (s *ProfileService) Resync(ctx context.Context, sess domain.Session) (*domain.Member, error) {
	ctx, span := s.tracer.Start(ctx, "app.Resync")
	defer span.End()

	m, err := currentMember(ctx, sess)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("member.number", m.Number))

	record, err := s.fetch(ctx, m)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Resync failed")
		return nil, err
	}
	m.Refresh(record)
	if err := sess.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *ProfileService) fetch(ctx context.Context, m *domain.Member) (*domain.MembershipRecord, error) {
	key := m.Number + "|" + m.Email
	v, err, shared := s.resync.Do(key, func() (any, error) {
		return s.store.FindByNumberAndEmail(ctx, m.Number, m.Email)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Ctx(ctx).Debug().Str("member", m.Number).Msg("Resync shared with in-flight request")
	}
	return v.(*domain.MembershipRecord), nil
}

// ChangePassword 先用当前密码做一次校验，再写入新密码。
func (s *ProfileService) ChangePassword(ctx context.Context, sess domain.Session, req ChangePasswordRequest) error {
	ctx, span := s.tracer.Start(ctx, "app.ChangePassword")
	defer span.End()

	m, err := currentMember(ctx, sess)
	if err != nil {
		return err
	}
	if req.Current == "" || req.Next == "" || req.Confirm == "" {
		return domain.ErrPasswordRequired
	}
	if err := domain.ValidateNewPassword(req.Next, req.Confirm); err != nil {
		return err
	}

	if err := s.store.VerifyPassword(ctx, m.Number, req.Current); err != nil {
		span.RecordError(err)
		return err
	}

	record, err := s.store.FindByNumberAndEmail(ctx, m.Number, m.Email)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.store.Update(ctx, record.DocumentID, port.MembershipUpdate{Password: &req.Next}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Password update failed")
		return err
	}

	logger.Ctx(ctx).Info().Str("member", m.Number).Msg("Password changed")
	return nil
}

// ChangePhone 更新电话号码并同步到会话
func (s *ProfileService) ChangePhone(ctx context.Context, sess domain.Session, phone string) (*domain.Member, error) {
	ctx, span := s.tracer.Start(ctx, "app.ChangePhone")
	defer span.End()

	m, err := currentMember(ctx, sess)
	if err != nil {
		return nil, err
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, domain.ErrPhoneRequired
	}
	if len(phone) < MinPhoneLength {
		return nil, domain.ErrPhoneInvalid
	}

	record, err := s.store.FindByNumberAndEmail(ctx, m.Number, m.Email)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.store.Update(ctx, record.DocumentID, port.MembershipUpdate{Phone: &phone}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Phone update failed")
		return nil, err
	}

	m.Phone = phone
	if err := sess.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// currentMember 读取会话，未登录返回 ErrNotSignedIn
func currentMember(ctx context.Context, sess domain.Session) (*domain.Member, error) {
	m, err := sess.Load(ctx)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrNotSignedIn
	}
	return m, nil
}
