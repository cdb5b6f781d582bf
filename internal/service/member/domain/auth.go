// internal/service/member/domain/auth.go
package domain

import "strings"

// AuthStep 是登录弹窗的状态
type AuthStep string

const (
	StepIdentityCheck AuthStep = "identity_check"
	StepPasswordSetup AuthStep = "password_setup" // 首次激活
	StepPasswordLogin AuthStep = "password_login"

	// 以下为终态，只做提示
	StepUnderReview AuthStep = "under_review"
	StepSuspended   AuthStep = "suspended"
	StepNotFound    AuthStep = "not_found"
)

// MinPasswordLength 是设置或修改密码时的最小长度
const MinPasswordLength = 8

// Identity 是会员在身份校验步骤中提交的信息
type Identity struct {
	Name   string
	Email  string
	Number string
}

// Resolve 根据记录状态与提交的身份决定下一步。
// 返回 ErrIdentityMismatch 表示状态需要身份匹配但不匹配。
func Resolve(r *MembershipRecord, id Identity) (AuthStep, error) {
	if r == nil {
		return StepNotFound, ErrMemberNotFound
	}
	email := NormalizeEmail(id.Email)
	nameMatches := strings.TrimSpace(id.Name) == strings.TrimSpace(r.Name)
	emailMatches := email != "" && email == NormalizeEmail(r.Email)

	switch r.Status {
	case StatusConfirmed:
		// 早期导入的记录可能没有邮箱，此时只比对姓名
		if (r.Email == "" && nameMatches) || emailMatches {
			return StepPasswordSetup, nil
		}
		return StepIdentityCheck, ErrIdentityMismatch
	case StatusActive:
		if nameMatches && emailMatches {
			return StepPasswordLogin, nil
		}
		return StepIdentityCheck, ErrIdentityMismatch
	case StatusApplied:
		return StepUnderReview, nil
	case StatusSuspended:
		if nameMatches && emailMatches {
			return StepSuspended, nil
		}
		return StepIdentityCheck, ErrIdentityMismatch
	default:
		return StepNotFound, nil
	}
}

// ValidateNewPassword 校验新密码与确认密码
func ValidateNewPassword(password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}
