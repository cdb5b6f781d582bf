package domain

import "errors"

// 身份与会话
var (
	ErrNotSignedIn          = errors.New("member is not signed in")
	ErrIdentityMismatch     = errors.New("member identity does not match")
	ErrMemberNotFound       = errors.New("member not found")
	ErrWrongPassword        = errors.New("wrong password")
	ErrPasswordRequired     = errors.New("all password fields are required")
	ErrPasswordTooShort     = errors.New("password must be at least 8 characters")
	ErrPasswordMismatch     = errors.New("password confirmation does not match")
	ErrPhoneRequired        = errors.New("phone number is required")
	ErrPhoneInvalid         = errors.New("phone number looks invalid")
	ErrActivationIncomplete = errors.New("membership activated but record could not be reloaded")
	ErrVerificationFailed   = errors.New("password verification failed")
)

// 兑换
var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInsufficientCash     = errors.New("insufficient cash")
	ErrInsufficientDiscount = errors.New("insufficient discount points")
	ErrProductNotFound      = errors.New("product not found")
	ErrRedemptionNotFound   = errors.New("redemption not found")
	ErrRedemptionInProgress = errors.New("a redemption is already in progress for this member")

	// ErrCouponIssueFailed 表示券未能创建，余额未被修改
	ErrCouponIssueFailed = errors.New("coupon issuance failed")
	// ErrNotificationFailed 表示券已创建但邮件未送达，余额未扣减，需要人工处理
	ErrNotificationFailed = errors.New("coupon issued but notification failed")
	// ErrSettlementIncomplete 表示券已创建但余额扣减失败，需要人工处理
	ErrSettlementIncomplete = errors.New("coupon issued but balance update failed")
)

// 基础设施
var (
	ErrRecordStore   = errors.New("record store request failed")
	ErrNetwork       = errors.New("network failure")
	ErrNotConfigured = errors.New("service endpoint not configured")
)

// NeedsSupport 判断错误是否属于"已出券但未完成"的不一致中间态。
func NeedsSupport(err error) bool {
	return errors.Is(err, ErrNotificationFailed) || errors.Is(err, ErrSettlementIncomplete)
}
