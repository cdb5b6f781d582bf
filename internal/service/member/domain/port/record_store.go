package port

import (
	"context"

	"github.com/shopspring/decimal"

	"membermall/internal/service/member/domain"
)

// MembershipUpdate 是一次部分更新，nil 字段不会被写入。
type MembershipUpdate struct {
	Name          *string
	Email         *string
	Status        *domain.MembershipStatus
	Password      *string
	Phone         *string
	Cash          *decimal.Decimal
	DiscountPoint *decimal.Decimal
	// CouponIDs 非 nil 时整体替换 MyCoupon 关联
	CouponIDs []string
}

// MembershipStore 是记录库中会员集合的出站端口。
// 找不到记录时返回 domain.ErrMemberNotFound。
type MembershipStore interface {
	FindByNumber(ctx context.Context, number string) (*domain.MembershipRecord, error)

	// FindByNumberAndEmail 在写入前用于消除同号歧义。
	FindByNumberAndEmail(ctx context.Context, number, email string) (*domain.MembershipRecord, error)

	Get(ctx context.Context, documentID string) (*domain.MembershipRecord, error)

	Update(ctx context.Context, documentID string, u MembershipUpdate) error

	// VerifyPassword 密码错误返回 domain.ErrWrongPassword。
	VerifyPassword(ctx context.Context, number, password string) error
}

// ProductCatalog 是记录库中商品目录的出站端口。
type ProductCatalog interface {
	// AllowedProducts 返回会员记录上单独关联的商品。
	AllowedProducts(ctx context.Context, number string) ([]domain.Product, error)

	// PublicProducts 返回所有面向会员计划开放的商品。
	PublicProducts(ctx context.Context) ([]domain.Product, error)
}
