package journal

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"membermall/internal/service/member/domain"
)

// GormRedemptionRepository 是 RedemptionRepository 的 GORM 实现
type GormRedemptionRepository struct {
	db *gorm.DB
}

var _ domain.RedemptionRepository = (*GormRedemptionRepository)(nil)

// NewGormRedemptionRepository 创建一个新的 GORM 仓储实例
func NewGormRedemptionRepository(db *gorm.DB) *GormRedemptionRepository {
	return &GormRedemptionRepository{db: db}
}

// Migrate 创建或更新流水表结构
func (r *GormRedemptionRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&RedemptionModel{})
}

// Save 以主键 upsert，兑换在每个步骤后都会被保存一次
func (r *GormRedemptionRepository) Save(ctx context.Context, redemption *domain.Redemption) error {
	model := toModel(redemption)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(model).Error
}

func (r *GormRedemptionRepository) FindByID(ctx context.Context, id string) (*domain.Redemption, error) {
	var model RedemptionModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRedemptionNotFound
		}
		return nil, err
	}
	return toDomain(&model), nil
}

func (r *GormRedemptionRepository) ListByState(ctx context.Context, state domain.RedemptionState, limit int) ([]*domain.Redemption, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []RedemptionModel
	err := r.db.WithContext(ctx).
		Where("state = ?", string(state)).
		Order("updated_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Redemption, 0, len(models))
	for i := range models {
		out = append(out, toDomain(&models[i]))
	}
	return out, nil
}
