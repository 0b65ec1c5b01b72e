package repository

import (
	"context"
	"errors"

	"layaway/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrConfigNotFound = errors.New("分期配置不存在")

type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Seed 配置行不存在时写入初始值，已存在则保持不变
func (r *ConfigRepository) Seed(ctx context.Context, seed *model.FinancingConfig) error {
	seed.ID = model.FinancingConfigID
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(seed).Error
	return storeErr("初始化分期配置", err)
}

func (r *ConfigRepository) Get(ctx context.Context) (*model.FinancingConfig, error) {
	var cfg model.FinancingConfig
	err := r.db.WithContext(ctx).Where("id = ?", model.FinancingConfigID).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, storeErr("查询分期配置", err)
	}
	return &cfg, nil
}

// Update 只更新 columns 中列出的字段（合并语义），并把 version+1
// 用结构体更新才会经过 allowed_categories 的 json 序列化
// 配置行由 Seed 保证存在；MySQL 在值未变化时 RowsAffected 为 0，这里不据此判断
func (r *ConfigRepository) Update(ctx context.Context, patch *model.FinancingConfig, columns []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.FinancingConfig{ID: model.FinancingConfigID}).
			Select(columns).
			Updates(patch).Error
		if err != nil {
			return storeErr("更新分期配置", err)
		}

		err = tx.Model(&model.FinancingConfig{ID: model.FinancingConfigID}).
			UpdateColumn("version", gorm.Expr("version + 1")).Error
		return storeErr("更新分期配置版本", err)
	})
}
