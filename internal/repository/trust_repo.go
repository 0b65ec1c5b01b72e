package repository

import (
	"context"
	"errors"
	"time"

	"layaway/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TrustRepository struct {
	db *gorm.DB
}

func NewTrustRepository(db *gorm.DB) *TrustRepository {
	return &TrustRepository{db: db}
}

func (r *TrustRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

// Get 查询信任记录，不存在时返回 nil, nil
func (r *TrustRepository) Get(ctx context.Context, tx *gorm.DB, emailKey string) (*model.TrustRecord, error) {
	var record model.TrustRecord
	err := r.conn(tx).WithContext(ctx).Where("email_key = ?", emailKey).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeErr("查询信任记录", err)
	}
	return &record, nil
}

// GetMany 批量查询，列表页一次取回所有客户的星级
func (r *TrustRepository) GetMany(ctx context.Context, emailKeys []string) (map[string]*model.TrustRecord, error) {
	result := make(map[string]*model.TrustRecord, len(emailKeys))
	if len(emailKeys) == 0 {
		return result, nil
	}

	var records []*model.TrustRecord
	err := r.db.WithContext(ctx).Where("email_key IN ?", emailKeys).Find(&records).Error
	if err != nil {
		return nil, storeErr("批量查询信任记录", err)
	}
	for _, rec := range records {
		result[rec.EmailKey] = rec
	}
	return result, nil
}

// Increment 原子地自增成功次数，记录不存在时创建为 1，返回自增后的记录
//
// INSERT ... ON CONFLICT / ON DUPLICATE KEY UPDATE success_count = success_count + 1
// 由数据库保证自增本身不会丢失；读回的值在同一事务内，配合按客户加的分布式锁，
// 保证每次交付拿到的是自己那一次自增后的计数
func (r *TrustRepository) Increment(ctx context.Context, tx *gorm.DB, emailKey string, at time.Time) (*model.TrustRecord, error) {
	record := &model.TrustRecord{
		EmailKey:      emailKey,
		SuccessCount:  1,
		LastSuccessAt: at,
	}

	err := r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "email_key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"success_count":   gorm.Expr("success_count + 1"),
				"last_success_at": at,
				"updated_at":      at,
			}),
		}).
		Create(record).Error
	if err != nil {
		return nil, storeErr("更新信任记录", err)
	}

	updated, err := r.Get(ctx, tx, emailKey)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, storeErr("更新信任记录", errors.New("自增后记录不存在"))
	}
	return updated, nil
}

// Set 用重新统计的次数覆盖信任记录（对账修复用）
func (r *TrustRepository) Set(ctx context.Context, tx *gorm.DB, emailKey string, successCount int, lastSuccessAt time.Time) error {
	record := &model.TrustRecord{
		EmailKey:      emailKey,
		SuccessCount:  successCount,
		LastSuccessAt: lastSuccessAt,
	}

	err := r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"success_count", "last_success_at", "updated_at"}),
		}).
		Create(record).Error
	return storeErr("覆盖信任记录", err)
}
