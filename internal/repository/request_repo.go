package repository

import (
	"context"
	"errors"

	"layaway/internal/model"

	"gorm.io/gorm"
)

type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *RequestRepository) Create(ctx context.Context, req *model.FinancingRequest) error {
	return storeErr("创建分期申请", r.db.WithContext(ctx).Create(req).Error)
}

// GetByID 按 ID 查询，软删除的记录同样返回（审计需要）
func (r *RequestRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*model.FinancingRequest, error) {
	var req model.FinancingRequest
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, storeErr("查询分期申请", err)
	}
	return &req, nil
}

// ListAll 全部申请，按创建时间倒序
func (r *RequestRepository) ListAll(ctx context.Context) ([]*model.FinancingRequest, error) {
	var reqs []*model.FinancingRequest
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&reqs).Error
	return reqs, storeErr("查询分期申请列表", err)
}

// ListVisible 管理端可见的申请（admin_deleted = false），按创建时间倒序
// inStatuses 为 true 时只保留 statuses 内的状态，否则排除这些状态
func (r *RequestRepository) ListVisible(ctx context.Context, statuses []string, inStatuses bool) ([]*model.FinancingRequest, error) {
	var reqs []*model.FinancingRequest

	query := r.db.WithContext(ctx).
		Model(&model.FinancingRequest{}).
		Where("admin_deleted = ?", false)
	if inStatuses {
		query = query.Where("status IN ?", statuses)
	} else {
		query = query.Where("status NOT IN ?", statuses)
	}

	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Find(&reqs).Error
	return reqs, storeErr("查询分期申请列表", err)
}

// Update 整行条件更新：只有状态和版本号都没变时才写入，version+1
//
// 单个申请的修改要么全部可见要么完全不可见；并发的两个管理员操作同一申请时，
// 后提交的一方拿到 ErrConcurrentUpdate
func (r *RequestRepository) Update(ctx context.Context, tx *gorm.DB, current *model.FinancingRequest, fields map[string]interface{}) error {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")

	result := r.conn(tx).WithContext(ctx).
		Model(&model.FinancingRequest{}).
		Where("id = ? AND status = ? AND version = ?", current.ID, current.Status, current.Version).
		Updates(updates)

	if result.Error != nil {
		return storeErr("更新分期申请", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}

	return nil
}

// CountDelivered 某客户已交付的申请数量，用于重建信任账本
func (r *RequestRepository) CountDelivered(ctx context.Context, tx *gorm.DB, emailKey string) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&model.FinancingRequest{}).
		Where("email_key = ? AND (status = ? OR delivered_at IS NOT NULL)", emailKey, model.RequestStatusDelivered).
		Count(&count).Error
	return count, storeErr("统计已交付申请", err)
}

// LatestDelivered 某客户最近一次交付的申请，没有时返回 nil, nil
func (r *RequestRepository) LatestDelivered(ctx context.Context, tx *gorm.DB, emailKey string) (*model.FinancingRequest, error) {
	var req model.FinancingRequest
	err := r.conn(tx).WithContext(ctx).
		Where("email_key = ? AND delivered_at IS NOT NULL", emailKey).
		Order("delivered_at DESC").
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeErr("查询最近交付", err)
	}
	return &req, nil
}
