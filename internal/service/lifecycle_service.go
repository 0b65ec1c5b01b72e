package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"layaway/internal/config"
	"layaway/internal/metrics"
	"layaway/internal/model"
	"layaway/internal/notify"
	"layaway/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const notifyTimeout = 5 * time.Second

// LifecycleService 分期申请状态机
//
//	pending   --approve--> approved
//	pending   --reject --> rejected   (终态)
//	approved  --deliver--> delivered  (终态，要求已付清)
//	(任意)    --cancel --> cancelled  (终态，由外部流程触发)
//	cancelled --refund --> cancelled, refunded=true
//
// 所有操作一次只处理一个申请；失败直接返回给调用方，不做自动重试
type LifecycleService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	requestRepo *repository.RequestRepository
	trustRepo   *repository.TrustRepository
	dispatcher  notify.Dispatcher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

func NewLifecycleService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, dispatcher notify.Dispatcher, m *metrics.Metrics, logger *slog.Logger) *LifecycleService {
	return &LifecycleService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		requestRepo: repository.NewRequestRepository(db),
		trustRepo:   repository.NewTrustRepository(db),
		dispatcher:  dispatcher,
		metrics:     m,
		logger:      logger.With("component", "lifecycle"),
		now:         time.Now,
	}
}

func (s *LifecycleService) observe(action string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidTransition):
		outcome = "invalid_transition"
	case errors.Is(err, ErrPreconditionFailed):
		outcome = "precondition_failed"
	case errors.Is(err, repository.ErrRequestNotFound):
		outcome = "not_found"
	case errors.Is(err, repository.ErrConcurrentUpdate):
		outcome = "conflict"
	default:
		outcome = "error"
	}
	s.metrics.Transitions.WithLabelValues(action, outcome).Inc()
}

// mutate 读取申请 -> 计算要写入的字段 -> 条件更新 -> 读回
// decide 返回 nil 字段表示无需修改（幂等的重复操作）
func (s *LifecycleService) mutate(ctx context.Context, action, id string, decide func(req *model.FinancingRequest, now time.Time) (map[string]interface{}, error)) (req *model.FinancingRequest, err error) {
	defer func() { s.observe(action, err) }()

	req, err = s.requestRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	fields, err := decide(req, s.now())
	if err != nil {
		return nil, err
	}
	if fields == nil {
		return req, nil
	}

	if err := s.requestRepo.Update(ctx, nil, req, fields); err != nil {
		return nil, err
	}

	s.logger.Info("分期申请状态已更新", "action", action, "request_id", id, "from", req.Status)
	return s.requestRepo.GetByID(ctx, nil, id)
}

func invalidTransition(action, status string) error {
	return fmt.Errorf("%w: 状态 %s 不能执行 %s", ErrInvalidTransition, status, action)
}

// Approve pending -> approved，已付金额从 0 开始累计
func (s *LifecycleService) Approve(ctx context.Context, id string) (*model.FinancingRequest, error) {
	return s.mutate(ctx, "approve", id, func(req *model.FinancingRequest, now time.Time) (map[string]interface{}, error) {
		if !model.CanTransitionTo(req.Status, model.RequestStatusApproved) {
			return nil, invalidTransition("approve", req.Status)
		}
		fields := map[string]interface{}{
			"status":      model.RequestStatusApproved,
			"amount_paid": int64(0),
		}
		if req.ApprovedAt == nil {
			fields["approved_at"] = now
		}
		return fields, nil
	})
}

// Reject pending -> rejected
func (s *LifecycleService) Reject(ctx context.Context, id string) (*model.FinancingRequest, error) {
	return s.mutate(ctx, "reject", id, func(req *model.FinancingRequest, now time.Time) (map[string]interface{}, error) {
		if !model.CanTransitionTo(req.Status, model.RequestStatusRejected) {
			return nil, invalidTransition("reject", req.Status)
		}
		fields := map[string]interface{}{
			"status": model.RequestStatusRejected,
		}
		if req.RejectedAt == nil {
			fields["rejected_at"] = now
		}
		return fields, nil
	})
}

// RecordPayment 运营人员手工登记一笔分期付款，只允许在 approved 状态
// 不拦截超额支付，交付只看是否付清
func (s *LifecycleService) RecordPayment(ctx context.Context, id string, amount int64) (*model.FinancingRequest, error) {
	return s.mutate(ctx, "payment", id, func(req *model.FinancingRequest, _ time.Time) (map[string]interface{}, error) {
		if amount <= 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidPayment, amount)
		}
		if req.Status != model.RequestStatusApproved {
			return nil, invalidTransition("payment", req.Status)
		}
		return map[string]interface{}{
			"amount_paid": req.AmountPaid + amount,
		}, nil
	})
}

// Cancel 接受外部的取消事件，任何状态都可以取消；重复取消直接返回
func (s *LifecycleService) Cancel(ctx context.Context, id string) (*model.FinancingRequest, error) {
	return s.mutate(ctx, "cancel", id, func(req *model.FinancingRequest, now time.Time) (map[string]interface{}, error) {
		if req.Status == model.RequestStatusCancelled {
			return nil, nil
		}
		fields := map[string]interface{}{
			"status": model.RequestStatusCancelled,
		}
		if req.CancelledAt == nil {
			fields["cancelled_at"] = now
		}
		return fields, nil
	})
}

// MarkRefunded 标记已退款；已退款时重复调用直接成功，容忍运营重复点击
func (s *LifecycleService) MarkRefunded(ctx context.Context, id string) (*model.FinancingRequest, error) {
	return s.mutate(ctx, "refund", id, func(req *model.FinancingRequest, now time.Time) (map[string]interface{}, error) {
		if req.Status != model.RequestStatusCancelled {
			return nil, invalidTransition("refund", req.Status)
		}
		if req.Refunded {
			return nil, nil
		}
		fields := map[string]interface{}{
			"refunded": true,
		}
		if req.RefundedAt == nil {
			fields["refunded_at"] = now
		}
		return fields, nil
	})
}

// SoftDelete 从管理端列表隐藏，不影响状态，记录保留
func (s *LifecycleService) SoftDelete(ctx context.Context, id string) (*model.FinancingRequest, error) {
	return s.mutate(ctx, "delete", id, func(req *model.FinancingRequest, _ time.Time) (map[string]interface{}, error) {
		if req.AdminDeleted {
			return nil, nil
		}
		return map[string]interface{}{
			"admin_deleted": true,
		}, nil
	})
}

func checkDeliverable(req *model.FinancingRequest) error {
	if req.Status != model.RequestStatusApproved {
		return invalidTransition("deliver", req.Status)
	}
	if !req.FullyPaid() {
		return fmt.Errorf("%w: 余额 %d", ErrPreconditionFailed, req.Balance())
	}
	return nil
}

// Deliver approved -> delivered
//
// 1. 按客户邮箱加分布式锁
// 2. 同一事务内：信任记录原子自增（不存在则创建为 1），冻结星级，更新申请状态
// 3. 提交后发送交付通知，通知失败只记日志，不回滚
func (s *LifecycleService) Deliver(ctx context.Context, id string) (delivered *model.FinancingRequest, err error) {
	defer func() { s.observe("deliver", err) }()

	req, err := s.requestRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := checkDeliverable(req); err != nil {
		return nil, err
	}

	emailKey := model.NormalizeEmail(req.Email)
	err = withTrustLock(ctx, s.redisClient, s.cfg, s.metrics, emailKey, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// 拿到锁后重新读取，期间可能已被其他管理员交付
			current, err := s.requestRepo.GetByID(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := checkDeliverable(current); err != nil {
				return err
			}

			now := s.now()
			record, err := s.trustRepo.Increment(ctx, tx, emailKey, now)
			if err != nil {
				return err
			}

			fields := map[string]interface{}{
				"status":      model.RequestStatusDelivered,
				"trust_stars": record.Stars(),
			}
			if current.DeliveredAt == nil {
				fields["delivered_at"] = now
			}
			if err := s.requestRepo.Update(ctx, tx, current, fields); err != nil {
				return err
			}

			delivered, err = s.requestRepo.GetByID(ctx, tx, id)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.TrustIncrements.Inc()
	s.logger.Info("分期申请已交付",
		"request_id", id,
		"email_key", emailKey,
		"trust_stars", delivered.TrustStars,
	)

	s.dispatch(ctx, delivered)
	return delivered, nil
}

// dispatch 交付已经提交，这里的失败只记录，不影响返回结果
func (s *LifecycleService) dispatch(ctx context.Context, req *model.FinancingRequest) {
	if s.dispatcher == nil {
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := s.dispatcher.Dispatch(notifyCtx, req); err != nil {
		s.metrics.Notifications.WithLabelValues("failed").Inc()
		s.logger.Warn("交付通知发送失败",
			"request_id", req.ID,
			"err", fmt.Errorf("%w: %w", ErrNotificationDispatchFailed, err),
		)
		return
	}
	s.metrics.Notifications.WithLabelValues("sent").Inc()
}
