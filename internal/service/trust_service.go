package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"layaway/internal/config"
	"layaway/internal/infrastructure/lock"
	"layaway/internal/metrics"
	"layaway/internal/model"
	"layaway/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const trustLockRetryInterval = 50 * time.Millisecond

// withTrustLock 在客户维度的分布式锁内执行 fn
// 同一邮箱的信任账本读-自增-写必须串行
func withTrustLock(ctx context.Context, rdb *redis.Client, cfg *config.Config, m *metrics.Metrics, emailKey string, fn func() error) error {
	ttl := time.Duration(cfg.Financing.TrustLockTTLSeconds) * time.Second
	trustLock := lock.NewTrustLock(rdb, emailKey, ttl)

	start := time.Now()
	if err := trustLock.Lock(ctx, trustLockRetryInterval, cfg.Financing.TrustLockRetries); err != nil {
		// Redis 不可用或等锁超时，都按存储不可用返回，由调用方提示重试
		return fmt.Errorf("获取信任账本锁: %w: %w", repository.ErrStoreUnavailable, err)
	}
	m.LockWaitDuration.Observe(time.Since(start).Seconds())
	defer trustLock.Unlock(context.WithoutCancel(ctx))

	return fn()
}

// TrustSummary 客户信任信息，用于展示星级
type TrustSummary struct {
	EmailKey      string     `json:"email_key"`
	SuccessCount  int        `json:"success_count"`
	Stars         int        `json:"stars"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
}

func summarize(emailKey string, record *model.TrustRecord) *TrustSummary {
	summary := &TrustSummary{EmailKey: emailKey}
	if record != nil {
		last := record.LastSuccessAt
		summary.SuccessCount = record.SuccessCount
		summary.Stars = record.Stars()
		summary.LastSuccessAt = &last
	}
	return summary
}

// TrustService 信任账本的查询与对账
// 自增只发生在交付时（见 LifecycleService.Deliver）
type TrustService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	metrics     *metrics.Metrics
	logger      *slog.Logger
	trustRepo   *repository.TrustRepository
	requestRepo *repository.RequestRepository
}

func NewTrustService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *TrustService {
	return &TrustService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		metrics:     m,
		logger:      logger.With("component", "trust_ledger"),
		trustRepo:   repository.NewTrustRepository(db),
		requestRepo: repository.NewRequestRepository(db),
	}
}

// Get 查询客户信任信息，没有记录时次数和星级都是 0
func (s *TrustService) Get(ctx context.Context, email string) (*TrustSummary, error) {
	emailKey := model.NormalizeEmail(email)
	record, err := s.trustRepo.Get(ctx, nil, emailKey)
	if err != nil {
		return nil, err
	}
	return summarize(emailKey, record), nil
}

// Reconcile 按已交付申请重新统计成功次数并覆盖信任记录
//
// 交付时信任账本和申请在同一个事务里提交；如果历史数据被外部修改过，
// 可以用这里从申请记录重建
func (s *TrustService) Reconcile(ctx context.Context, email string) (*TrustSummary, error) {
	emailKey := model.NormalizeEmail(email)

	var record *model.TrustRecord
	err := withTrustLock(ctx, s.redisClient, s.cfg, s.metrics, emailKey, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			count, err := s.requestRepo.CountDelivered(ctx, tx, emailKey)
			if err != nil {
				return err
			}
			existing, err := s.trustRepo.Get(ctx, tx, emailKey)
			if err != nil {
				return err
			}
			if count == 0 && existing == nil {
				// 从未交付过且没有记录时不创建空记录
				return nil
			}

			latest, err := s.requestRepo.LatestDelivered(ctx, tx, emailKey)
			if err != nil {
				return err
			}
			var lastSuccessAt time.Time
			switch {
			case latest != nil && latest.DeliveredAt != nil:
				lastSuccessAt = *latest.DeliveredAt
			case existing != nil:
				lastSuccessAt = existing.LastSuccessAt
			}

			if err := s.trustRepo.Set(ctx, tx, emailKey, int(count), lastSuccessAt); err != nil {
				return err
			}
			record, err = s.trustRepo.Get(ctx, tx, emailKey)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return summarize(emailKey, nil), nil
	}

	s.logger.Info("信任账本已对账", "email_key", emailKey, "success_count", record.SuccessCount)
	return summarize(emailKey, record), nil
}
