package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"layaway/internal/config"
	"layaway/internal/infrastructure/cache"
	"layaway/internal/metrics"
	"layaway/internal/model"
	"layaway/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const configCacheKey = "financing:config"

// ConfigService 分期全局配置：利率和可分期品类
// 读多写少，读走 Redis 缓存，写入后删除缓存
type ConfigService struct {
	configRepo  *repository.ConfigRepository
	redisClient *redis.Client
	cfg         *config.Config
	metrics     *metrics.Metrics
	logger      *slog.Logger
	cacheTTL    time.Duration
}

func NewConfigService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *ConfigService {
	return &ConfigService{
		configRepo:  repository.NewConfigRepository(db),
		redisClient: redisClient,
		cfg:         cfg,
		metrics:     m,
		logger:      logger.With("component", "financing_config"),
		cacheTTL:    time.Duration(cfg.Financing.ConfigCacheTTLSeconds) * time.Second,
	}
}

// ConfigPatch 为 nil 的字段保持不变
type ConfigPatch struct {
	InterestRatePercent *int      `json:"interest_rate_percent"`
	AllowedCategories   *[]string `json:"allowed_categories"`
}

// Init 首次启动时用配置文件里的默认值写入配置行
func (s *ConfigService) Init(ctx context.Context) error {
	seed := &model.FinancingConfig{
		InterestRatePercent: s.cfg.Financing.DefaultInterestRate,
		AllowedCategories:   normalizeCategories(s.cfg.Financing.DefaultCategories),
	}
	return s.configRepo.Seed(ctx, seed)
}

func (s *ConfigService) Get(ctx context.Context) (*model.FinancingConfig, error) {
	if s.redisClient != nil {
		var cached model.FinancingConfig
		hit, err := cache.GetJSON(ctx, s.redisClient, configCacheKey, &cached)
		switch {
		case err != nil:
			s.metrics.ConfigCache.WithLabelValues("error").Inc()
			s.logger.Warn("读取配置缓存失败，回源数据库", "err", err)
		case hit:
			s.metrics.ConfigCache.WithLabelValues("hit").Inc()
			return &cached, nil
		default:
			s.metrics.ConfigCache.WithLabelValues("miss").Inc()
		}
	}

	cfg, err := s.configRepo.Get(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrConfigNotFound) {
			// 配置行缺失按"不支持分期"处理
			return &model.FinancingConfig{ID: model.FinancingConfigID}, nil
		}
		return nil, err
	}

	if s.redisClient != nil {
		if err := cache.SetJSON(ctx, s.redisClient, configCacheKey, cfg, s.cacheTTL); err != nil {
			s.logger.Warn("写入配置缓存失败", "err", err)
		}
	}
	return cfg, nil
}

// Set 合并更新：只写入 patch 中给出的字段，写库前后各删一次缓存
func (s *ConfigService) Set(ctx context.Context, patch ConfigPatch) (*model.FinancingConfig, error) {
	update := &model.FinancingConfig{UpdatedAt: time.Now()}
	columns := []string{"updated_at"}

	if patch.InterestRatePercent != nil {
		rate := *patch.InterestRatePercent
		if rate < model.MinInterestRate || rate > model.MaxInterestRate {
			return nil, fmt.Errorf("%w: 利率 %d 超出范围 [%d,%d]", ErrInvalidConfiguration, rate, model.MinInterestRate, model.MaxInterestRate)
		}
		update.InterestRatePercent = rate
		columns = append(columns, "interest_rate_percent")
	}

	if patch.AllowedCategories != nil {
		update.AllowedCategories = normalizeCategories(*patch.AllowedCategories)
		columns = append(columns, "allowed_categories")
	}

	if len(columns) > 1 {
		if err := s.configRepo.Update(ctx, update, columns); err != nil {
			return nil, err
		}
		s.invalidate(ctx)
		s.logger.Info("分期配置已更新", "columns", columns[1:])
	}

	updated, err := s.configRepo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(columns) > 1 {
		// 并发的 Get 可能在第一次删除后把旧行写回缓存，读回后再删一次
		s.invalidate(ctx)
	}
	return updated, nil
}

func (s *ConfigService) invalidate(ctx context.Context) {
	if s.redisClient == nil {
		return
	}
	if err := cache.Delete(ctx, s.redisClient, configCacheKey); err != nil {
		s.logger.Warn("删除配置缓存失败", "err", err)
	}
}

// normalizeCategories 去空格、去空串、去重，保持原有顺序；结果非 nil，序列化为 []
func normalizeCategories(categories []string) []string {
	seen := make(map[string]struct{}, len(categories))
	result := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		result = append(result, c)
	}
	return result
}
