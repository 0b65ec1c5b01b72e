// Package testutil 测试用的数据库、Redis 和配置
package testutil

import (
	"path/filepath"
	"testing"

	"layaway/internal/config"
	"layaway/internal/infrastructure/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 基于临时目录的 sqlite，表结构与 MySQL 一致
// 只开一个连接，避免 sqlite 多连接写锁冲突
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "layaway.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// NewRedis 内存版 Redis
func NewRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// Config 测试配置：默认 5% 利率，phones / laptops 可分期
func Config() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{DeliveryNotice: "layaway.delivery_notice"},
		},
		Financing: config.FinancingConfig{
			DefaultInterestRate:   5,
			DefaultCategories:     []string{"phones", "laptops"},
			CountryCode:           "593",
			ConfigCacheTTLSeconds: 60,
			TrustLockTTLSeconds:   10,
			TrustLockRetries:      200,
		},
	}
}
