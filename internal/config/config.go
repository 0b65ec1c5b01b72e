package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Financing FinancingConfig `mapstructure:"financing"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	DeliveryNotice string `mapstructure:"delivery_notice"`
}

// FinancingConfig 分期业务的静态配置
// 利率与可分期品类只用于首次启动时初始化配置表，之后以数据库为准
type FinancingConfig struct {
	DefaultInterestRate   int      `mapstructure:"default_interest_rate"`
	DefaultCategories     []string `mapstructure:"default_categories"`
	CountryCode           string   `mapstructure:"country_code"`
	ConfigCacheTTLSeconds int      `mapstructure:"config_cache_ttl_seconds"`
	TrustLockTTLSeconds   int      `mapstructure:"trust_lock_ttl_seconds"`
	TrustLockRetries      int      `mapstructure:"trust_lock_retries"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("mysql.max_open_conns", 20)
	v.SetDefault("mysql.max_idle_conns", 5)
	v.SetDefault("redis.port", 6379)
	v.SetDefault("kafka.topic.delivery_notice", "layaway.delivery_notice")
	v.SetDefault("financing.default_interest_rate", 0)
	v.SetDefault("financing.country_code", "593")
	v.SetDefault("financing.config_cache_ttl_seconds", 300)
	v.SetDefault("financing.trust_lock_ttl_seconds", 30)
	v.SetDefault("financing.trust_lock_retries", 30)
}

// LoadConfig 加载配置文件，环境变量 LAYAWAY_* 覆盖文件中的值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LAYAWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if cfg.Financing.DefaultInterestRate < 0 || cfg.Financing.DefaultInterestRate > 40 {
		return nil, fmt.Errorf("financing.default_interest_rate 超出范围 [0,40]: %d", cfg.Financing.DefaultInterestRate)
	}

	return cfg, nil
}
