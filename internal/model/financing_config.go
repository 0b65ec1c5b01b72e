package model

import (
	"time"
)

const (
	// FinancingConfigID 配置表只有一行
	FinancingConfigID = 1

	MinInterestRate = 0
	MaxInterestRate = 40
)

// FinancingConfig 分期全局配置（单例）
// 每次写入 version+1，申请创建时的利率快照保存在申请上
type FinancingConfig struct {
	ID                  int64     `gorm:"primaryKey" json:"-"`
	InterestRatePercent int       `gorm:"not null;default:0" json:"interest_rate_percent"`
	AllowedCategories   []string  `gorm:"type:text;serializer:json" json:"allowed_categories"`
	Version             int       `gorm:"not null;default:0" json:"version"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FinancingConfig) TableName() string {
	return "financing_config"
}

// AllowsCategory 判断品类是否可以分期，空集合表示全部不可分期
func (c *FinancingConfig) AllowsCategory(category string) bool {
	for _, allowed := range c.AllowedCategories {
		if allowed == category {
			return true
		}
	}
	return false
}
