package model

import (
	"time"
)

// TrustRecord 客户信任账本
// 以规范化邮箱为 key，记录累计成功交付次数；只增不删
type TrustRecord struct {
	EmailKey      string    `gorm:"type:varchar(191);primaryKey" json:"email_key"`
	SuccessCount  int       `gorm:"not null;default:0" json:"success_count"`
	LastSuccessAt time.Time `json:"last_success_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TrustRecord) TableName() string {
	return "trust_record"
}

// Stars 当前星级，min(successCount, 5)
func (t *TrustRecord) Stars() int {
	if t == nil {
		return 0
	}
	return StarsFor(t.SuccessCount)
}
