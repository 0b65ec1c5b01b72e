package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RequestStatusPending   = "pending"
	RequestStatusApproved  = "approved"
	RequestStatusRejected  = "rejected"
	RequestStatusDelivered = "delivered"
	RequestStatusCancelled = "cancelled"
)

// ValidStatusTransitions 分期申请状态机
// cancelled 由外部流程触发，任何状态都可以进入，单独在 CanTransitionTo 中处理
var ValidStatusTransitions = map[string][]string{
	RequestStatusPending:  {RequestStatusApproved, RequestStatusRejected},
	RequestStatusApproved: {RequestStatusDelivered},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	if targetStatus == RequestStatusCancelled {
		return currentStatus != RequestStatusCancelled
	}
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// HistoryStatuses 已结束的申请，进入历史列表
var HistoryStatuses = []string{RequestStatusDelivered, RequestStatusCancelled}

// MaxTrustStars 信任星级上限
const MaxTrustStars = 5

// FinancingRequest 分期（layaway）申请
// 金额全部为整数货币单位；时间戳只在第一次对应状态变更时写入
type FinancingRequest struct {
	ID                    string     `gorm:"type:varchar(64);primaryKey" json:"id"`
	CustomerName          string     `gorm:"type:varchar(128);not null" json:"customer_name"`
	Email                 string     `gorm:"type:varchar(191);not null" json:"email"`
	EmailKey              string     `gorm:"type:varchar(191);index;not null" json:"-"`
	Phone                 string     `gorm:"type:varchar(32);not null" json:"phone"`
	Address               string     `gorm:"type:varchar(256);not null" json:"address"`
	ProductName           string     `gorm:"type:varchar(128);not null" json:"product_name"`
	ProductCategory       string     `gorm:"type:varchar(64);not null" json:"product_category"`
	TotalAmount           int64      `gorm:"not null" json:"total_amount"`
	InterestRateAtRequest int        `gorm:"not null" json:"interest_rate_at_request"`
	TotalWithInterest     int64      `gorm:"not null" json:"total_with_interest"`
	AmountPaid            int64      `gorm:"not null;default:0" json:"amount_paid"`
	Status                string     `gorm:"type:varchar(20);index;not null" json:"status"`
	Refunded              bool       `gorm:"not null;default:false" json:"refunded"`
	TrustStars            int        `gorm:"not null;default:0" json:"trust_stars"`
	AdminDeleted          bool       `gorm:"index;not null;default:false" json:"admin_deleted"`
	Version               int        `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt             time.Time  `gorm:"index" json:"created_at"`
	ApprovedAt            *time.Time `json:"approved_at"`
	RejectedAt            *time.Time `json:"rejected_at"`
	DeliveredAt           *time.Time `json:"delivered_at"`
	CancelledAt           *time.Time `json:"cancelled_at"`
	RefundedAt            *time.Time `json:"refunded_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (FinancingRequest) TableName() string {
	return "financing_request"
}

// Balance 剩余应付金额，超额支付时显示为 0
func (r *FinancingRequest) Balance() int64 {
	balance := r.TotalWithInterest - r.AmountPaid
	if balance < 0 {
		return 0
	}
	return balance
}

// FullyPaid 是否已付清，交付的前置条件
func (r *FinancingRequest) FullyPaid() bool {
	return r.AmountPaid >= r.TotalWithInterest
}

// IsHistory 已交付或已取消的申请属于历史记录
func (r *FinancingRequest) IsHistory() bool {
	return r.Status == RequestStatusDelivered || r.Status == RequestStatusCancelled
}

// TotalWithInterest 计算含利息总额，四舍五入到整数货币单位
func TotalWithInterest(totalAmount int64, ratePercent int) int64 {
	factor := decimal.NewFromInt(int64(100 + ratePercent)).Div(decimal.NewFromInt(100))
	return decimal.NewFromInt(totalAmount).Mul(factor).Round(0).IntPart()
}

// NormalizeEmail 信任账本的 key：去空格并转小写
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// StarsFor 根据成功交付次数计算星级
func StarsFor(successCount int) int {
	if successCount < 0 {
		return 0
	}
	if successCount > MaxTrustStars {
		return MaxTrustStars
	}
	return successCount
}
