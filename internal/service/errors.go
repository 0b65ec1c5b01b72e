package service

import "errors"

var (
	ErrInvalidTransition          = errors.New("当前状态不允许该操作")
	ErrPreconditionFailed         = errors.New("尚未付清，不能交付")
	ErrInvalidConfiguration       = errors.New("分期配置不合法")
	ErrNotificationDispatchFailed = errors.New("交付通知发送失败")
	ErrCategoryNotFinanced        = errors.New("该品类不支持分期")
	ErrInvalidPayment             = errors.New("付款金额必须大于0")
	ErrInvalidRequest             = errors.New("申请信息不完整")
)
