package repository

import (
	"errors"
	"fmt"
)

var (
	ErrRequestNotFound  = errors.New("分期申请不存在")
	ErrConcurrentUpdate = errors.New("申请已被修改，请刷新后重试")
	ErrStoreUnavailable = errors.New("存储不可用")
)

// storeErr 把底层驱动错误统一包装成 ErrStoreUnavailable，调用方用 errors.Is 判断
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
