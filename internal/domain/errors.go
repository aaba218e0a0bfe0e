package domain

import "errors"

var (
	ErrNotFound          = errors.New("记录不存在")
	ErrVersionConflict   = errors.New("记录已被修改，请重试")
	ErrDuplicateSMSCode  = errors.New("短信代码已存在")
	ErrDuplicateUsername = errors.New("用户名已存在")
	ErrSMSDisabled       = errors.New("短信功能已关闭")
)
