package shift

import (
	"errors"
	"fmt"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
)

const (
	OpAssign           = "assign"
	OpUnassign         = "unassign"
	OpConfirm          = "confirm"
	OpRepost           = "repost"
	OpNotify           = "notify"
	OpCancel           = "cancel"
	OpExpressInterest  = "express_interest"
	OpWithdrawInterest = "withdraw_interest"
)

var opNames = map[string]string{
	OpAssign:           "分配",
	OpUnassign:         "取消分配",
	OpConfirm:          "确认",
	OpRepost:           "重新发布",
	OpNotify:           "发送通知",
	OpCancel:           "取消",
	OpExpressInterest:  "报名",
	OpWithdrawInterest: "撤回报名",
}

// TransitionError 表示当前状态不允许该操作，调用方可以修正请求后重试
type TransitionError struct {
	ShiftID int64
	From    domain.ShiftStatus
	Op      string
}

func (e *TransitionError) Error() string {
	name, ok := opNames[e.Op]
	if !ok {
		name = e.Op
	}
	return fmt.Sprintf("班次 %d 当前状态为 %s，无法%s", e.ShiftID, e.From, name)
}

var (
	ErrInvalidInput       = errors.New("请求参数不合法")
	ErrForceNotPermitted  = errors.New("没有强制分配班次的权限")
	ErrAllAreasNotAllowed = errors.New("没有向所有区域群发的权限")
	ErrEmployeeInactive   = errors.New("员工已离职")
	ErrCodeExhausted      = errors.New("无法生成唯一的短信代码")
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
