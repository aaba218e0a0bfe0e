package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
)

// ValidateShiftTime 检查班次的日期、开始时间和结束时间的格式
func ValidateShiftTime(s *domain.Shift) error {
	if _, err := time.Parse(domain.ShiftDateLayout, s.Date); err != nil {
		return fmt.Errorf("班次日期格式错误，应为 %s", domain.ShiftDateLayout)
	}
	startTime, err := time.Parse(domain.ShiftTimeLayout, s.StartTime)
	if err != nil {
		return errors.New("班次开始时间格式错误")
	}
	endTime, err := time.Parse(domain.ShiftTimeLayout, s.EndTime)
	if err != nil {
		return errors.New("班次结束时间格式错误")
	}
	// 结束时间早于开始时间时视为跨夜班次，但两者不能相同
	if endTime.Equal(startTime) {
		return errors.New("班次的结束时间不能等于开始时间")
	}
	return nil
}

func ValidateSMSCode(code string) bool {
	if len(code) != SMSCodeLength {
		return false
	}
	for _, c := range code {
		if !strings.ContainsRune(SMSCodeAlphabet, c) {
			return false
		}
	}
	return true
}

// NormalizePhone 去掉空格、横线和括号后检查是否为 E.164 格式
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for i, c := range strings.TrimSpace(phone) {
		switch {
		case c == '+' && i == 0:
			b.WriteRune(c)
		case c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == ' ' || c == '-' || c == '(' || c == ')' || c == '.':
		default:
			return "", fmt.Errorf("手机号 %q 包含非法字符", phone)
		}
	}

	normalized := b.String()
	if !strings.HasPrefix(normalized, "+") {
		return "", fmt.Errorf("手机号 %q 不是 E.164 格式", phone)
	}
	// E.164 最多 15 位数字
	if digits := len(normalized) - 1; digits < 8 || digits > 15 {
		return "", fmt.Errorf("手机号 %q 长度不合法", phone)
	}
	return normalized, nil
}
