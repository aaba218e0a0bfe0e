package command

import (
	"strings"
	"unicode"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/utils"
)

type Kind string

const (
	KindUnknown  Kind = "UNKNOWN"
	KindYes      Kind = "YES"
	KindNo       Kind = "NO"
	KindConfirm  Kind = "CONFIRM"
	KindWithdraw Kind = "WITHDRAW"
	KindShifts   Kind = "SHIFTS"
	KindStatus   Kind = "STATUS"
	KindHelp     Kind = "HELP"
	KindStop     Kind = "STOP"
	KindStart    Kind = "START"
)

// 运营商通用的退订关键字（CANCEL、END、QUIT 等）都视为 STOP
var keywords = map[string]Kind{
	"YES":         KindYes,
	"Y":           KindYes,
	"ACCEPT":      KindYes,
	"INTERESTED":  KindYes,
	"NO":          KindNo,
	"N":           KindNo,
	"DECLINE":     KindNo,
	"CONFIRM":     KindConfirm,
	"CONFIRMED":   KindConfirm,
	"WITHDRAW":    KindWithdraw,
	"SHIFTS":      KindShifts,
	"OPEN":        KindShifts,
	"LIST":        KindShifts,
	"STATUS":      KindStatus,
	"HELP":        KindHelp,
	"INFO":        KindHelp,
	"?":           KindHelp,
	"STOP":        KindStop,
	"STOPALL":     KindStop,
	"UNSUBSCRIBE": KindStop,
	"CANCEL":      KindStop,
	"END":         KindStop,
	"QUIT":        KindStop,
	"START":       KindStart,
	"UNSTOP":      KindStart,
	"SUBSCRIBE":   KindStart,
}

// Command 解析后的短信指令。Arg 为指令后的第一个词（大写），
// Code 只有在 Arg 符合短信代码格式时才非空
type Command struct {
	Kind Kind
	Arg  string
	Code string
	Raw  string
}

func (c Command) takesCode() bool {
	switch c.Kind {
	case KindYes, KindConfirm, KindWithdraw:
		return true
	default:
		return false
	}
}

// Parse 不区分大小写，忽略多余的空白和标点
func Parse(body string) Command {
	cmd := Command{Kind: KindUnknown, Raw: body}

	fields := strings.Fields(body)
	if len(fields) == 0 {
		return cmd
	}

	word := strings.ToUpper(fields[0])
	if word != "?" {
		word = strings.TrimFunc(word, unicode.IsPunct)
	}
	kind, ok := keywords[word]
	if !ok {
		return cmd
	}
	cmd.Kind = kind

	if cmd.takesCode() && len(fields) > 1 {
		cmd.Arg = strings.ToUpper(strings.TrimFunc(fields[1], unicode.IsPunct))
		cmd.Code = normalizeCode(cmd.Arg)
	}
	return cmd
}

// normalizeCode 只接受 6 位字母数字，匹配时以数据库中的代码为准
func normalizeCode(code string) string {
	if len(code) != utils.SMSCodeLength {
		return ""
	}
	for _, r := range code {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return ""
		}
	}
	return code
}
