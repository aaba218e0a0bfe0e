package utils

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
)

// RomanizeName 把中文姓名转换为拼音，例如 "张伟强" -> "Zhang Weiqiang"，
// 这样短信正文可以使用 GSM-7 编码，单条能容纳更多字符。非中文姓名原样返回。
func RomanizeName(name string) string {
	runes := []rune(strings.TrimSpace(name))
	if len(runes) == 0 {
		return ""
	}

	syllables := make([]string, 0, len(runes))
	for _, r := range runes {
		if !unicode.Is(unicode.Han, r) {
			return name
		}
		py := pinyin.LazyConvert(string(r), nil)
		if len(py) == 0 {
			return name
		}
		syllables = append(syllables, py[0])
	}

	surname := capitalize(syllables[0])
	if len(syllables) == 1 {
		return surname
	}
	return surname + " " + capitalize(strings.Join(syllables[1:], ""))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
