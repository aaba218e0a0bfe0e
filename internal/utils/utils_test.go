package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
)

func TestGenerateSMSCode_UsesUnambiguousAlphabet(t *testing.T) {
	for i := 0; i < 500; i++ {
		code := GenerateSMSCode()
		require.Len(t, code, SMSCodeLength)
		assert.True(t, ValidateSMSCode(code), code)
		assert.False(t, strings.ContainsAny(code, "0O1IL"), code)
	}
}

func TestValidateSMSCode(t *testing.T) {
	assert.True(t, ValidateSMSCode("ABC234"))
	assert.False(t, ValidateSMSCode("ABC123")) // 包含 1
	assert.False(t, ValidateSMSCode("abc234"))
	assert.False(t, ValidateSMSCode("ABC23"))
}

func TestValidateShiftTime(t *testing.T) {
	s := &domain.Shift{Date: "2026-10-20", StartTime: "09:00:00", EndTime: "17:00:00"}
	assert.NoError(t, ValidateShiftTime(s))

	overnight := &domain.Shift{Date: "2026-10-20", StartTime: "23:00:00", EndTime: "07:00:00"}
	assert.NoError(t, ValidateShiftTime(overnight))

	badDate := &domain.Shift{Date: "20/10/2026", StartTime: "09:00:00", EndTime: "17:00:00"}
	assert.Error(t, ValidateShiftTime(badDate))

	same := &domain.Shift{Date: "2026-10-20", StartTime: "09:00:00", EndTime: "09:00:00"}
	assert.Error(t, ValidateShiftTime(same))
}

func TestNormalizePhone(t *testing.T) {
	phone, err := NormalizePhone(" +86 138-0013-8000 ")
	require.NoError(t, err)
	assert.Equal(t, "+8613800138000", phone)

	_, err = NormalizePhone("13800138000")
	assert.Error(t, err)

	_, err = NormalizePhone("+86abc")
	assert.Error(t, err)

	_, err = NormalizePhone("+1234")
	assert.Error(t, err)
}

func TestRomanizeName(t *testing.T) {
	assert.Equal(t, "Zhang Wei", RomanizeName("张伟"))
	assert.Equal(t, "Wang Fangming", RomanizeName("王芳明"))
	assert.Equal(t, "Alice", RomanizeName("Alice"))
	assert.Equal(t, "", RomanizeName("  "))
}
