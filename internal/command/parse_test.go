package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		body string
		kind Kind
		arg  string
		code string
	}{
		{"YES", KindYes, "", ""},
		{"  yes   abc123 ", KindYes, "ABC123", "ABC123"},
		{"Yes! ABC234.", KindYes, "ABC234", "ABC234"},
		{"y", KindYes, "", ""},
		{"yes ok", KindYes, "OK", ""},
		{"YES BBB33", KindYes, "BBB33", ""},
		{"yes abc2345", KindYes, "ABC2345", ""},
		{"YES ab-c23", KindYes, "AB-C23", ""},
		{"no", KindNo, "", ""},
		{"Confirm xyz789", KindConfirm, "XYZ789", "XYZ789"},
		{"withdraw ABC234", KindWithdraw, "ABC234", "ABC234"},
		{"WITHDRAW", KindWithdraw, "", ""},
		{"withdraw !", KindWithdraw, "", ""},
		{"shifts", KindShifts, "", ""},
		{"SHIFTS ABC234", KindShifts, "", ""},
		{"status", KindStatus, "", ""},
		{"help", KindHelp, "", ""},
		{"?", KindHelp, "", ""},
		{"STOP", KindStop, "", ""},
		{"unsubscribe", KindStop, "", ""},
		{"cancel", KindStop, "", ""},
		{"start", KindStart, "", ""},
		{"", KindUnknown, "", ""},
		{"   ", KindUnknown, "", ""},
		{"can I swap with Bob?", KindUnknown, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			cmd := Parse(tt.body)
			assert.Equal(t, tt.kind, cmd.Kind)
			assert.Equal(t, tt.arg, cmd.Arg)
			assert.Equal(t, tt.code, cmd.Code)
			assert.Equal(t, tt.body, cmd.Raw)
		})
	}
}
