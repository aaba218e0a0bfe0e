package domain

const (
	SettingShiftReminderEnabled = "shift_reminder_enabled"
	SettingShiftReminderHours   = "shift_reminder_hours"
	SettingSMSEnabled           = "sms_enabled"
	// SettingTemplatePrefix 加上事件名即为模板覆盖的键，例如 sms_template_reminder
	SettingTemplatePrefix = "sms_template_"
)
