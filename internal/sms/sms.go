package sms

import "context"

// Result 发送结果，失败时 ErrorCode 和 ErrorMessage 会被写入消息记录
type Result struct {
	Success           bool
	ProviderMessageID string
	ErrorCode         string
	ErrorMessage      string
}

// Transport 短信通道，to 为 E.164 格式的号码
type Transport interface {
	Send(ctx context.Context, to, body string) Result
}
