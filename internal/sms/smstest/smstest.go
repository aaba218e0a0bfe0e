// Package smstest 提供记录发送内容的短信通道，供其他包的测试使用
package smstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/sms"
)

type Sent struct {
	To   string
	Body string
}

type Transport struct {
	mu   sync.Mutex
	sent []Sent
	seq  int
	// Fail 返回 true 的号码会发送失败
	Fail func(to string) bool
}

func (t *Transport) Send(ctx context.Context, to, body string) sms.Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Fail != nil && t.Fail(to) {
		return sms.Result{ErrorCode: "30003", ErrorMessage: "unreachable destination"}
	}

	t.seq++
	t.sent = append(t.sent, Sent{To: to, Body: body})
	return sms.Result{Success: true, ProviderMessageID: fmt.Sprintf("SM%04d", t.seq)}
}

func (t *Transport) Sent() []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Sent, len(t.sent))
	copy(out, t.sent)
	return out
}

func (t *Transport) SentTo(to string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var bodies []string
	for _, s := range t.sent {
		if s.To == to {
			bodies = append(bodies, s.Body)
		}
	}
	return bodies
}
