package sms

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogTransport_Send(t *testing.T) {
	var buf bytes.Buffer
	transport := NewLogTransport(slog.New(slog.NewTextHandler(&buf, nil)))

	res := transport.Send(context.Background(), "+8613800138000", "hello")

	assert.True(t, res.Success)
	assert.Contains(t, res.ProviderMessageID, "log-")
	assert.Contains(t, buf.String(), "+8613800138000")
}

func TestKavenegarTransport_CancelledContext(t *testing.T) {
	transport := NewKavenegarTransport("key", "10008663")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := transport.Send(ctx, "+8613800138000", "hello")

	assert.False(t, res.Success)
	assert.Equal(t, "context", res.ErrorCode)
}
