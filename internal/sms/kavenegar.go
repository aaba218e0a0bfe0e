package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/kavenegar/kavenegar-go"
)

type KavenegarTransport struct {
	api    *kavenegar.Kavenegar
	sender string
}

func NewKavenegarTransport(apiKey, sender string) *KavenegarTransport {
	return &KavenegarTransport{
		api:    kavenegar.New(apiKey),
		sender: sender,
	}
}

func (t *KavenegarTransport) Send(ctx context.Context, to, body string) Result {
	if err := ctx.Err(); err != nil {
		return Result{ErrorCode: "context", ErrorMessage: err.Error()}
	}

	res, err := t.api.Message.Send(t.sender, []string{to}, body, nil)
	if err != nil {
		var apiErr *kavenegar.APIError
		var httpErr *kavenegar.HTTPError
		switch {
		case errors.As(err, &apiErr):
			return Result{ErrorCode: "api", ErrorMessage: apiErr.Error()}
		case errors.As(err, &httpErr):
			return Result{ErrorCode: "http", ErrorMessage: httpErr.Error()}
		default:
			return Result{ErrorCode: "unknown", ErrorMessage: err.Error()}
		}
	}

	if len(res) == 0 {
		return Result{ErrorCode: "empty_response", ErrorMessage: "kavenegar 没有返回任何发送结果"}
	}

	return Result{Success: true, ProviderMessageID: fmt.Sprintf("%d", res[0].MessageID)}
}
