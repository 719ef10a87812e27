package billing

import (
	"context"
	"errors"
)

var (
	// ErrPaymentFailed is returned when the provider declines the token.
	ErrPaymentFailed = errors.New("payment failed")
	// ErrGatewayUnavailable covers transport failures and an open breaker.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// PaymentGateway charges a payment token. Amounts are integer cents.
type PaymentGateway interface {
	Charge(ctx context.Context, amount int64, token string) error
}
