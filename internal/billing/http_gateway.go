package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// HTTPGateway charges tokens against a card provider's REST API.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
}

type chargeRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Source   string `json:"source"`
}

type chargeError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	g := &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		// a declined card is a healthy provider
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPaymentFailed)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return g
}

func (g *HTTPGateway) Charge(ctx context.Context, amount int64, token string) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.charge(ctx, amount, token)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return err
}

func (g *HTTPGateway) charge(ctx context.Context, amount int64, token string) error {
	body, err := json.Marshal(chargeRequest{Amount: amount, Currency: "usd", Source: token})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusBadRequest:
		var ce chargeError
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&ce)
		if ce.Error.Code == "" {
			ce.Error.Code = "declined"
		}
		return fmt.Errorf("%w: %s", ErrPaymentFailed, ce.Error.Code)
	default:
		return fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}
}
