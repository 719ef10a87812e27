package billing

import (
	"context"
	"fmt"
	"sync"
)

const validTestToken = "valid-token"

// FakePaymentGateway records charges in memory and accepts only ValidTestToken.
type FakePaymentGateway struct {
	mu      sync.Mutex
	charges []int64
	before  func(*FakePaymentGateway)
}

func NewFakePaymentGateway() *FakePaymentGateway {
	return &FakePaymentGateway{}
}

func (g *FakePaymentGateway) ValidTestToken() string { return validTestToken }

// Charge runs the BeforeFirstCharge hook (once) before recording anything.
// The hook is called without the lock held so it may purchase through the
// same gateway.
func (g *FakePaymentGateway) Charge(ctx context.Context, amount int64, token string) error {
	g.mu.Lock()
	hook := g.before
	g.before = nil
	g.mu.Unlock()

	if hook != nil {
		hook(g)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if token != validTestToken {
		return fmt.Errorf("%w: invalid token", ErrPaymentFailed)
	}

	g.mu.Lock()
	g.charges = append(g.charges, amount)
	g.mu.Unlock()
	return nil
}

func (g *FakePaymentGateway) TotalCharges() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var total int64
	for _, c := range g.charges {
		total += c
	}
	return total
}

func (g *FakePaymentGateway) Charges() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int64(nil), g.charges...)
}

func (g *FakePaymentGateway) BeforeFirstCharge(fn func(*FakePaymentGateway)) {
	g.mu.Lock()
	g.before = fn
	g.mu.Unlock()
}
