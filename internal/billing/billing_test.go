package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeChargesWithValidToken(t *testing.T) {
	g := NewFakePaymentGateway()

	require.NoError(t, g.Charge(context.Background(), 2500, g.ValidTestToken()))
	require.NoError(t, g.Charge(context.Background(), 500, g.ValidTestToken()))

	assert.Equal(t, int64(3000), g.TotalCharges())
	assert.Equal(t, []int64{2500, 500}, g.Charges())
}

func TestFakeRejectsInvalidToken(t *testing.T) {
	g := NewFakePaymentGateway()

	err := g.Charge(context.Background(), 2500, "invalid-payment-token")
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Zero(t, g.TotalCharges())
}

func TestFakeRunsHookBeforeFirstChargeOnly(t *testing.T) {
	g := NewFakePaymentGateway()
	var calls int
	g.BeforeFirstCharge(func(gw *FakePaymentGateway) {
		calls++
		// nested charge must not deadlock and must land before the outer one
		require.NoError(t, gw.Charge(context.Background(), 100, gw.ValidTestToken()))
		assert.Equal(t, int64(100), gw.TotalCharges())
	})

	require.NoError(t, g.Charge(context.Background(), 2500, g.ValidTestToken()))
	require.NoError(t, g.Charge(context.Background(), 2500, g.ValidTestToken()))

	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(5100), g.TotalCharges())
}

func TestHTTPGatewayCharge(t *testing.T) {
	var got chargeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/charges", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"ch_1"}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL+"/", "sk_test", time.Second)
	require.NoError(t, g.Charge(context.Background(), 9750, "tok_visa"))
	assert.Equal(t, chargeRequest{Amount: 9750, Currency: "usd", Source: "tok_visa"}, got)
}

func TestHTTPGatewayDeclineDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"code":"card_declined","message":"no"}}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "", time.Second)
	for i := 0; i < 10; i++ {
		err := g.Charge(context.Background(), 100, "tok_bad")
		require.ErrorIs(t, err, ErrPaymentFailed)
		assert.Contains(t, err.Error(), "card_declined")
	}
}

func TestHTTPGatewayOpensAfterServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "", time.Second)
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, g.Charge(context.Background(), 100, "tok"), ErrGatewayUnavailable)
	}
	err := g.Charge(context.Background(), 100, "tok")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Equal(t, int32(5), atomic.LoadInt32(&hits))
}
