package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockOrders struct {
	mu    sync.RWMutex
	calls []map[string]interface{}
	resp  map[string]interface{}
	err   error
	delay time.Duration
}

func (m *mockOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, data)
	return m.resp, m.err
}

func (m *mockOrders) callCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}

func TestCreateOrder_SendsPaise(t *testing.T) {
	orders := &mockOrders{resp: map[string]interface{}{"id": "order_123", "amount": float64(46050)}}
	g := newGateway(Config{KeyID: "key", KeySecret: "secret"}, orders)

	got, err := g.CreateOrder(context.Background(), 460.5, "draft-1")
	require.NoError(t, err)
	assert.Equal(t, "order_123", got.ID)
	assert.Equal(t, int64(46050), got.Amount)
	assert.Equal(t, "INR", got.Currency)

	require.Equal(t, 1, orders.callCount())
	assert.Equal(t, int64(46050), orders.calls[0]["amount"])
	assert.Equal(t, "draft-1", orders.calls[0]["receipt"])
}

func TestCreateOrder_GatewayErrorIsWrapped(t *testing.T) {
	orders := &mockOrders{err: errors.New("bad request")}
	g := newGateway(Config{}, orders)

	_, err := g.CreateOrder(context.Background(), 100, "draft-1")
	assert.ErrorIs(t, err, ErrPaymentGateway)
}

func TestCreateOrder_MissingID(t *testing.T) {
	g := newGateway(Config{}, &mockOrders{resp: map[string]interface{}{}})

	_, err := g.CreateOrder(context.Background(), 100, "draft-1")
	assert.ErrorIs(t, err, ErrPaymentGateway)
}

func TestCreateOrder_BreakerOpensAfterFailures(t *testing.T) {
	orders := &mockOrders{err: errors.New("unavailable")}
	g := newGateway(Config{}, orders)

	for i := 0; i < 5; i++ {
		_, err := g.CreateOrder(context.Background(), 100, "r")
		require.Error(t, err)
	}
	_, err := g.CreateOrder(context.Background(), 100, "r")
	assert.ErrorIs(t, err, ErrPaymentGateway)

	// the open breaker short-circuits without calling the client
	assert.Equal(t, 5, orders.callCount())
}

func TestCreateOrder_Timeout(t *testing.T) {
	orders := &mockOrders{resp: map[string]interface{}{"id": "x"}, delay: 200 * time.Millisecond}
	g := newGateway(Config{Timeout: 20 * time.Millisecond}, orders)

	_, err := g.CreateOrder(context.Background(), 100, "r")
	assert.ErrorIs(t, err, ErrPaymentGateway)
}

func TestVerifySignature(t *testing.T) {
	g := newGateway(Config{KeySecret: "secret"}, &mockOrders{})
	sig := Sign("secret", "order_1", "pay_1")

	assert.True(t, g.VerifySignature("order_1", "pay_1", sig))
	assert.False(t, g.VerifySignature("order_1", "pay_2", sig))
	assert.False(t, g.VerifySignature("order_1", "pay_1", "deadbeef"))
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(43400), ToMinorUnits(434))
	assert.Equal(t, int64(1999), ToMinorUnits(19.99))
	assert.Equal(t, int64(0), ToMinorUnits(0))
}
