// Package payment talks to the Razorpay gateway: order creation behind a
// circuit breaker and verification of checkout signatures.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/helden/internal/logging"
	"github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

var ErrPaymentGateway = errors.New("payment gateway error")

type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"` // smallest currency unit
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type Gateway interface {
	CreateOrder(ctx context.Context, amount float64, receipt string) (*GatewayOrder, error)
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	KeyID() string
}

// orderCreator is the part of the razorpay client used here.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type Config struct {
	KeyID     string
	KeySecret string
	Currency  string
	Timeout   time.Duration
}

type RazorpayGateway struct {
	cfg     Config
	orders  orderCreator
	breaker *gobreaker.CircuitBreaker[map[string]interface{}]
}

func NewRazorpayGateway(cfg Config) *RazorpayGateway {
	client := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
	return newGateway(cfg, client.Order)
}

func newGateway(cfg Config, orders orderCreator) *RazorpayGateway {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	log := logging.New("payment")
	breaker := gobreaker.NewCircuitBreaker[map[string]interface{}](gobreaker.Settings{
		Name:        "razorpay",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &RazorpayGateway{cfg: cfg, orders: orders, breaker: breaker}
}

func (g *RazorpayGateway) KeyID() string {
	return g.cfg.KeyID
}

// CreateOrder registers amount (in major units) with the gateway.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount float64, receipt string) (*GatewayOrder, error) {
	paise := ToMinorUnits(amount)
	data := map[string]interface{}{
		"amount":   paise,
		"currency": g.cfg.Currency,
		"receipt":  receipt,
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	resp, err := g.breaker.Execute(func() (map[string]interface{}, error) {
		return g.create(ctx, data)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	id, ok := resp["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: response without order id", ErrPaymentGateway)
	}
	return &GatewayOrder{ID: id, Amount: paise, Currency: g.cfg.Currency, Receipt: receipt}, nil
}

// create runs the blocking client call and gives up when ctx ends.
func (g *RazorpayGateway) create(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
	type result struct {
		resp map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := g.orders.Create(data, nil)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// VerifySignature checks hex(HMAC-SHA256(secret, orderID|paymentID)).
func (g *RazorpayGateway) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	expected := Sign(g.cfg.KeySecret, gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func Sign(secret, gatewayOrderID, gatewayPaymentID string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(h.Sum(nil))
}

func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
