package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPaymentIDRequired    = errors.New("gateway payment id is required for net banking")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
)

type PaymentMethod string

const (
	PaymentMethodCOD        PaymentMethod = "Cash on Delivery"
	PaymentMethodNetBanking PaymentMethod = "Net Banking"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusCompleted PaymentStatus = "Completed"
	PaymentStatusFailed    PaymentStatus = "Failed"
)

func (s PaymentStatus) IsValid() bool {
	return s == PaymentStatusPending || s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// Payment is the closed set of ways a draft can be paid for at confirmation.
// Implemented by CashOnDelivery and NetBanking only.
type Payment interface {
	Method() PaymentMethod
	// Validate checks the fields the method requires.
	Validate() error
	isPayment()
}

type CashOnDelivery struct{}

func (CashOnDelivery) Method() PaymentMethod { return PaymentMethodCOD }
func (CashOnDelivery) Validate() error { return nil }
func (CashOnDelivery) isPayment() {}

// NetBanking is an online payment settled through the gateway before confirmation.
type NetBanking struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

func (NetBanking) Method() PaymentMethod { return PaymentMethodNetBanking }

func (n NetBanking) Validate() error {
	if strings.TrimSpace(n.GatewayPaymentID) == "" {
		return ErrPaymentIDRequired
	}
	return nil
}

func (NetBanking) isPayment() {}

// ParsePayment builds a Payment from the wire representation of a method name.
func ParsePayment(method, gatewayOrderID, gatewayPaymentID, signature string) (Payment, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "cash on delivery", "cod":
		return CashOnDelivery{}, nil
	case "net banking", "netbanking", "online":
		return NetBanking{
			GatewayOrderID:   gatewayOrderID,
			GatewayPaymentID: gatewayPaymentID,
			Signature:        signature,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, method)
	}
}

// PaymentInfo is the persisted payment state of an order.
type PaymentInfo struct {
	Method           PaymentMethod `bson:"method,omitempty" json:"method,omitempty"`
	Status           PaymentStatus `bson:"status" json:"status"`
	GatewayOrderID   string        `bson:"gateway_order_id,omitempty" json:"gateway_order_id,omitempty"`
	GatewayPaymentID string        `bson:"gateway_payment_id,omitempty" json:"gateway_payment_id,omitempty"`
	// GatewayAmount is what the gateway order charges, in minor units.
	GatewayAmount    int64         `bson:"gateway_amount,omitempty" json:"gateway_amount,omitempty"`
}

// Settled reports whether money was actually collected online for the order.
func (p PaymentInfo) Settled() bool {
	return p.Method == PaymentMethodNetBanking && p.Status == PaymentStatusCompleted
}
