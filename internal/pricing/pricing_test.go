package pricing

import (
	"testing"

	"github.com/fjod/helden/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestQuote_DraftWithoutCoupon(t *testing.T) {
	e := NewEngine(nil)

	q := e.Quote([]Line{
		{UnitPrice: 80, Quantity: 2},
		{UnitPrice: 100, Quantity: 1},
	}, nil)

	assert.Equal(t, 260.0, q.Subtotal)
	assert.Equal(t, 200.0, q.Shipping)
	assert.Equal(t, 0.0, q.Discount)
	assert.Equal(t, 460.0, q.Total)
}

func TestQuote_PercentageCoupon(t *testing.T) {
	e := NewEngine(nil)
	rule := &CouponRule{Type: domain.DiscountPercentage, Value: 10}

	q := e.Quote([]Line{
		{UnitPrice: 80, Quantity: 2},
		{UnitPrice: 100, Quantity: 1},
	}, rule)

	assert.Equal(t, 26.0, q.Discount)
	assert.Equal(t, 434.0, q.Total)
}

func TestQuote_SameLinesSameResult(t *testing.T) {
	e := NewEngine(nil)
	lines := []Line{{UnitPrice: 19.99, Quantity: 3}}

	assert.Equal(t, e.Quote(lines, nil), e.Quote(lines, nil))
	assert.Equal(t, 59.97, e.Quote(lines, nil).Subtotal)
}

func TestShippingBands(t *testing.T) {
	e := NewEngine(nil)

	tests := []struct {
		subtotal float64
		want     float64
	}{
		{0, 0},
		{0.01, 200},
		{1000, 200},
		{1000.01, 150},
		{5000, 150},
		{5001, 100},
		{10000, 100},
		{10000.5, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Shipping(tt.subtotal), "subtotal %v", tt.subtotal)
	}
}

func TestShippingBands_FromConfigUnsorted(t *testing.T) {
	e := NewEngine([]Band{{UpTo: 500, Fee: 50}, {UpTo: 100, Fee: 80}})

	assert.Equal(t, 80.0, e.Shipping(100))
	assert.Equal(t, 50.0, e.Shipping(300))
	assert.Equal(t, 0.0, e.Shipping(501))
}

func TestCouponDiscount_Rules(t *testing.T) {
	e := NewEngine(nil)
	lines := []Line{{UnitPrice: 1000, Quantity: 2}} // subtotal 2000, shipping 150

	t.Run("cap applies", func(t *testing.T) {
		q := e.Quote(lines, &CouponRule{Type: domain.DiscountPercentage, Value: 50, MaxDiscount: 300})
		assert.Equal(t, 300.0, q.Discount)
		assert.Equal(t, 1850.0, q.Total)
	})

	t.Run("min price not reached", func(t *testing.T) {
		q := e.Quote(lines, &CouponRule{Type: domain.DiscountPercentage, Value: 10, MinPrice: 2500})
		assert.Equal(t, 0.0, q.Discount)
		assert.Equal(t, 2150.0, q.Total)
	})

	t.Run("fixed amount", func(t *testing.T) {
		q := e.Quote(lines, &CouponRule{Type: domain.DiscountFixed, Value: 250})
		assert.Equal(t, 250.0, q.Discount)
	})

	t.Run("discount never exceeds subtotal", func(t *testing.T) {
		q := e.Quote([]Line{{UnitPrice: 100, Quantity: 1}}, &CouponRule{Type: domain.DiscountFixed, Value: 5000})
		assert.Equal(t, 100.0, q.Discount)
		assert.Equal(t, 200.0, q.Total)
		assert.GreaterOrEqual(t, q.Total, 0.0)
	})
}

func TestRuleFromCoupon(t *testing.T) {
	assert.Nil(t, RuleFromCoupon(nil))

	r := RuleFromCoupon(&domain.Coupon{DiscountType: domain.DiscountPercentage, DiscountValue: 15, MinPrice: 100, MaxDiscount: 50})
	assert.Equal(t, &CouponRule{Type: domain.DiscountPercentage, Value: 15, MinPrice: 100, MaxDiscount: 50}, r)
}

func TestOfferPrice(t *testing.T) {
	assert.Equal(t, 80.0, OfferPrice(100, &domain.Offer{DiscountType: domain.DiscountPercentage, DiscountValue: 20}))
	assert.Equal(t, 75.5, OfferPrice(100, &domain.Offer{DiscountType: domain.DiscountFixed, DiscountValue: 24.5}))
	assert.Equal(t, 0.0, OfferPrice(10, &domain.Offer{DiscountType: domain.DiscountFixed, DiscountValue: 50}))
	assert.Equal(t, 33.33, OfferPrice(49.99, &domain.Offer{DiscountType: domain.DiscountPercentage, DiscountValue: 33.33}))
}

func TestLineTotalAndSub(t *testing.T) {
	assert.Equal(t, 59.97, LineTotal(19.99, 3))
	assert.Equal(t, 10.0, Sub(510, 500))
	assert.Equal(t, 0.1, Sub(0.3, 0.2))
}
