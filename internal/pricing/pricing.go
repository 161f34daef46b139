// Package pricing computes order totals: subtotal, banded shipping fee and coupon discount.
// Functions here are pure; the same Engine prices a draft (no coupon) and its confirmation (with coupon).
package pricing

import (
	"sort"

	"github.com/fjod/helden/internal/domain"
	"github.com/shopspring/decimal"
)

// Band charges Fee for subtotals in (previous band's UpTo, UpTo].
type Band struct {
	UpTo float64 `koanf:"up_to" json:"up_to"`
	Fee  float64 `koanf:"fee" json:"fee"`
}

// DefaultBands is the storefront's standard shipping table. Above the last band shipping is free.
var DefaultBands = []Band{
	{UpTo: 1000, Fee: 200},
	{UpTo: 5000, Fee: 150},
	{UpTo: 10000, Fee: 100},
}

type Line struct {
	UnitPrice float64
	Quantity  int
}

// CouponRule is the discount part of a coupon.
type CouponRule struct {
	Type        domain.DiscountType
	Value       float64
	MinPrice    float64
	MaxDiscount float64 // 0 means uncapped
}

func RuleFromCoupon(c *domain.Coupon) *CouponRule {
	if c == nil {
		return nil
	}
	return &CouponRule{
		Type:        c.DiscountType,
		Value:       c.DiscountValue,
		MinPrice:    c.MinPrice,
		MaxDiscount: c.MaxDiscount,
	}
}

type Quote struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}

type Engine struct {
	bands []Band
}

func NewEngine(bands []Band) *Engine {
	if len(bands) == 0 {
		bands = DefaultBands
	}
	sorted := make([]Band, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UpTo < sorted[j].UpTo })
	return &Engine{bands: sorted}
}

// Quote prices lines with an optional coupon rule. The total is floored at zero.
func (e *Engine) Quote(lines []Line, rule *CouponRule) Quote {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(decimal.NewFromFloat(l.UnitPrice).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	shipping := e.shipping(subtotal)
	discount := rule.discount(subtotal)

	total := subtotal.Add(shipping).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Quote{
		Subtotal: toFloat(subtotal),
		Shipping: toFloat(shipping),
		Discount: toFloat(discount),
		Total:    toFloat(total),
	}
}

// Shipping returns the fee for a subtotal.
func (e *Engine) Shipping(subtotal float64) float64 {
	return toFloat(e.shipping(decimal.NewFromFloat(subtotal)))
}

func (e *Engine) shipping(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	for _, b := range e.bands {
		if subtotal.LessThanOrEqual(decimal.NewFromFloat(b.UpTo)) {
			return decimal.NewFromFloat(b.Fee)
		}
	}
	return decimal.Zero
}

func (r *CouponRule) discount(subtotal decimal.Decimal) decimal.Decimal {
	if r == nil || !subtotal.IsPositive() {
		return decimal.Zero
	}
	if subtotal.LessThan(decimal.NewFromFloat(r.MinPrice)) {
		return decimal.Zero
	}

	var d decimal.Decimal
	switch r.Type {
	case domain.DiscountPercentage:
		d = subtotal.Mul(decimal.NewFromFloat(r.Value)).Div(decimal.NewFromInt(100))
	case domain.DiscountFixed:
		d = decimal.NewFromFloat(r.Value)
	default:
		return decimal.Zero
	}

	if r.MaxDiscount > 0 {
		d = decimal.Min(d, decimal.NewFromFloat(r.MaxDiscount))
	}
	d = decimal.Min(d, subtotal)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(2)
}

// OfferPrice is the unit price of a product after an offer's discount, never below zero.
func OfferPrice(price float64, offer *domain.Offer) float64 {
	p := decimal.NewFromFloat(price)
	var d decimal.Decimal
	switch offer.DiscountType {
	case domain.DiscountPercentage:
		d = p.Mul(decimal.NewFromFloat(offer.DiscountValue)).Div(decimal.NewFromInt(100))
	case domain.DiscountFixed:
		d = decimal.NewFromFloat(offer.DiscountValue)
	}
	out := p.Sub(d)
	if out.IsNegative() {
		return 0
	}
	return toFloat(out)
}

// LineTotal is unitPrice * qty rounded to cents.
func LineTotal(unitPrice float64, qty int) float64 {
	return toFloat(decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(qty))))
}

// Sub returns a - b rounded to cents.
func Sub(a, b float64) float64 {
	return toFloat(decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)))
}

func toFloat(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
