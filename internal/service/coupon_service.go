package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fjod/helden/internal/domain"
	"github.com/fjod/helden/internal/logging"
	"github.com/fjod/helden/internal/repository"
	"github.com/google/uuid"
)

// CouponService is the admin side of coupons. Redemption happens during confirmation.
type CouponService struct {
	repo repository.CouponRepository
	log  *slog.Logger
}

func NewCouponService(repo repository.CouponRepository) *CouponService {
	return &CouponService{repo: repo, log: logging.New("coupons")}
}

func (s *CouponService) List(ctx context.Context) ([]*domain.Coupon, error) {
	return s.repo.List(ctx)
}

func (s *CouponService) Create(ctx context.Context, c *domain.Coupon) (*domain.Coupon, error) {
	if err := validateCoupon(c); err != nil {
		return nil, err
	}
	c.ID = uuid.NewString()
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, couponErr(err)
	}
	s.log.Info("coupon created", "coupon_id", c.ID, "code", c.Code)
	return c, nil
}

// Update replaces the editable fields of coupon id with those of c.
func (s *CouponService) Update(ctx context.Context, id string, c *domain.Coupon) (*domain.Coupon, error) {
	if err := validateCoupon(c); err != nil {
		return nil, err
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, couponErr(err)
	}
	c.ID = id
	c.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, couponErr(err)
	}
	return c, nil
}

func (s *CouponService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return couponErr(err)
	}
	s.log.Info("coupon deleted", "coupon_id", id)
	return nil
}

func validateCoupon(c *domain.Coupon) error {
	if c == nil {
		return fmt.Errorf("%w: missing body", ErrInvalidCoupon)
	}
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	switch {
	case c.Code == "":
		return fmt.Errorf("%w: code is required", ErrInvalidCoupon)
	case c.DiscountType != domain.DiscountPercentage && c.DiscountType != domain.DiscountFixed:
		return fmt.Errorf("%w: unknown discount type %q", ErrInvalidCoupon, c.DiscountType)
	case c.DiscountValue <= 0:
		return fmt.Errorf("%w: discount value must be positive", ErrInvalidCoupon)
	case c.DiscountType == domain.DiscountPercentage && c.DiscountValue > 100:
		return fmt.Errorf("%w: percentage above 100", ErrInvalidCoupon)
	case c.MinPrice < 0 || c.MaxDiscount < 0:
		return fmt.Errorf("%w: min price and max discount cannot be negative", ErrInvalidCoupon)
	case c.CouponCount < 0:
		return fmt.Errorf("%w: coupon count cannot be negative", ErrInvalidCoupon)
	case c.ValidFrom.IsZero() || c.ValidUpto.IsZero() || !c.ValidUpto.After(c.ValidFrom):
		return fmt.Errorf("%w: validity window is empty", ErrInvalidCoupon)
	}
	return nil
}

func couponErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrCouponNotFound):
		return ErrCouponNotFound
	case errors.Is(err, repository.ErrCouponExists):
		return ErrCouponExists
	}
	return err
}
