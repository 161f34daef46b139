package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/helden/internal/domain"
	"github.com/fjod/helden/internal/logging"
	"github.com/fjod/helden/internal/pricing"
	"github.com/fjod/helden/internal/repository"
	"github.com/google/uuid"
)

// OfferService applies offers to product prices. The price an offer replaced
// is stored on the product under the offer id and restored on delete.
type OfferService struct {
	offers   repository.OfferRepository
	products repository.ProductRepository
	now      func() time.Time
	log      *slog.Logger
}

func NewOfferService(offers repository.OfferRepository, products repository.ProductRepository, now func() time.Time) *OfferService {
	if now == nil {
		now = time.Now
	}
	return &OfferService{offers: offers, products: products, now: now, log: logging.New("offers")}
}

func (s *OfferService) List(ctx context.Context) ([]*domain.Offer, error) {
	return s.offers.List(ctx)
}

func (s *OfferService) Create(ctx context.Context, o *domain.Offer) (*domain.Offer, error) {
	if err := s.validateOffer(o); err != nil {
		return nil, err
	}
	targets, err := s.targets(ctx, o)
	if err != nil {
		return nil, err
	}

	o.ID = uuid.NewString()
	o.CreatedAt = s.now().UTC()
	if err := s.offers.Create(ctx, o); err != nil {
		return nil, err
	}

	for _, p := range targets {
		price := pricing.OfferPrice(p.Price, o)
		if err := s.products.SetOffer(ctx, p.ID, o.ID, price, p.OfferPrice); err != nil {
			return nil, fmt.Errorf("apply offer to product %s: %w", p.ID, err)
		}
	}
	s.log.Info("offer applied", "offer_id", o.ID, "scope", o.Scope, "products", len(targets))
	return o, nil
}

// Delete removes the offer and puts back the offer price each product had before it.
func (s *OfferService) Delete(ctx context.Context, id string) error {
	o, err := s.offers.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOfferNotFound) {
			return ErrOfferNotFound
		}
		return err
	}
	targets, err := s.targets(ctx, o)
	if err != nil && !errors.Is(err, ErrProductNotFound) {
		return err
	}
	for _, p := range targets {
		if err := s.products.ClearOffer(ctx, p.ID, o.ID); err != nil && !errors.Is(err, repository.ErrProductNotFound) {
			return fmt.Errorf("restore price of product %s: %w", p.ID, err)
		}
	}
	if err := s.offers.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrOfferNotFound) {
			return ErrOfferNotFound
		}
		return err
	}
	s.log.Info("offer removed", "offer_id", id, "products", len(targets))
	return nil
}

func (s *OfferService) targets(ctx context.Context, o *domain.Offer) ([]*domain.Product, error) {
	if o.Scope == domain.OfferScopeCategory {
		return s.products.ListByCategory(ctx, o.CategoryID)
	}
	p, err := s.products.Get(ctx, o.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return []*domain.Product{p}, nil
}

func (s *OfferService) validateOffer(o *domain.Offer) error {
	if o == nil {
		return fmt.Errorf("%w: missing body", ErrInvalidOffer)
	}
	o.Name = strings.TrimSpace(o.Name)
	switch {
	case o.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidOffer)
	case o.DiscountType != domain.DiscountPercentage && o.DiscountType != domain.DiscountFixed:
		return fmt.Errorf("%w: unknown discount type %q", ErrInvalidOffer, o.DiscountType)
	case o.DiscountValue <= 0:
		return fmt.Errorf("%w: discount value must be positive", ErrInvalidOffer)
	case o.DiscountType == domain.DiscountPercentage && o.DiscountValue > 100:
		return fmt.Errorf("%w: percentage above 100", ErrInvalidOffer)
	case !o.EndDate.After(o.StartDate) || !o.EndDate.After(s.now()):
		return fmt.Errorf("%w: offer window has already ended", ErrInvalidOffer)
	}
	switch o.Scope {
	case domain.OfferScopeProduct:
		if o.ProductID == "" {
			return fmt.Errorf("%w: product id is required", ErrInvalidOffer)
		}
	case domain.OfferScopeCategory:
		if o.CategoryID == "" {
			return fmt.Errorf("%w: category id is required", ErrInvalidOffer)
		}
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidOffer, o.Scope)
	}
	return nil
}
