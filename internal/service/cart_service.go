package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/helden/internal/cache"
	"github.com/fjod/helden/internal/domain"
	"github.com/fjod/helden/internal/logging"
	"github.com/fjod/helden/internal/pricing"
	"github.com/fjod/helden/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type CartLine struct {
	LineID    string  `json:"line_id"`
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Size      string  `json:"size"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
	Stock     int     `json:"stock"`
}

type CartSummary struct {
	UserID        string     `json:"user_id"`
	Items         []CartLine `json:"items"`
	MRP           float64    `json:"mrp"`
	OfferDiscount float64    `json:"offer_discount"`
	Subtotal      float64    `json:"subtotal"`
	Shipping      float64    `json:"shipping"`
	Total         float64    `json:"total"`
}

type CartService struct {
	repo     repository.CartRepository
	products repository.ProductRepository
	cache    cache.CartCache
	pricing  *pricing.Engine
	sfg      singleflight.Group // Prevents cache stampede
	log      *slog.Logger
}

func NewCartService(repo repository.CartRepository, products repository.ProductRepository, cache cache.CartCache, engine *pricing.Engine) *CartService {
	return &CartService{
		repo:     repo,
		products: products,
		cache:    cache,
		pricing:  engine,
		log:      logging.New("cart"),
	}
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cache get error", "user_id", userID, "error", err)
		}

		cart, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			now := time.Now()
			return &domain.Cart{UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
		}
		if err != nil {
			return nil, err
		}

		go func() {
			if errSet := s.cache.Set(context.Background(), userID, cart); errSet != nil {
				s.log.Warn("cache set error", "user_id", userID, "error", errSet)
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem puts qty units of (productID, size) in the cart, merging into an
// existing line and validating the combined quantity.
func (s *CartService) AddItem(ctx context.Context, userID, productID, size string, qty int) (*domain.CartItem, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	item := domain.CartItem{LineID: uuid.NewString(), ProductID: productID, Size: size, Quantity: qty}
	if cart != nil {
		if existing, ok := cart.FindLine(productID, size); ok {
			item.LineID = existing.LineID
			item.Quantity = existing.Quantity + qty
		}
	}

	if err := checkQuantity(product, size, item.Quantity); err != nil {
		return nil, err
	}

	if err := s.repo.AddItem(ctx, userID, item); err != nil {
		s.log.Error("repo add item error", "user_id", userID, "error", err)
		return nil, err
	}

	s.invalidateCache(userID)
	return &item, nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, lineID string, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}

	line, err := s.findLine(ctx, userID, lineID)
	if err != nil {
		return err
	}
	product, err := s.loadProduct(ctx, line.ProductID)
	if err != nil {
		return err
	}
	if err := checkQuantity(product, line.Size, qty); err != nil {
		return err
	}

	if err := s.repo.UpdateItemQuantity(ctx, userID, lineID, qty); err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return ErrItemNotFound
		}
		s.log.Error("repo update item quantity error", "user_id", userID, "error", err)
		return err
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, lineID string) error {
	if err := s.repo.RemoveItem(ctx, userID, lineID); err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return ErrItemNotFound
		}
		s.log.Error("repo remove item error", "user_id", userID, "error", err)
		return err
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	err := s.repo.DeleteCart(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		s.log.Error("repo delete cart error", "user_id", userID, "error", err)
		return err
	}

	s.invalidateCache(userID)
	return nil
}

// GetSummary prices the cart. Lines above min(MaxLineQuantity, stock) are
// clamped and the clamped quantity is written back.
func (s *CartService) GetSummary(ctx context.Context, userID string) (*CartSummary, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &CartSummary{UserID: userID, Items: make([]CartLine, 0, len(cart.Items))}
	if cart.IsEmpty() {
		return summary, nil
	}

	ids := make([]string, 0, len(cart.Items))
	for _, it := range cart.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	var (
		lines   []pricing.Line
		mrp     []pricing.Line
		clamped bool
	)
	for _, it := range cart.Items {
		p, ok := products[it.ProductID]
		if !ok {
			s.log.Warn("cart line references missing product", "user_id", userID, "product_id", it.ProductID)
			continue
		}

		stock, _ := p.StockFor(it.Size)
		limit := min(domain.MaxLineQuantity, stock)
		qty := it.Quantity
		if qty > limit {
			qty = limit
			clamped = true
			if err := s.repo.UpdateItemQuantity(ctx, userID, it.LineID, qty); err != nil {
				s.log.Warn("failed to persist clamped quantity", "user_id", userID, "line_id", it.LineID, "error", err)
			}
		}

		lines = append(lines, pricing.Line{UnitPrice: p.UnitPrice(), Quantity: qty})
		mrp = append(mrp, pricing.Line{UnitPrice: p.Price, Quantity: qty})
		summary.Items = append(summary.Items, CartLine{
			LineID:    it.LineID,
			ProductID: it.ProductID,
			Name:      p.Name,
			Size:      it.Size,
			Quantity:  qty,
			Price:     p.Price,
			UnitPrice: p.UnitPrice(),
			LineTotal: pricing.LineTotal(p.UnitPrice(), qty),
			Stock:     stock,
		})
	}
	if clamped {
		s.invalidateCache(userID)
	}

	quote := s.pricing.Quote(lines, nil)
	summary.Subtotal = quote.Subtotal
	summary.Shipping = quote.Shipping
	summary.Total = quote.Total
	summary.MRP = s.pricing.Quote(mrp, nil).Subtotal
	summary.OfferDiscount = pricing.Sub(summary.MRP, summary.Subtotal)
	return summary, nil
}

func (s *CartService) loadProduct(ctx context.Context, productID string) (*domain.Product, error) {
	p, err := s.products.Get(ctx, productID)
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, ErrProductNotFound
	}
	return p, err
}

func (s *CartService) findLine(ctx context.Context, userID, lineID string) (*domain.CartItem, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	line, ok := cart.Line(lineID)
	if !ok {
		return nil, ErrItemNotFound
	}
	return line, nil
}

func checkQuantity(p *domain.Product, size string, qty int) error {
	stock, ok := p.StockFor(size)
	if !ok {
		return ErrInvalidSize
	}
	if qty > stock {
		return fmt.Errorf("%w: %d requested, %d left", ErrOutOfStock, qty, stock)
	}
	if qty > domain.MaxLineQuantity {
		return ErrLineLimitExceeded
	}
	return nil
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("cache invalidate error", "user_id", userID, "error", err)
	}
}
