package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fjod/helden/internal/cache"
	"github.com/fjod/helden/internal/domain"
	"github.com/fjod/helden/internal/inventory"
	"github.com/fjod/helden/internal/payment"
	"github.com/fjod/helden/internal/pricing"
	"github.com/fjod/helden/internal/repository"
	"github.com/fjod/helden/internal/wallet"
)

type mockCartRepository struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
	err   error
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{carts: make(map[string]*domain.Cart)}
}

func (m *mockCartRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	cp := *c
	cp.Items = append([]domain.CartItem(nil), c.Items...)
	return &cp, nil
}

func (m *mockCartRepository) AddItem(_ context.Context, userID string, item domain.CartItem) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		c = &domain.Cart{UserID: userID}
		m.carts[userID] = c
	}
	if line, ok := c.FindLine(item.ProductID, item.Size); ok {
		line.Quantity = item.Quantity
		return nil
	}
	c.Items = append(c.Items, item)
	return nil
}

func (m *mockCartRepository) UpdateItemQuantity(_ context.Context, userID, lineID string, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return repository.ErrCartNotFound
	}
	line, ok := c.Line(lineID)
	if !ok {
		return repository.ErrItemNotFound
	}
	line.Quantity = quantity
	return nil
}

func (m *mockCartRepository) RemoveItem(_ context.Context, userID, lineID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return repository.ErrCartNotFound
	}
	for i, it := range c.Items {
		if it.LineID == lineID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return repository.ErrItemNotFound
}

func (m *mockCartRepository) DeleteCart(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if _, ok := m.carts[userID]; !ok {
		return repository.ErrCartNotFound
	}
	delete(m.carts, userID)
	return nil
}

func (m *mockCartRepository) line(userID, productID, size string) (domain.CartItem, bool) {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.carts[userID]
	if !ok {
		return domain.CartItem{}, false
	}
	line, ok := c.FindLine(productID, size)
	if !ok {
		return domain.CartItem{}, false
	}
	return *line, true
}

type mockProductRepository struct {
	m        sync.RWMutex
	products map[string]*domain.Product
}

func newMockProductRepository(products ...*domain.Product) *mockProductRepository {
	m := &mockProductRepository{products: make(map[string]*domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepository) Get(_ context.Context, id string) (*domain.Product, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepository) GetMany(_ context.Context, ids []string) (map[string]*domain.Product, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	out := make(map[string]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *mockProductRepository) ListByCategory(_ context.Context, categoryID string) ([]*domain.Product, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var out []*domain.Product
	for _, p := range m.products {
		if p.CategoryID == categoryID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockProductRepository) SetOffer(_ context.Context, productID, offerID string, offerPrice, prev float64) error {
	m.m.Lock()
	defer m.m.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	if p.PrevOfferPrice == nil {
		p.PrevOfferPrice = make(map[string]float64)
	}
	p.PrevOfferPrice[offerID] = prev
	p.OfferPrice = offerPrice
	return nil
}

func (m *mockProductRepository) ClearOffer(_ context.Context, productID, offerID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	prev, ok := p.PrevOfferPrice[offerID]
	if !ok {
		return nil
	}
	p.OfferPrice = prev
	delete(p.PrevOfferPrice, offerID)
	return nil
}

// mockOrderRepository keeps copies so that callers cannot mutate stored orders.
type mockOrderRepository struct {
	m       sync.RWMutex
	orders  map[string]*domain.Order
	saveErr error
	saves   int
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[string]*domain.Order)}
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp
}

func (m *mockOrderRepository) Create(_ context.Context, o *domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	o.Version = 1
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *mockOrderRepository) Get(_ context.Context, id string) (*domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *mockOrderRepository) Save(_ context.Context, o *domain.Order, expectedVersion int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	stored, ok := m.orders[o.ID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if stored.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	o.Version = expectedVersion + 1
	m.orders[o.ID] = cloneOrder(o)
	m.saves++
	return nil
}

func (m *mockOrderRepository) ListByUser(_ context.Context, userID string, page, limit int) ([]*domain.Order, int64, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.UserID == userID && !o.IsDraft() {
			out = append(out, cloneOrder(o))
		}
	}
	return paginate(out, page, limit), int64(len(out)), nil
}

func (m *mockOrderRepository) List(_ context.Context, page, limit int) ([]*domain.Order, int64, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if !o.IsDraft() {
			out = append(out, cloneOrder(o))
		}
	}
	return paginate(out, page, limit), int64(len(out)), nil
}

func paginate(orders []*domain.Order, page, limit int) []*domain.Order {
	start := (page - 1) * limit
	if start >= len(orders) {
		return []*domain.Order{}
	}
	end := min(start+limit, len(orders))
	return orders[start:end]
}

func (m *mockOrderRepository) DeleteExpiredDrafts(_ context.Context, now time.Time) ([]*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	var out []*domain.Order
	for id, o := range m.orders {
		if o.IsExpired(now) {
			out = append(out, o)
			delete(m.orders, id)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) stored(id string) *domain.Order {
	m.m.RLock()
	defer m.m.RUnlock()
	return cloneOrder(m.orders[id])
}

func (m *mockOrderRepository) put(o *domain.Order) {
	m.m.Lock()
	defer m.m.Unlock()
	if o.Version == 0 {
		o.Version = 1
	}
	m.orders[o.ID] = cloneOrder(o)
}

type mockUserRepository struct {
	m     sync.RWMutex
	users map[string]*domain.User
}

func (m *mockUserRepository) Get(_ context.Context, id string) (*domain.User, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

type mockCouponRepository struct {
	m         sync.RWMutex
	coupons   map[string]*domain.Coupon
	redeemErr error
	released  int
}

func newMockCouponRepository(coupons ...*domain.Coupon) *mockCouponRepository {
	m := &mockCouponRepository{coupons: make(map[string]*domain.Coupon)}
	for _, c := range coupons {
		m.coupons[c.ID] = c
	}
	return m
}

func (m *mockCouponRepository) Create(_ context.Context, c *domain.Coupon) error {
	m.m.Lock()
	defer m.m.Unlock()
	for _, existing := range m.coupons {
		if existing.Code == c.Code {
			return repository.ErrCouponExists
		}
	}
	cp := *c
	m.coupons[c.ID] = &cp
	return nil
}

func (m *mockCouponRepository) Get(_ context.Context, id string) (*domain.Coupon, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.coupons[id]
	if !ok {
		return nil, repository.ErrCouponNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCouponRepository) GetByCode(_ context.Context, code string) (*domain.Coupon, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	for _, c := range m.coupons {
		if c.Code == strings.ToUpper(code) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrCouponNotFound
}

func (m *mockCouponRepository) List(_ context.Context) ([]*domain.Coupon, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	out := make([]*domain.Coupon, 0, len(m.coupons))
	for _, c := range m.coupons {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockCouponRepository) ListUsable(_ context.Context, now time.Time) ([]*domain.Coupon, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	out := make([]*domain.Coupon, 0)
	for _, c := range m.coupons {
		if c.UsableAt(now) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockCouponRepository) Update(_ context.Context, c *domain.Coupon) error {
	m.m.Lock()
	defer m.m.Unlock()
	if _, ok := m.coupons[c.ID]; !ok {
		return repository.ErrCouponNotFound
	}
	cp := *c
	m.coupons[c.ID] = &cp
	return nil
}

func (m *mockCouponRepository) Delete(_ context.Context, id string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if _, ok := m.coupons[id]; !ok {
		return repository.ErrCouponNotFound
	}
	delete(m.coupons, id)
	return nil
}

func (m *mockCouponRepository) Redeem(_ context.Context, id string, now time.Time) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.redeemErr != nil {
		return m.redeemErr
	}
	c, ok := m.coupons[id]
	if !ok || !c.UsableAt(now) {
		return repository.ErrCouponExhausted
	}
	c.CouponCount--
	return nil
}

func (m *mockCouponRepository) Release(_ context.Context, id string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if c, ok := m.coupons[id]; ok {
		c.CouponCount++
	}
	m.released++
	return nil
}

func (m *mockCouponRepository) count(id string) int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.coupons[id].CouponCount
}

type mockOfferRepository struct {
	m      sync.RWMutex
	offers map[string]*domain.Offer
}

func newMockOfferRepository() *mockOfferRepository {
	return &mockOfferRepository{offers: make(map[string]*domain.Offer)}
}

func (m *mockOfferRepository) Create(_ context.Context, o *domain.Offer) error {
	m.m.Lock()
	defer m.m.Unlock()
	cp := *o
	m.offers[o.ID] = &cp
	return nil
}

func (m *mockOfferRepository) Get(_ context.Context, id string) (*domain.Offer, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	o, ok := m.offers[id]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOfferRepository) List(_ context.Context) ([]*domain.Offer, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	out := make([]*domain.Offer, 0, len(m.offers))
	for _, o := range m.offers {
		out = append(out, o)
	}
	return out, nil
}

func (m *mockOfferRepository) Delete(_ context.Context, id string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if _, ok := m.offers[id]; !ok {
		return repository.ErrOfferNotFound
	}
	delete(m.offers, id)
	return nil
}

type mockOutbox struct {
	m      sync.RWMutex
	events []*repository.OutboxEvent
}

func (m *mockOutbox) Add(_ context.Context, e *repository.OutboxEvent) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *mockOutbox) GetUnprocessedEvents(_ context.Context, limit int) ([]*repository.OutboxEvent, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var out []*repository.OutboxEvent
	for _, e := range m.events {
		if !e.Processed && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockOutbox) MarkEventAsProcessed(_ context.Context, id string) error {
	m.m.Lock()
	defer m.m.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			e.Processed = true
		}
	}
	return nil
}

func (m *mockOutbox) types() []string {
	m.m.RLock()
	defer m.m.RUnlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.EventType)
	}
	return out
}

type mockCartCache struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
}

func newMockCartCache() *mockCartCache {
	return &mockCartCache{carts: make(map[string]*domain.Cart)}
}

func (m *mockCartCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c, nil
}

func (m *mockCartCache) Set(_ context.Context, userID string, c *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[userID] = c
	return nil
}

func (m *mockCartCache) Delete(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, userID)
	return nil
}

// mockIdempotency mirrors the Redis store: "-" marks a claim without a result.
type mockIdempotency struct {
	m    sync.RWMutex
	keys map[string]string
}

func newMockIdempotency() *mockIdempotency {
	return &mockIdempotency{keys: make(map[string]string)}
}

func (m *mockIdempotency) Claim(_ context.Context, scope, key string) (bool, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if _, ok := m.keys[scope+":"+key]; ok {
		return false, nil
	}
	m.keys[scope+":"+key] = "-"
	return true, nil
}

func (m *mockIdempotency) Remember(_ context.Context, scope, key, result string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.keys[scope+":"+key] = result
	return nil
}

func (m *mockIdempotency) Recall(_ context.Context, scope, key string) (string, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	v, ok := m.keys[scope+":"+key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	if v == "-" {
		return "", cache.ErrInFlight
	}
	return v, nil
}

func (m *mockIdempotency) Forget(_ context.Context, scope, key string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.keys, scope+":"+key)
	return nil
}

type mockGateway struct {
	m        sync.RWMutex
	orderID  string
	err      error
	validSig string
	created  []string
}

func (m *mockGateway) CreateOrder(_ context.Context, amount float64, receipt string) (*payment.GatewayOrder, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.created = append(m.created, receipt)
	return &payment.GatewayOrder{ID: m.orderID, Amount: payment.ToMinorUnits(amount), Currency: "INR", Receipt: receipt}, nil
}

func (m *mockGateway) VerifySignature(_, _, signature string) bool {
	m.m.RLock()
	defer m.m.RUnlock()
	return signature != "" && signature == m.validSig
}

func (m *mockGateway) KeyID() string { return "rzp_test_key" }

type mockWalletRepository struct {
	m       sync.RWMutex
	wallets map[string]*domain.Wallet
	err     error
}

func newMockWalletRepository() *mockWalletRepository {
	return &mockWalletRepository{wallets: make(map[string]*domain.Wallet)}
}

func (m *mockWalletRepository) Credit(_ context.Context, userID string, tx domain.WalletTransaction) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	w, ok := m.wallets[userID]
	if !ok {
		w = &domain.Wallet{UserID: userID}
		m.wallets[userID] = w
	}
	for _, existing := range w.Transactions {
		if tx.Reference != "" && existing.Reference == tx.Reference {
			return wallet.ErrDuplicateReference
		}
	}
	w.Balance += tx.Signed()
	w.Transactions = append([]domain.WalletTransaction{tx}, w.Transactions...)
	return nil
}

func (m *mockWalletRepository) Page(_ context.Context, userID string, page, limit int) (*domain.WalletPage, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	w, ok := m.wallets[userID]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	skip := (page - 1) * limit
	start := min(skip, len(w.Transactions))
	end := min(start+limit, len(w.Transactions))
	pages := (len(w.Transactions) + limit - 1) / limit
	return &domain.WalletPage{
		Balance:      w.Balance,
		Transactions: w.Transactions[start:end],
		TotalPages:   pages,
		CurrentPage:  page,
	}, nil
}

func (m *mockWalletRepository) balance(userID string) (float64, int) {
	m.m.RLock()
	defer m.m.RUnlock()
	w, ok := m.wallets[userID]
	if !ok {
		return 0, 0
	}
	return w.Balance, len(w.Transactions)
}

// fixture wires every service over in-memory fakes.
type fixture struct {
	now      time.Time
	carts    *mockCartRepository
	products *mockProductRepository
	orders   *mockOrderRepository
	users    *mockUserRepository
	coupons  *mockCouponRepository
	offers   *mockOfferRepository
	outbox   *mockOutbox
	idem     *mockIdempotency
	gateway  *mockGateway
	wallets  *mockWalletRepository
	stock    *inventory.MemoryStore

	cart     *CartService
	checkout *CheckoutService
	order    *OrderService
	wallet   *WalletService
}

func newFixture(t *testing.T, cfg CheckoutConfig) *fixture {
	t.Helper()
	f := &fixture{
		now:      time.Now().UTC().Truncate(time.Second),
		carts:    newMockCartRepository(),
		products: newMockProductRepository(),
		orders:   newMockOrderRepository(),
		users:    &mockUserRepository{users: map[string]*domain.User{}},
		coupons:  newMockCouponRepository(),
		offers:   newMockOfferRepository(),
		outbox:   &mockOutbox{},
		idem:     newMockIdempotency(),
		gateway:  &mockGateway{orderID: "order_rzp_1", validSig: "good-sig"},
		wallets:  newMockWalletRepository(),
		stock:    inventory.NewMemoryStore(),
	}
	t.Cleanup(func() { _ = f.stock.Close() })

	clock := func() time.Time { return f.now }
	engine := pricing.NewEngine(pricing.DefaultBands)
	f.cart = NewCartService(f.carts, f.products, newMockCartCache(), engine)
	f.checkout = NewCheckoutService(CheckoutDeps{
		Orders:   f.orders,
		Products: f.products,
		Users:    f.users,
		Coupons:  f.coupons,
		Outbox:   f.outbox,
		Stock:    f.stock,
		Carts:    f.cart,
		Gateway:  f.gateway,
		Idem:     f.idem,
		Pricing:  engine,
		Now:      clock,
	}, cfg)
	f.wallet = NewWalletService(f.wallets, 5, clock)
	f.order = NewOrderService(f.orders, f.outbox, f.stock, f.wallet, f.idem, clock)
	return f
}

// addProduct registers p in the catalog and the stock ledger.
func (f *fixture) addProduct(p *domain.Product) {
	f.products.m.Lock()
	f.products.products[p.ID] = p
	f.products.m.Unlock()
	f.stock.SetStock(p.ID, p.Stock...)
}

func (f *fixture) addUser(userID string, addressIDs ...string) {
	u := &domain.User{ID: userID}
	for _, id := range addressIDs {
		u.Addresses = append(u.Addresses, domain.Address{ID: id, City: "Kochi"})
	}
	f.users.m.Lock()
	f.users.users[userID] = u
	f.users.m.Unlock()
}

func (f *fixture) available(t *testing.T, productID, size string) int {
	t.Helper()
	n, err := f.stock.Available(context.Background(), productID, size)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	return n
}
