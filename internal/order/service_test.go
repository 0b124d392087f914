package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"codemart/internal/coupon"
	"codemart/internal/logger"
	"codemart/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// Mock implementations for testing

type MockDB struct {
	orders        map[string]*models.Order
	byIntent      map[string]string
	raceWinnerKey string
	shouldFailOn  string
	errorMsg      string
}

func NewMockDB() *MockDB {
	return &MockDB{
		orders:   make(map[string]*models.Order),
		byIntent: make(map[string]string),
	}
}

func (m *MockDB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	if m.shouldFailOn == "RunInTx" {
		return errors.New(m.errorMsg)
	}
	return fn(ctx, bun.Tx{})
}

func (m *MockDB) CreateOrder(ctx context.Context, idb bun.IDB, order *models.Order) error {
	if m.shouldFailOn == "CreateOrder" {
		return errors.New(m.errorMsg)
	}
	copied := *order
	m.orders[order.ID] = &copied
	m.byIntent[order.GatewayOrderID] = order.ID
	return nil
}

func (m *MockDB) GetOrderByIntentRef(ctx context.Context, intentRef string) (*models.Order, error) {
	id, ok := m.byIntent[intentRef]
	if !ok {
		return nil, errors.New("order not found")
	}
	copied := *m.orders[id]
	return &copied, nil
}

func (m *MockDB) CompleteOrder(ctx context.Context, idb bun.IDB, intentRef, confirmationRef, licenseKey string, paidAt time.Time) (bool, error) {
	if m.shouldFailOn == "CompleteOrder" {
		return false, errors.New(m.errorMsg)
	}
	id, ok := m.byIntent[intentRef]
	if !ok {
		return false, nil
	}
	order := m.orders[id]
	if order.Status != models.OrderPending {
		return false, nil
	}
	if m.raceWinnerKey != "" {
		// Simulate a concurrent confirmation winning the transition.
		order.Status = models.OrderCompleted
		order.LicenseKey = m.raceWinnerKey
		return false, nil
	}
	order.Status = models.OrderCompleted
	order.GatewayPaymentID = confirmationRef
	order.LicenseKey = licenseKey
	order.PaidAt = &paidAt
	return true, nil
}

func (m *MockDB) GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			orders = append(orders, *o)
		}
	}
	return orders, nil
}

func (m *MockDB) GetCompletedOrderForUser(ctx context.Context, orderID, userID string) (*models.Order, error) {
	order, ok := m.orders[orderID]
	if !ok || order.UserID != userID || order.Status != models.OrderCompleted {
		return nil, errors.New("order not found")
	}
	copied := *order
	return &copied, nil
}

func (m *MockDB) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	for _, o := range m.orders {
		orders = append(orders, *o)
	}
	return orders, nil
}

type MockProducts struct {
	products   map[string]*models.Product
	increments map[string]int
}

func NewMockProducts() *MockProducts {
	return &MockProducts{
		products:   make(map[string]*models.Product),
		increments: make(map[string]int),
	}
}

func (m *MockProducts) GetPublishedByID(ctx context.Context, id string) (*models.Product, error) {
	p, ok := m.products[id]
	if !ok || !p.IsPublished {
		return nil, errors.New("product not found")
	}
	return p, nil
}

func (m *MockProducts) GetByID(ctx context.Context, id string) (*models.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, errors.New("product not found")
	}
	return p, nil
}

func (m *MockProducts) IncrementDownloads(ctx context.Context, idb bun.IDB, id string) error {
	m.increments[id]++
	return nil
}

type MockCoupons struct {
	coupons   map[string]*models.Coupon
	redeemed  map[string]int
	exhausted bool
}

func NewMockCoupons() *MockCoupons {
	return &MockCoupons{
		coupons:  make(map[string]*models.Coupon),
		redeemed: make(map[string]int),
	}
}

func (m *MockCoupons) GetActiveByCode(ctx context.Context, code string) (*models.Coupon, error) {
	c, ok := m.coupons[code]
	if !ok {
		return nil, coupon.ErrCouponNotFound
	}
	return c, nil
}

func (m *MockCoupons) Redeem(ctx context.Context, idb bun.IDB, code string) error {
	if m.exhausted {
		return coupon.ErrCouponExhausted
	}
	m.redeemed[code]++
	return nil
}

type cachedURL struct {
	url string
	exp time.Time
}

type MockRedisLock struct {
	locks     map[string]bool
	cache     map[string]cachedURL
	lockFails bool
}

func NewMockRedisLock() *MockRedisLock {
	return &MockRedisLock{
		locks: make(map[string]bool),
		cache: make(map[string]cachedURL),
	}
}

func (m *MockRedisLock) LockIntent(intentRef string) (bool, error) {
	if m.lockFails || m.locks[intentRef] {
		return false, nil
	}
	m.locks[intentRef] = true
	return true, nil
}

func (m *MockRedisLock) UnlockIntent(intentRef string) error {
	delete(m.locks, intentRef)
	return nil
}

func (m *MockRedisLock) CacheDownloadURL(orderID, url string, ttl time.Duration) error {
	m.cache[orderID] = cachedURL{url: url, exp: time.Now().Add(ttl)}
	return nil
}

func (m *MockRedisLock) GetDownloadURL(orderID string) (string, time.Duration, error) {
	entry, ok := m.cache[orderID]
	if !ok || time.Now().After(entry.exp) {
		return "", 0, nil
	}
	return entry.url, time.Until(entry.exp), nil
}

type MockGateway struct {
	intents        []int64
	validSignature bool
	failIntent     bool
}

func (m *MockGateway) CreateIntent(ctx context.Context, amountMinor int64, currency string) (string, error) {
	if m.failIntent {
		return "", errors.New("gateway unavailable")
	}
	m.intents = append(m.intents, amountMinor)
	return "intent-1", nil
}

func (m *MockGateway) VerifySignature(intentRef, confirmationRef, signature string) bool {
	return m.validSignature
}

func (m *MockGateway) KeyID() string { return "key_test" }

type MockSigner struct {
	calls    int
	failSign bool
}

func (m *MockSigner) SignURL(ctx context.Context, path string, expiresIn int) (string, error) {
	if m.failSign {
		return "", errors.New("storage error")
	}
	m.calls++
	return "https://storage.test/signed/" + path, nil
}

type MockPublisher struct {
	created   []models.Order
	completed []models.Order
}

func (m *MockPublisher) PublishOrderCreated(order models.Order) error {
	m.created = append(m.created, order)
	return nil
}

func (m *MockPublisher) PublishOrderCompleted(order models.Order) error {
	m.completed = append(m.completed, order)
	return nil
}

type serviceMocks struct {
	db       *MockDB
	products *MockProducts
	coupons  *MockCoupons
	redis    *MockRedisLock
	gateway  *MockGateway
	signer   *MockSigner
	events   *MockPublisher
}

func setupService(t *testing.T) (*OrderService, *serviceMocks) {
	t.Helper()

	m := &serviceMocks{
		db:       NewMockDB(),
		products: NewMockProducts(),
		coupons:  NewMockCoupons(),
		redis:    NewMockRedisLock(),
		gateway:  &MockGateway{validSignature: true},
		signer:   &MockSigner{},
		events:   &MockPublisher{},
	}
	m.products.products["prod-1"] = &models.Product{
		ID: "prod-1", Title: "Dashboard Kit", Price: 100.00,
		IsPublished: true, FilePath: "products/prod-1/kit.zip",
	}

	svc := NewOrderService(m.db, m.products, m.coupons, m.redis, m.gateway, m.signer, m.events, "INR", logger.NewLogger())
	return svc, m
}

func TestCreateOrderPaidPath(t *testing.T) {
	svc, m := setupService(t)
	m.coupons.coupons["SAVE20"] = &models.Coupon{
		Code: "SAVE20", DiscountType: models.DiscountFlat, DiscountValue: 20,
	}

	result, err := svc.CreateOrder(context.Background(), "user-1", "prod-1", "SAVE20")
	require.NoError(t, err)

	assert.False(t, result.IsFree)
	assert.Equal(t, "intent-1", result.GatewayOrderID)
	assert.Equal(t, 80.00, result.Amount)
	assert.Equal(t, "key_test", result.GatewayKeyID)

	// The gateway sees integer minor units of the discounted amount.
	require.Len(t, m.gateway.intents, 1)
	assert.Equal(t, int64(8000), m.gateway.intents[0])

	order, err := m.db.GetOrderByIntentRef(context.Background(), "intent-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, "SAVE20", order.CouponCode)
	assert.Empty(t, order.LicenseKey)

	assert.Equal(t, 1, m.coupons.redeemed["SAVE20"])
	assert.Len(t, m.events.created, 1)
	assert.Empty(t, m.events.completed)
	assert.Equal(t, 0, m.products.increments["prod-1"])
}

func TestCreateOrderUnknownCouponChargesFullPrice(t *testing.T) {
	svc, m := setupService(t)

	result, err := svc.CreateOrder(context.Background(), "user-1", "prod-1", "BOGUS")
	require.NoError(t, err)

	assert.Equal(t, 100.00, result.Amount)
	require.Len(t, m.gateway.intents, 1)
	assert.Equal(t, int64(10000), m.gateway.intents[0])
	assert.Empty(t, m.coupons.redeemed)
}

func TestCreateOrderExpiredCoupon(t *testing.T) {
	svc, m := setupService(t)
	expired := time.Now().Add(-time.Hour)
	m.coupons.coupons["OLD"] = &models.Coupon{
		Code: "OLD", DiscountType: models.DiscountFlat, DiscountValue: 10, ExpiresAt: &expired,
	}

	_, err := svc.CreateOrder(context.Background(), "user-1", "prod-1", "OLD")
	assert.ErrorIs(t, err, coupon.ErrCouponExpired)
	assert.Empty(t, m.db.orders)
	assert.Empty(t, m.gateway.intents)
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.CreateOrder(context.Background(), "user-1", "missing", "")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCreateOrderFreeSettlesImmediately(t *testing.T) {
	svc, m := setupService(t)
	m.coupons.coupons["FREEBIE"] = &models.Coupon{
		Code: "FREEBIE", DiscountType: models.DiscountPercent, DiscountValue: 100,
	}

	result, err := svc.CreateOrder(context.Background(), "user-1", "prod-1", "FREEBIE")
	require.NoError(t, err)

	assert.True(t, result.IsFree)
	assert.Empty(t, result.GatewayOrderID)
	assert.Empty(t, m.gateway.intents)

	order := m.db.orders[result.OrderID]
	require.NotNil(t, order)
	assert.Equal(t, models.OrderCompleted, order.Status)
	assert.NotEmpty(t, order.LicenseKey)
	assert.Equal(t, models.FreePaymentRef, order.GatewayOrderID)
	assert.Equal(t, models.FreePaymentRef, order.GatewayPaymentID)
	require.NotNil(t, order.PaidAt)

	assert.Equal(t, 1, m.products.increments["prod-1"])
	assert.Equal(t, 1, m.coupons.redeemed["FREEBIE"])
	assert.Len(t, m.events.completed, 1)
	assert.Empty(t, m.events.created)
}

func TestCreateOrderExhaustedCouponAbortsSettlement(t *testing.T) {
	svc, m := setupService(t)
	m.coupons.coupons["CAPPED"] = &models.Coupon{
		Code: "CAPPED", DiscountType: models.DiscountFlat, DiscountValue: 20,
	}
	m.coupons.exhausted = true

	_, err := svc.CreateOrder(context.Background(), "user-1", "prod-1", "CAPPED")
	assert.ErrorIs(t, err, coupon.ErrCouponExhausted)
	assert.Empty(t, m.db.orders)
}

func placePendingOrder(t *testing.T, svc *OrderService, m *serviceMocks) string {
	t.Helper()
	result, err := svc.CreateOrder(context.Background(), "user-1", "prod-1", "")
	require.NoError(t, err)
	return result.GatewayOrderID
}

func TestVerifyPaymentSettlesOrder(t *testing.T) {
	svc, m := setupService(t)
	intentRef := placePendingOrder(t, svc, m)

	key, err := svc.VerifyPayment(context.Background(), intentRef, "pay-1", "sig")
	require.NoError(t, err)
	assert.NotEmpty(t, key)

	order, err := m.db.GetOrderByIntentRef(context.Background(), intentRef)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, order.Status)
	assert.Equal(t, key, order.LicenseKey)
	assert.Equal(t, "pay-1", order.GatewayPaymentID)

	assert.Equal(t, 1, m.products.increments["prod-1"])
	assert.Len(t, m.events.completed, 1)
}

func TestVerifyPaymentIdempotent(t *testing.T) {
	svc, m := setupService(t)
	intentRef := placePendingOrder(t, svc, m)

	first, err := svc.VerifyPayment(context.Background(), intentRef, "pay-1", "sig")
	require.NoError(t, err)

	// A replayed confirmation returns the same key and the download
	// counter moves exactly once.
	second, err := svc.VerifyPayment(context.Background(), intentRef, "pay-1", "sig")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, m.products.increments["prod-1"])
	assert.Len(t, m.events.completed, 1)
}

func TestVerifyPaymentInvalidSignature(t *testing.T) {
	svc, m := setupService(t)
	intentRef := placePendingOrder(t, svc, m)
	m.gateway.validSignature = false

	_, err := svc.VerifyPayment(context.Background(), intentRef, "pay-1", "bad-sig")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// Nothing changed.
	order, err := m.db.GetOrderByIntentRef(context.Background(), intentRef)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Empty(t, order.LicenseKey)
	assert.Equal(t, 0, m.products.increments["prod-1"])
}

func TestVerifyPaymentUnknownIntent(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.VerifyPayment(context.Background(), "missing", "pay-1", "sig")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestVerifyPaymentLockContention(t *testing.T) {
	svc, m := setupService(t)
	intentRef := placePendingOrder(t, svc, m)
	m.redis.lockFails = true

	_, err := svc.VerifyPayment(context.Background(), intentRef, "pay-1", "sig")
	assert.ErrorIs(t, err, ErrVerificationInProgress)
	assert.Equal(t, 0, m.products.increments["prod-1"])
}

func TestVerifyPaymentLosesTransitionRace(t *testing.T) {
	svc, m := setupService(t)
	intentRef := placePendingOrder(t, svc, m)
	m.db.raceWinnerKey = "winner-key"

	key, err := svc.VerifyPayment(context.Background(), intentRef, "pay-1", "sig")
	require.NoError(t, err)
	assert.Equal(t, "winner-key", key)
	assert.Equal(t, 0, m.products.increments["prod-1"])
	assert.Empty(t, m.events.completed)
}

func settleOrder(t *testing.T, svc *OrderService, m *serviceMocks) string {
	t.Helper()
	intentRef := placePendingOrder(t, svc, m)
	_, err := svc.VerifyPayment(context.Background(), intentRef, "pay-1", "sig")
	require.NoError(t, err)
	id, ok := m.db.byIntent[intentRef]
	require.True(t, ok)
	return id
}

func TestGetDownloadLink(t *testing.T) {
	svc, m := setupService(t)
	orderID := settleOrder(t, svc, m)

	link, err := svc.GetDownloadLink(context.Background(), "user-1", orderID)
	require.NoError(t, err)
	assert.Equal(t, "https://storage.test/signed/products/prod-1/kit.zip", link.URL)
	assert.Equal(t, DownloadLinkTTLSeconds, link.ExpiresIn)

	// The second request reuses the cached URL without re-signing.
	link2, err := svc.GetDownloadLink(context.Background(), "user-1", orderID)
	require.NoError(t, err)
	assert.Equal(t, link.URL, link2.URL)
	assert.InDelta(t, DownloadLinkTTLSeconds, link2.ExpiresIn, 2)
	assert.Equal(t, 1, m.signer.calls)
}

func TestGetDownloadLinkCachedWindowShrinks(t *testing.T) {
	svc, m := setupService(t)
	orderID := settleOrder(t, svc, m)

	_, err := svc.GetDownloadLink(context.Background(), "user-1", orderID)
	require.NoError(t, err)

	// Age the cached entry by half an hour. The reported window must
	// track the remaining signature lifetime, not restart at full.
	entry := m.redis.cache[orderID]
	entry.exp = entry.exp.Add(-30 * time.Minute)
	m.redis.cache[orderID] = entry

	link, err := svc.GetDownloadLink(context.Background(), "user-1", orderID)
	require.NoError(t, err)
	assert.InDelta(t, DownloadLinkTTLSeconds-1800, link.ExpiresIn, 2)
	assert.Equal(t, 1, m.signer.calls)
}

func TestGetDownloadLinkOwnership(t *testing.T) {
	svc, m := setupService(t)
	orderID := settleOrder(t, svc, m)

	_, err := svc.GetDownloadLink(context.Background(), "user-2", orderID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetDownloadLinkPendingOrder(t *testing.T) {
	svc, m := setupService(t)
	intentRef := placePendingOrder(t, svc, m)
	orderID := m.db.byIntent[intentRef]

	_, err := svc.GetDownloadLink(context.Background(), "user-1", orderID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetDownloadLinkMissingArtifact(t *testing.T) {
	svc, m := setupService(t)
	orderID := settleOrder(t, svc, m)
	m.products.products["prod-1"].FilePath = ""

	_, err := svc.GetDownloadLink(context.Background(), "user-1", orderID)
	assert.ErrorIs(t, err, ErrArtifactMissing)
}

func TestGetDownloadLinkSignerFailure(t *testing.T) {
	svc, m := setupService(t)
	orderID := settleOrder(t, svc, m)
	m.signer.failSign = true

	_, err := svc.GetDownloadLink(context.Background(), "user-1", orderID)
	assert.ErrorIs(t, err, ErrDownloadLinkUnavailable)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(10000), MinorUnits(100.00))
	assert.Equal(t, int64(4999), MinorUnits(49.99))
	assert.Equal(t, int64(8000), MinorUnits(80.00))
	assert.Equal(t, int64(0), MinorUnits(0))
	// Float noise rounds to the nearest paisa instead of truncating.
	assert.Equal(t, int64(7999), MinorUnits(79.99))
}
