package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"codemart/internal/coupon"
	"codemart/internal/license"
	"codemart/internal/logger"
	"codemart/internal/models"
	"codemart/internal/payment"
	"codemart/internal/storage"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DownloadLinkTTLSeconds is the signing window for artifact downloads.
// Cached links expire downloadCacheMarginSeconds before the signature
// does, so a cache hit is never already stale.
const (
	DownloadLinkTTLSeconds     = 3600
	downloadCacheMarginSeconds = 300
)

var (
	ErrProductNotFound         = errors.New("product not found")
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidSignature        = errors.New("invalid payment signature")
	ErrArtifactMissing         = errors.New("product file not found")
	ErrDownloadLinkUnavailable = errors.New("failed to generate download URL")
	ErrVerificationInProgress  = errors.New("payment verification already in progress")
)

type DBLayer interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error
	CreateOrder(ctx context.Context, idb bun.IDB, order *models.Order) error
	GetOrderByIntentRef(ctx context.Context, intentRef string) (*models.Order, error)
	CompleteOrder(ctx context.Context, idb bun.IDB, intentRef, confirmationRef, licenseKey string, paidAt time.Time) (bool, error)
	GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	GetCompletedOrderForUser(ctx context.Context, orderID, userID string) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
}

type ProductStore interface {
	GetPublishedByID(ctx context.Context, id string) (*models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	IncrementDownloads(ctx context.Context, idb bun.IDB, id string) error
}

type CouponStore interface {
	GetActiveByCode(ctx context.Context, code string) (*models.Coupon, error)
	Redeem(ctx context.Context, idb bun.IDB, code string) error
}

type RedisLock interface {
	LockIntent(intentRef string) (bool, error)
	UnlockIntent(intentRef string) error
	CacheDownloadURL(orderID, url string, ttl time.Duration) error
	GetDownloadURL(orderID string) (string, time.Duration, error)
}

type EventPublisher interface {
	PublishOrderCreated(order models.Order) error
	PublishOrderCompleted(order models.Order) error
}

type OrderService struct {
	DB       DBLayer
	Products ProductStore
	Coupons  CouponStore
	Redis    RedisLock
	Gateway  payment.Gateway
	Signer   storage.Signer
	Kafka    EventPublisher
	Currency string
	logger   *logger.Logger
}

func NewOrderService(
	db DBLayer,
	products ProductStore,
	coupons CouponStore,
	redis RedisLock,
	gateway payment.Gateway,
	signer storage.Signer,
	kafka EventPublisher,
	currency string,
	log *logger.Logger,
) *OrderService {
	return &OrderService{
		DB:       db,
		Products: products,
		Coupons:  coupons,
		Redis:    redis,
		Gateway:  gateway,
		Signer:   signer,
		Kafka:    kafka,
		Currency: currency,
		logger:   log,
	}
}

// CreateOrderResult is what a buyer needs to continue checkout. Free
// orders settle immediately; paid ones carry the gateway handshake.
type CreateOrderResult struct {
	OrderID        string  `json:"order_id"`
	IsFree         bool    `json:"is_free"`
	GatewayOrderID string  `json:"gateway_order_id,omitempty"`
	Amount         float64 `json:"amount,omitempty"`
	GatewayKeyID   string  `json:"gateway_key_id,omitempty"`
}

// CreateOrder turns a purchase intent into either a settled free order
// or a pending order awaiting gateway confirmation.
func (s *OrderService) CreateOrder(ctx context.Context, userID, productID, couponCode string) (*CreateOrderResult, error) {
	product, err := s.Products.GetPublishedByID(ctx, productID)
	if err != nil {
		return nil, ErrProductNotFound
	}

	amount := product.Price
	appliedCoupon := ""

	if couponCode != "" {
		c, err := s.Coupons.GetActiveByCode(ctx, couponCode)
		switch {
		case errors.Is(err, coupon.ErrCouponNotFound):
			// Unknown or inactive code falls back to full price.
			s.logger.LogOrder("COUPON_IGNORED", productID, fmt.Sprintf("No active coupon for code %q, charging full price", couponCode))
		case err != nil:
			return nil, fmt.Errorf("coupon lookup failed: %w", err)
		default:
			amount, err = coupon.Evaluate(amount, c, time.Now())
			if err != nil {
				return nil, err
			}
			appliedCoupon = couponCode
		}
	}

	orderID := uuid.NewString()
	now := time.Now().UTC()

	if amount == 0 {
		return s.settleFreeOrder(ctx, orderID, userID, productID, appliedCoupon, now)
	}

	intentRef, err := s.Gateway.CreateIntent(ctx, MinorUnits(amount), s.Currency)
	if err != nil {
		return nil, fmt.Errorf("failed to open payment intent: %w", err)
	}

	order := models.Order{
		ID:             orderID,
		ProductID:      productID,
		UserID:         userID,
		Amount:         amount,
		CouponCode:     appliedCoupon,
		GatewayOrderID: intentRef,
		Status:         models.OrderPending,
		CreatedAt:      now,
	}

	err = s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if appliedCoupon != "" {
			if err := s.Coupons.Redeem(ctx, tx, appliedCoupon); err != nil {
				return err
			}
		}
		return s.DB.CreateOrder(ctx, tx, &order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogOrder("CREATE", orderID, fmt.Sprintf("Pending order for product %s, amount %.2f, intent %s", productID, amount, intentRef))

	if err := s.Kafka.PublishOrderCreated(order); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Failed to publish order created event: %v", err))
	}

	return &CreateOrderResult{
		OrderID:        orderID,
		GatewayOrderID: intentRef,
		Amount:         amount,
		GatewayKeyID:   s.Gateway.KeyID(),
	}, nil
}

// settleFreeOrder records a zero-amount order as completed in one
// transaction together with the download counter bump and the coupon
// redemption. No gateway round trip happens.
func (s *OrderService) settleFreeOrder(ctx context.Context, orderID, userID, productID, appliedCoupon string, now time.Time) (*CreateOrderResult, error) {
	order := models.Order{
		ID:               orderID,
		ProductID:        productID,
		UserID:           userID,
		Amount:           0,
		CouponCode:       appliedCoupon,
		GatewayOrderID:   models.FreePaymentRef,
		GatewayPaymentID: models.FreePaymentRef,
		Status:           models.OrderCompleted,
		LicenseKey:       license.Issue(),
		CreatedAt:        now,
		PaidAt:           &now,
	}

	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if appliedCoupon != "" {
			if err := s.Coupons.Redeem(ctx, tx, appliedCoupon); err != nil {
				return err
			}
		}
		if err := s.DB.CreateOrder(ctx, tx, &order); err != nil {
			return err
		}
		return s.Products.IncrementDownloads(ctx, tx, productID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogOrder("FREE_SETTLE", orderID, fmt.Sprintf("Free order settled for product %s", productID))

	if err := s.Kafka.PublishOrderCompleted(order); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Failed to publish order completed event: %v", err))
	}

	return &CreateOrderResult{OrderID: orderID, IsFree: true}, nil
}

// VerifyPayment settles a pending order from a gateway confirmation.
// The call is idempotent: a repeated confirmation for an already
// completed order returns the license key recorded the first time and
// leaves the download counter untouched.
func (s *OrderService) VerifyPayment(ctx context.Context, intentRef, confirmationRef, signature string) (string, error) {
	if !s.Gateway.VerifySignature(intentRef, confirmationRef, signature) {
		s.logger.LogSecurity("SIGNATURE_MISMATCH", fmt.Sprintf("Rejected confirmation %s for intent %s", confirmationRef, intentRef))
		return "", ErrInvalidSignature
	}

	order, err := s.DB.GetOrderByIntentRef(ctx, intentRef)
	if err != nil {
		return "", ErrOrderNotFound
	}

	if order.Status == models.OrderCompleted {
		s.logger.LogPayment("DUPLICATE", intentRef, "Order already completed, returning existing license key")
		return order.LicenseKey, nil
	}

	locked, err := s.Redis.LockIntent(intentRef)
	if err != nil {
		return "", fmt.Errorf("failed to lock intent %s: %w", intentRef, err)
	}
	if !locked {
		return "", ErrVerificationInProgress
	}
	defer func() {
		if err := s.Redis.UnlockIntent(intentRef); err != nil {
			s.logger.Error("REDIS", fmt.Sprintf("Failed to unlock intent %s: %v", intentRef, err))
		}
	}()

	licenseKey := license.Issue()
	paidAt := time.Now().UTC()

	var flipped bool
	err = s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		flipped, txErr = s.DB.CompleteOrder(ctx, tx, intentRef, confirmationRef, licenseKey, paidAt)
		if txErr != nil {
			return txErr
		}
		if !flipped {
			return nil
		}
		return s.Products.IncrementDownloads(ctx, tx, order.ProductID)
	})
	if err != nil {
		return "", fmt.Errorf("failed to settle order %s: %w", order.ID, err)
	}

	if !flipped {
		// Lost the transition race; the winner's license key stands.
		settled, err := s.DB.GetOrderByIntentRef(ctx, intentRef)
		if err != nil {
			return "", ErrOrderNotFound
		}
		if settled.Status != models.OrderCompleted {
			return "", fmt.Errorf("order %s did not settle", settled.ID)
		}
		s.logger.LogPayment("DUPLICATE", intentRef, "Concurrent confirmation settled first, returning its license key")
		return settled.LicenseKey, nil
	}

	s.logger.LogPayment("SETTLED", intentRef, fmt.Sprintf("Order %s completed with confirmation %s", order.ID, confirmationRef))

	order.Status = models.OrderCompleted
	order.GatewayPaymentID = confirmationRef
	order.LicenseKey = licenseKey
	order.PaidAt = &paidAt
	if err := s.Kafka.PublishOrderCompleted(*order); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Failed to publish order completed event: %v", err))
	}

	return licenseKey, nil
}

// GetLicense returns the license key of a completed order owned by the
// requesting buyer.
func (s *OrderService) GetLicense(ctx context.Context, userID, orderID string) (string, error) {
	order, err := s.DB.GetCompletedOrderForUser(ctx, orderID, userID)
	if err != nil {
		return "", ErrOrderNotFound
	}
	return order.LicenseKey, nil
}

// MyOrders lists the caller's orders newest first.
func (s *OrderService) MyOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return s.DB.GetOrdersByUser(ctx, userID)
}

// AllOrders lists every order for the admin console.
func (s *OrderService) AllOrders(ctx context.Context) ([]models.Order, error) {
	return s.DB.ListOrders(ctx)
}

// DownloadLink is a time-limited URL to a purchased artifact.
type DownloadLink struct {
	URL       string `json:"download_url"`
	ExpiresIn int    `json:"expires_in"`
}

// GetDownloadLink signs a download URL for a completed order owned by
// the requesting buyer. Links are cached for most of their signing
// window so repeat clicks reuse the same URL.
func (s *OrderService) GetDownloadLink(ctx context.Context, userID, orderID string) (*DownloadLink, error) {
	order, err := s.DB.GetCompletedOrderForUser(ctx, orderID, userID)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	if cached, ttl, err := s.Redis.GetDownloadURL(orderID); err == nil && cached != "" {
		// The signature outlives the cache entry by the margin.
		return &DownloadLink{URL: cached, ExpiresIn: int(ttl/time.Second) + downloadCacheMarginSeconds}, nil
	}

	product, err := s.Products.GetByID(ctx, order.ProductID)
	if err != nil || product.FilePath == "" {
		return nil, ErrArtifactMissing
	}

	url, err := s.Signer.SignURL(ctx, product.FilePath, DownloadLinkTTLSeconds)
	if err != nil {
		s.logger.Error("STORAGE", fmt.Sprintf("Failed to sign download URL for order %s: %v", orderID, err))
		return nil, ErrDownloadLinkUnavailable
	}

	// Expire the cached copy well before the signature does.
	if err := s.Redis.CacheDownloadURL(orderID, url, (DownloadLinkTTLSeconds-downloadCacheMarginSeconds)*time.Second); err != nil {
		s.logger.Warn("REDIS", fmt.Sprintf("Failed to cache download URL for order %s: %v", orderID, err))
	}

	return &DownloadLink{URL: url, ExpiresIn: DownloadLinkTTLSeconds}, nil
}

// MinorUnits converts a decimal amount into the gateway's integer
// minor currency units.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
