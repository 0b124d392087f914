package review

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"codemart/internal/logger"
	"codemart/internal/models"

	"github.com/google/uuid"
)

var (
	ErrNotPurchased    = errors.New("only buyers can review a product")
	ErrAlreadyReviewed = errors.New("product already reviewed")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
)

type Store interface {
	CreateReview(ctx context.Context, rev *models.Review) error
	GetReviewByID(ctx context.Context, id string) (*models.Review, error)
	ApproveReview(ctx context.Context, id string) (bool, error)
	HasReviewed(ctx context.Context, userID, productID string) (bool, error)
	ListApprovedByProduct(ctx context.Context, productID string) ([]models.Review, error)
	ListPending(ctx context.Context) ([]models.Review, error)
	AggregateApproved(ctx context.Context, productID string) (*ApprovedAggregate, error)
}

type PurchaseChecker interface {
	HasCompletedOrder(ctx context.Context, userID, productID string) (bool, error)
}

type RatingWriter interface {
	SetRating(ctx context.Context, id string, rating float64, reviewsCount int) error
}

type EventPublisher interface {
	PublishReviewApproved(rev models.Review) error
}

type Service struct {
	Store    Store
	Orders   PurchaseChecker
	Products RatingWriter
	Kafka    EventPublisher
	logger   *logger.Logger
}

func NewService(store Store, orders PurchaseChecker, products RatingWriter, kafka EventPublisher, log *logger.Logger) *Service {
	return &Service{Store: store, Orders: orders, Products: products, Kafka: kafka, logger: log}
}

// Submit records a pending review from a verified buyer. The review
// does not touch the product aggregate until an admin approves it.
func (s *Service) Submit(ctx context.Context, userID, userName, productID string, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	purchased, err := s.Orders.HasCompletedOrder(ctx, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to check purchase: %w", err)
	}
	if !purchased {
		return nil, ErrNotPurchased
	}

	reviewed, err := s.Store.HasReviewed(ctx, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing review: %w", err)
	}
	if reviewed {
		return nil, ErrAlreadyReviewed
	}

	rev := &models.Review{
		ID:        uuid.NewString(),
		ProductID: productID,
		UserID:    userID,
		UserName:  userName,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Store.CreateReview(ctx, rev); err != nil {
		return nil, err
	}

	s.logger.Info("REVIEW", fmt.Sprintf("Review %s submitted for product %s by %s", rev.ID, productID, userID))
	return rev, nil
}

// Approve publishes a pending review and recomputes the product's
// rating aggregate over approved reviews. Approving the same review
// twice changes nothing.
func (s *Service) Approve(ctx context.Context, reviewID string) (*models.Review, error) {
	rev, err := s.Store.GetReviewByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	flipped, err := s.Store.ApproveReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if !flipped {
		return rev, nil
	}
	rev.IsApproved = true

	agg, err := s.Store.AggregateApproved(ctx, rev.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate reviews: %w", err)
	}
	rounded := math.Round(agg.Average*10) / 10
	if err := s.Products.SetRating(ctx, rev.ProductID, rounded, agg.Count); err != nil {
		return nil, fmt.Errorf("failed to write product rating: %w", err)
	}

	s.logger.Info("REVIEW", fmt.Sprintf("Review %s approved, product %s rating now %.1f over %d reviews", reviewID, rev.ProductID, rounded, agg.Count))

	if err := s.Kafka.PublishReviewApproved(*rev); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Failed to publish review approved event: %v", err))
	}

	return rev, nil
}

// ListForProduct returns the approved reviews buyers see.
func (s *Service) ListForProduct(ctx context.Context, productID string) ([]models.Review, error) {
	return s.Store.ListApprovedByProduct(ctx, productID)
}

// ListPending returns the moderation queue for the admin console.
func (s *Service) ListPending(ctx context.Context) ([]models.Review, error) {
	return s.Store.ListPending(ctx)
}
