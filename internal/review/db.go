package review

import (
	"context"
	"database/sql"
	"errors"

	"codemart/internal/models"

	"github.com/uptrace/bun"
)

var ErrReviewNotFound = errors.New("review not found")

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateReview(ctx context.Context, rev *models.Review) error {
	_, err := d.Bun.NewInsert().Model(rev).Exec(ctx)
	return err
}

func (d *DB) GetReviewByID(ctx context.Context, id string) (*models.Review, error) {
	var rev models.Review
	err := d.Bun.NewSelect().
		Model(&rev).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	return &rev, nil
}

// ApproveReview flips a pending review to approved. Already approved
// reviews are left alone so the aggregate is never recomputed twice
// for the same review.
func (d *DB) ApproveReview(ctx context.Context, id string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Review)(nil)).
		Set("is_approved = ?", true).
		Where("id = ?", id).
		Where("is_approved = ?", false).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (d *DB) HasReviewed(ctx context.Context, userID, productID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Review)(nil)).
		Where("user_id = ?", userID).
		Where("product_id = ?", productID).
		Exists(ctx)
}

func (d *DB) ListApprovedByProduct(ctx context.Context, productID string) ([]models.Review, error) {
	var reviews []models.Review
	err := d.Bun.NewSelect().
		Model(&reviews).
		Where("product_id = ?", productID).
		Where("is_approved = ?", true).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

func (d *DB) ListPending(ctx context.Context) ([]models.Review, error) {
	var reviews []models.Review
	err := d.Bun.NewSelect().
		Model(&reviews).
		Where("is_approved = ?", false).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

// ApprovedAggregate is the rating summary over approved reviews only.
type ApprovedAggregate struct {
	Average float64
	Count   int
}

func (d *DB) AggregateApproved(ctx context.Context, productID string) (*ApprovedAggregate, error) {
	var row struct {
		Average sql.NullFloat64 `bun:"average"`
		Count   int             `bun:"count"`
	}
	err := d.Bun.NewSelect().
		Model((*models.Review)(nil)).
		ColumnExpr("AVG(rating) AS average").
		ColumnExpr("COUNT(*) AS count").
		Where("product_id = ?", productID).
		Where("is_approved = ?", true).
		Scan(ctx, &row)
	if err != nil {
		return nil, err
	}
	return &ApprovedAggregate{Average: row.Average.Float64, Count: row.Count}, nil
}
