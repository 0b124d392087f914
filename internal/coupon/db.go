package coupon

import (
	"context"
	"database/sql"
	"errors"

	"codemart/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// GetActiveByCode fetches an active coupon by its code. Inactive or
// unknown codes return ErrCouponNotFound; the orchestrator decides
// whether that is fatal.
func (d *DB) GetActiveByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := d.Bun.NewSelect().
		Model(&c).
		Where("code = ?", code).
		Where("is_active = ?", true).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Redeem increments the coupon use counter, bounded by max_uses, in a
// single conditional update. Zero rows affected means the cap was hit
// (or the coupon got deactivated) between evaluation and redemption.
func (d *DB) Redeem(ctx context.Context, idb bun.IDB, code string) error {
	res, err := idb.NewUpdate().
		Model((*models.Coupon)(nil)).
		Set("uses = uses + 1").
		Where("code = ?", code).
		Where("is_active = ?", true).
		Where("max_uses IS NULL OR uses < max_uses").
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCouponExhausted
	}
	return nil
}

func (d *DB) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	_, err := d.Bun.NewInsert().Model(c).Exec(ctx)
	return err
}

func (d *DB) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := d.Bun.NewSelect().
		Model(&c).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (d *DB) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	var coupons []models.Coupon
	err := d.Bun.NewSelect().
		Model(&coupons).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if coupons == nil {
		coupons = []models.Coupon{}
	}
	return coupons, nil
}
