package catalog

import (
	"context"
	"database/sql"
	"errors"

	"codemart/internal/models"

	"github.com/uptrace/bun"
)

var ErrProductNotFound = errors.New("product not found")

type DB struct {
	Bun *bun.DB
}

// GetPublishedByID fetches a product visible to buyers. Unpublished
// products are indistinguishable from missing ones.
func (d *DB) GetPublishedByID(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := d.Bun.NewSelect().
		Model(&p).
		Where("id = ?", id).
		Where("is_published = ?", true).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (d *DB) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := d.Bun.NewSelect().
		Model(&p).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (d *DB) CreateProduct(ctx context.Context, p *models.Product) error {
	_, err := d.Bun.NewInsert().Model(p).Exec(ctx)
	return err
}

// UpdateProduct writes the admin-editable columns only.
func (d *DB) UpdateProduct(ctx context.Context, p models.Product) error {
	res, err := d.Bun.NewUpdate().
		Model(&p).
		Column("title", "tagline", "description", "price", "category", "tags",
			"tech_stack", "demo_url", "license_type", "thumbnail", "gallery", "is_published").
		Where("id = ?", p.ID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (d *DB) DeleteProduct(ctx context.Context, id string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Product)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (d *DB) SetFilePath(ctx context.Context, id, filePath string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Product)(nil)).
		Set("file_path = ?", filePath).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// IncrementDownloads bumps the download counter in place so concurrent
// settlements for the same product never lose an update. It runs on
// the caller's transaction handle.
func (d *DB) IncrementDownloads(ctx context.Context, idb bun.IDB, id string) error {
	_, err := idb.NewUpdate().
		Model((*models.Product)(nil)).
		Set("downloads = downloads + 1").
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// SetRating writes the recomputed review aggregate onto the product.
func (d *DB) SetRating(ctx context.Context, id string, rating float64, reviewsCount int) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Product)(nil)).
		Set("rating = ?", rating).
		Set("reviews_count = ?", reviewsCount).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
