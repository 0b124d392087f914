package catalog

import (
	"context"
	"strings"
	"time"

	"codemart/internal/logger"
	"codemart/internal/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BrowseQuery carries the public catalog filters.
type BrowseQuery struct {
	Category string
	Search   string
	MinPrice *float64
	MaxPrice *float64
	Tags     []string
	Sort     string
}

type Service struct {
	DB     *DB
	Logger *logger.Logger
}

func NewService(db *DB, log *logger.Logger) *Service {
	return &Service{DB: db, Logger: log}
}

// Browse lists published products with optional filters. Unknown sort
// keys fall back to newest-first.
func (s *Service) Browse(ctx context.Context, q BrowseQuery) ([]models.Product, error) {
	var products []models.Product

	sel := s.DB.Bun.NewSelect().
		Model(&products).
		Where("is_published = ?", true)

	if q.Category != "" {
		sel = sel.Where("category = ?", q.Category)
	}
	if q.MinPrice != nil {
		sel = sel.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		sel = sel.Where("price <= ?", *q.MaxPrice)
	}
	if q.Search != "" {
		pattern := "%" + strings.ToLower(q.Search) + "%"
		sel = sel.WhereGroup(" AND ", func(g *bun.SelectQuery) *bun.SelectQuery {
			return g.
				Where("LOWER(title) LIKE ?", pattern).
				WhereOr("LOWER(description) LIKE ?", pattern)
		})
	}
	for _, tag := range q.Tags {
		sel = sel.Where("? = ANY(tags)", tag)
	}

	switch q.Sort {
	case "price_low":
		sel = sel.Order("price ASC")
	case "price_high":
		sel = sel.Order("price DESC")
	case "popular":
		sel = sel.Order("downloads DESC")
	case "rating":
		sel = sel.Order("rating DESC")
	default:
		sel = sel.Order("created_at DESC")
	}

	if err := sel.Limit(100).Scan(ctx); err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

func (s *Service) GetPublished(ctx context.Context, id string) (*models.Product, error) {
	return s.DB.GetPublishedByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, upsert models.ProductUpsert) (*models.Product, error) {
	p := &models.Product{
		ID:          uuid.NewString(),
		Title:       upsert.Title,
		Tagline:     upsert.Tagline,
		Description: upsert.Description,
		Price:       upsert.Price,
		Category:    upsert.Category,
		Tags:        upsert.Tags,
		TechStack:   upsert.TechStack,
		DemoURL:     upsert.DemoURL,
		LicenseType: upsert.LicenseType,
		Thumbnail:   upsert.Thumbnail,
		Gallery:     upsert.Gallery,
		IsPublished: upsert.IsPublished,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.DB.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.Logger.Info("CATALOG", "Created product "+p.ID)
	return p, nil
}

func (s *Service) Update(ctx context.Context, id string, upsert models.ProductUpsert) (*models.Product, error) {
	p := models.Product{
		ID:          id,
		Title:       upsert.Title,
		Tagline:     upsert.Tagline,
		Description: upsert.Description,
		Price:       upsert.Price,
		Category:    upsert.Category,
		Tags:        upsert.Tags,
		TechStack:   upsert.TechStack,
		DemoURL:     upsert.DemoURL,
		LicenseType: upsert.LicenseType,
		Thumbnail:   upsert.Thumbnail,
		Gallery:     upsert.Gallery,
		IsPublished: upsert.IsPublished,
	}
	if err := s.DB.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	return s.DB.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.DB.DeleteProduct(ctx, id)
}
