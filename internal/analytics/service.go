package analytics

import (
	"context"
	"database/sql"
	"fmt"

	"codemart/internal/models"

	"github.com/uptrace/bun"
)

// Summary is the admin dashboard rollup.
type Summary struct {
	TotalRevenue    float64          `json:"total_revenue"`
	CompletedOrders int              `json:"completed_orders"`
	TotalProducts   int              `json:"total_products"`
	TotalUsers      int              `json:"total_users"`
	TopProducts     []models.Product `json:"top_products"`
}

type Service struct {
	Bun *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{Bun: db}
}

// Summarize computes the dashboard counters in one pass. Revenue only
// counts completed orders, so pending intents never inflate it.
func (s *Service) Summarize(ctx context.Context) (*Summary, error) {
	var orderRow struct {
		Revenue sql.NullFloat64 `bun:"revenue"`
		Count   int             `bun:"count"`
	}
	err := s.Bun.NewSelect().
		Model((*models.Order)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0) AS revenue").
		ColumnExpr("COUNT(*) AS count").
		Where("status = ?", models.OrderCompleted).
		Scan(ctx, &orderRow)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}

	productCount, err := s.Bun.NewSelect().Model((*models.Product)(nil)).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	userCount, err := s.Bun.NewSelect().Model((*models.User)(nil)).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	var top []models.Product
	err = s.Bun.NewSelect().
		Model(&top).
		Order("downloads DESC").
		Limit(5).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to rank products: %w", err)
	}

	return &Summary{
		TotalRevenue:    orderRow.Revenue.Float64,
		CompletedOrders: orderRow.Count,
		TotalProducts:   productCount,
		TotalUsers:      userCount,
		TopProducts:     top,
	}, nil
}
