package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"codemart/internal/models"

	"github.com/uptrace/bun"
)

var ErrOrderNotFound = errors.New("order not found")

type DB struct {
	Bun *bun.DB
}

// RunInTx runs fn inside a single database transaction. Settlement
// writes that span orders and products go through here.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, fn)
}

func (d *DB) CreateOrder(ctx context.Context, idb bun.IDB, order *models.Order) error {
	_, err := idb.NewInsert().Model(order).Exec(ctx)
	return err
}

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetOrderByIntentRef resolves the order a payment confirmation belongs
// to via the gateway's intent reference.
func (d *DB) GetOrderByIntentRef(ctx context.Context, intentRef string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("gateway_order_id = ?", intentRef).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// CompleteOrder flips a pending order to completed. The status guard in
// the WHERE clause makes the transition first-wins: a duplicate or
// concurrent confirmation for the same intent affects zero rows and the
// caller falls back to the already-recorded license key.
func (d *DB) CompleteOrder(ctx context.Context, idb bun.IDB, intentRef, confirmationRef, licenseKey string, paidAt time.Time) (bool, error) {
	res, err := idb.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.OrderCompleted).
		Set("gateway_payment_id = ?", confirmationRef).
		Set("license_key = ?", licenseKey).
		Set("paid_at = ?", paidAt).
		Where("gateway_order_id = ?", intentRef).
		Where("status = ?", models.OrderPending).
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

// GetOrdersByUser lists a buyer's orders newest first.
func (d *DB) GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// GetCompletedOrderForUser fetches an order only when it exists, is
// completed and belongs to the given buyer. Anything else is a
// not-found to the caller, including someone else's valid order ID.
func (d *DB) GetCompletedOrderForUser(ctx context.Context, orderID, userID string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", orderID).
		Where("user_id = ?", userID).
		Where("status = ?", models.OrderCompleted).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// HasCompletedOrder reports whether the user holds a completed order
// for the product. Reviews require one.
func (d *DB) HasCompletedOrder(ctx context.Context, userID, productID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("user_id = ?", userID).
		Where("product_id = ?", productID).
		Where("status = ?", models.OrderCompleted).
		Exists(ctx)
}

// ListOrders returns every order newest first, for the admin console.
func (d *DB) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}
