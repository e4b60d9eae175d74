package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UnknownOlympus/dispatch/internal/apperr"
	"github.com/UnknownOlympus/dispatch/internal/models"
	"github.com/jackc/pgx/v5"
)

// CreateOrder persists an order together with its lines in a single transaction.
// The order total and line sub-totals must already be computed by the caller.
// The returned order carries the generated IDs of the order and of every line.
func (r *Repository) CreateOrder(ctx context.Context, order models.Order, lines []models.OrderLine) (
	models.Order, error,
) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	err = tx.QueryRow(ctx, InsertOrderSQL,
		order.ClientID, order.AgencyID, order.CreatorID, order.ReceiverID,
		order.CreatedAt, string(order.Status), order.Total, order.Notes,
	).Scan(&order.ID)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to insert order: %w", classifyWriteError(err))
	}

	saved := make([]models.OrderLine, len(lines))
	for i, line := range lines {
		line.OrderID = order.ID
		err = tx.QueryRow(ctx, InsertOrderLineSQL,
			line.OrderID, line.ArticleName, line.ArticleRef, line.Quantity, line.UnitPrice, line.SubTotal,
		).Scan(&line.ID)
		if err != nil {
			return models.Order{}, fmt.Errorf("failed to insert order line %d: %w", i, classifyWriteError(err))
		}
		saved[i] = line
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Order{}, fmt.Errorf("%w: failed to commit order: %w", apperr.ErrPersistence, err)
	}

	order.Lines = saved
	return order, nil
}

// GetOrder retrieves an order by its ID, without its lines.
func (r *Repository) GetOrder(ctx context.Context, orderID int) (models.Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx, SelectOrderSQL, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
		}
		return models.Order{}, fmt.Errorf("failed to query order: %w", err)
	}

	return order, nil
}

// GetOrderLines retrieves the lines of an order ordered by their ID.
func (r *Repository) GetOrderLines(ctx context.Context, orderID int) ([]models.OrderLine, error) {
	rows, err := r.db.Query(ctx, SelectOrderLinesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	var lines []models.OrderLine
	for rows.Next() {
		var line models.OrderLine
		if err = rows.Scan(&line.ID, &line.OrderID, &line.ArticleName, &line.ArticleRef,
			&line.Quantity, &line.UnitPrice, &line.SubTotal,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order line row: %w", err)
		}
		lines = append(lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return lines, nil
}

// UpdateOrder performs a read-modify-write of an order inside one transaction.
// The row is locked with SELECT ... FOR UPDATE, passed to mutate, and written back
// when mutate succeeds. An error returned by mutate aborts the transaction and is
// returned unchanged.
func (r *Repository) UpdateOrder(ctx context.Context, orderID int, mutate func(*models.Order) error) (
	models.Order, error,
) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	order, err := scanOrder(tx.QueryRow(ctx, SelectOrderForUpdateSQL, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
		}
		return models.Order{}, fmt.Errorf("failed to lock order: %w", err)
	}

	if err = mutate(&order); err != nil {
		return models.Order{}, err
	}

	_, err = tx.Exec(ctx, UpdateOrderSQL,
		order.ReceiverID, string(order.Status), order.Notes, order.ReceivedAt, order.ID,
	)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to update order: %w", classifyWriteError(err))
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Order{}, fmt.Errorf("%w: failed to commit order update: %w", apperr.ErrPersistence, err)
	}

	return order, nil
}

// ListAgencyOrders retrieves the orders of an agency created in [from, to),
// flattened with the client display fields. Orders are sorted by status and
// creation date.
func (r *Repository) ListAgencyOrders(ctx context.Context, agencyID int, from, to time.Time) (
	[]models.AgencyOrderRow, error,
) {
	rows, err := r.db.Query(ctx, SelectAgencyOrdersSQL, agencyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query agency orders: %w", err)
	}
	defer rows.Close()

	var result []models.AgencyOrderRow
	for rows.Next() {
		var (
			row    models.AgencyOrderRow
			status string
		)
		if err = rows.Scan(&row.OrderID, &row.CreatedAt, &row.ReceivedAt, &status,
			&row.ClientName, &row.ClientPhone, &row.Total, &row.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan agency order row: %w", err)
		}
		row.Status = models.OrderStatus(status)
		result = append(result, row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return result, nil
}

func scanOrder(row pgx.Row) (models.Order, error) {
	var (
		order  models.Order
		status string
	)

	err := row.Scan(
		&order.ID, &order.ClientID, &order.AgencyID, &order.CreatorID, &order.ReceiverID,
		&order.CreatedAt, &order.ReceivedAt, &status, &order.Total, &order.Notes,
	)
	if err != nil {
		return models.Order{}, err
	}

	order.Status = models.OrderStatus(status)

	return order, nil
}
