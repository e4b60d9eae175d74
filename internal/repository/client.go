package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/UnknownOlympus/dispatch/internal/apperr"
	"github.com/UnknownOlympus/dispatch/internal/models"
	"github.com/jackc/pgx/v5"
)

// CreateClient inserts a new client. A phone number already used by another
// client is reported as a validation error.
func (r *Repository) CreateClient(ctx context.Context, client models.Client) (models.Client, error) {
	err := r.db.QueryRow(ctx, InsertClientSQL,
		client.FirstName, client.LastName, client.Phone, client.Address, client.CreatedAt,
	).Scan(&client.ID)
	if err != nil {
		return models.Client{}, fmt.Errorf("failed to insert client: %w", classifyWriteError(err))
	}

	return client, nil
}

// GetClient retrieves a client by its ID.
func (r *Repository) GetClient(ctx context.Context, clientID int) (models.Client, error) {
	return r.scanClient(ctx, SelectClientSQL, clientID)
}

// GetClientByPhone retrieves a client by its unique phone number.
func (r *Repository) GetClientByPhone(ctx context.Context, phone string) (models.Client, error) {
	return r.scanClient(ctx, SelectClientByPhoneSQL, phone)
}

func (r *Repository) scanClient(ctx context.Context, query string, key any) (models.Client, error) {
	var client models.Client

	err := r.db.QueryRow(ctx, query, key).Scan(
		&client.ID, &client.FirstName, &client.LastName, &client.Phone, &client.Address, &client.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Client{}, fmt.Errorf("client %v: %w", key, apperr.ErrNotFound)
		}
		return models.Client{}, fmt.Errorf("failed to get client: %w", err)
	}

	return client, nil
}
