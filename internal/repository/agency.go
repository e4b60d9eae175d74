package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/UnknownOlympus/dispatch/internal/apperr"
	"github.com/UnknownOlympus/dispatch/internal/models"
	"github.com/jackc/pgx/v5"
)

// CreateAgency inserts a new agency and returns it with its generated ID.
func (r *Repository) CreateAgency(ctx context.Context, agency models.Agency) (models.Agency, error) {
	err := r.db.QueryRow(ctx, InsertAgencySQL, agency.Name, agency.Address, agency.Phone, agency.IsActive).
		Scan(&agency.ID)
	if err != nil {
		return models.Agency{}, fmt.Errorf("failed to insert agency: %w", classifyWriteError(err))
	}

	return agency, nil
}

// GetAgency retrieves an agency by its ID.
// It returns an error wrapping apperr.ErrNotFound when no agency matches.
func (r *Repository) GetAgency(ctx context.Context, agencyID int) (models.Agency, error) {
	var agency models.Agency

	err := r.db.QueryRow(ctx, SelectAgencySQL, agencyID).Scan(
		&agency.ID, &agency.Name, &agency.Address, &agency.Phone, &agency.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Agency{}, fmt.Errorf("agency %d: %w", agencyID, apperr.ErrNotFound)
		}
		return models.Agency{}, fmt.Errorf("failed to get agency: %w", err)
	}

	return agency, nil
}
