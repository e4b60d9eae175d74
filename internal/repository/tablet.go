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

// GetTabletBySerial retrieves a tablet by its serial number.
func (r *Repository) GetTabletBySerial(ctx context.Context, serial string) (models.Tablet, error) {
	return r.tabletRow(ctx, "get", serial, SelectTabletBySerialSQL, serial)
}

// UpsertTablet creates the tablet with the given serial number or, when it already
// exists, reassigns it to the agency and reactivates it. Both paths are a single
// statement, so both are committed the same way.
func (r *Repository) UpsertTablet(ctx context.Context, serial string, agencyID int, syncAt time.Time) (
	models.Tablet, error,
) {
	tablet, err := scanTablet(r.db.QueryRow(ctx, UpsertTabletSQL, serial, agencyID, syncAt))
	if err != nil {
		return models.Tablet{}, fmt.Errorf("failed to upsert tablet %s: %w", serial, classifyWriteError(err))
	}

	return tablet, nil
}

// TouchTablet refreshes the last synchronisation time of a tablet and returns it.
func (r *Repository) TouchTablet(ctx context.Context, serial string, syncAt time.Time) (models.Tablet, error) {
	return r.tabletRow(ctx, "touch", serial, TouchTabletSQL, serial, syncAt)
}

// SetTabletActive switches the active flag of a tablet and returns it.
// The stored push token is left untouched.
func (r *Repository) SetTabletActive(ctx context.Context, serial string, active bool) (models.Tablet, error) {
	return r.tabletRow(ctx, "update", serial, SetTabletActiveSQL, serial, active)
}

// SetTabletToken stores the push token of a tablet. A nil token clears it.
func (r *Repository) SetTabletToken(ctx context.Context, tabletID int, token *string) error {
	cmdTag, err := r.db.Exec(ctx, SetTabletTokenSQL, tabletID, token)
	if err != nil {
		return fmt.Errorf("failed to set push token of tablet %d: %w", tabletID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("tablet %d: %w", tabletID, apperr.ErrNotFound)
	}

	return nil
}

// ListAgencyTokens returns the push tokens currently stored on the tablets of an agency.
func (r *Repository) ListAgencyTokens(ctx context.Context, agencyID int) ([]string, error) {
	rows, err := r.db.Query(ctx, SelectAgencyTokensSQL, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query agency tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err = rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan token row: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return tokens, nil
}

func (r *Repository) tabletRow(ctx context.Context, action, serial, query string, args ...any) (
	models.Tablet, error,
) {
	tablet, err := scanTablet(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Tablet{}, fmt.Errorf("tablet %s: %w", serial, apperr.ErrNotFound)
		}
		return models.Tablet{}, fmt.Errorf("failed to %s tablet %s: %w", action, serial, err)
	}

	return tablet, nil
}

func scanTablet(row pgx.Row) (models.Tablet, error) {
	var tablet models.Tablet

	err := row.Scan(
		&tablet.ID, &tablet.SerialNumber, &tablet.AgencyID, &tablet.IsActive, &tablet.LastSyncAt, &tablet.PushToken,
	)
	if err != nil {
		return models.Tablet{}, err
	}

	return tablet, nil
}
