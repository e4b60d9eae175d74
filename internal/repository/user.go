package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/UnknownOlympus/dispatch/internal/apperr"
	"github.com/UnknownOlympus/dispatch/internal/models"
	"github.com/jackc/pgx/v5"
)

// GetUser retrieves a user's details from the database using their ID.
// It returns an error wrapping apperr.ErrNotFound when the user does not exist.
func (r *Repository) GetUser(ctx context.Context, userID int) (models.User, error) {
	var (
		user models.User
		role string
	)

	err := r.db.QueryRow(ctx, SelectUserSQL, userID).Scan(
		&user.ID, &user.AgencyID, &user.FirstName, &user.LastName, &user.Email, &user.Phone,
		&role, &user.LastLoginAt, &user.LastLogoutAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, fmt.Errorf("user %d: %w", userID, apperr.ErrNotFound)
		}
		return models.User{}, fmt.Errorf("failed to get user data: %w", err)
	}

	user.Role = models.Role(role)

	return user, nil
}
