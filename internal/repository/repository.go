package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UnknownOlympus/dispatch/internal/apperr"
	"github.com/UnknownOlympus/dispatch/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes mapped onto validation errors.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

type Repository struct {
	db Database
}

// ReferenceManager defines the operations on agencies, clients and users.
type ReferenceManager interface {
	CreateAgency(ctx context.Context, agency models.Agency) (models.Agency, error)
	GetAgency(ctx context.Context, agencyID int) (models.Agency, error)
	CreateClient(ctx context.Context, client models.Client) (models.Client, error)
	GetClient(ctx context.Context, clientID int) (models.Client, error)
	GetClientByPhone(ctx context.Context, phone string) (models.Client, error)
	GetUser(ctx context.Context, userID int) (models.User, error)
}

// OrderManager defines the persistence operations of the order lifecycle.
type OrderManager interface {
	CreateOrder(ctx context.Context, order models.Order, lines []models.OrderLine) (models.Order, error)
	GetOrder(ctx context.Context, orderID int) (models.Order, error)
	GetOrderLines(ctx context.Context, orderID int) ([]models.OrderLine, error)
	UpdateOrder(ctx context.Context, orderID int, mutate func(*models.Order) error) (models.Order, error)
	ListAgencyOrders(ctx context.Context, agencyID int, from, to time.Time) ([]models.AgencyOrderRow, error)
}

// TabletManager defines the persistence operations on tablets and their push tokens.
type TabletManager interface {
	GetTabletBySerial(ctx context.Context, serial string) (models.Tablet, error)
	UpsertTablet(ctx context.Context, serial string, agencyID int, syncAt time.Time) (models.Tablet, error)
	TouchTablet(ctx context.Context, serial string, syncAt time.Time) (models.Tablet, error)
	SetTabletActive(ctx context.Context, serial string, active bool) (models.Tablet, error)
	SetTabletToken(ctx context.Context, tabletID int, token *string) error
	ListAgencyTokens(ctx context.Context, agencyID int) ([]string, error)
}

// NewRepository creates a new instance of Repository with the provided Database.
// It returns a pointer to the newly created Repository.
func NewRepository(db Database) *Repository {
	return &Repository{db: db}
}

// classifyWriteError turns constraint violations into validation errors and
// leaves every other error untouched.
func classifyWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: referenced entity does not exist (%s)", apperr.ErrValidation, pgErr.ConstraintName)
	case pgUniqueViolation:
		return fmt.Errorf("%w: duplicate value violates %s", apperr.ErrValidation, pgErr.ConstraintName)
	default:
		return err
	}
}
