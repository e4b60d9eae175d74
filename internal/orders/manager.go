// Package orders implements the order lifecycle: submission, partial updates,
// status transitions and the detail view, with agency notifications after commit.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/UnknownOlympus/dispatch/internal/apperr"
	"github.com/UnknownOlympus/dispatch/internal/metrics"
	"github.com/UnknownOlympus/dispatch/internal/models"
	"github.com/UnknownOlympus/dispatch/internal/push"
)

// DefaultCurrency is appended to formatted amounts when none is configured.
const DefaultCurrency = "GNF"

const (
	unknownClient   = "Unknown client"
	unknownReceiver = "Unknown"
)

// Store is the persistence used by the Manager.
type Store interface {
	CreateOrder(ctx context.Context, order models.Order, lines []models.OrderLine) (models.Order, error)
	GetOrder(ctx context.Context, orderID int) (models.Order, error)
	GetOrderLines(ctx context.Context, orderID int) ([]models.OrderLine, error)
	UpdateOrder(ctx context.Context, orderID int, mutate func(order *models.Order) error) (models.Order, error)
	GetClient(ctx context.Context, clientID int) (models.Client, error)
	GetUser(ctx context.Context, userID int) (models.User, error)
}

// Notifier delivers notifications to the tablets of an agency.
type Notifier interface {
	NotifyAgency(ctx context.Context, agencyID int, title, body string, data map[string]string) push.Result
}

// LineRequest is one article of a submitted order.
type LineRequest struct {
	ArticleName string `json:"article_name"`
	ArticleRef  string `json:"article_ref"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
}

// SubmitRequest carries a new order from the call center.
type SubmitRequest struct {
	ClientID   int           `json:"client_id"`
	AgencyID   int           `json:"agency_id"`
	CreatorID  int           `json:"creator_id"`
	ReceiverID int           `json:"receiver_id"`
	Notes      string        `json:"notes"`
	Lines      []LineRequest `json:"lines"`
}

// UpdateRequest carries a partial update. Nil fields are left unchanged.
type UpdateRequest struct {
	Status *string `json:"status,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

// Manager runs the order lifecycle.
type Manager struct {
	log      *slog.Logger
	store    Store
	notifier Notifier
	metrics  *metrics.Metrics
	currency string
	now      func() time.Time
}

// NewManager creates a Manager. An empty currency falls back to DefaultCurrency.
func NewManager(log *slog.Logger, store Store, notifier Notifier, m *metrics.Metrics, currency string) *Manager {
	if currency == "" {
		currency = DefaultCurrency
	}

	return &Manager{
		log:      log,
		store:    store,
		notifier: notifier,
		metrics:  m,
		currency: currency,
		now:      time.Now,
	}
}

// Submit validates and persists a new order with status "sent", then notifies
// the agency. A failed notification never fails the submission.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (models.Order, error) {
	const op = "orders.Submit"
	log := m.log.With("op", op, "agency_id", req.AgencyID, "client_id", req.ClientID)

	if err := validateSubmit(req); err != nil {
		return models.Order{}, err
	}

	lines := make([]models.OrderLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		orderLine := models.OrderLine{
			ArticleName: strings.TrimSpace(line.ArticleName),
			ArticleRef:  strings.TrimSpace(line.ArticleRef),
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		}
		orderLine.SubTotal = orderLine.ComputeSubTotal()
		lines = append(lines, orderLine)
	}

	order := models.Order{
		ClientID:   req.ClientID,
		AgencyID:   req.AgencyID,
		CreatorID:  req.CreatorID,
		ReceiverID: req.ReceiverID,
		CreatedAt:  m.now(),
		Status:     models.StatusSent,
		Total:      models.OrderTotal(lines),
		Notes:      req.Notes,
	}

	start := time.Now()
	saved, err := m.store.CreateOrder(ctx, order, lines)
	m.metrics.DBQueryDuration.WithLabelValues("create_order").Observe(time.Since(start).Seconds())
	if err != nil {
		log.ErrorContext(ctx, "Failed to create order", "error", err)
		return models.Order{}, fmt.Errorf("failed to submit order: %w", err)
	}

	m.metrics.OrdersSubmitted.Inc()
	m.metrics.StatusTransitions.WithLabelValues(string(saved.Status)).Inc()
	log.InfoContext(ctx, "Order submitted", "order_id", saved.ID, "status", saved.Status, "total", saved.Total)

	m.notifyNewOrder(context.WithoutCancel(ctx), saved)

	return saved, nil
}

// Update applies the supplied fields and makes actorID the receiver of the order.
// It neither sets the reception timestamp nor notifies the agency.
func (m *Manager) Update(ctx context.Context, orderID, actorID int, req UpdateRequest) (models.Order, error) {
	const op = "orders.Update"

	var status models.OrderStatus
	if req.Status != nil {
		parsed, err := models.ParseOrderStatus(*req.Status)
		if err != nil {
			return models.Order{}, fmt.Errorf("%w: %w", apperr.ErrValidation, err)
		}
		status = parsed
	}

	start := time.Now()
	updated, err := m.store.UpdateOrder(ctx, orderID, func(order *models.Order) error {
		order.ReceiverID = actorID
		if req.Status != nil {
			order.Status = status
		}
		if req.Notes != nil {
			order.Notes = *req.Notes
		}
		return nil
	})
	m.metrics.DBQueryDuration.WithLabelValues("update_order").Observe(time.Since(start).Seconds())
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to update order %d: %w", orderID, err)
	}

	if req.Status != nil {
		m.metrics.StatusTransitions.WithLabelValues(string(updated.Status)).Inc()
	}
	m.log.InfoContext(ctx, "Order updated",
		"op", op, "order_id", updated.ID, "agency_id", updated.AgencyID, "status", updated.Status, "receiver_id", actorID)

	return updated, nil
}

// TransitionStatus moves an order to status and notifies the agency. The first
// transition to "received" records the reception time.
func (m *Manager) TransitionStatus(ctx context.Context, orderID int, rawStatus string) (models.Order, error) {
	const op = "orders.TransitionStatus"

	status, err := models.ParseOrderStatus(rawStatus)
	if err != nil {
		return models.Order{}, fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}

	start := time.Now()
	updated, err := m.store.UpdateOrder(ctx, orderID, func(order *models.Order) error {
		order.Status = status
		if status == models.StatusReceived && order.ReceivedAt == nil {
			receivedAt := m.now()
			order.ReceivedAt = &receivedAt
		}
		return nil
	})
	m.metrics.DBQueryDuration.WithLabelValues("update_order").Observe(time.Since(start).Seconds())
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to change status of order %d: %w", orderID, err)
	}

	m.metrics.StatusTransitions.WithLabelValues(string(updated.Status)).Inc()
	m.log.InfoContext(ctx, "Order status changed",
		"op", op, "order_id", updated.ID, "agency_id", updated.AgencyID, "status", updated.Status)

	m.notifyStatusChanged(context.WithoutCancel(ctx), updated)

	return updated, nil
}

// Detail returns the order with its lines and the display fields of its
// client and receiver. Missing client or receiver are shown as placeholders.
func (m *Manager) Detail(ctx context.Context, orderID int) (models.OrderDetail, error) {
	order, err := m.store.GetOrder(ctx, orderID)
	if err != nil {
		return models.OrderDetail{}, err
	}

	order.Lines, err = m.store.GetOrderLines(ctx, orderID)
	if err != nil {
		return models.OrderDetail{}, err
	}

	detail := models.OrderDetail{Order: order, ClientName: unknownClient, ReceiverName: unknownReceiver}

	client, err := m.store.GetClient(ctx, order.ClientID)
	switch {
	case err == nil:
		detail.ClientName = client.FullName()
		detail.ClientPhone = client.Phone
		detail.ClientAddress = client.Address
	case !errors.Is(err, apperr.ErrNotFound):
		return models.OrderDetail{}, err
	}

	receiver, err := m.store.GetUser(ctx, order.ReceiverID)
	switch {
	case err == nil:
		detail.ReceiverName = receiver.FullName()
	case !errors.Is(err, apperr.ErrNotFound):
		return models.OrderDetail{}, err
	}

	return detail, nil
}

// FormatAmount renders an amount in minor units with the configured currency.
func (m *Manager) FormatAmount(amount int64) string {
	return fmt.Sprintf("%d %s", amount, m.currency)
}

func validateSubmit(req SubmitRequest) error {
	var problems []string

	if req.ClientID <= 0 {
		problems = append(problems, "client_id must be positive")
	}
	if req.AgencyID <= 0 {
		problems = append(problems, "agency_id must be positive")
	}
	if req.CreatorID <= 0 {
		problems = append(problems, "creator_id must be positive")
	}
	if req.ReceiverID <= 0 {
		problems = append(problems, "receiver_id must be positive")
	}
	if len(req.Lines) == 0 {
		problems = append(problems, "at least one line is required")
	}

	var total int64
	for i, line := range req.Lines {
		if strings.TrimSpace(line.ArticleName) == "" {
			problems = append(problems, fmt.Sprintf("line %d: article_name is required", i))
		}
		if line.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("line %d: quantity must be positive", i))
		}
		if line.UnitPrice < 0 {
			problems = append(problems, fmt.Sprintf("line %d: unit_price must not be negative", i))
		}
		if line.Quantity <= 0 || line.UnitPrice <= 0 {
			continue
		}

		if int64(line.Quantity) > math.MaxInt64/line.UnitPrice {
			problems = append(problems, fmt.Sprintf("line %d: sub-total is too large", i))
			continue
		}
		subTotal := int64(line.Quantity) * line.UnitPrice
		if total > math.MaxInt64-subTotal {
			problems = append(problems, "order total is too large")
			break
		}
		total += subTotal
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", apperr.ErrValidation, strings.Join(problems, "; "))
	}

	return nil
}
