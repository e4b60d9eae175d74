// Package api exposes the dispatch operations over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/UnknownOlympus/dispatch/internal/metrics"
	"github.com/UnknownOlympus/dispatch/internal/models"
	"github.com/UnknownOlympus/dispatch/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// OrderService runs the order lifecycle.
type OrderService interface {
	Submit(ctx context.Context, req orders.SubmitRequest) (models.Order, error)
	Update(ctx context.Context, orderID, actorID int, req orders.UpdateRequest) (models.Order, error)
	TransitionStatus(ctx context.Context, orderID int, status string) (models.Order, error)
	Detail(ctx context.Context, orderID int) (models.OrderDetail, error)
}

// DeviceService manages tablets and their push tokens.
type DeviceService interface {
	RegisterToken(ctx context.Context, serial, token string) error
	UnregisterToken(ctx context.Context, serial, token string) error
	Configure(ctx context.Context, agencyID int, serial string) (models.Tablet, error)
	Check(ctx context.Context, serial string) (models.TabletStatus, error)
	Deactivate(ctx context.Context, serial string) (models.Tablet, error)
}

// TopicService restores agency topics at the push provider.
type TopicService interface {
	Resync(ctx context.Context, agencyID int) (models.TopicResult, error)
}

// ReferenceStore reads and writes agencies, clients and report rows.
type ReferenceStore interface {
	CreateAgency(ctx context.Context, agency models.Agency) (models.Agency, error)
	GetAgency(ctx context.Context, agencyID int) (models.Agency, error)
	CreateClient(ctx context.Context, client models.Client) (models.Client, error)
	GetClientByPhone(ctx context.Context, phone string) (models.Client, error)
	ListAgencyOrders(ctx context.Context, agencyID int, from, to time.Time) ([]models.AgencyOrderRow, error)
}

// Deps are the services behind the API.
type Deps struct {
	Log       *slog.Logger
	Metrics   *metrics.Metrics
	Auth      *Authenticator
	Orders    OrderService
	Devices   DeviceService
	Topics    TopicService
	Reference ReferenceStore
}

// Handler serves the dispatch API.
type Handler struct {
	log       *slog.Logger
	metrics   *metrics.Metrics
	orders    OrderService
	devices   DeviceService
	topics    TopicService
	reference ReferenceStore
	now       func() time.Time
}

// NewRouter builds the chi router of the API.
func NewRouter(deps Deps) http.Handler {
	h := &Handler{
		log:       deps.Log,
		metrics:   deps.Metrics,
		orders:    deps.Orders,
		devices:   deps.Devices,
		topics:    deps.Topics,
		reference: deps.Reference,
		now:       time.Now,
	}
	auth := deps.Auth

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)

	// tablets call these without a user session
	r.Get("/tablets/{serial}/check", h.checkTablet)
	r.Post("/tablets/{serial}/register_token", h.registerToken)
	r.Post("/tablets/{serial}/unregister_token", h.unregisterToken)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.With(auth.RequireRole(models.RoleAdmin)).Post("/agencies", h.createAgency)
		r.Get("/agencies/{id}", h.getAgency)
		r.With(auth.RequireRole(models.RoleAdmin)).Post("/agencies/{id}/topic/resync", h.resyncTopic)
		r.With(auth.RequireRole(models.RoleAdmin)).Get("/agencies/{id}/orders/report", h.ordersReport)

		r.Post("/clients", h.createClient)
		r.Get("/clients/{phone}", h.getClient)

		r.With(auth.RequireRole(models.RoleAdmin, models.RoleCallCenterAgent)).Post("/orders", h.submitOrder)
		r.Get("/orders/{id}", h.orderDetail)
		r.With(auth.RequireRole(models.RoleAgencyAgent)).Put("/orders/{id}", h.updateOrder)
		r.Patch("/orders/{id}/status", h.transitionStatus)

		r.With(auth.RequireRole(models.RoleAdmin)).Post("/tablets/configure", h.configureTablet)
		r.With(auth.RequireRole(models.RoleAdmin)).Post("/tablets/deactivate", h.deactivateTablet)
	})

	return r
}
