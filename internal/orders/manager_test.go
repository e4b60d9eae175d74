package orders

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/UnknownOlympus/dispatch/internal/apperr"
	"github.com/UnknownOlympus/dispatch/internal/metrics"
	"github.com/UnknownOlympus/dispatch/internal/models"
	"github.com/UnknownOlympus/dispatch/internal/push"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	orders    map[int]models.Order
	lines     map[int][]models.OrderLine
	clients   map[int]models.Client
	users     map[int]models.User
	nextID    int
	createErr error
	clientErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:  make(map[int]models.Order),
		lines:   make(map[int][]models.OrderLine),
		clients: map[int]models.Client{1: {ID: 1, FirstName: "Awa", LastName: "Camara", Phone: "620000003", Address: "Dixinn"}},
		users:   map[int]models.User{4: {ID: 4, FirstName: "Mamadou", LastName: "Diallo"}},
	}
}

func (s *fakeStore) CreateOrder(_ context.Context, order models.Order, lines []models.OrderLine) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return models.Order{}, s.createErr
	}
	s.nextID++
	order.ID = s.nextID
	for i := range lines {
		lines[i].ID = i + 1
		lines[i].OrderID = order.ID
	}
	order.Lines = lines
	s.orders[order.ID] = order
	s.lines[order.ID] = lines
	return order, nil
}

func (s *fakeStore) GetOrder(_ context.Context, orderID int) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return models.Order{}, fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
	}
	return order, nil
}

func (s *fakeStore) GetOrderLines(_ context.Context, orderID int) ([]models.OrderLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines[orderID], nil
}

func (s *fakeStore) UpdateOrder(
	_ context.Context, orderID int, mutate func(order *models.Order) error,
) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return models.Order{}, fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
	}
	if err := mutate(&order); err != nil {
		return models.Order{}, err
	}
	s.orders[orderID] = order
	return order, nil
}

func (s *fakeStore) GetClient(_ context.Context, clientID int) (models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clientErr != nil {
		return models.Client{}, s.clientErr
	}
	client, ok := s.clients[clientID]
	if !ok {
		return models.Client{}, fmt.Errorf("client %d: %w", clientID, apperr.ErrNotFound)
	}
	return client, nil
}

func (s *fakeStore) GetUser(_ context.Context, userID int) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return models.User{}, fmt.Errorf("user %d: %w", userID, apperr.ErrNotFound)
	}
	return user, nil
}

type fixture struct {
	manager  *Manager
	store    *fakeStore
	provider *push.MemoryProvider
	metrics  *metrics.Metrics
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewMetrics(prometheus.NewRegistry())
	provider := push.NewMemoryProvider()
	dispatcher := push.NewDispatcher(logger, provider, m, time.Second)
	store := newFakeStore()

	f := &fixture{
		manager:  NewManager(logger, store, dispatcher, m, ""),
		store:    store,
		provider: provider,
		metrics:  m,
		clock:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.manager.now = func() time.Time { return f.clock }

	return f
}

func validRequest() SubmitRequest {
	return SubmitRequest{
		ClientID: 1, AgencyID: 3, CreatorID: 2, ReceiverID: 4, Notes: "no onions",
		Lines: []LineRequest{
			{ArticleName: "Chicken", ArticleRef: "CHK", Quantity: 2, UnitPrice: 5000},
			{ArticleName: "Fries", ArticleRef: "FRI", Quantity: 1, UnitPrice: 2000},
		},
	}
}

func TestManager_Submit(t *testing.T) {
	t.Parallel()

	t.Run("success - total computed and agency notified", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		order, err := f.manager.Submit(t.Context(), validRequest())

		require.NoError(t, err)
		assert.Equal(t, models.StatusSent, order.Status)
		assert.Equal(t, int64(12000), order.Total)
		require.Len(t, order.Lines, 2)
		assert.Equal(t, int64(10000), order.Lines[0].SubTotal)
		assert.Equal(t, f.clock, order.CreatedAt)

		sent := f.provider.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "agency_3", sent[0].Topic)
		assert.Equal(t, map[string]string{
			"type":         "new_order",
			"order_id":     "1",
			"agency_id":    "3",
			"client_name":  "Awa Camara",
			"client_phone": "620000003",
			"total":        "12000 GNF",
		}, sent[0].Data)
		assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.OrdersSubmitted), 0)
	})

	t.Run("success - dispatcher failure keeps the order", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.provider.FailSend(assert.AnError)

		order, err := f.manager.Submit(t.Context(), validRequest())

		require.NoError(t, err)
		assert.Equal(t, models.StatusSent, order.Status)
		assert.Equal(t, int64(12000), order.Total)

		stored, err := f.store.GetOrder(t.Context(), order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusSent, stored.Status)
		assert.Equal(t, int64(12000), stored.Total)
		assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.Notifications.WithLabelValues("new_order", "failure")), 0)
	})

	t.Run("success - client lookup failure skips notification", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.store.clientErr = assert.AnError

		_, err := f.manager.Submit(t.Context(), validRequest())

		require.NoError(t, err)
		assert.Empty(t, f.provider.Sent())
	})

	t.Run("success - cancelled request still notifies", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		order, err := f.manager.Submit(ctx, validRequest())

		require.NoError(t, err)
		require.Len(t, f.provider.Sent(), 1)
		assert.Equal(t, "1", f.provider.Sent()[0].Data["order_id"])
		assert.Equal(t, 1, order.ID)
	})

	t.Run("failure - persistence error", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.store.createErr = fmt.Errorf("%w: commit", apperr.ErrPersistence)

		_, err := f.manager.Submit(t.Context(), validRequest())

		require.ErrorIs(t, err, apperr.ErrPersistence)
		assert.Empty(t, f.provider.Sent())
	})

	invalid := map[string]func(req *SubmitRequest){
		"no lines":         func(req *SubmitRequest) { req.Lines = nil },
		"zero quantity":    func(req *SubmitRequest) { req.Lines[0].Quantity = 0 },
		"negative price":   func(req *SubmitRequest) { req.Lines[1].UnitPrice = -1 },
		"empty article":    func(req *SubmitRequest) { req.Lines[0].ArticleName = "  " },
		"missing client":   func(req *SubmitRequest) { req.ClientID = 0 },
		"missing agency":   func(req *SubmitRequest) { req.AgencyID = -3 },
		"missing creator":  func(req *SubmitRequest) { req.CreatorID = 0 },
		"missing receiver": func(req *SubmitRequest) { req.ReceiverID = 0 },
		"sub-total overflow": func(req *SubmitRequest) {
			req.Lines[0].UnitPrice = math.MaxInt64
		},
		"total overflow": func(req *SubmitRequest) {
			req.Lines[0].Quantity, req.Lines[0].UnitPrice = 1, math.MaxInt64
		},
	}
	for name, mutate := range invalid {
		t.Run("validation - "+name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			req := validRequest()
			mutate(&req)

			_, err := f.manager.Submit(t.Context(), req)

			require.ErrorIs(t, err, apperr.ErrValidation)
			assert.Empty(t, f.store.orders)
		})
	}
}

func TestManager_TransitionStatus(t *testing.T) {
	t.Parallel()

	t.Run("success - received sets timestamp once", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		order, err := f.manager.Submit(t.Context(), validRequest())
		require.NoError(t, err)

		first := f.clock.Add(time.Minute)
		f.clock = first
		updated, err := f.manager.TransitionStatus(t.Context(), order.ID, "received")
		require.NoError(t, err)
		assert.Equal(t, models.StatusReceived, updated.Status)
		require.NotNil(t, updated.ReceivedAt)
		assert.Equal(t, first, *updated.ReceivedAt)

		f.clock = first.Add(time.Hour)
		_, err = f.manager.TransitionStatus(t.Context(), order.ID, "in_progress")
		require.NoError(t, err)
		updated, err = f.manager.TransitionStatus(t.Context(), order.ID, "received")
		require.NoError(t, err)
		assert.Equal(t, first, *updated.ReceivedAt)

		sent := f.provider.Sent()
		require.Len(t, sent, 4)
		assert.Equal(t, map[string]string{
			"type": "status_changed", "order_id": "1", "agency_id": "3", "status": "received",
		}, sent[1].Data)
		assert.InDelta(t, 2, testutil.ToFloat64(f.metrics.StatusTransitions.WithLabelValues("received")), 0)
	})

	t.Run("success - dispatch failure is swallowed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		order, err := f.manager.Submit(t.Context(), validRequest())
		require.NoError(t, err)
		f.provider.FailSend(assert.AnError)

		updated, err := f.manager.TransitionStatus(t.Context(), order.ID, "ready")

		require.NoError(t, err)
		assert.Equal(t, models.StatusReady, updated.Status)
		assert.Nil(t, updated.ReceivedAt)
	})

	t.Run("failure - unknown status", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.manager.TransitionStatus(t.Context(), 1, "lost")

		require.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("failure - order not found", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.manager.TransitionStatus(t.Context(), 99, "received")

		require.ErrorIs(t, err, apperr.ErrNotFound)
		assert.Empty(t, f.provider.Sent())
	})
}

func TestManager_Update(t *testing.T) {
	t.Parallel()

	t.Run("success - partial update sets receiver only", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		order, err := f.manager.Submit(t.Context(), validRequest())
		require.NoError(t, err)

		updated, err := f.manager.Update(t.Context(), order.ID, 7, UpdateRequest{})

		require.NoError(t, err)
		assert.Equal(t, 7, updated.ReceiverID)
		assert.Equal(t, models.StatusSent, updated.Status)
		assert.Equal(t, "no onions", updated.Notes)
		assert.Len(t, f.provider.Sent(), 1, "update must not notify")
	})

	t.Run("success - status and notes without reception timestamp", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		order, err := f.manager.Submit(t.Context(), validRequest())
		require.NoError(t, err)
		status, notes := "received", "call back"

		updated, err := f.manager.Update(t.Context(), order.ID, 7, UpdateRequest{Status: &status, Notes: &notes})

		require.NoError(t, err)
		assert.Equal(t, models.StatusReceived, updated.Status)
		assert.Equal(t, "call back", updated.Notes)
		assert.Nil(t, updated.ReceivedAt)
	})

	t.Run("failure - invalid status", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		status := "archived"

		_, err := f.manager.Update(t.Context(), 1, 7, UpdateRequest{Status: &status})

		require.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("failure - not found", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.manager.Update(t.Context(), 99, 7, UpdateRequest{})

		require.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestManager_Detail(t *testing.T) {
	t.Parallel()

	t.Run("success - composite", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		order, err := f.manager.Submit(t.Context(), validRequest())
		require.NoError(t, err)

		detail, err := f.manager.Detail(t.Context(), order.ID)

		require.NoError(t, err)
		assert.Equal(t, "Awa Camara", detail.ClientName)
		assert.Equal(t, "620000003", detail.ClientPhone)
		assert.Equal(t, "Dixinn", detail.ClientAddress)
		assert.Equal(t, "Mamadou Diallo", detail.ReceiverName)
		assert.Len(t, detail.Lines, 2)
	})

	t.Run("success - unknown client and receiver", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		req := validRequest()
		req.ReceiverID = 55
		order, err := f.manager.Submit(t.Context(), req)
		require.NoError(t, err)
		f.store.mu.Lock()
		delete(f.store.clients, 1)
		f.store.mu.Unlock()

		detail, err := f.manager.Detail(t.Context(), order.ID)

		require.NoError(t, err)
		assert.Equal(t, "Unknown client", detail.ClientName)
		assert.Empty(t, detail.ClientPhone)
		assert.Empty(t, detail.ClientAddress)
		assert.Equal(t, "Unknown", detail.ReceiverName)
	})

	t.Run("failure - not found", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.manager.Detail(t.Context(), 99)

		require.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestManager_FormatAmount(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewMetrics(prometheus.NewRegistry())

	assert.Equal(t, "4500 GNF", NewManager(logger, newFakeStore(), nil, m, "").FormatAmount(4500))
	assert.Equal(t, "4500 XOF", NewManager(logger, newFakeStore(), nil, m, "XOF").FormatAmount(4500))
}
