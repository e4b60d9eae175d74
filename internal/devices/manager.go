// Package devices manages agency tablets and their push token registration.
package devices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/UnknownOlympus/dispatch/internal/apperr"
	"github.com/UnknownOlympus/dispatch/internal/models"
)

// Store is the tablet persistence used by the Manager.
type Store interface {
	GetAgency(ctx context.Context, agencyID int) (models.Agency, error)
	GetTabletBySerial(ctx context.Context, serial string) (models.Tablet, error)
	UpsertTablet(ctx context.Context, serial string, agencyID int, syncAt time.Time) (models.Tablet, error)
	TouchTablet(ctx context.Context, serial string, syncAt time.Time) (models.Tablet, error)
	SetTabletActive(ctx context.Context, serial string, active bool) (models.Tablet, error)
}

// Topics joins and leaves agency topics on behalf of a tablet.
type Topics interface {
	Join(ctx context.Context, tablet models.Tablet, token string) error
	Leave(ctx context.Context, tablet models.Tablet, token string) error
	Move(ctx context.Context, tablet models.Tablet, fromAgencyID int) error
}

// Manager handles tablet configuration and push token registration.
type Manager struct {
	log    *slog.Logger
	store  Store
	topics Topics
	now    func() time.Time
}

// NewManager creates a Manager.
func NewManager(log *slog.Logger, store Store, topics Topics) *Manager {
	return &Manager{log: log, store: store, topics: topics, now: time.Now}
}

// RegisterToken subscribes token to the agency topic of an active tablet and
// stores it as the tablet's token.
func (m *Manager) RegisterToken(ctx context.Context, serial, token string) error {
	const op = "devices.RegisterToken"

	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: push token is required", apperr.ErrValidation)
	}

	tablet, err := m.store.GetTabletBySerial(ctx, serial)
	if err != nil {
		return err
	}

	if !tablet.IsActive {
		return fmt.Errorf("%w: tablet %s is deactivated", apperr.ErrInvalidState, serial)
	}

	if err = m.topics.Join(ctx, tablet, token); err != nil {
		m.log.WarnContext(ctx, "Failed to register push token", "op", op, "serial", serial, "error", err)
		return err
	}

	m.log.InfoContext(ctx, "Push token registered", "op", op, "serial", serial, "agency_id", tablet.AgencyID)
	return nil
}

// UnregisterToken removes token from the agency topic and clears the tablet's token.
func (m *Manager) UnregisterToken(ctx context.Context, serial, token string) error {
	const op = "devices.UnregisterToken"

	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: push token is required", apperr.ErrValidation)
	}

	tablet, err := m.store.GetTabletBySerial(ctx, serial)
	if err != nil {
		return err
	}

	if err = m.topics.Leave(ctx, tablet, token); err != nil {
		m.log.WarnContext(ctx, "Failed to unregister push token", "op", op, "serial", serial, "error", err)
		return err
	}

	m.log.InfoContext(ctx, "Push token unregistered", "op", op, "serial", serial, "agency_id", tablet.AgencyID)
	return nil
}

// Configure assigns a tablet to an agency, creating it when the serial is new.
// The tablet is active afterwards. A tablet moved to another agency takes its
// push token along to the new agency topic.
func (m *Manager) Configure(ctx context.Context, agencyID int, serial string) (models.Tablet, error) {
	const op = "devices.Configure"

	serial = strings.TrimSpace(serial)
	if serial == "" {
		return models.Tablet{}, fmt.Errorf("%w: serial number is required", apperr.ErrValidation)
	}

	if _, err := m.store.GetAgency(ctx, agencyID); err != nil {
		return models.Tablet{}, err
	}

	previous, err := m.store.GetTabletBySerial(ctx, serial)
	known := err == nil
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return models.Tablet{}, err
	}

	tablet, err := m.store.UpsertTablet(ctx, serial, agencyID, m.now())
	if err != nil {
		return models.Tablet{}, err
	}

	// the assignment is committed; a failed move is repaired by Resync or a new registration
	if known && previous.AgencyID != agencyID {
		if err = m.topics.Move(ctx, tablet, previous.AgencyID); err != nil {
			m.log.WarnContext(ctx, "Failed to move push token to the new agency topic",
				"op", op, "serial", serial, "from_agency_id", previous.AgencyID, "agency_id", agencyID, "error", err)
		}
	}

	m.log.InfoContext(ctx, "Tablet configured",
		"op", op, "serial", serial, "tablet_id", tablet.ID, "agency_id", agencyID)
	return tablet, nil
}

// Check records a tablet check-in and returns its status.
func (m *Manager) Check(ctx context.Context, serial string) (models.TabletStatus, error) {
	tablet, err := m.store.TouchTablet(ctx, serial, m.now())
	if err != nil {
		return models.TabletStatus{}, err
	}

	return models.TabletStatus{
		IsActive:   tablet.IsActive,
		AgencyID:   tablet.AgencyID,
		LastSyncAt: tablet.LastSyncAt,
	}, nil
}

// Deactivate marks a tablet inactive. Its stored token is kept.
func (m *Manager) Deactivate(ctx context.Context, serial string) (models.Tablet, error) {
	tablet, err := m.store.SetTabletActive(ctx, serial, false)
	if err != nil {
		return models.Tablet{}, err
	}

	m.log.InfoContext(ctx, "Tablet deactivated", "op", "devices.Deactivate", "serial", serial)
	return tablet, nil
}
