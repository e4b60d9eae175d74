package orders

import (
	"context"
	"fmt"
	"strconv"

	"github.com/UnknownOlympus/dispatch/internal/models"
)

// Notification types carried in the "type" data field.
const (
	TypeNewOrder      = "new_order"
	TypeStatusChanged = "status_changed"
)

func (m *Manager) notifyNewOrder(ctx context.Context, order models.Order) {
	log := m.log.With("op", "orders.notifyNewOrder", "order_id", order.ID, "agency_id", order.AgencyID)

	client, err := m.store.GetClient(ctx, order.ClientID)
	if err != nil {
		log.WarnContext(ctx, "Skipping new order notification: client not loaded", "error", err)
		return
	}

	total := m.FormatAmount(order.Total)
	result := m.notifier.NotifyAgency(ctx, order.AgencyID,
		"New order",
		fmt.Sprintf("Order #%d - %s - %s", order.ID, client.FullName(), total),
		map[string]string{
			"type":         TypeNewOrder,
			"order_id":     strconv.Itoa(order.ID),
			"agency_id":    strconv.Itoa(order.AgencyID),
			"client_name":  client.FullName(),
			"client_phone": client.Phone,
			"total":        total,
		},
	)
	if !result.Success {
		log.ErrorContext(ctx, "New order notification failed", "error", result.Error)
	}
}

func (m *Manager) notifyStatusChanged(ctx context.Context, order models.Order) {
	result := m.notifier.NotifyAgency(ctx, order.AgencyID,
		"Order update",
		fmt.Sprintf("Order #%d is now %s", order.ID, order.Status),
		map[string]string{
			"type":      TypeStatusChanged,
			"order_id":  strconv.Itoa(order.ID),
			"agency_id": strconv.Itoa(order.AgencyID),
			"status":    string(order.Status),
		},
	)
	if !result.Success {
		m.log.WarnContext(ctx, "Status notification failed",
			"op", "orders.notifyStatusChanged", "order_id", order.ID, "agency_id", order.AgencyID, "error", result.Error)
	}
}
