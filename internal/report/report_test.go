package report_test

import (
	"testing"
	"time"

	"github.com/UnknownOlympus/dispatch/internal/models"
	"github.com/UnknownOlympus/dispatch/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerateOrdersReport(t *testing.T) {
	t.Parallel()
	created := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	received := created.Add(5 * time.Minute)

	testRows := []models.AgencyOrderRow{
		{OrderID: 1, Status: models.StatusDelivered, CreatedAt: created, ReceivedAt: &received, ClientName: "Awa Camara", Total: 4500},
		{OrderID: 2, Status: models.StatusSent, CreatedAt: created, ClientName: "Ibrahima Sow", Total: 12000},
		{OrderID: 3, Status: models.StatusDelivered, CreatedAt: created, ClientName: "Fanta Bah", Notes: "gate B"},
		{OrderID: 4, Status: models.StatusInProgress, CreatedAt: created, ClientName: "Moussa Keita"},
	}

	t.Run("successful report generation", func(t *testing.T) {
		t.Parallel()
		buffer, err := report.GenerateOrdersReport(testRows)

		require.NoError(t, err)
		require.NotNil(t, buffer)

		f, err := excelize.OpenReader(buffer)
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, []string{"sent", "in_progress", "delivered"}, f.GetSheetList())

		headerVal, err := f.GetCellValue("delivered", "A1")
		require.NoError(t, err)
		assert.Equal(t, "Order ID", headerVal)

		idVal, err := f.GetCellValue("delivered", "A2")
		require.NoError(t, err)
		assert.Equal(t, "1", idVal)

		receivedVal, err := f.GetCellValue("delivered", "C2")
		require.NoError(t, err)
		assert.Equal(t, "01.06.2025 09:35", receivedVal)

		notesVal, err := f.GetCellValue("delivered", "G3")
		require.NoError(t, err)
		assert.Equal(t, "gate B", notesVal)

		totalVal, err := f.GetCellValue("sent", "F2")
		require.NoError(t, err)
		assert.Equal(t, "12000", totalVal)
	})

	t.Run("unknown statuses land on the other sheet", func(t *testing.T) {
		t.Parallel()
		buffer, err := report.GenerateOrdersReport([]models.AgencyOrderRow{
			{OrderID: 5, Status: "archived", CreatedAt: created, ClientName: "Awa Camara"},
			{OrderID: 6, Status: models.StatusSent, CreatedAt: created, ClientName: "Fanta Bah"},
		})

		require.NoError(t, err)
		f, err := excelize.OpenReader(buffer)
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, []string{"sent", "other"}, f.GetSheetList())
		idVal, err := f.GetCellValue("other", "A2")
		require.NoError(t, err)
		assert.Equal(t, "5", idVal)
	})

	t.Run("only unknown statuses", func(t *testing.T) {
		t.Parallel()
		buffer, err := report.GenerateOrdersReport([]models.AgencyOrderRow{
			{OrderID: 7, Status: "archived", CreatedAt: created},
		})

		require.NoError(t, err)
		f, err := excelize.OpenReader(buffer)
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, []string{"other"}, f.GetSheetList())
	})

	t.Run("no orders found", func(t *testing.T) {
		t.Parallel()
		buffer, err := report.GenerateOrdersReport(nil)

		require.ErrorIs(t, err, report.ErrNoOrders)
		assert.Nil(t, buffer)
	})
}
