package models_test

import (
	"testing"

	"github.com/UnknownOlympus/dispatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderTotal(t *testing.T) {
	t.Parallel()

	lines := []models.OrderLine{
		{ArticleName: "Chicken", Quantity: 2, UnitPrice: 5000},
		{ArticleName: "Fries", Quantity: 1, UnitPrice: 2000},
	}

	assert.Equal(t, int64(12000), models.OrderTotal(lines))
	assert.Equal(t, int64(10000), lines[0].ComputeSubTotal())
	assert.Zero(t, models.OrderTotal(nil))
}

func TestParseOrderStatus(t *testing.T) {
	t.Parallel()

	status, err := models.ParseOrderStatus("received")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReceived, status)

	_, err = models.ParseOrderStatus("reçue")
	require.Error(t, err)
	require.ErrorContains(t, err, "unknown order status")
}

func TestFullName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Awa Camara", models.Client{FirstName: "Awa", LastName: "Camara"}.FullName())
	assert.Equal(t, "Diallo", models.User{LastName: "Diallo"}.FullName())
}
