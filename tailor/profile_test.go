package tailor_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfajr/tailorbook/tailor"
)

func TestCustomer_ModelSelection(t *testing.T) {
	c := tailor.NewCustomer("Karim", "0799123456")

	c.SelectCollar("ملی")
	assert.Equal(t, "ملی", c.Models.Yakhun)
	c.SelectCollar("خامک")
	assert.Equal(t, "خامک", c.Models.Yakhun)
	c.SelectCollar("خامک")
	assert.Empty(t, c.Models.Yakhun)

	c.SelectSleeve("کفک")
	assert.Equal(t, "کفک", c.Models.Sleeve)

	c.ToggleSkirt("دامن گاوی")
	c.ToggleSkirt("دامن ترخیز")
	assert.Equal(t, []string{"دامن گاوی", "دامن ترخیز"}, c.Models.Skirt)
	c.ToggleSkirt("دامن گاوی")
	assert.Equal(t, []string{"دامن ترخیز"}, c.Models.Skirt)

	c.ToggleFeature("جیب رو")
	assert.Equal(t, []string{"جیب رو"}, c.Models.Features)

	c.SetDeliveryDay("جمعه")
	assert.Equal(t, "جمعه", c.DeliveryDay)
	c.SetDeliveryDay("جمعه")
	assert.Empty(t, c.DeliveryDay)
}

func TestCustomer_SetMeasurement(t *testing.T) {
	c := tailor.NewCustomer("Karim", "0799123456")

	require.NoError(t, c.SetMeasurement("قد", " 170 "))
	assert.Equal(t, tailor.Measurement("170"), c.Measurements["قد"])

	err := c.SetMeasurement("height", "170")
	assert.ErrorIs(t, err, tailor.ErrValidation)
}

func TestCustomer_PriceAndPayment(t *testing.T) {
	c := tailor.NewCustomer("Karim", "0799123456")

	require.NoError(t, c.SetPrice("1500"))
	assert.True(t, c.Price.Valid)
	assert.True(t, c.Price.Decimal.Equal(decimal.NewFromInt(1500)))

	assert.ErrorIs(t, c.SetPrice("a lot"), tailor.ErrValidation)

	require.NoError(t, c.SetPrice(""))
	assert.False(t, c.Price.Valid)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.TogglePayment(now)
	assert.True(t, c.PaymentReceived)
	require.NotNil(t, c.PaymentDate)
	assert.Equal(t, now, *c.PaymentDate)

	c.TogglePayment(now)
	assert.False(t, c.PaymentReceived)
	assert.Nil(t, c.PaymentDate)
}

func TestCustomer_Orders(t *testing.T) {
	c := tailor.NewCustomer("Karim", "0799123456")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	first := c.AddOrder(" Two shirts ", now)
	second := c.AddOrder("Waistcoat", now)
	assert.Equal(t, "Two shirts", first.Description)
	assert.Equal(t, tailor.OrderPending, first.Status)
	assert.NotEqual(t, first.ID, second.ID)

	assert.True(t, c.ToggleOrderStatus(first.ID))
	assert.Equal(t, tailor.OrderDone, c.Orders[0].Status)
	assert.True(t, c.ToggleOrderStatus(first.ID))
	assert.Equal(t, tailor.OrderPending, c.Orders[0].Status)

	assert.True(t, c.SetOrderDescription(second.ID, "Black waistcoat"))
	assert.Equal(t, "Black waistcoat", c.Orders[1].Description)

	assert.True(t, c.RemoveOrder(first.ID))
	require.Len(t, c.Orders, 1)
	assert.Equal(t, second.ID, c.Orders[0].ID)

	assert.False(t, c.RemoveOrder("missing"))
	assert.False(t, c.ToggleOrderStatus("missing"))
	assert.False(t, c.SetOrderDescription("missing", "x"))
}

func TestCustomer_CloneDoesNotAlias(t *testing.T) {
	c := tailor.NewCustomer("Karim", "0799123456")
	c.ToggleSkirt("دامن گاوی")
	c.AddOrder("Shirt", time.Now())

	clone := c.Clone()
	clone.Measurements["قد"] = "180"
	clone.Models.Skirt[0] = "changed"
	clone.Orders[0].Description = "changed"

	assert.Empty(t, c.Measurements["قد"])
	assert.Equal(t, "دامن گاوی", c.Models.Skirt[0])
	assert.Equal(t, "Shirt", c.Orders[0].Description)
}

func TestMeasurement_JSON(t *testing.T) {
	var m tailor.Measurements
	require.NoError(t, json.Unmarshal([]byte(`{"قد": 172.5, "گردن": "40", "بغل": null, "دامن": ""}`), &m))

	assert.Equal(t, tailor.Measurement("172.5"), m["قد"])
	assert.Equal(t, tailor.Measurement("40"), m["گردن"])
	assert.Equal(t, tailor.Measurement(""), m["بغل"])
	assert.True(t, m["دامن"].IsEmpty())

	tests := []struct {
		in   tailor.Measurement
		want string
	}{
		{"172.50", `172.5`},
		{"", `""`},
		{"abc", `"abc"`},
	}
	for _, tt := range tests {
		raw, err := json.Marshal(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(raw))
	}

	assert.Error(t, json.Unmarshal([]byte(`{"قد": true}`), &m))
}
