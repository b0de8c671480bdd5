package tailor

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Profile mutation helpers. They change the record in memory only; pass them
// to ProfileEditor.Update so the change is persisted.

// SetMeasurement sets one measurement. Unknown fields are rejected.
func (c *Customer) SetMeasurement(field, value string) error {
	if _, ok := measurementIx[field]; !ok {
		return &ValidationError{Violations: []Violation{{Field: "measurements." + field, Message: "unknown measurement field"}}}
	}
	if c.Measurements == nil {
		c.Measurements = NewMeasurements()
	}
	c.Measurements[field] = Measurement(strings.TrimSpace(value))
	return nil
}

// SelectCollar selects a collar model; selecting the current one clears it.
func (c *Customer) SelectCollar(model string) {
	c.Models.Yakhun = toggleOne(c.Models.Yakhun, model)
}

// SelectSleeve selects a sleeve model; selecting the current one clears it.
func (c *Customer) SelectSleeve(model string) {
	c.Models.Sleeve = toggleOne(c.Models.Sleeve, model)
}

func (c *Customer) ToggleSkirt(model string) {
	c.Models.Skirt = toggleIn(c.Models.Skirt, model)
}

func (c *Customer) ToggleFeature(feature string) {
	c.Models.Features = toggleIn(c.Models.Features, feature)
}

// SetPrice parses value as the sewing price. An empty value clears it.
func (c *Customer) SetPrice(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		c.Price = decimal.NullDecimal{}
		return nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return &ValidationError{Violations: []Violation{{Field: "sewingPriceAfghani", Message: "must be numeric"}}}
	}
	c.Price = decimal.NewNullDecimal(d)
	return nil
}

// TogglePayment flips the payment flag, stamping the payment date when it
// becomes paid and clearing it otherwise.
func (c *Customer) TogglePayment(now time.Time) {
	c.PaymentReceived = !c.PaymentReceived
	if c.PaymentReceived {
		c.PaymentDate = &now
	} else {
		c.PaymentDate = nil
	}
}

// SetDeliveryDay selects a delivery day; selecting the current one clears it.
func (c *Customer) SetDeliveryDay(day string) {
	c.DeliveryDay = toggleOne(c.DeliveryDay, day)
}

// AddOrder appends a pending order and returns it.
func (c *Customer) AddOrder(description string, now time.Time) Order {
	o := Order{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Description: strings.TrimSpace(description),
		Date:        now,
		Status:      OrderPending,
	}
	c.Orders = append(c.Orders, o)
	return o
}

// RemoveOrder deletes the order with the given id and reports whether it existed.
func (c *Customer) RemoveOrder(id string) bool {
	i := c.orderIndex(id)
	if i < 0 {
		return false
	}
	c.Orders = slices.Delete(c.Orders, i, i+1)
	return true
}

func (c *Customer) SetOrderDescription(id, description string) bool {
	i := c.orderIndex(id)
	if i < 0 {
		return false
	}
	c.Orders[i].Description = strings.TrimSpace(description)
	return true
}

// ToggleOrderStatus switches an order between pending and done.
func (c *Customer) ToggleOrderStatus(id string) bool {
	i := c.orderIndex(id)
	if i < 0 {
		return false
	}
	if c.Orders[i].Status == OrderDone {
		c.Orders[i].Status = OrderPending
	} else {
		c.Orders[i].Status = OrderDone
	}
	return true
}

func (c *Customer) orderIndex(id string) int {
	return slices.IndexFunc(c.Orders, func(o Order) bool { return o.ID == id })
}

func toggleOne(current, value string) string {
	if current == value {
		return ""
	}
	return value
}

func toggleIn(values []string, value string) []string {
	if i := slices.Index(values, value); i >= 0 {
		return slices.Delete(slices.Clone(values), i, i+1)
	}
	return append(slices.Clone(values), value)
}
