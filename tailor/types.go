/*
Package tailor provides the local persistence layer of the tailoring shop book.

PURPOSE:
  Keeps customer records (profile, body measurements, garment models, price,
  payment and delivery state, orders) for a single-operator shop, together
  with settings, point-in-time backups and an offline mutation queue.

KEY CONCEPTS IN THIS FILE (types.go):
  - Customer: The only business record. Soft-deleted, never physically removed
    unless purged.
  - Models: Garment-model selections (single-select collar/sleeve, multi-select
    skirt/features).
  - Order: A line in the customer's order history.
  - Setting, Backup, SyncQueueItem: Records of the auxiliary partitions.

DESIGN PRINCIPLES:
  1. Explicit session: All state lives in a Book passed by reference. No globals.
  2. Precision: Prices and measurements are validated with decimal.Decimal.
  3. Compatibility: JSON field names match the export files written by
     earlier releases of the shop app, so old backups import unchanged.

SEE ALSO:
  - book.go: The Book session object (external API)
  - store.go: Persistence interfaces
  - validate.go: Record invariants
*/
package tailor

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CUSTOMER
// =============================================================================

// Customer is a shop customer together with the current order state.
type Customer struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Phone           string              `json:"phone"`
	Notes           string              `json:"notes"`
	Measurements    Measurements        `json:"measurements"`
	Models          Models              `json:"models"`
	Price           decimal.NullDecimal `json:"sewingPriceAfghani"`
	DeliveryDay     string              `json:"deliveryDay"`
	PaymentReceived bool                `json:"paymentReceived"`
	PaymentDate     *time.Time          `json:"paymentDate"`
	Orders          []Order             `json:"orders"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	Deleted         bool                `json:"deleted"`

	// Version is the compare-and-swap token for updates. Zero means the record
	// has never been persisted.
	Version int `json:"version"`
}

// NewCustomer returns an unsaved customer with fully populated, empty measurements.
func NewCustomer(name, phone string) Customer {
	return Customer{
		Name:         name,
		Phone:        phone,
		Measurements: NewMeasurements(),
		Models:       Models{Skirt: []string{}, Features: []string{}},
		Orders:       []Order{},
	}
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (c Customer) Clone() Customer {
	out := c
	out.Measurements = make(Measurements, len(c.Measurements))
	for k, v := range c.Measurements {
		out.Measurements[k] = v
	}
	out.Models.Skirt = append([]string{}, c.Models.Skirt...)
	out.Models.Features = append([]string{}, c.Models.Features...)
	out.Orders = append([]Order{}, c.Orders...)
	if c.PaymentDate != nil {
		t := *c.PaymentDate
		out.PaymentDate = &t
	}
	return out
}

// normalize fills the gaps left by partial or legacy input so that stored
// records always carry every measurement key and non-nil collections.
func (c *Customer) normalize() {
	if c.Measurements == nil {
		c.Measurements = NewMeasurements()
	}
	for _, field := range MeasurementFields {
		if _, ok := c.Measurements[field]; !ok {
			c.Measurements[field] = ""
		}
	}
	for field, value := range c.Measurements {
		if d, ok, err := value.Decimal(); err == nil && ok {
			c.Measurements[field] = Measurement(d.String())
		} else if value.IsEmpty() {
			c.Measurements[field] = ""
		}
	}
	if c.Models.Skirt == nil {
		c.Models.Skirt = []string{}
	}
	if c.Models.Features == nil {
		c.Models.Features = []string{}
	}
	if c.Orders == nil {
		c.Orders = []Order{}
	}
	for i := range c.Orders {
		if c.Orders[i].Status == "" {
			c.Orders[i].Status = OrderPending
		}
	}
}

// Models holds the garment-model selections of a customer.
type Models struct {
	Yakhun   string   `json:"yakhun"` // collar style, single-select
	Sleeve   string   `json:"sleeve"` // single-select
	Skirt    []string `json:"skirt"`
	Features []string `json:"features"`
}

// =============================================================================
// ORDERS
// =============================================================================

type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderDone    OrderStatus = "done"
)

// Order is one entry of a customer's order history.
type Order struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Date        time.Time   `json:"date"`
	Status      OrderStatus `json:"status"`
}

// =============================================================================
// SETTINGS, BACKUPS, SYNC QUEUE
// =============================================================================

// Setting is a key/value pair of the settings partition.
type Setting struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot is the full dataset captured by a backup.
type Snapshot struct {
	Version        int        `json:"version"`
	Timestamp      time.Time  `json:"timestamp"`
	TotalCustomers int        `json:"totalCustomers"`
	Customers      []Customer `json:"customers"`
}

// Backup is a point-in-time copy of every customer record.
type Backup struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"date"`
	Data      Snapshot  `json:"data"`
}

// ExportDocument is the portable document written by Export and read by ImportFromFile.
type ExportDocument struct {
	Version        int            `json:"version"`
	Timestamp      time.Time      `json:"timestamp"`
	TotalCustomers int            `json:"totalCustomers"`
	Customers      []Customer     `json:"customers"`
	Settings       map[string]any `json:"settings"`
}

type OpType string

const (
	OpSaveCustomer   OpType = "save_customer"
	OpDeleteCustomer OpType = "delete_customer"
)

type QueueStatus string

const (
	QueuePending   QueueStatus = "pending"
	QueueCompleted QueueStatus = "completed"
	QueueFailed    QueueStatus = "failed"

	// QueueCancelled marks an intent whose record was purged or cleared
	// before it could be replayed.
	QueueCancelled QueueStatus = "cancelled"
)

// SyncQueueItem is a mutation intent recorded while offline.
type SyncQueueItem struct {
	ID          int64           `json:"id"`
	OpID        string          `json:"opId"`
	Type        OpType          `json:"type"`
	CustomerID  string          `json:"customerId"`
	Payload     json.RawMessage `json:"payload"`
	Status      QueueStatus     `json:"status"`
	Attempts    int             `json:"attempts"`
	LastError   string          `json:"lastError,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	ProcessedAt *time.Time      `json:"processedAt,omitempty"`
}
