/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication that are not domain
  records themselves. Customers, settings and queue items are returned as
  their tailor types, whose JSON names already match the export files.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done by the Book, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - tailor/types.go: Domain records
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/alfajr/tailorbook/tailor"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// CustomerListDTO wraps a customer listing.
type CustomerListDTO struct {
	Customers []tailor.Customer `json:"customers"`
	Count     int               `json:"count"`
}

// SetSettingRequest is the body of PUT /api/settings/{key}.
type SetSettingRequest struct {
	Value json.RawMessage `json:"value"`
}

// BackupDTO summarizes a backup without its snapshot.
type BackupDTO struct {
	ID             int64     `json:"id"`
	Date           time.Time `json:"date"`
	TotalCustomers int       `json:"totalCustomers"`
}

// NextIDDTO is a freshly reserved customer id.
type NextIDDTO struct {
	ID        string `json:"id"`
	Remaining int    `json:"remaining"`
}

// IDStatsDTO describes the id space after a resync.
type IDStatsDTO struct {
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
	Capacity  int `json:"capacity"`
}

// SetOnlineRequest is the body of PUT /api/sync/online.
type SetOnlineRequest struct {
	Online bool `json:"online"`
}

// OnlineDTO reports connectivity and the drain it triggered, if any.
type OnlineDTO struct {
	Online bool               `json:"online"`
	Drain  tailor.DrainResult `json:"drain"`
}

// ScenarioDTO describes a sample-data scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toBackupDTO(b tailor.Backup) BackupDTO {
	return BackupDTO{ID: b.ID, Date: b.CreatedAt, TotalCustomers: b.Data.TotalCustomers}
}
