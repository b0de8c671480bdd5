/*
handlers.go - HTTP API handlers for the customer book

PURPOSE:
  Exposes the Book to the shop's UI, print and bootstrap collaborators.
  Handles HTTP request/response and JSON serialization, and delegates to
  the Book for everything else.

ENDPOINTS:
  Customers:
    GET    /api/customers              List customers (?include_deleted=true)
    POST   /api/customers              Create customer
    GET    /api/customers/{id}         Get customer
    PUT    /api/customers/{id}         Update customer (version required)
    DELETE /api/customers/{id}         Soft delete
    DELETE /api/customers/{id}/purge   Hard delete of a soft-deleted customer
    GET    /api/search?q=              Search active customers

  Settings:
    GET    /api/settings               All settings
    GET    /api/settings/{key}         One setting
    PUT    /api/settings/{key}         Write a setting

  Backups:
    GET    /api/backups                Backup log, newest first
    POST   /api/backups                Create backup now
    POST   /api/backups/{id}/restore   Replace customers with a backup
    GET    /api/export                 Download export document
    POST   /api/import                 Replace contents from export document
    POST   /api/reset                  Remove every customer

  Ids, sync:
    POST   /api/ids/next               Reserve an id
    POST   /api/ids/sync               Rebuild used ids from the store
    GET    /api/sync/queue             Queue items (?status=pending)
    POST   /api/sync/drain             Drain now
    PUT    /api/sync/online            Report connectivity

  Scenarios (scenarios.go):
    GET    /api/scenarios              Available sample data
    GET    /api/scenarios/current      Last loaded scenario
    POST   /api/scenarios/load         Replace customers with sample data

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input or document
  - 404: Customer or backup not found
  - 409: Duplicate id, version conflict
  - 507: Id space exhausted
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The server is meant to listen on the shop machine only.

SEE ALSO:
  - dto.go: Request/response data structures
  - events.go: Websocket event stream
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/alfajr/tailorbook/tailor"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Book   *tailor.Book
	Logger *zap.Logger
}

// NewHandler creates a new handler for book.
func NewHandler(book *tailor.Book, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Book: book, Logger: logger}
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns customers, newest first.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"

	customers, err := h.Book.GetAll(r.Context(), includeDeleted)
	if err != nil {
		h.writeDomainError(w, "Failed to list customers", err)
		return
	}
	writeJSON(w, http.StatusOK, CustomerListDTO{Customers: customers, Count: len(customers)})
}

// CreateCustomer saves a new customer. A missing id is generated.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var c tailor.Customer
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	c.Version = 0

	saved, err := h.Book.Save(r.Context(), c)
	if err != nil {
		h.writeDomainError(w, "Failed to create customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.Book.GetByID(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get customer", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "Customer not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateCustomer replaces a customer. The body must carry the version last read.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var c tailor.Customer
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if c.ID != "" && c.ID != id {
		writeError(w, http.StatusBadRequest, "Body id does not match URL", nil)
		return
	}
	if c.Version <= 0 {
		writeError(w, http.StatusBadRequest, "version is required for updates", nil)
		return
	}
	c.ID = id

	saved, err := h.Book.Save(r.Context(), c)
	if err != nil {
		h.writeDomainError(w, "Failed to update customer", err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.Book.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, "Failed to delete customer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PurgeCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.Book.Purge(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, "Failed to purge customer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search matches active customers against ?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Book.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeDomainError(w, "Search failed", err)
		return
	}
	writeJSON(w, http.StatusOK, CustomerListDTO{Customers: customers, Count: len(customers)})
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Book.Settings(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) GetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	s, err := h.Book.GetSetting(r.Context(), key)
	if err != nil {
		h.writeDomainError(w, "Failed to get setting", err)
		return
	}
	if s == nil {
		writeError(w, http.StatusNotFound, "Setting not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) PutSetting(w http.ResponseWriter, r *http.Request) {
	var req SetSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var value any
	if len(req.Value) > 0 {
		if err := json.Unmarshal(req.Value, &value); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid setting value", err)
			return
		}
	}

	s, err := h.Book.SetSetting(r.Context(), chi.URLParam(r, "key"), value)
	if err != nil {
		h.writeDomainError(w, "Failed to save setting", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// =============================================================================
// BACKUP, EXPORT, IMPORT HANDLERS
// =============================================================================

func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.Book.ListBackups(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list backups", err)
		return
	}

	dtos := make([]BackupDTO, len(backups))
	for i, b := range backups {
		dtos[i] = toBackupDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	b, err := h.Book.CreateBackup(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to create backup", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBackupDTO(b))
}

func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid backup id", err)
		return
	}

	result, err := h.Book.RestoreBackup(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to restore backup", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Export streams the export document as a download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Book.Export(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to export", err)
		return
	}

	filename := fmt.Sprintf("alfajr_backup_%s.json", doc.Timestamp.Format("2006-01-02"))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	result, err := h.Book.ImportFromFile(r.Context(), r.Body)
	if err != nil {
		h.writeDomainError(w, "Failed to import", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Reset removes every customer record.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.Book.ClearAll(r.Context()); err != nil {
		h.writeDomainError(w, "Failed to reset", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// =============================================================================
// ID AND SYNC HANDLERS
// =============================================================================

func (h *Handler) NextID(w http.ResponseWriter, r *http.Request) {
	id, err := h.Book.NextID(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to generate id", err)
		return
	}
	writeJSON(w, http.StatusOK, NextIDDTO{ID: id, Remaining: h.Book.IDs().Remaining()})
}

func (h *Handler) SyncIDs(w http.ResponseWriter, r *http.Request) {
	if err := h.Book.SyncIDsWithStore(r.Context()); err != nil {
		h.writeDomainError(w, "Failed to sync ids", err)
		return
	}
	ids := h.Book.IDs()
	writeJSON(w, http.StatusOK, IDStatsDTO{Used: ids.Used(), Remaining: ids.Remaining(), Capacity: tailor.IDCapacity})
}

func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	status := tailor.QueueStatus(r.URL.Query().Get("status"))
	switch status {
	case "", tailor.QueuePending, tailor.QueueCompleted, tailor.QueueFailed, tailor.QueueCancelled:
	default:
		writeError(w, http.StatusBadRequest, "Invalid status", nil)
		return
	}

	items, err := h.Book.QueueItems(r.Context(), status)
	if err != nil {
		h.writeDomainError(w, "Failed to list sync queue", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) Drain(w http.ResponseWriter, r *http.Request) {
	result, err := h.Book.Drain(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to drain sync queue", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) SetOnline(w http.ResponseWriter, r *http.Request) {
	var req SetOnlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Book.SetOnline(r.Context(), req.Online)
	if err != nil {
		h.writeDomainError(w, "Failed to drain sync queue", err)
		return
	}
	writeJSON(w, http.StatusOK, OnlineDTO{Online: h.Book.Online(), Drain: result})
}

// =============================================================================
// HELPERS
// =============================================================================

// writeDomainError maps Book errors to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	var vErr *tailor.ValidationError
	var dupErr *tailor.DuplicateIDError
	var conflictErr *tailor.ConflictError

	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "validation_failed", Details: vErr.Violations})
	case errors.Is(err, tailor.ErrInvalidDocument):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "invalid_document", Details: err.Error()})
	case tailor.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: message, Code: "not_found", Details: err.Error()})
	case errors.As(err, &dupErr):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: message, Code: "duplicate_id", Details: err.Error()})
	case errors.As(err, &conflictErr):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: message, Code: "version_conflict", Details: map[string]any{
			"id":       conflictErr.ID,
			"expected": conflictErr.Expected,
			"actual":   conflictErr.Actual,
		}})
	case errors.Is(err, tailor.ErrIDSpaceExhausted):
		writeJSON(w, http.StatusInsufficientStorage, ErrorResponse{Error: message, Code: "id_space_exhausted", Details: err.Error()})
	default:
		h.Logger.Error(strings.ToLower(message), zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
