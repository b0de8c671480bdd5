/*
scenarios.go - Sample data loaders for demos and manual testing

PURPOSE:

	Provides pre-built scenarios that populate the book with realistic shop
	data. Each scenario starts from an empty customer partition and writes
	customers through the Book, so ids, validation and events behave exactly
	as they do for real edits.

AVAILABLE SCENARIOS:

	empty-shop:      No customers, default settings only
	sample-shop:     A week of customers with measurements, models and orders
	offline-backlog: The sample shop, then edits made while offline

HOW SCENARIOS WORK:
 1. Remove every customer (ClearAll)
 2. Write default settings that are missing
 3. Save customers, apply profile edits
 4. Record the scenario id in the sampleScenario setting

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "sample-shop"}

USAGE VIA CLI:

	tailorbook seed sample-shop

NOTE:

	Scenarios remove every customer. Only use on a demo database.

SEE ALSO:
  - handlers.go: Other endpoints
  - tailor/profile.go: Profile helpers used to build the records
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/alfajr/tailorbook/tailor"
)

// SettingSampleScenario records the last loaded scenario.
const SettingSampleScenario = "sampleScenario"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "empty-shop",
		Name:        "Empty Shop",
		Description: "No customers, default settings",
		Category:    "setup",
	},
	{
		ID:          "sample-shop",
		Name:        "Sample Shop",
		Description: "Six customers across the week, one paid, one deleted, one backup",
		Category:    "records",
	},
	{
		ID:          "offline-backlog",
		Name:        "Offline Backlog",
		Description: "Sample shop, then edits and a delete made offline and waiting in the sync queue",
		Category:    "sync",
	},
}

// Scenarios returns the available scenarios.
func Scenarios() []ScenarioDTO {
	return append([]ScenarioDTO(nil), scenarios...)
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	s, err := h.Book.GetSetting(r.Context(), SettingSampleScenario)
	if err != nil {
		h.writeDomainError(w, "Failed to read scenario", err)
		return
	}
	if s == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	id, _ := s.Value.(string)
	for _, sc := range scenarios {
		if sc.ID == id {
			writeJSON(w, http.StatusOK, sc)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if !knownScenario(req.ScenarioID) {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := ApplyScenario(r.Context(), h.Book, req.ScenarioID); err != nil {
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

func knownScenario(id string) bool {
	for _, s := range scenarios {
		if s.ID == id {
			return true
		}
	}
	return false
}

// ApplyScenario replaces the book's customers with scenario id.
func ApplyScenario(ctx context.Context, book *tailor.Book, id string) error {
	if !knownScenario(id) {
		return fmt.Errorf("unknown scenario %q", id)
	}

	if err := book.ClearAll(ctx); err != nil {
		return err
	}
	defaults, err := tailor.DefaultSettings()
	if err != nil {
		return err
	}
	if _, err := book.InitializeDefaults(ctx, defaults); err != nil {
		return err
	}

	switch id {
	case "empty-shop":
	case "sample-shop":
		_, err = loadSampleShop(ctx, book)
	case "offline-backlog":
		err = loadOfflineBacklog(ctx, book)
	}
	if err != nil {
		return fmt.Errorf("load scenario %s: %w", id, err)
	}

	_, err = book.SetSetting(ctx, SettingSampleScenario, id)
	return err
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

type sampleCustomer struct {
	name, phone, notes string
	collar, sleeve     string
	skirt              []string
	features           []string
	price              string
	day                string
	paid               bool
	measurements       map[string]string
	orders             []string
}

var sampleCustomers = []sampleCustomer{
	{
		name: "Karim", phone: "0799123456",
		collar: "پاکستانی", sleeve: "کفک", skirt: []string{"دامن گاوی"},
		price: "1500", day: "شنبه",
		measurements: map[string]string{"قد": "170", "شانه_یک": "45.5", "آستین_یک": "61", "گردن": "40", "تعداد_سفارش": "2"},
		orders:       []string{"Two white shirts"},
	},
	{
		name: "Ahmad Shah", phone: "0700111222", notes: "Prefers linen",
		collar: "ملی", sleeve: "بندک", features: []string{"جیب رو", "جیب شلوار"},
		price: "1800", day: "دوشنبه", paid: true,
		measurements: map[string]string{"قد": "182", "شانه_یک": "48", "دور_سینه": "104", "شلوار": "103"},
		orders:       []string{"Grey suit", "Waistcoat"},
	},
	{
		name: "Farid", phone: "0788555666",
		collar: "چپه یخن", skirt: []string{"دامن چهارکنج", "دامن یک بخیه"},
		day: "چهارشنبه",
		measurements: map[string]string{"قد": "165", "بغل": "52"},
	},
	{
		name: "Nasir Ahmadi", phone: "0777444333", notes: "Wedding on Friday",
		collar: "شهبازی", sleeve: "پر بخیه", features: []string{"دو بخیه سند"},
		price: "2500", day: "پنجشنبه",
		measurements: map[string]string{"قد": "176", "دامن": "110", "خشتک": "30"},
		orders:       []string{"Wedding perahan tunban"},
	},
	{
		name: "Jawad", phone: "0766222111",
		collar: "خامک", day: "جمعه", price: "1200",
		measurements: map[string]string{"قد": "158"},
	},
	{
		name: "Omid", phone: "0744999888", notes: "Moved away",
		measurements: map[string]string{"قد": "171"},
	},
}

func loadSampleShop(ctx context.Context, book *tailor.Book) ([]tailor.Customer, error) {
	now := time.Now().UTC()
	saved := make([]tailor.Customer, 0, len(sampleCustomers))

	for _, sc := range sampleCustomers {
		c := tailor.NewCustomer(sc.name, sc.phone)
		c.Notes = sc.notes
		for field, value := range sc.measurements {
			if err := c.SetMeasurement(field, value); err != nil {
				return nil, err
			}
		}
		c.SelectCollar(sc.collar)
		c.SelectSleeve(sc.sleeve)
		for _, s := range sc.skirt {
			c.ToggleSkirt(s)
		}
		for _, f := range sc.features {
			c.ToggleFeature(f)
		}
		if err := c.SetPrice(sc.price); err != nil {
			return nil, err
		}
		c.SetDeliveryDay(sc.day)
		if sc.paid {
			c.TogglePayment(now)
		}
		for _, o := range sc.orders {
			c.AddOrder(o, now)
		}

		s, err := book.Save(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("save %s: %w", sc.name, err)
		}
		saved = append(saved, s)
	}

	// The last sample customer left the shop
	if err := book.Delete(ctx, saved[len(saved)-1].ID); err != nil {
		return nil, err
	}
	if _, err := book.CreateBackup(ctx); err != nil {
		return nil, err
	}
	return saved, nil
}

func loadOfflineBacklog(ctx context.Context, book *tailor.Book) error {
	saved, err := loadSampleShop(ctx, book)
	if err != nil {
		return err
	}

	if _, err := book.SetOnline(ctx, false); err != nil {
		return err
	}

	// Karim's order is finished and paid while offline
	karim := saved[0]
	if len(karim.Orders) > 0 {
		karim.ToggleOrderStatus(karim.Orders[0].ID)
	}
	karim.TogglePayment(time.Now().UTC())
	if _, err := book.Save(ctx, karim); err != nil {
		return err
	}

	// Farid's measurements are retaken
	farid := saved[2]
	if err := farid.SetMeasurement("بغل", "54"); err != nil {
		return err
	}
	if _, err := book.Save(ctx, farid); err != nil {
		return err
	}

	return book.Delete(ctx, saved[4].ID)
}
