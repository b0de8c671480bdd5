package tailor

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Search returns the non-deleted customers whose name, phone, notes, id,
// collar model or delivery day contain query, ignoring case. An empty query
// matches nothing. Results keep the GetAll order.
func (b *Book) Search(ctx context.Context, query string) ([]Customer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Customer{}, nil
	}

	all, err := b.store.ListCustomers(ctx, false)
	if err != nil {
		return nil, err
	}

	// Caser keeps state between calls and is not safe for concurrent use.
	folder := cases.Fold()
	needle := fold(folder, query)

	out := make([]Customer, 0)
	for _, c := range all {
		if matches(folder, c, needle) {
			out = append(out, c)
		}
	}
	return out, nil
}

func matches(folder cases.Caser, c Customer, needle string) bool {
	for _, field := range []string{c.Name, c.Phone, c.Notes, c.ID, c.Models.Yakhun, c.DeliveryDay} {
		if field != "" && strings.Contains(fold(folder, field), needle) {
			return true
		}
	}
	return false
}

func fold(folder cases.Caser, s string) string {
	return folder.String(norm.NFC.String(s))
}
