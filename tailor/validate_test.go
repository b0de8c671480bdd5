package tailor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfajr/tailorbook/tailor"
)

func TestValidator_Validate(t *testing.T) {
	valid := func() tailor.Customer {
		c := karim()
		c.ID = "1234"
		return c
	}

	tests := []struct {
		name   string
		mutate func(c *tailor.Customer)
		fields []string
	}{
		{"valid", func(*tailor.Customer) {}, nil},
		{"name too short", func(c *tailor.Customer) { c.Name = " K " }, []string{"name"}},
		{"Persian name", func(c *tailor.Customer) { c.Name = "علی" }, nil},
		{"phone with letters", func(c *tailor.Customer) { c.Phone = "07991234ab" }, []string{"phone"}},
		{"phone too short", func(c *tailor.Customer) { c.Phone = "079912345" }, []string{"phone"}},
		{"id out of range", func(c *tailor.Customer) { c.ID = "0999" }, []string{"id"}},
		{"non-numeric measurement", func(c *tailor.Customer) { c.Measurements["بغل"] = "wide" }, []string{"measurements.بغل"}},
		{"unknown measurement", func(c *tailor.Customer) { c.Measurements["waist"] = "80" }, []string{"measurements.waist"}},
		{"negative price", func(c *tailor.Customer) { _ = c.SetPrice("-1") }, []string{"sewingPriceAfghani"}},
		{"duplicate skirt", func(c *tailor.Customer) { c.Models.Skirt = []string{"دامن گاوی", "دامن گاوی"} }, []string{"models.skirt"}},
		{"bad order status", func(c *tailor.Customer) {
			c.Orders = []tailor.Order{{ID: "o1", Status: "shipped"}}
		}, []string{"orders[0].status"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := tailor.Validator{}.Validate(c)

			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}
			var vErr *tailor.ValidationError
			require.ErrorAs(t, err, &vErr)
			require.Len(t, vErr.Violations, len(tt.fields))
			for _, f := range tt.fields {
				assert.True(t, vErr.Has(f), "expected violation on %s, got %v", f, vErr.Violations)
			}
		})
	}
}
