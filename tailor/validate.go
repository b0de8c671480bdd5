package tailor

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMinPhoneLength is the minimum phone length enforced unless configured otherwise.
const DefaultMinPhoneLength = 10

var (
	idPattern     = regexp.MustCompile(`^[0-9]{4}$`)
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
)

// Validator checks customer invariants. The zero value enforces DefaultMinPhoneLength.
type Validator struct {
	MinPhoneLength int
}

func (v Validator) minPhone() int {
	if v.MinPhoneLength <= 0 {
		return DefaultMinPhoneLength
	}
	return v.MinPhoneLength
}

// Validate returns a *ValidationError listing every violation, or nil.
func (v Validator) Validate(c Customer) error {
	var violations []Violation
	add := func(field, format string, args ...any) {
		violations = append(violations, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !ValidID(c.ID) {
		add("id", "must be a 4-digit number between %d and %d", minID, maxID)
	}

	if utf8.RuneCountInString(strings.TrimSpace(c.Name)) < 2 {
		add("name", "must be at least 2 characters")
	}

	phone := strings.TrimSpace(c.Phone)
	if !digitsPattern.MatchString(phone) || len(phone) < v.minPhone() {
		add("phone", "must be numeric with at least %d digits", v.minPhone())
	}

	for _, field := range MeasurementFields {
		if _, _, err := c.Measurements[field].Decimal(); err != nil {
			add("measurements."+field, "must be numeric")
		}
	}
	for field := range c.Measurements {
		if _, ok := measurementIx[field]; !ok {
			add("measurements."+field, "unknown measurement field")
		}
	}

	if c.Price.Valid && c.Price.Decimal.IsNegative() {
		add("sewingPriceAfghani", "must not be negative")
	}

	if dup, ok := firstDuplicate(c.Models.Skirt); ok {
		add("models.skirt", "duplicate selection %q", dup)
	}
	if dup, ok := firstDuplicate(c.Models.Features); ok {
		add("models.features", "duplicate selection %q", dup)
	}

	for i, o := range c.Orders {
		if o.Status != OrderPending && o.Status != OrderDone {
			add(fmt.Sprintf("orders[%d].status", i), "must be %q or %q", OrderPending, OrderDone)
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// ValidID reports whether id is inside the generator's id space.
func ValidID(id string) bool {
	if !idPattern.MatchString(id) {
		return false
	}
	return id[0] != '0'
}

func firstDuplicate(values []string) (string, bool) {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return v, true
		}
		seen[v] = struct{}{}
	}
	return "", false
}
