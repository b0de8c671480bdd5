package tailor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Measurement is a single body measurement. The empty value means "not taken".
// It decodes from a JSON number or string and encodes numeric values as numbers.
type Measurement string

// Measurements maps each canonical field name to its value.
type Measurements map[string]Measurement

// NewMeasurements returns a fully populated, empty measurement set.
func NewMeasurements() Measurements {
	m := make(Measurements, len(MeasurementFields))
	for _, field := range MeasurementFields {
		m[field] = ""
	}
	return m
}

// IsEmpty reports whether the measurement has not been taken.
func (m Measurement) IsEmpty() bool {
	return strings.TrimSpace(string(m)) == ""
}

// Decimal parses the measurement. Empty values return ok=false.
func (m Measurement) Decimal() (d decimal.Decimal, ok bool, err error) {
	if m.IsEmpty() {
		return decimal.Zero, false, nil
	}
	d, err = decimal.NewFromString(strings.TrimSpace(string(m)))
	if err != nil {
		return decimal.Zero, false, err
	}
	return d, true, nil
}

func (m Measurement) MarshalJSON() ([]byte, error) {
	if m.IsEmpty() {
		return []byte(`""`), nil
	}
	if d, ok, err := m.Decimal(); err == nil && ok {
		return []byte(d.String()), nil
	}
	return json.Marshal(string(m))
}

func (m *Measurement) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*m = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Measurement(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("measurement must be a number or string: %w", err)
		}
		*m = Measurement(n.String())
		return nil
	}
}
