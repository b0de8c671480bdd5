package tailor

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// SchemaVersion is the dataset version written into backups and exports.
const SchemaVersion = 5

// MeasurementFields is the canonical, ordered set of body measurements.
// Every stored customer carries exactly these keys.
var MeasurementFields = []string{
	"قد", "شانه_یک", "شانه_دو", "آستین_یک", "آستین_دو", "آستین_سه",
	"بغل", "دامن", "گردن", "دور_سینه", "شلوار", "دم_پاچه",
	"بر_تمبان", "خشتک", "چاک_پتی", "تعداد_سفارش", "مقدار_تکه",
}

// Garment-model catalogs offered by the profile editor.
var (
	YakhunModels  = []string{"آف دار", "چپه یخن", "پاکستانی", "ملی", "شهبازی", "خامک", "قاسمی"}
	SleeveModels  = []string{"کفک", "ساده شیش بخیه", "بندک", "پر بخیه", "آف دار", "لایی یک انچ"}
	SkirtModels   = []string{"دامن یک بخیه", "دامن دوبخیه", "دامن چهارکنج", "دامن ترخیز", "دامن گاوی"}
	FeaturesList  = []string{"جیب رو", "جیب شلوار", "یک بخیه سند", "دو بخیه سند", "مکمل دو بخیه"}
	DeliveryDays  = []string{"شنبه", "یکشنبه", "دوشنبه", "سه‌شنبه", "چهارشنبه", "پنجشنبه", "جمعه"}
	measurementIx = indexOf(MeasurementFields)
)

func indexOf(values []string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

//go:embed defaults.yaml
var defaultSettingsYAML []byte

// DefaultSettings returns the settings written on first run.
func DefaultSettings() (map[string]any, error) {
	var defaults map[string]any
	if err := yaml.Unmarshal(defaultSettingsYAML, &defaults); err != nil {
		return nil, fmt.Errorf("parse default settings: %w", err)
	}
	return defaults, nil
}
