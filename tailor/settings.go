package tailor

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// Setting keys written by the book itself.
const (
	SettingLastBackup     = "lastBackup"
	SettingBackupInterval = "backupInterval"
	SettingAutoSave       = "autoSave"
)

// GetSetting returns the setting or nil when the key has never been written.
func (b *Book) GetSetting(ctx context.Context, key string) (*Setting, error) {
	return b.store.GetSetting(ctx, key)
}

// SetSetting writes value under key, replacing any previous value.
func (b *Book) SetSetting(ctx context.Context, key string, value any) (Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Setting{}, &ValidationError{Violations: []Violation{{Field: "key", Message: "is required"}}}
	}

	v, err := NormalizeValue(value)
	if err != nil {
		return Setting{}, &ValidationError{Violations: []Violation{{Field: "value", Message: err.Error()}}}
	}

	s := Setting{Key: key, Value: v, UpdatedAt: b.clock.Now()}
	if err := b.store.PutSetting(ctx, s); err != nil {
		return Setting{}, fmt.Errorf("set setting %s: %w", key, err)
	}
	return s, nil
}

// Settings returns every stored setting as a key/value map.
func (b *Book) Settings(ctx context.Context) (map[string]any, error) {
	list, err := b.store.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(list))
	for _, s := range list {
		out[s.Key] = s.Value
	}
	return out, nil
}

// InitializeDefaults writes each default whose key is missing. Existing
// values, including user changes, are never overwritten. Returns the keys
// that were written.
func (b *Book) InitializeDefaults(ctx context.Context, defaults map[string]any) ([]string, error) {
	now := b.clock.Now()
	var written []string
	for _, key := range slices.Sorted(maps.Keys(defaults)) {
		v, err := NormalizeValue(defaults[key])
		if err != nil {
			return written, fmt.Errorf("default %s: %w", key, err)
		}
		ok, err := b.store.PutSettingIfAbsent(ctx, Setting{Key: key, Value: v, UpdatedAt: now})
		if err != nil {
			return written, fmt.Errorf("default %s: %w", key, err)
		}
		if ok {
			written = append(written, key)
		}
	}
	if len(written) > 0 {
		b.logger.Info("initialized default settings", zap.Strings("keys", written))
	}
	return written, nil
}

// NormalizeValue round-trips v through JSON so every backend hands back the
// same Go types (float64, string, bool, nil, []any, map[string]any).
func NormalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("value is not JSON encodable: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
