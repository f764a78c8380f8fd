// Package nutrient extracts numeric nutrient values from raw provider
// payloads. External databases disagree on key spelling (dash vs underscore),
// reporting basis (per 100g vs per declared serving) and energy units
// (kJ vs kcal); this package is the only place that knows those variants,
// so "missing" means the same thing for every adapter.
package nutrient

import (
	"math"
	"strconv"
	"strings"
)

// KcalPerKilojoule converts kJ to kcal (1 kJ ~= 0.239 kcal).
const KcalPerKilojoule = 0.23900573614

// suffix stages tried in order: plain key, per-serving, per-100g/ml.
var suffixes = []string{"", "_serving", "_100g"}

// Extract returns the best-effort value for base key k from a raw nutrient
// map, or nil when the value is missing or unparsable. A reported zero comes
// back as a pointer to 0, never nil: absence and zero are distinct.
//
// The spelling variants apply to the base key only; the stage suffix keeps
// its underscore. Open Food Facts mixes the two conventions in one key, e.g.
// "energy-kcal_100g" and "saturated-fat_100g".
func Extract(raw map[string]any, key string) *float64 {
	if len(raw) == 0 {
		return nil
	}
	variants := keyVariants(key)
	for _, suffix := range suffixes {
		for _, k := range variants {
			v, ok := raw[k+suffix]
			if !ok {
				continue
			}
			if f, ok := asFloat(v); ok {
				return &f
			}
		}
	}
	return nil
}

// Calories resolves kilocalories from a raw nutrient map. Direct kcal fields
// win; when only kilojoules are reported the value is converted and rounded.
func Calories(raw map[string]any) *float64 {
	if kcal := Extract(raw, "energy_kcal"); kcal != nil {
		return kcal
	}
	if kj := Extract(raw, "energy"); kj != nil {
		kcal := math.Round(*kj * KcalPerKilojoule)
		return &kcal
	}
	return nil
}

// keyVariants returns the spelling variants for a key: as-is, underscores
// swapped to dashes, dashes swapped to underscores. Duplicates are dropped.
func keyVariants(key string) []string {
	variants := []string{key}
	if dashed := strings.ReplaceAll(key, "_", "-"); dashed != key {
		variants = append(variants, dashed)
	}
	if underscored := strings.ReplaceAll(key, "-", "_"); underscored != key {
		variants = append(variants, underscored)
	}
	return variants
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
