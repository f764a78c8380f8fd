// Package product defines the canonical resolved nutrition record and the
// grade scoring rubric. Every provider adapter maps into these types; the
// resolver grades and persists them.
package product

// NutritionalInfo is a bundle of optional nutrient values, per 100g or 100ml
// unless an adapter normalized otherwise at ingestion. A nil field means the
// provider did not report it; nil and zero are distinct.
type NutritionalInfo struct {
	Calories           *float64 `json:"calories,omitempty"`
	Protein            *float64 `json:"protein,omitempty"`
	Carbohydrates      *float64 `json:"carbohydrates,omitempty"`
	Fat                *float64 `json:"fat,omitempty"`
	Fiber              *float64 `json:"fiber,omitempty"`
	Sodium             *float64 `json:"sodium,omitempty"`
	Sugars             *float64 `json:"sugars,omitempty"`
	SaturatedFat       *float64 `json:"saturatedFat,omitempty"`
	Cholesterol        *float64 `json:"cholesterol,omitempty"`
	TransFat           *float64 `json:"transFat,omitempty"`
	MonounsaturatedFat *float64 `json:"monounsaturatedFat,omitempty"`
	PolyunsaturatedFat *float64 `json:"polyunsaturatedFat,omitempty"`
	Salt               *float64 `json:"salt,omitempty"`
	Potassium          *float64 `json:"potassium,omitempty"`
	Calcium            *float64 `json:"calcium,omitempty"`
	Iron               *float64 `json:"iron,omitempty"`
	VitaminA           *float64 `json:"vitaminA,omitempty"`
	VitaminC           *float64 `json:"vitaminC,omitempty"`
	VitaminD           *float64 `json:"vitaminD,omitempty"`
	VitaminB6          *float64 `json:"vitaminB6,omitempty"`
	VitaminB12         *float64 `json:"vitaminB12,omitempty"`
	VitaminE           *float64 `json:"vitaminE,omitempty"`
	Magnesium          *float64 `json:"magnesium,omitempty"`
	Zinc               *float64 `json:"zinc,omitempty"`
	Sucrose            *float64 `json:"sucrose,omitempty"`
	Fructose           *float64 `json:"fructose,omitempty"`
	Lactose            *float64 `json:"lactose,omitempty"`
	Starch             *float64 `json:"starch,omitempty"`
	Alcohol            *float64 `json:"alcohol,omitempty"`
}

// Serving is the label-declared serving, e.g. 30 "g".
type Serving struct {
	Size float64 `json:"size"`
	Unit string  `json:"unit"`
}

// Data is the canonical resolved product record. Instances are built fresh
// from each provider response and never mutated after creation; an update is
// always a new normalize+upsert, not an in-place patch.
type Data struct {
	NutritionalInfo

	ID      string `json:"id"` // source-prefixed ("off:...", "fatsecret:...") or internal UUID
	Barcode string `json:"barcode,omitempty"`
	Name    string `json:"name"`
	Brand   string `json:"brand,omitempty"`

	Serving Serving `json:"serving"`

	// NutriGrade is always computed locally at resolution time.
	NutriGrade Grade `json:"nutriGrade"`
	// UpstreamGrade carries a provider-reported grade verbatim, as a hint
	// only. It is never substituted for NutriGrade.
	UpstreamGrade string `json:"upstreamGrade,omitempty"`

	ImageURL string `json:"imageUrl,omitempty"`

	// Verified is true only for records sourced from a nutrition database
	// with the full critical quartet present; manual submissions are false.
	Verified bool `json:"verified"`

	// MissingCritical flags records missing any of the critical quartet,
	// stamped at resolution time so API clients can offer completion
	// without re-deriving it. Distinct from !Verified: a complete manual
	// entry is unverified but not incomplete.
	MissingCritical bool `json:"missingCritical"`

	// Opportunistic pass-through fields from richer providers.
	EcoScore    string `json:"ecoScore,omitempty"`
	NovaGroup   int    `json:"novaGroup,omitempty"` // 0 = not reported
	Ingredients string `json:"ingredients,omitempty"`
}

// MissingCritical reports whether any of the four critical tracking fields
// (calories, protein, carbohydrates, fat) is absent. Such records are still
// returned to callers, flagged so the UI can offer completion.
func (n NutritionalInfo) MissingCritical() bool {
	return n.Calories == nil || n.Protein == nil || n.Carbohydrates == nil || n.Fat == nil
}

// Float is a convenience for building optional nutrient values.
func Float(v float64) *float64 { return &v }

// Clamp returns v with negative values clamped to zero. A provider reporting
// a negative nutrient amount is a data error; nil passes through.
func Clamp(v *float64) *float64 {
	if v != nil && *v < 0 {
		return Float(0)
	}
	return v
}
