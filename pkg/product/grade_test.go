package product

import "testing"

func TestCalculateNutriGradeBoundaries(t *testing.T) {
	tests := []struct {
		name                       string
		sugars, saturated, sodium  float64
		want                       Grade
	}{
		{"all at zero-point thresholds", 5, 1.5, 120, GradeA},
		{"one point still A", 5.01, 0, 0, GradeA},
		{"two points is B", 10.01, 0, 0, GradeB},
		{"three points is B", 15, 3, 0, GradeB},
		{"four points is C", 15.01, 1.6, 0, GradeC},
		{"six points is C", 16, 6.01, 0, GradeC},
		{"seven points is D", 16, 6.01, 130, GradeD},
		{"all maxed is D", 100, 50, 1000, GradeD},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n := NutritionalInfo{
				Sugars:       Float(tc.sugars),
				SaturatedFat: Float(tc.saturated),
				Sodium:       Float(tc.sodium),
			}
			if got := CalculateNutriGrade(n); got != tc.want {
				t.Errorf("CalculateNutriGrade(%v/%v/%v) = %v, want %v",
					tc.sugars, tc.saturated, tc.sodium, got, tc.want)
			}
		})
	}
}

func TestCalculateNutriGradeAbsentDefaultsToZero(t *testing.T) {
	if got := CalculateNutriGrade(NutritionalInfo{}); got != GradeA {
		t.Fatalf("empty bundle should grade A, got %v", got)
	}
}

func TestCalculateNutriGradeDeterministic(t *testing.T) {
	n := NutritionalInfo{
		Sugars:       Float(56.3),
		SaturatedFat: Float(10.6),
		Sodium:       Float(0.107),
	}
	first := CalculateNutriGrade(n)
	second := CalculateNutriGrade(n)
	if first != second {
		t.Fatalf("grade not deterministic: %v != %v", first, second)
	}
	if first != GradeD {
		t.Fatalf("expected D for max sugar and saturated fat, got %v", first)
	}
}

func TestCalculateNutriGradeIgnoresOtherFields(t *testing.T) {
	base := NutritionalInfo{Sugars: Float(8)}
	withProtein := base
	withProtein.Protein = Float(99)
	withProtein.Calories = Float(900)

	if CalculateNutriGrade(base) != CalculateNutriGrade(withProtein) {
		t.Fatal("grade must depend only on sugars, saturated fat and sodium")
	}
}

func TestMissingCritical(t *testing.T) {
	complete := NutritionalInfo{
		Calories:      Float(100),
		Protein:       Float(5),
		Carbohydrates: Float(10),
		Fat:           Float(2),
	}
	if complete.MissingCritical() {
		t.Fatal("complete quartet reported as missing")
	}

	partial := complete
	partial.Fat = nil
	if !partial.MissingCritical() {
		t.Fatal("missing fat not detected")
	}

	zeroes := NutritionalInfo{
		Calories:      Float(0),
		Protein:       Float(0),
		Carbohydrates: Float(0),
		Fat:           Float(0),
	}
	if zeroes.MissingCritical() {
		t.Fatal("explicit zeroes must count as present")
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(Float(-3)); got == nil || *got != 0 {
		t.Fatalf("expected negative clamped to 0, got %v", got)
	}
	if got := Clamp(Float(4.2)); got == nil || *got != 4.2 {
		t.Fatalf("expected positive passthrough, got %v", got)
	}
	if got := Clamp(nil); got != nil {
		t.Fatal("expected nil passthrough")
	}
}
