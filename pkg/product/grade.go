package product

// Grade is a letter summarizing nutritional quality, computed locally.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// CalculateNutriGrade computes the quality grade from sugars, saturated fat
// and sodium (per 100g/ml), each scored 0-3 points against fixed thresholds.
// Absent values count as zero. The function is pure and total; an
// upstream-supplied grade is never a substitute for this computation.
func CalculateNutriGrade(n NutritionalInfo) Grade {
	points := sugarPoints(orZero(n.Sugars)) +
		saturatedFatPoints(orZero(n.SaturatedFat)) +
		sodiumPoints(orZero(n.Sodium))

	switch {
	case points <= 1:
		return GradeA
	case points <= 3:
		return GradeB
	case points <= 6:
		return GradeC
	default:
		return GradeD
	}
}

func sugarPoints(v float64) int {
	switch {
	case v <= 5:
		return 0
	case v <= 10:
		return 1
	case v <= 15:
		return 2
	default:
		return 3
	}
}

func saturatedFatPoints(v float64) int {
	switch {
	case v <= 1.5:
		return 0
	case v <= 3:
		return 1
	case v <= 6:
		return 2
	default:
		return 3
	}
}

func sodiumPoints(v float64) int {
	switch {
	case v <= 120:
		return 0
	case v <= 240:
		return 1
	case v <= 360:
		return 2
	default:
		return 3
	}
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
