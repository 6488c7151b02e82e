package workouts

import (
	"math"

	"github.com/iBlazeX/FitForm3/internal/users"
)

// referenceWeightKg is the body weight the per-rep constants are
// calibrated for.
const referenceWeightKg = 70.0

// EstimateCalories computes the calories burned by one exercise set.
// A nil profile skips all body adjustments. Pure and deterministic,
// the factor order below is part of the contract.
func EstimateCalories(exType ExerciseType, reps, durationSeconds int, profile *users.Profile) float64 {
	calories := float64(reps) * exType.baseCaloriesPerRep()

	weight := referenceWeightKg
	if profile != nil && profile.Weight != nil {
		weight = *profile.Weight
		calories *= weight / referenceWeightKg
	}

	if profile != nil && profile.Gender != nil {
		switch *profile.Gender {
		case users.GenderMale:
			calories *= 1.05
		case users.GenderFemale:
			calories *= 0.95
		}
	}

	if profile != nil && profile.Age != nil {
		age := *profile.Age
		switch {
		case age < 30:
			calories *= 1.05
		case age > 50:
			calories *= 0.90
		case age > 40:
			calories *= 0.95
		}
	}

	// sustained sets burn beyond the per-rep estimate, damped to 30%
	// to not double-count the reps priced in above
	if durationSeconds > 60 {
		durationMinutes := float64(durationSeconds) / 60.0
		calories += exType.met() * weight * (durationMinutes / 60.0) * 0.30
	}

	if calories < 0 {
		return 0
	}
	return calories
}

// RoundTo2 rounds to 2 decimal places. Applied at the storage and
// report boundaries, never inside the estimator.
func RoundTo2(val float64) float64 {
	return math.Round(val*100) / 100
}
