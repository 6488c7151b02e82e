package workouts

import (
	"time"
)

// ExerciseType is the closed set of exercises the rep counter can
// detect. Every kind carries its own calorie constants, so adding a
// new one means extending the switches below too.
type ExerciseType string

const (
	ExercisePushup ExerciseType = "pushup"
	ExerciseSquat  ExerciseType = "squat"
	ExerciseSitup  ExerciseType = "situp"
)

func (et ExerciseType) Known() bool {
	switch et {
	case ExercisePushup, ExerciseSquat, ExerciseSitup:
		return true
	}
	return false
}

func KnownExerciseTypes() []ExerciseType {
	return []ExerciseType{ExercisePushup, ExerciseSquat, ExerciseSitup}
}

// baseCaloriesPerRep is calibrated for a 70 kg reference body.
func (et ExerciseType) baseCaloriesPerRep() float64 {
	switch et {
	case ExercisePushup:
		return 0.35
	case ExerciseSquat:
		return 0.32
	case ExerciseSitup:
		return 0.25
	}
	return 0
}

// met is the metabolic equivalent used for the sustained-activity bonus.
func (et ExerciseType) met() float64 {
	switch et {
	case ExercisePushup:
		return 8.0
	case ExerciseSquat:
		return 5.5
	case ExerciseSitup:
		return 4.0
	}
	return 0
}

// Workout is one completed exercise set.
type Workout struct {
	ID              int          `json:"id"`
	UserID          int          `json:"-"`
	ExerciseType    ExerciseType `json:"exerciseType"`
	Reps            int          `json:"reps"`
	CaloriesBurned  float64      `json:"caloriesBurned"`
	DurationSeconds int          `json:"duration"`
	FormFeedback    []string     `json:"formFeedback"`
	CreatedAt       time.Time    `json:"date"`
}

// WorkoutParams narrows repo listing to one user, optionally to one
// exercise type. Equality filters only, everything else happens in
// the analyzer.
type WorkoutParams struct {
	UserID       int
	ExerciseType ExerciseType
}
