package users

import (
	"time"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) Known() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Profile holds the optional body and goal attributes of a user. All
// fields are pointers so that unset attributes render as JSON null and
// partial updates can tell "absent" from "zero".
type Profile struct {
	Age               *int     `json:"age"`
	Weight            *float64 `json:"weight"` // kilograms
	Height            *float64 `json:"height"` // centimeters
	Gender            *Gender  `json:"gender"`
	FitnessGoal       *string  `json:"fitnessGoal"`
	DailyCalorieGoal  *int     `json:"dailyCalorieGoal"`
	DailyRepsGoal     *int     `json:"dailyRepsGoal"`
	WeeklyWorkoutGoal *int     `json:"weeklyWorkoutGoal"`
}

// Goals is the target values slice of the profile, served within stats.
type Goals struct {
	DailyCalorieGoal  *int `json:"dailyCalorieGoal"`
	DailyRepsGoal     *int `json:"dailyRepsGoal"`
	WeeklyWorkoutGoal *int `json:"weeklyWorkoutGoal"`
}

func (p *Profile) Goals() Goals {
	if p == nil {
		return Goals{}
	}
	return Goals{
		DailyCalorieGoal:  p.DailyCalorieGoal,
		DailyRepsGoal:     p.DailyRepsGoal,
		WeeklyWorkoutGoal: p.WeeklyWorkoutGoal,
	}
}

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Profile      Profile   `json:"profile"`
	CreatedAt    time.Time `json:"createdAt"`
}
