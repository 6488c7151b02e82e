package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGender_Known(t *testing.T) {
	assert.True(t, GenderMale.Known())
	assert.True(t, GenderFemale.Known())
	assert.True(t, GenderOther.Known())
	assert.False(t, Gender("robot").Known())
	assert.False(t, Gender("").Known())
}

func TestProfile_Goals(t *testing.T) {
	var nilProfile *Profile
	assert.Equal(t, Goals{}, nilProfile.Goals())

	calGoal, repsGoal := 500, 100
	p := &Profile{
		DailyCalorieGoal: &calGoal,
		DailyRepsGoal:    &repsGoal,
	}
	goals := p.Goals()
	require.NotNil(t, goals.DailyCalorieGoal)
	assert.Equal(t, 500, *goals.DailyCalorieGoal)
	require.NotNil(t, goals.DailyRepsGoal)
	assert.Equal(t, 100, *goals.DailyRepsGoal)
	assert.Nil(t, goals.WeeklyWorkoutGoal)
}

func TestMergeProfiles(t *testing.T) {
	age, weight := 30, 75.0
	current := Profile{
		Age:    &age,
		Weight: &weight,
	}

	newWeight := 78.5
	goal := "strength"
	merged := mergeProfiles(current, Profile{
		Weight:      &newWeight,
		FitnessGoal: &goal,
	})

	// untouched fields survive, set fields win
	require.NotNil(t, merged.Age)
	assert.Equal(t, 30, *merged.Age)
	require.NotNil(t, merged.Weight)
	assert.Equal(t, 78.5, *merged.Weight)
	require.NotNil(t, merged.FitnessGoal)
	assert.Equal(t, "strength", *merged.FitnessGoal)
	assert.Nil(t, merged.Gender)
}
