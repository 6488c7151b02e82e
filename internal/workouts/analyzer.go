package workouts

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/iBlazeX/FitForm3/internal/telemetry/tracing"
	"github.com/iBlazeX/FitForm3/internal/users"

	"go.opentelemetry.io/otel/attribute"
)

const recentWorkoutsCount = 5

type ExerciseStats struct {
	Count    int     `json:"count"`
	Reps     int     `json:"reps"`
	Calories float64 `json:"calories"`
}

type TodayProgress struct {
	Calories float64 `json:"calories"`
	Reps     int     `json:"reps"`
	Workouts int     `json:"workouts"`
}

type WeekProgress struct {
	Workouts int `json:"workouts"`
}

// Stats is the full aggregate over a user's workout history.
type Stats struct {
	TotalWorkouts  int                            `json:"totalWorkouts"`
	TotalReps      int                            `json:"totalReps"`
	TotalCalories  float64                        `json:"totalCalories"`
	TotalDuration  int                            `json:"totalDuration"`
	ByExercise     map[ExerciseType]ExerciseStats `json:"byExercise"`
	RecentWorkouts []Workout                      `json:"recentWorkouts"`
	Goals          *users.Goals                   `json:"goals"`
	TodayProgress  TodayProgress                  `json:"todayProgress"`
	WeekProgress   WeekProgress                   `json:"weekProgress"`
}

// CalculateStats projects a workout history into a Stats report. Pure,
// "now" comes in as a parameter so reports are re-derivable with a
// fixed clock.
func CalculateStats(workouts []Workout, profile *users.Profile, now time.Time) Stats {
	var goals *users.Goals
	if profile != nil {
		g := profile.Goals()
		goals = &g
	}

	stats := Stats{
		ByExercise:     map[ExerciseType]ExerciseStats{},
		RecentWorkouts: []Workout{},
		Goals:          goals,
	}

	if len(workouts) == 0 {
		return stats
	}

	for _, exType := range KnownExerciseTypes() {
		stats.ByExercise[exType] = ExerciseStats{}
	}

	// AddDate keeps the windows calendar-correct on 23/25 hour DST days
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	todayEnd := todayStart.AddDate(0, 0, 1)
	// weeks start on monday; sunday belongs to the week begun 6 days earlier
	weekStart := todayStart.AddDate(0, 0, -((int(now.Weekday()) + 6) % 7))
	weekEnd := weekStart.AddDate(0, 0, 7)

	for _, w := range workouts {
		stats.TotalWorkouts++
		stats.TotalReps += w.Reps
		stats.TotalCalories += w.CaloriesBurned
		stats.TotalDuration += w.DurationSeconds

		// unknown kinds still count towards the totals above
		if exStats, ok := stats.ByExercise[w.ExerciseType]; ok {
			exStats.Count++
			exStats.Reps += w.Reps
			exStats.Calories += w.CaloriesBurned
			stats.ByExercise[w.ExerciseType] = exStats
		}

		if !w.CreatedAt.Before(todayStart) && w.CreatedAt.Before(todayEnd) {
			stats.TodayProgress.Workouts++
			stats.TodayProgress.Reps += w.Reps
			stats.TodayProgress.Calories += w.CaloriesBurned
		}
		if !w.CreatedAt.Before(weekStart) && w.CreatedAt.Before(weekEnd) {
			stats.WeekProgress.Workouts++
		}
	}

	recent := make([]Workout, len(workouts))
	copy(recent, workouts)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	if len(recent) > recentWorkoutsCount {
		recent = recent[:recentWorkoutsCount]
	}
	stats.RecentWorkouts = recent

	stats.TotalCalories = RoundTo2(stats.TotalCalories)
	stats.TodayProgress.Calories = RoundTo2(stats.TodayProgress.Calories)
	for exType, exStats := range stats.ByExercise {
		exStats.Calories = RoundTo2(exStats.Calories)
		stats.ByExercise[exType] = exStats
	}

	return stats
}

type HistoryParams struct {
	ExerciseType ExerciseType
	Limit        int
	Offset       int
}

// FilterHistory filters, sorts descending by date and paginates a
// workout collection. Returns the page and the filtered total.
func FilterHistory(workouts []Workout, params HistoryParams) ([]Workout, int) {
	filtered := make([]Workout, 0, len(workouts))
	for _, w := range workouts {
		if params.ExerciseType != "" && w.ExerciseType != params.ExerciseType {
			continue
		}
		filtered = append(filtered, w)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	total := len(filtered)
	if params.Offset >= total {
		return []Workout{}, total
	}
	end := params.Offset + params.Limit
	if end > total {
		end = total
	}
	return filtered[params.Offset:end], total
}

type Analyzer struct {
	repo     workoutsRepo
	profiles profileGetter
}

func NewAnalyzer(repo workoutsRepo, profiles profileGetter) *Analyzer {
	return &Analyzer{
		repo:     repo,
		profiles: profiles,
	}
}

func (a *Analyzer) Stats(ctx context.Context, userID int, now time.Time) (_ *Stats, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.workouts.stats")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	workouts, err := a.repo.ListAll(ctx, WorkoutParams{UserID: userID})
	if err != nil {
		return nil, err
	}

	profile, err := a.profiles.GetProfile(ctx, userID)
	if err != nil && !errors.Is(err, users.ErrUserNotFound) {
		return nil, err
	}

	stats := CalculateStats(workouts, profile, now)
	return &stats, nil
}

func (a *Analyzer) History(
	ctx context.Context,
	userID int,
	params HistoryParams,
) (_ []Workout, total int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.workouts.history")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	workouts, err := a.repo.ListAll(ctx, WorkoutParams{UserID: userID})
	if err != nil {
		return nil, 0, err
	}

	page, total := FilterHistory(workouts, params)
	return page, total, nil
}
