package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iBlazeX/FitForm3/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrWorkoutNotFound = errors.New("workout not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, workout Workout) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	feedbackJson, err := json.Marshal(workout.FormFeedback)
	if err != nil {
		return nil, fmt.Errorf("marshal form feedback: %w", err)
	}

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO workout
				(user_id, exercise_type, reps, calories_burned, duration_seconds, form_feedback, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id;`,
		workout.UserID, workout.ExerciseType, workout.Reps, workout.CaloriesBurned,
		workout.DurationSeconds, feedbackJson, workout.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	span.SetAttributes(attribute.Int("workout.id", id))

	workout.ID = id
	return &workout, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	var (
		workout      Workout
		feedbackJson []byte
	)
	err = r.db.
		QueryRow(
			ctx,
			`SELECT id, user_id, exercise_type, reps, calories_burned, duration_seconds, form_feedback, created_at
				FROM workout WHERE id = $1;`,
			id,
		).
		Scan(
			&workout.ID, &workout.UserID, &workout.ExerciseType, &workout.Reps,
			&workout.CaloriesBurned, &workout.DurationSeconds, &feedbackJson, &workout.CreatedAt,
		)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWorkoutNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(feedbackJson, &workout.FormFeedback); err != nil {
		return nil, fmt.Errorf("unmarshal form feedback: %w", err)
	}

	return &workout, nil
}

// ListAll returns workouts matching the given equality filters, in no
// particular order. Sorting and pagination live in the analyzer.
func (r *Repo) ListAll(ctx context.Context, params WorkoutParams) (_ []Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.listAll")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", params.UserID))

	query := `SELECT id, user_id, exercise_type, reps, calories_burned, duration_seconds, form_feedback, created_at
				FROM workout WHERE user_id = $1`
	args := []any{params.UserID}
	if params.ExerciseType != "" {
		query += ` AND exercise_type = $2`
		args = append(args, params.ExerciseType)
	}

	rows, err := r.db.Query(ctx, query+`;`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workouts []Workout
	for rows.Next() {
		var (
			workout      Workout
			feedbackJson []byte
		)
		if err := rows.Scan(
			&workout.ID, &workout.UserID, &workout.ExerciseType, &workout.Reps,
			&workout.CaloriesBurned, &workout.DurationSeconds, &feedbackJson, &workout.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		if err := json.Unmarshal(feedbackJson, &workout.FormFeedback); err != nil {
			return nil, fmt.Errorf("unmarshal form feedback: %w", err)
		}
		workouts = append(workouts, workout)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("workouts.count", len(workouts)))

	return workouts, nil
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM workout WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}
	return nil
}
