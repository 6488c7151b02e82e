package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iBlazeX/FitForm3/internal/telemetry/tracing"
	"github.com/iBlazeX/FitForm3/pkg"

	"github.com/coocood/freecache"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user exists already")
)

const (
	profileCacheSize   = 512 * 1024 // bytes, profiles are tiny
	profileCacheExpire = 300        // seconds
)

type Repo struct {
	db           *pgxpool.Pool
	profileCache *freecache.Cache
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db:           db,
		profileCache: freecache.NewCache(profileCacheSize),
	}
}

func (r *Repo) Create(ctx context.Context, user User) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	profileJson, err := json.Marshal(user.Profile)
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO fitform_user
				(username, email, password_hash, profile, created_at)
				VALUES ($1, $2, $3, $4, $5)
			RETURNING id;`,
		user.Username, user.Email, user.PasswordHash, profileJson, user.CreatedAt,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return nil, ErrUserExists
		}
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

	span.SetAttributes(attribute.Int("user.id", id))

	user.ID = id
	return &user, nil
}

func (r *Repo) GetByUsername(ctx context.Context, username string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.getByUsername")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return r.getUser(
		ctx,
		`SELECT id, username, email, password_hash, profile, created_at FROM fitform_user WHERE username = $1;`,
		username,
	)
}

func (r *Repo) GetByID(ctx context.Context, id int) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.getByID")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", id))

	return r.getUser(
		ctx,
		`SELECT id, username, email, password_hash, profile, created_at FROM fitform_user WHERE id = $1;`,
		id,
	)
}

func (r *Repo) getUser(ctx context.Context, query string, args ...any) (*User, error) {
	var (
		user        User
		profileJson []byte
	)
	err := r.db.
		QueryRow(ctx, query, args...).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &profileJson, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(profileJson, &user.Profile); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}

	return &user, nil
}

// GetProfile returns a user profile, served from a small in-process
// cache so the stats and calorie paths do not hit postgres per request.
func (r *Repo) GetProfile(ctx context.Context, userID int) (_ *Profile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.getProfile")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	cacheKey := profileCacheKey(userID)
	if profileBytes, err := r.profileCache.Get(cacheKey); err == nil {
		var profile Profile
		if err = json.Unmarshal(profileBytes, &profile); err == nil {
			return &profile, nil
		}
		log.Errorf("failed to unmarshal cached profile for user %d: %s", userID, err)
	}

	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if profileBytes, err := json.Marshal(user.Profile); err == nil {
		if err := r.profileCache.Set(cacheKey, profileBytes, profileCacheExpire); err != nil {
			log.Errorf("failed to set profile cache for user %d: %s", userID, err)
		}
	}

	return &user.Profile, nil
}

// UpdateProfile merges the given attributes into the stored profile.
// Nil fields keep their current value.
func (r *Repo) UpdateProfile(ctx context.Context, userID int, update Profile) (_ *Profile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.updateProfile")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	merged := mergeProfiles(user.Profile, update)
	profileJson, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}

	tag, err := r.db.Exec(
		ctx,
		`UPDATE fitform_user SET profile = $1 WHERE id = $2;`,
		profileJson, userID,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}

	r.profileCache.Del(profileCacheKey(userID))

	return &merged, nil
}

func profileCacheKey(userID int) []byte {
	return []byte(fmt.Sprintf("profile::%d", userID))
}

func mergeProfiles(current, update Profile) Profile {
	if update.Age != nil {
		current.Age = update.Age
	}
	if update.Weight != nil {
		current.Weight = update.Weight
	}
	if update.Height != nil {
		current.Height = update.Height
	}
	if update.Gender != nil {
		current.Gender = update.Gender
	}
	if update.FitnessGoal != nil {
		current.FitnessGoal = update.FitnessGoal
	}
	if update.DailyCalorieGoal != nil {
		current.DailyCalorieGoal = update.DailyCalorieGoal
	}
	if update.DailyRepsGoal != nil {
		current.DailyRepsGoal = update.DailyRepsGoal
	}
	if update.WeeklyWorkoutGoal != nil {
		current.WeeklyWorkoutGoal = update.WeeklyWorkoutGoal
	}
	return current
}
