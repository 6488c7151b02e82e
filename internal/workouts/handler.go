package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/iBlazeX/FitForm3/internal/middleware"
	"github.com/iBlazeX/FitForm3/internal/telemetry/metrics"
	"github.com/iBlazeX/FitForm3/internal/telemetry/tracing"
	"github.com/iBlazeX/FitForm3/internal/users"
	"github.com/iBlazeX/FitForm3/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=handler.go -destination=workouts_mocks_test.go -package=workouts_test

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type workoutsRepo interface {
	Add(ctx context.Context, workout Workout) (*Workout, error)
	Get(ctx context.Context, id int) (*Workout, error)
	ListAll(ctx context.Context, params WorkoutParams) ([]Workout, error)
	Delete(ctx context.Context, id int) error
}

type profileGetter interface {
	GetProfile(ctx context.Context, userID int) (*users.Profile, error)
}

type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

type HistoryResponse struct {
	Workouts   []Workout  `json:"workouts"`
	Pagination Pagination `json:"pagination"`
}

type DeleteWorkoutResponse struct {
	DeletedID int `json:"deletedId"`
}

type Handler struct {
	repo           workoutsRepo
	profiles       profileGetter
	analyzer       *Analyzer
	metricsManager *metrics.Manager
}

func NewHandler(
	repo workoutsRepo,
	profiles profileGetter,
	analyzer *Analyzer,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		repo:           repo,
		profiles:       profiles,
		analyzer:       analyzer,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/api/workouts", handler.HandleAdd).Methods("POST", "OPTIONS").Name("new-workout")
	mainRouter.HandleFunc("/api/workouts/history", handler.HandleHistory).Methods("GET", "OPTIONS").Name("workouts-history")
	mainRouter.HandleFunc("/api/workouts/stats", handler.HandleStats).Methods("GET", "OPTIONS").Name("workouts-stats")
	mainRouter.HandleFunc("/api/workouts/{id}", handler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-workout")
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.new")
	defer span.End()

	userID, ok := middleware.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	type addWorkoutRequest struct {
		ExerciseType   string   `json:"exerciseType"`
		Reps           *int     `json:"reps"`
		CaloriesBurned *float64 `json:"caloriesBurned"`
		Duration       *int     `json:"duration"`
		FormFeedback   []string `json:"formFeedback"`
	}

	var addReq addWorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&addReq); err != nil {
		log.Errorf("new workout, unmarshal json params: %s", err)
		http.Error(w, "add workout failed", http.StatusBadRequest)
		return
	}

	exType := ExerciseType(addReq.ExerciseType)
	var validationErrs pkg.ValidationErrors
	if !exType.Known() {
		validationErrs.Add("exerciseType", "must be one of: pushup, squat, situp")
	}
	if addReq.Reps == nil {
		validationErrs.Add("reps", "is required")
	} else if *addReq.Reps < 0 {
		validationErrs.Add("reps", "must not be negative")
	}
	if addReq.CaloriesBurned != nil && *addReq.CaloriesBurned < 0 {
		validationErrs.Add("caloriesBurned", "must not be negative")
	}
	if addReq.Duration != nil && *addReq.Duration < 0 {
		validationErrs.Add("duration", "must not be negative")
	}
	if len(validationErrs) > 0 {
		pkg.WriteValidationErrors(w, validationErrs)
		return
	}

	duration := 0
	if addReq.Duration != nil {
		duration = *addReq.Duration
	}

	profile, err := handler.profiles.GetProfile(ctx, userID)
	if err != nil && !errors.Is(err, users.ErrUserNotFound) {
		log.Errorf("new workout, get profile for user %d: %s", userID, err)
		http.Error(w, "add workout failed", http.StatusInternalServerError)
		return
	}

	// zero supplied calories means "estimate for me" too
	calories := EstimateCalories(exType, *addReq.Reps, duration, profile)
	if addReq.CaloriesBurned != nil && *addReq.CaloriesBurned > 0 {
		calories = *addReq.CaloriesBurned
	}

	formFeedback := addReq.FormFeedback
	if formFeedback == nil {
		formFeedback = []string{}
	}

	addedWorkout, err := handler.repo.Add(ctx, Workout{
		UserID:          userID,
		ExerciseType:    exType,
		Reps:            *addReq.Reps,
		CaloriesBurned:  RoundTo2(calories),
		DurationSeconds: duration,
		FormFeedback:    formFeedback,
		CreatedAt:       time.Now(),
	})
	if err != nil {
		log.Errorf("failed to add new workout [%s] for user %d: %s", exType, userID, err)
		http.Error(w, "error, failed to add new workout", http.StatusInternalServerError)
		return
	}

	log.Debugf("new workout added: [%s] for user %d: %d", addedWorkout.ExerciseType, userID, addedWorkout.ID)
	handler.metricsManager.CounterWorkoutsSaved.Inc()
	span.SetAttributes(attribute.Int("workout.id", addedWorkout.ID))

	workoutJson, err := json.Marshal(addedWorkout)
	if err != nil {
		log.Errorf("failed to marshal new workout: %s", err)
		http.Error(w, "error, failed to add new workout", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, workoutJson, http.StatusCreated)
}

func (handler *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.history")
	defer span.End()

	userID, ok := middleware.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	limit := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit < 1 || parsedLimit > maxHistoryLimit {
			http.Error(w, fmt.Sprintf("error, limit must be between 1 and %d", maxHistoryLimit), http.StatusBadRequest)
			return
		}
		limit = parsedLimit
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		parsedOffset, err := strconv.Atoi(offsetStr)
		if err != nil || parsedOffset < 0 {
			http.Error(w, "error, offset must not be negative", http.StatusBadRequest)
			return
		}
		offset = parsedOffset
	}

	exType := ExerciseType(r.URL.Query().Get("exerciseType"))
	if exType != "" && !exType.Known() {
		http.Error(w, "error, unknown exercise type", http.StatusBadRequest)
		return
	}

	workouts, total, err := handler.analyzer.History(ctx, userID, HistoryParams{
		ExerciseType: exType,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		log.Errorf("failed to get workouts history for user %d: %s", userID, err)
		http.Error(w, "error, failed to get workouts history", http.StatusInternalServerError)
		return
	}

	historyJson, err := json.Marshal(HistoryResponse{
		Workouts: workouts,
		Pagination: Pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(workouts) < total,
		},
	})
	if err != nil {
		log.Errorf("failed to marshal workouts history: %s", err)
		http.Error(w, "error, failed to get workouts history", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, historyJson)
}

func (handler *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.stats")
	defer span.End()

	userID, ok := middleware.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	stats, err := handler.analyzer.Stats(ctx, userID, time.Now())
	if err != nil {
		log.Errorf("failed to get workout stats for user %d: %s", userID, err)
		http.Error(w, "error, failed to get workout stats", http.StatusInternalServerError)
		return
	}

	statsJson, err := json.Marshal(stats)
	if err != nil {
		log.Errorf("failed to marshal workout stats: %s", err)
		http.Error(w, "error, failed to get workout stats", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, statsJson)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.delete")
	defer span.End()

	userID, ok := middleware.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	idStr := vars["id"]
	if idStr == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	workout, err := handler.repo.Get(ctx, id)
	if errors.Is(err, ErrWorkoutNotFound) {
		http.Error(w, "workout not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("failed to get workout %d: %s", id, err)
		http.Error(w, "workout not deleted", http.StatusInternalServerError)
		return
	}

	// not yours is not the same as not there
	if workout.UserID != userID {
		log.Warnf("user %d tried to delete workout %d owned by user %d", userID, id, workout.UserID)
		http.Error(w, "not allowed", http.StatusForbidden)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		log.Errorf("failed to delete workout %d: %s", id, err)
		http.Error(w, "workout not deleted", http.StatusInternalServerError)
		return
	}

	handler.metricsManager.CounterWorkoutsDeleted.Inc()

	deleteRespJson, err := json.Marshal(DeleteWorkoutResponse{
		DeletedID: id,
	})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "failed to marshal delete response", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, string(deleteRespJson))
}
