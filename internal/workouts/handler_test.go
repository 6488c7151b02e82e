package workouts_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iBlazeX/FitForm3/internal/middleware"
	"github.com/iBlazeX/FitForm3/internal/telemetry/metrics"
	"github.com/iBlazeX/FitForm3/internal/users"
	"github.com/iBlazeX/FitForm3/internal/workouts"
	"github.com/iBlazeX/FitForm3/pkg"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestWorkoutsHandler(t *testing.T) (*workouts.Handler, *MockworkoutsRepo, *MockprofileGetter) {
	ctrl := gomock.NewController(t)
	repoMock := NewMockworkoutsRepo(ctrl)
	profilesMock := NewMockprofileGetter(ctrl)
	analyzer := workouts.NewAnalyzer(repoMock, profilesMock)
	h := workouts.NewHandler(repoMock, profilesMock, analyzer, metrics.NewTestManager())
	return h, repoMock, profilesMock
}

func TestHandler_HandleAdd(t *testing.T) {
	h, repoMock, profilesMock := newTestWorkoutsHandler(t)

	reqJson := `{"exerciseType": "pushup", "reps": 20, "formFeedback": ["keep your back straight"]}`
	rec := httptest.NewRecorder()
	req, err := http.NewRequest("POST", "/api/workouts", bytes.NewReader([]byte(reqJson)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req = middleware.RequestWithUserID(req, 42)

	profilesMock.EXPECT().
		GetProfile(gomock.Any(), 42).
		Return(nil, users.ErrUserNotFound).Times(1)
	repoMock.EXPECT().
		Add(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, w workouts.Workout) (*workouts.Workout, error) {
			assert.Equal(t, 42, w.UserID)
			assert.Equal(t, workouts.ExercisePushup, w.ExerciseType)
			assert.Equal(t, 20, w.Reps)
			// 20 pushups at the reference body: 7.0, no profile around
			assert.Equal(t, 7.0, w.CaloriesBurned)
			assert.Equal(t, []string{"keep your back straight"}, w.FormFeedback)
			assert.WithinDuration(t, time.Now(), w.CreatedAt, time.Minute)
			w.ID = 1
			return &w, nil
		}).Times(1)

	h.HandleAdd(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var addedWorkout workouts.Workout
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &addedWorkout))
	assert.Equal(t, 1, addedWorkout.ID)
	assert.Equal(t, 7.0, addedWorkout.CaloriesBurned)
}

func TestHandler_HandleAdd_withProfile(t *testing.T) {
	h, repoMock, profilesMock := newTestWorkoutsHandler(t)

	reqJson := `{"exerciseType": "squat", "reps": 10, "duration": 45}`
	rec := httptest.NewRecorder()
	req, err := http.NewRequest("POST", "/api/workouts", bytes.NewReader([]byte(reqJson)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req = middleware.RequestWithUserID(req, 42)

	weight := 80.0
	gender := users.GenderFemale
	profilesMock.EXPECT().
		GetProfile(gomock.Any(), 42).
		Return(&users.Profile{Weight: &weight, Gender: &gender}, nil).Times(1)
	repoMock.EXPECT().
		Add(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, w workouts.Workout) (*workouts.Workout, error) {
			// 0.32 * 10 * (80/70) * 0.95, rounded at persistence
			assert.Equal(t, workouts.RoundTo2(0.32*10*(80.0/70.0)*0.95), w.CaloriesBurned)
			assert.Equal(t, 45, w.DurationSeconds)
			w.ID = 2
			return &w, nil
		}).Times(1)

	h.HandleAdd(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandler_HandleAdd_suppliedCalories(t *testing.T) {
	h, repoMock, profilesMock := newTestWorkoutsHandler(t)

	reqJson := `{"exerciseType": "situp", "reps": 30, "caloriesBurned": 12.345}`
	rec := httptest.NewRecorder()
	req, err := http.NewRequest("POST", "/api/workouts", bytes.NewReader([]byte(reqJson)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req = middleware.RequestWithUserID(req, 42)

	profilesMock.EXPECT().
		GetProfile(gomock.Any(), 42).
		Return(nil, users.ErrUserNotFound).Times(1)
	repoMock.EXPECT().
		Add(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, w workouts.Workout) (*workouts.Workout, error) {
			// client-measured calories win over the estimate
			assert.Equal(t, 12.35, w.CaloriesBurned)
			w.ID = 3
			return &w, nil
		}).Times(1)

	h.HandleAdd(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandler_HandleAdd_zeroCaloriesFallsBackToEstimate(t *testing.T) {
	h, repoMock, profilesMock := newTestWorkoutsHandler(t)

	reqJson := `{"exerciseType": "pushup", "reps": 20, "caloriesBurned": 0}`
	rec := httptest.NewRecorder()
	req, err := http.NewRequest("POST", "/api/workouts", bytes.NewReader([]byte(reqJson)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req = middleware.RequestWithUserID(req, 42)

	profilesMock.EXPECT().
		GetProfile(gomock.Any(), 42).
		Return(nil, users.ErrUserNotFound).Times(1)
	repoMock.EXPECT().
		Add(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, w workouts.Workout) (*workouts.Workout, error) {
			assert.Equal(t, 7.0, w.CaloriesBurned)
			w.ID = 4
			return &w, nil
		}).Times(1)

	h.HandleAdd(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandler_HandleAdd_validation(t *testing.T) {
	h, _, _ := newTestWorkoutsHandler(t)

	testCases := []struct {
		name          string
		reqJson       string
		invalidFields []string
	}{
		{
			name:          "UnknownExerciseType",
			reqJson:       `{"exerciseType": "burpee", "reps": 10}`,
			invalidFields: []string{"exerciseType"},
		},
		{
			name:          "MissingReps",
			reqJson:       `{"exerciseType": "pushup"}`,
			invalidFields: []string{"reps"},
		},
		{
			name:          "NegativeReps",
			reqJson:       `{"exerciseType": "pushup", "reps": -1}`,
			invalidFields: []string{"reps"},
		},
		{
			name:          "NegativeCaloriesAndDuration",
			reqJson:       `{"exerciseType": "pushup", "reps": 10, "caloriesBurned": -1, "duration": -5}`,
			invalidFields: []string{"caloriesBurned", "duration"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req, err := http.NewRequest("POST", "/api/workouts", bytes.NewReader([]byte(tc.reqJson)))
			require.NoError(t, err)
			req.Header.Set("Content-Type", "application/json")
			req = middleware.RequestWithUserID(req, 42)

			h.HandleAdd(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp struct {
				Errors pkg.ValidationErrors `json:"errors"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			fields := make([]string, 0, len(resp.Errors))
			for _, fe := range resp.Errors {
				fields = append(fields, fe.Field)
			}
			assert.ElementsMatch(t, tc.invalidFields, fields)
		})
	}
}

func TestHandler_HandleAdd_noAuth(t *testing.T) {
	h, _, _ := newTestWorkoutsHandler(t)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest(
		"POST", "/api/workouts",
		bytes.NewReader([]byte(`{"exerciseType": "pushup", "reps": 10}`)),
	)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	h.HandleAdd(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_HandleHistory(t *testing.T) {
	h, repoMock, _ := newTestWorkoutsHandler(t)

	now := time.Now()
	var history []workouts.Workout
	for i := 0; i < 5; i++ {
		history = append(history, workouts.Workout{
			ID:             i + 1,
			UserID:         42,
			ExerciseType:   workouts.ExercisePushup,
			Reps:           10,
			CaloriesBurned: 3.5,
			CreatedAt:      now.Add(-time.Duration(i) * time.Hour),
		})
	}

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/api/workouts/history?limit=2&offset=1", nil)
	require.NoError(t, err)
	req = middleware.RequestWithUserID(req, 42)

	repoMock.EXPECT().
		ListAll(gomock.Any(), workouts.WorkoutParams{UserID: 42}).
		Return(history, nil).Times(1)

	h.HandleHistory(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var historyResp workouts.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &historyResp))
	require.Len(t, historyResp.Workouts, 2)
	assert.Equal(t, 2, historyResp.Workouts[0].ID)
	assert.Equal(t, 3, historyResp.Workouts[1].ID)
	assert.Equal(t, workouts.Pagination{Total: 5, Limit: 2, Offset: 1, HasMore: true}, historyResp.Pagination)
}

func TestHandler_HandleHistory_invalidParams(t *testing.T) {
	h, _, _ := newTestWorkoutsHandler(t)

	testCases := []struct {
		name  string
		query string
	}{
		{name: "LimitZero", query: "limit=0"},
		{name: "LimitTooBig", query: "limit=101"},
		{name: "LimitNaN", query: "limit=abc"},
		{name: "NegativeOffset", query: "offset=-1"},
		{name: "UnknownExerciseType", query: "exerciseType=burpee"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req, err := http.NewRequest("GET", "/api/workouts/history?"+tc.query, nil)
			require.NoError(t, err)
			req = middleware.RequestWithUserID(req, 42)

			h.HandleHistory(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandler_HandleStats(t *testing.T) {
	h, repoMock, profilesMock := newTestWorkoutsHandler(t)

	now := time.Now()
	history := []workouts.Workout{
		{
			ID: 1, UserID: 42,
			ExerciseType:   workouts.ExercisePushup,
			Reps:           20,
			CaloriesBurned: 7.0,
			CreatedAt:      now,
		},
	}

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/api/workouts/stats", nil)
	require.NoError(t, err)
	req = middleware.RequestWithUserID(req, 42)

	repoMock.EXPECT().
		ListAll(gomock.Any(), workouts.WorkoutParams{UserID: 42}).
		Return(history, nil).Times(1)
	profilesMock.EXPECT().
		GetProfile(gomock.Any(), 42).
		Return(nil, users.ErrUserNotFound).Times(1)

	h.HandleStats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats workouts.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalWorkouts)
	assert.Equal(t, 20, stats.TotalReps)
	assert.Equal(t, 7.0, stats.TotalCalories)
	assert.Equal(t, workouts.ExerciseStats{Count: 1, Reps: 20, Calories: 7.0}, stats.ByExercise[workouts.ExercisePushup])
	assert.Equal(t, 1, stats.TodayProgress.Workouts)
	require.Len(t, stats.RecentWorkouts, 1)
}

func TestHandler_HandleDelete(t *testing.T) {
	h, repoMock, _ := newTestWorkoutsHandler(t)

	router := mux.NewRouter()
	h.SetupRoutes(router)

	testCases := []struct {
		name               string
		workout            *workouts.Workout
		getErr             error
		expectDelete       bool
		expectedStatusCode int
	}{
		{
			name:               "Owned",
			workout:            &workouts.Workout{ID: 1, UserID: 42},
			expectDelete:       true,
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "NotFound",
			getErr:             workouts.ErrWorkoutNotFound,
			expectedStatusCode: http.StatusNotFound,
		},
		{
			name:               "NotOwned",
			workout:            &workouts.Workout{ID: 1, UserID: 43},
			expectedStatusCode: http.StatusForbidden,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req, err := http.NewRequest("DELETE", "/api/workouts/1", nil)
			require.NoError(t, err)
			req = middleware.RequestWithUserID(req, 42)

			repoMock.EXPECT().
				Get(gomock.Any(), 1).
				Return(tc.workout, tc.getErr).Times(1)
			if tc.expectDelete {
				repoMock.EXPECT().
					Delete(gomock.Any(), 1).
					Return(nil).Times(1)
			}

			router.ServeHTTP(rec, req)

			require.Equal(t, tc.expectedStatusCode, rec.Code)
			if tc.expectedStatusCode == http.StatusOK {
				assert.JSONEq(t, `{"deletedId": 1}`, rec.Body.String())
			}
		})
	}
}
