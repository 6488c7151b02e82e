package cv

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/iBlazeX/FitForm3/internal/telemetry/tracing"
	"github.com/iBlazeX/FitForm3/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type detectionApi interface {
	Detect(ctx context.Context, payload []byte) (*DetectResponse, error)
	Exercises(ctx context.Context) (*ExercisesResponse, error)
}

type Handler struct {
	api detectionApi
}

func NewHandler(api detectionApi) *Handler {
	return &Handler{
		api: api,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/api/cv/detect", handler.HandleDetect).Methods("POST", "OPTIONS").Name("cv-detect")
	mainRouter.HandleFunc("/api/cv/exercises", handler.HandleExercises).Methods("GET", "OPTIONS").Name("cv-exercises")
}

func (handler *Handler) HandleDetect(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.cv.detect")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Errorf("detect, read request body: %s", err)
		http.Error(w, "detection failed", http.StatusBadRequest)
		return
	}
	if len(payload) == 0 {
		http.Error(w, "error, empty payload", http.StatusBadRequest)
		return
	}

	detection, err := handler.api.Detect(ctx, payload)
	if err != nil {
		log.Errorf("rep detection failed: %s", err)
		http.Error(w, "rep detection service unavailable", http.StatusServiceUnavailable)
		return
	}

	detectionJson, err := json.Marshal(detection)
	if err != nil {
		log.Errorf("detect, marshal response: %s", err)
		http.Error(w, "detection failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, detectionJson)
}

func (handler *Handler) HandleExercises(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.cv.exercises")
	defer span.End()

	exercises, err := handler.api.Exercises(ctx)
	if err != nil {
		log.Errorf("list detectable exercises failed: %s", err)
		http.Error(w, "rep detection service unavailable", http.StatusServiceUnavailable)
		return
	}

	exercisesJson, err := json.Marshal(exercises)
	if err != nil {
		log.Errorf("exercises, marshal response: %s", err)
		http.Error(w, "list exercises failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, exercisesJson)
}
