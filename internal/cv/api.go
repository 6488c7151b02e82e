package cv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/iBlazeX/FitForm3/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/codes"
)

// DetectResponse is what the pose-detection service reports for one
// submitted frame batch.
type DetectResponse struct {
	ExerciseType string   `json:"exerciseType"`
	RepCount     int      `json:"repCount"`
	FormFeedback []string `json:"formFeedback"`
	Confidence   float64  `json:"confidence"`
}

type ExercisesResponse struct {
	Exercises []string `json:"exercises"`
}

// Api is a thin client for the pose-detection service. The service
// does the heavy vision work, this side only ferries JSON around.
type Api struct {
	cvServiceURL string
	httpClient   *http.Client
}

func NewApi(cvServiceURL string, httpClient *http.Client) *Api {
	return &Api{
		cvServiceURL: cvServiceURL,
		httpClient:   httpClient,
	}
}

func (api *Api) Detect(ctx context.Context, payload []byte) (_ *DetectResponse, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "cvApi.detect")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "detection done")
		}
	}()

	req, err := http.NewRequestWithContext(
		ctx, "POST",
		fmt.Sprintf("%s/detect", api.cvServiceURL),
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := api.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detection service responded with: %s", resp.Status)
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read detection response bytes: %w", err)
	}

	var detectResponse DetectResponse
	if err := json.Unmarshal(respBytes, &detectResponse); err != nil {
		return nil, fmt.Errorf("failed to unmarshal detection response bytes: %w", err)
	}

	return &detectResponse, nil
}

func (api *Api) Exercises(ctx context.Context) (_ *ExercisesResponse, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "cvApi.exercises")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "exercises listed")
		}
	}()

	req, err := http.NewRequestWithContext(
		ctx, "GET",
		fmt.Sprintf("%s/exercises", api.cvServiceURL),
		nil,
	)
	if err != nil {
		return nil, err
	}

	resp, err := api.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detection service responded with: %s", resp.Status)
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read exercises response bytes: %w", err)
	}

	var exercisesResponse ExercisesResponse
	if err := json.Unmarshal(respBytes, &exercisesResponse); err != nil {
		return nil, fmt.Errorf("failed to unmarshal exercises response bytes: %w", err)
	}

	return &exercisesResponse, nil
}
