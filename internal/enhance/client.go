package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sellerstudio/imageprep/internal/jobutil"
)

// JobState is the closed set of upscaling job states.
type JobState int

const (
	JobPending JobState = iota
	JobSucceeded
	JobFailed
)

// Job is a snapshot of an upscaling job: terminal state plus the output asset
// reference on success or the remote failure reason.
type Job struct {
	ID        string
	State     JobState
	OutputURL string
	Reason    string
}

// Client is the upscaling capability boundary: submit a job, poll it by id.
type Client interface {
	Submit(ctx context.Context, modelVersion, imageURL string, scale int) (jobID string, err error)
	Status(ctx context.Context, jobID string) (Job, error)
}

// HTTPClient implements Client against a prediction-style upscaling API:
// POST /v1/predictions returns 201 with a job id; GET /v1/predictions/{id}
// reports status and, once succeeded, the output asset reference.
type HTTPClient struct {
	baseURL  string
	apiToken string
	http     *http.Client
}

// NewHTTPClient builds the prediction API client.
func NewHTTPClient(baseURL, apiToken string) *HTTPClient {
	return &HTTPClient{
		baseURL:  baseURL,
		apiToken: apiToken,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type submitRequest struct {
	Version string      `json:"version"`
	Input   submitInput `json:"input"`
}

type submitInput struct {
	Image string `json:"image"`
	Scale int    `json:"scale"`
}

type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

func (c *HTTPClient) Submit(ctx context.Context, modelVersion, imageURL string, scale int) (string, error) {
	body, err := json.Marshal(submitRequest{
		Version: modelVersion,
		Input:   submitInput{Image: imageURL, Scale: scale},
	})
	if err != nil {
		return "", fmt.Errorf("upscale: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/predictions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("upscale: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &jobutil.TransientError{Op: "upscale: submit", Err: err}
	}
	defer resp.Body.Close()

	// The API acknowledges a queued prediction with 201; anything else is a
	// submission failure.
	if resp.StatusCode != http.StatusCreated {
		if err := jobutil.ClassifyStatus("upscale: submit", resp.StatusCode); err != nil {
			return "", err
		}
		return "", fmt.Errorf("upscale: submit: unexpected HTTP %d", resp.StatusCode)
	}

	var pred predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return "", fmt.Errorf("upscale: decode submit response: %w", err)
	}
	if pred.ID == "" {
		return "", &jobutil.ValidationError{Reason: "upscale job id missing in submit response"}
	}
	return pred.ID, nil
}

func (c *HTTPClient) Status(ctx context.Context, jobID string) (Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/predictions/"+jobID, nil)
	if err != nil {
		return Job{}, fmt.Errorf("upscale: build status request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return Job{}, &jobutil.TransientError{Op: "upscale: status", Err: err}
	}
	defer resp.Body.Close()

	if err := jobutil.ClassifyStatus("upscale: status", resp.StatusCode); err != nil {
		return Job{}, err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Job{}, fmt.Errorf("upscale: read status response: %w", err)
	}
	var pred predictionResponse
	if err := json.Unmarshal(raw, &pred); err != nil {
		return Job{}, fmt.Errorf("upscale: decode status response: %w", err)
	}

	job := Job{ID: jobID, Reason: pred.Error}
	switch pred.Status {
	case "succeeded":
		job.State = JobSucceeded
		job.OutputURL = decodeOutput(pred.Output)
		if job.OutputURL == "" {
			job.State = JobFailed
			job.Reason = "succeeded without an output asset"
		}
	case "failed", "canceled":
		job.State = JobFailed
		if job.Reason == "" {
			job.Reason = "job " + pred.Status
		}
	default:
		job.State = JobPending
	}
	return job, nil
}

// decodeOutput accepts either a single URL string or an array of URLs (the
// API returns an array for multi-output models; the first entry is the asset).
func decodeOutput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}
