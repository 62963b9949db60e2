package finish

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

// Optimizer is the compression capability boundary: a generic compress call
// that returns an intermediate reference, and a conversion call that turns
// that reference into final bytes in the target format within a bounding box.
type Optimizer interface {
	Compress(ctx context.Context, data []byte) (ref string, err error)
	Convert(ctx context.Context, ref, format string, maxWidth, maxHeight int) ([]byte, error)
}

// Fetcher retrieves the raw bytes of an image URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Hoster re-hosts a finished asset and returns its stable public URL.
type Hoster interface {
	Upload(ctx context.Context, data []byte, filename, contentType string) (string, error)
}

// HTTPOptimizer implements Optimizer against the optimization service:
// POST /v1/compress with raw bytes returns {"ref": ...}; POST /v1/convert
// with the ref and constraints returns the converted bytes.
type HTTPOptimizer struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPOptimizer builds the optimization service client.
func NewHTTPOptimizer(baseURL, apiKey string) *HTTPOptimizer {
	return &HTTPOptimizer{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

type compressResponse struct {
	Ref string `json:"ref"`
}

type convertRequest struct {
	Ref          string `json:"ref"`
	TargetFormat string `json:"targetFormat"`
	MaxWidth     int    `json:"maxWidth"`
	MaxHeight    int    `json:"maxHeight"`
}

func (o *HTTPOptimizer) Compress(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", &jobutil.ValidationError{Reason: "empty image payload"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/compress", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("optimize: build compress request: %w", err)
	}
	req.Header.Set("X-Api-Key", o.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := o.http.Do(req)
	if err != nil {
		return "", &jobutil.TransientError{Op: "optimize: compress", Err: err}
	}
	defer resp.Body.Close()

	if err := jobutil.ClassifyStatus("optimize: compress", resp.StatusCode); err != nil {
		return "", err
	}

	var out compressResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("optimize: decode compress response: %w", err)
	}
	if out.Ref == "" {
		return "", &jobutil.ValidationError{Reason: "compress response carried no intermediate ref"}
	}
	return out.Ref, nil
}

func (o *HTTPOptimizer) Convert(ctx context.Context, ref, format string, maxWidth, maxHeight int) ([]byte, error) {
	body, err := json.Marshal(convertRequest{
		Ref:          ref,
		TargetFormat: format,
		MaxWidth:     maxWidth,
		MaxHeight:    maxHeight,
	})
	if err != nil {
		return nil, fmt.Errorf("optimize: encode convert request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/convert", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("optimize: build convert request: %w", err)
	}
	req.Header.Set("X-Api-Key", o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, &jobutil.TransientError{Op: "optimize: convert", Err: err}
	}
	defer resp.Body.Close()

	if err := jobutil.ClassifyStatus("optimize: convert", resp.StatusCode); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("optimize: read converted asset: %w", err)
	}
	if len(data) == 0 {
		return nil, &jobutil.ValidationError{Reason: "convert response carried no asset bytes"}
	}
	return data, nil
}

// HTTPFetcher implements Fetcher with a plain GET.
type HTTPFetcher struct {
	http *http.Client
}

// NewHTTPFetcher builds a fetcher for source image bytes.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{http: &http.Client{Timeout: 30 * time.Second}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &jobutil.ValidationError{Reason: fmt.Sprintf("bad image URL %q: %v", url, err)}
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, &jobutil.TransientError{Op: "fetch image", Err: err}
	}
	defer resp.Body.Close()

	if err := jobutil.ClassifyStatus("fetch image", resp.StatusCode); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch image: read body: %w", err)
	}
	if len(data) == 0 {
		return nil, &jobutil.ValidationError{Reason: "image URL returned an empty body"}
	}
	return data, nil
}
