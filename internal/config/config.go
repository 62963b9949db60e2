// Package config defines the explicit per-run pipeline configuration.
//
// Every tunable and credential lives in PipelineConfig, constructed once
// (FromEnv or literal) and passed through the stages. There are no ambient
// lookups after construction; a capability is enabled exactly when its
// credential fields are non-empty.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Product is the collaborator record a pipeline run operates on: the product
// name, an article identifier, and the three raw image-URL source strings.
type Product struct {
	Name             string `json:"productName"`
	Article          string `json:"article"`
	UserSelected     string `json:"userSelected"`
	SupplierParsed   string `json:"supplierParsed"`
	PlatformOriginal string `json:"platformOriginal"`
}

// LoadProduct reads a Product from a JSON file.
func LoadProduct(path string) (Product, error) {
	var p Product
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read product file: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse product file: %w", err)
	}
	if p.Name == "" {
		return p, fmt.Errorf("product file %s: productName is required", path)
	}
	return p, nil
}

// AnalysisConfig tunes the description generator (OpenAI Assistants).
type AnalysisConfig struct {
	APIKey       string
	AssistantID  string
	BaseURL      string // optional override for self-hosted gateways
	SubBatchSize int    // images per conversational turn (API attachment cap)
	PollInterval time.Duration
	PollAttempts int
	BatchPause   time.Duration // pause between sub-batches, respects rate limits
}

// Enabled reports whether the analysis capability is configured.
func (c AnalysisConfig) Enabled() bool {
	return c.APIKey != "" && c.AssistantID != ""
}

// UpscaleConfig tunes the resolution enhancer (prediction-style upscaling API).
type UpscaleConfig struct {
	APIToken     string
	BaseURL      string
	ModelVersion string
	Scale        int
	MaxScale     int // model ceiling; requested scale is clamped to this
	PollInterval time.Duration
	PollBudget   time.Duration // total wall-clock allowance per image
}

// Enabled reports whether the upscaling capability is configured.
func (c UpscaleConfig) Enabled() bool {
	return c.APIToken != "" && c.ModelVersion != ""
}

// OptimizeConfig tunes the compression/conversion finisher.
type OptimizeConfig struct {
	APIKey       string
	BaseURL      string
	TargetFormat string // final asset format, e.g. "webp"
	MaxBox       int    // bounding box for the conversion call, pixels
	MinSizeKB    int    // below this the box is widened and the call resubmitted
	MaxSizeKB    int    // above this the box is tightened and the call resubmitted
}

// Enabled reports whether the compression capability is configured.
func (c OptimizeConfig) Enabled() bool {
	return c.APIKey != ""
}

// HostingConfig tunes the re-hosting capability (S3-backed public URLs).
type HostingConfig struct {
	Bucket        string
	Prefix        string
	Region        string
	PublicBaseURL string // optional CDN base; defaults to the bucket endpoint
}

// Enabled reports whether the hosting capability is configured.
func (c HostingConfig) Enabled() bool {
	return c.Bucket != ""
}

// PipelineConfig is the complete, read-only configuration for one run.
type PipelineConfig struct {
	MaxImages   int // batch cap per product
	Concurrency int // worker-pool bound for per-image units

	Analysis AnalysisConfig
	Upscale  UpscaleConfig
	Optimize OptimizeConfig
	Hosting  HostingConfig
}

// Default returns the tunable defaults; credentials are left empty.
func Default() PipelineConfig {
	return PipelineConfig{
		MaxImages:   10,
		Concurrency: 3,
		Analysis: AnalysisConfig{
			SubBatchSize: 5,
			PollInterval: time.Second,
			PollAttempts: 20,
			BatchPause:   2 * time.Second,
		},
		Upscale: UpscaleConfig{
			BaseURL:      "https://api.replicate.com",
			Scale:        2,
			MaxScale:     4,
			PollInterval: time.Second,
			PollBudget:   90 * time.Second,
		},
		Optimize: OptimizeConfig{
			TargetFormat: "webp",
			MaxBox:       3000,
			MinSizeKB:    150,
			MaxSizeKB:    400,
		},
		Hosting: HostingConfig{
			Prefix: "products",
			Region: "us-east-1",
		},
	}
}

// FromEnv builds a PipelineConfig from environment variables on top of the
// defaults. Unset variables leave the default in place.
func FromEnv() PipelineConfig {
	cfg := Default()

	cfg.Analysis.APIKey = os.Getenv("OPENAI_API_KEY")
	cfg.Analysis.AssistantID = os.Getenv("OPENAI_ASSISTANT_ID")
	cfg.Analysis.BaseURL = os.Getenv("OPENAI_BASE_URL")

	cfg.Upscale.APIToken = os.Getenv("UPSCALE_API_TOKEN")
	cfg.Upscale.ModelVersion = os.Getenv("UPSCALE_MODEL_VERSION")
	if v := os.Getenv("UPSCALE_BASE_URL"); v != "" {
		cfg.Upscale.BaseURL = v
	}
	if v, ok := envInt("UPSCALE_SCALE"); ok {
		cfg.Upscale.Scale = v
	}
	if v, ok := envInt("UPSCALE_POLL_BUDGET_SEC"); ok {
		cfg.Upscale.PollBudget = time.Duration(v) * time.Second
	}

	cfg.Optimize.APIKey = os.Getenv("OPTIMIZE_API_KEY")
	if v := os.Getenv("OPTIMIZE_BASE_URL"); v != "" {
		cfg.Optimize.BaseURL = v
	}
	if v := os.Getenv("OPTIMIZE_TARGET_FORMAT"); v != "" {
		cfg.Optimize.TargetFormat = v
	}
	if v, ok := envInt("OPTIMIZE_MIN_KB"); ok {
		cfg.Optimize.MinSizeKB = v
	}
	if v, ok := envInt("OPTIMIZE_MAX_KB"); ok {
		cfg.Optimize.MaxSizeKB = v
	}

	cfg.Hosting.Bucket = os.Getenv("HOSTING_BUCKET")
	if v := os.Getenv("HOSTING_PREFIX"); v != "" {
		cfg.Hosting.Prefix = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Hosting.Region = v
	}
	cfg.Hosting.PublicBaseURL = os.Getenv("HOSTING_PUBLIC_BASE_URL")

	if v, ok := envInt("IMAGEPREP_MAX_IMAGES"); ok {
		cfg.MaxImages = v
	}
	if v, ok := envInt("IMAGEPREP_CONCURRENCY"); ok {
		cfg.Concurrency = v
	}

	return cfg
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
