// Package pipeline sequences the image preparation stages for one product:
// locate candidates, generate descriptions, enhance resolution, compress and
// re-host, then assemble the final confidence-scored results.
//
// Stages are strictly sequential; no stage starts before the previous stage's
// full output exists. Every stage degrades instead of aborting, so a
// non-empty input batch always yields a same-length result list — at worst a
// single synthetic record when nothing could be located.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sellerstudio/imageprep/internal/config"
	"github.com/sellerstudio/imageprep/internal/describe"
	"github.com/sellerstudio/imageprep/internal/enhance"
	"github.com/sellerstudio/imageprep/internal/finish"
	"github.com/sellerstudio/imageprep/internal/locator"
	"github.com/sellerstudio/imageprep/internal/seo"
)

// Stage tracks how far a product run has progressed.
type Stage int

const (
	StageLocated Stage = iota
	StageDescribed
	StageEnhanced
	StageFinished
	StageAssembled
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageLocated:
		return "located"
	case StageDescribed:
		return "described"
	case StageEnhanced:
		return "enhanced"
	case StageFinished:
		return "finished"
	case StageAssembled:
		return "assembled"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Describer is the description stage boundary.
type Describer interface {
	Describe(ctx context.Context, images []string, productName string) ([]describe.Outcome, error)
}

// Enhancer is the enhancement stage boundary.
type Enhancer interface {
	Enhance(ctx context.Context, images []string) ([]enhance.Outcome, error)
}

// Finisher is the compression/hosting stage boundary.
type Finisher interface {
	Finish(ctx context.Context, enhanced []enhance.Outcome, descs []describe.Outcome) ([]finish.Result, error)
}

// Summary is the run's output: the ordered results plus aggregate counters
// for status reporting.
type Summary struct {
	Stage          Stage           `json:"stage"`
	Results        []finish.Result `json:"results"`
	EnhancedCount  int             `json:"enhancedCount"`
	OptimizedCount int             `json:"optimizedCount"`
	FallbackCount  int             `json:"fallbackCount"`
	FailedCount    int             `json:"failedCount"`
	Duration       time.Duration   `json:"duration"`
}

// Text renders the human-readable run summary.
func (s *Summary) Text() string {
	return fmt.Sprintf("%d image(s): %d fully optimized, %d enhanced only, %d fallback",
		len(s.Results), s.OptimizedCount, s.EnhancedCount, s.FallbackCount)
}

// Pipeline orchestrates one product run.
type Pipeline struct {
	cfg       config.PipelineConfig
	describer Describer
	enhancer  Enhancer
	finisher  Finisher
}

// New assembles a pipeline from pre-built stages. Stage constructors accept
// nil capability clients, so callers wire exactly what is configured.
func New(cfg config.PipelineConfig, d Describer, e Enhancer, f Finisher) *Pipeline {
	return &Pipeline{cfg: cfg, describer: d, enhancer: e, finisher: f}
}

// Run executes the full pipeline for one product. The returned error is
// non-nil only for fatal failures (bad credentials); everything else shows up
// as degraded results and counters.
func (p *Pipeline) Run(ctx context.Context, product config.Product) (*Summary, error) {
	start := time.Now()
	log.Info().
		Str("product", product.Name).
		Str("article", product.Article).
		Msg("Pipeline run started")

	candidates := locator.Locate(product, p.cfg.MaxImages)
	if len(candidates) == 0 {
		log.Warn().Str("product", product.Name).Msg("No images located, returning synthetic record")
		return p.syntheticSummary(product, start), nil
	}
	images := locator.URLs(candidates)

	descs, err := p.describer.Describe(ctx, images, product.Name)
	if err != nil {
		return nil, fmt.Errorf("description stage: %w", err)
	}
	log.Debug().Int("count", len(descs)).Msg("Stage complete: described")

	enhanced, err := p.enhancer.Enhance(ctx, images)
	if err != nil {
		return nil, fmt.Errorf("enhancement stage: %w", err)
	}
	if enhance.AllFailed(enhanced) {
		log.Warn().Str("product", product.Name).Msg("All enhancements failed for this product")
	}
	log.Debug().Int("count", len(enhanced)).Msg("Stage complete: enhanced")

	results, err := p.finisher.Finish(ctx, enhanced, descs)
	if err != nil {
		return nil, fmt.Errorf("finishing stage: %w", err)
	}
	log.Debug().Int("count", len(results)).Msg("Stage complete: finished")

	summary := assemble(results, start)
	log.Info().
		Str("product", product.Name).
		Int("results", len(summary.Results)).
		Int("optimized", summary.OptimizedCount).
		Int("enhanced", summary.EnhancedCount).
		Int("fallback", summary.FallbackCount).
		Dur("duration", summary.Duration).
		Msg("Pipeline run complete")
	return summary, nil
}

// assemble computes the aggregate counters from the per-image confidences.
func assemble(results []finish.Result, start time.Time) *Summary {
	s := &Summary{
		Stage:    StageAssembled,
		Results:  results,
		Duration: time.Since(start),
	}
	for _, r := range results {
		switch {
		case r.Confidence >= finish.ConfidenceUnhosted:
			s.OptimizedCount++
		case r.Confidence >= finish.ConfidenceFailedEnhanced:
			s.EnhancedCount++
		default:
			s.FallbackCount++
			s.FailedCount++
		}
	}
	return s
}

// syntheticSummary is the last-resort output: one degraded record so the
// caller never sees an empty result set.
func (p *Pipeline) syntheticSummary(product config.Product, start time.Time) *Summary {
	name := product.Name
	if name == "" {
		name = "product"
	}
	record := finish.Result{
		AltTag:            seo.ValidateAltTag(name, name),
		SeoFilename:       seo.ValidateSeoFilename(name),
		ProcessedImageURL: placeholderImageURL,
		Confidence:        finish.ConfidenceSynthetic,
	}
	return &Summary{
		Stage:         StageFailed,
		Results:       []finish.Result{record},
		FallbackCount: 1,
		FailedCount:   1,
		Duration:      time.Since(start),
	}
}

// placeholderImageURL keeps the never-empty URL contract when no candidate
// image exists at all.
const placeholderImageURL = "https://placehold.co/1000x1000/png"
