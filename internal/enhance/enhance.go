// Package enhance drives the resolution enhancement stage: one asynchronous
// upscaling job per image, polled to completion within a wall-clock budget,
// with mandatory per-image failure isolation.
package enhance

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sellerstudio/imageprep/internal/config"
	"github.com/sellerstudio/imageprep/internal/jobutil"
)

// Outcome is one image's enhancement result. ProcessedURL is never empty: it
// equals OriginalURL whenever enhancement did not succeed.
type Outcome struct {
	OriginalURL  string
	ProcessedURL string
	WasEnhanced  bool
	Err          string
}

// Enhancer runs the enhancement stage over a batch of image URLs.
type Enhancer struct {
	cfg     config.UpscaleConfig
	client  Client
	workers int
}

// NewEnhancer builds an Enhancer. A nil client (capability unconfigured)
// makes Enhance return pass-through outcomes without touching the network.
func NewEnhancer(cfg config.UpscaleConfig, client Client, workers int) *Enhancer {
	if workers <= 0 {
		workers = 1
	}
	return &Enhancer{cfg: cfg, client: client, workers: workers}
}

// Enhance submits one upscaling job per image and returns one outcome per
// image in input order, regardless of completion order. Units run on a
// bounded worker pool and never share mutable state beyond their own slot.
// The only error returned is a fatal authentication failure.
func (e *Enhancer) Enhance(ctx context.Context, images []string) ([]Outcome, error) {
	out := make([]Outcome, len(images))
	if len(images) == 0 {
		return out, nil
	}

	if e.client == nil || !e.cfg.Enabled() {
		log.Info().
			Int("images", len(images)).
			Msg("Upscaling capability not configured, passing originals through")
		for i, u := range images {
			out[i] = Outcome{OriginalURL: u, ProcessedURL: u}
		}
		return out, nil
	}

	scale := e.cfg.Scale
	if scale > e.cfg.MaxScale {
		log.Debug().
			Int("requested", scale).
			Int("max", e.cfg.MaxScale).
			Msg("Requested scale clamped to model maximum")
		scale = e.cfg.MaxScale
	}
	if scale <= 0 {
		scale = 1
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.workers)

	for i, url := range images {
		i, url := i, url
		group.Go(func() error {
			outcome, err := e.enhanceOne(groupCtx, url, scale)
			if jobutil.IsFatal(err) {
				return err
			}
			out[i] = outcome
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	if failed := countFailed(out); failed == len(out) {
		// One aggregate notice instead of N repeats; per-image reasons are
		// already recorded on the outcomes.
		log.Warn().
			Int("images", len(out)).
			Msg("All enhancements failed, continuing with original URLs")
	}

	return out, nil
}

// enhanceOne runs a single image's job. All non-fatal failures resolve to a
// pass-through outcome with the reason recorded.
func (e *Enhancer) enhanceOne(ctx context.Context, url string, scale int) (Outcome, error) {
	outcome := Outcome{OriginalURL: url, ProcessedURL: url}
	if url == "" {
		outcome.Err = "empty image URL"
		return outcome, nil
	}

	var jobID string
	err := jobutil.Retry(ctx, "upscale: submit", jobutil.RetryAttempts, time.Second, func() error {
		var err error
		jobID, err = e.client.Submit(ctx, e.cfg.ModelVersion, url, scale)
		return err
	})
	if err != nil {
		if jobutil.IsFatal(err) {
			return outcome, err
		}
		outcome.Err = err.Error()
		log.Warn().Err(err).Str("image", url).Msg("Upscale submission failed")
		return outcome, nil
	}

	attempts := int(e.cfg.PollBudget / e.cfg.PollInterval)
	if attempts < 1 {
		attempts = 1
	}

	var job Job
	err = jobutil.Poll(ctx, "upscale job "+jobID, e.cfg.PollInterval, attempts, func() (bool, error) {
		var err error
		job, err = e.client.Status(ctx, jobID)
		if err != nil {
			// A flaky status poll is not terminal; keep polling until the
			// budget runs out. Fatal errors stop immediately.
			if jobutil.IsFatal(err) {
				return false, err
			}
			log.Debug().Err(err).Str("job", jobID).Msg("Upscale status poll failed, will retry")
			return false, nil
		}
		return job.State != JobPending, nil
	})
	if err != nil {
		if jobutil.IsFatal(err) {
			return outcome, err
		}
		outcome.Err = err.Error()
		log.Warn().Err(err).Str("job", jobID).Str("image", url).Msg("Upscale polling gave up")
		return outcome, nil
	}

	if job.State != JobSucceeded {
		outcome.Err = job.Reason
		log.Warn().Str("job", jobID).Str("reason", job.Reason).Str("image", url).Msg("Upscale job failed")
		return outcome, nil
	}

	outcome.ProcessedURL = job.OutputURL
	outcome.WasEnhanced = true
	log.Debug().Str("job", jobID).Str("image", url).Msg("Image enhanced")
	return outcome, nil
}

func countFailed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if !o.WasEnhanced {
			n++
		}
	}
	return n
}

// AllFailed reports whether no image in the batch was enhanced.
func AllFailed(outcomes []Outcome) bool {
	return len(outcomes) > 0 && countFailed(outcomes) == len(outcomes)
}
