// Package describe drives the description generation stage: for each
// sub-batch of product images it opens a conversational analysis context,
// posts one structured instruction with the image references, polls the run
// to a terminal state, and parses the reply into alt-tag/filename pairs.
//
// Failures are isolated per sub-batch and always resolve to synthesized
// fallback tags; the output slice matches the input in length and order.
package describe

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sellerstudio/imageprep/internal/config"
	"github.com/sellerstudio/imageprep/internal/jobutil"
	"github.com/sellerstudio/imageprep/internal/jsonutil"
	"github.com/sellerstudio/imageprep/internal/seo"
)

// Outcome is one image's SEO metadata: a validated alt tag and SEO filename.
type Outcome struct {
	AltTag      string `json:"altTag"`
	SeoFilename string `json:"seoFilename"`
}

// batchReply is the JSON shape the assistant is instructed to produce.
type batchReply struct {
	Results []Outcome `json:"results"`
}

// Generator runs the description stage.
type Generator struct {
	cfg    config.AnalysisConfig
	client Client
	// pause is overridable in tests; defaults to cfg.BatchPause.
	pause time.Duration
}

// NewGenerator builds a Generator. A nil client (capability unconfigured)
// makes Describe synthesize fallback tags without touching the network.
func NewGenerator(cfg config.AnalysisConfig, client Client) *Generator {
	return &Generator{cfg: cfg, client: client, pause: cfg.BatchPause}
}

// Describe produces one Outcome per input image, same order. The only error
// it returns is a fatal authentication failure; every other problem degrades
// to synthesized tags for the affected sub-batch.
func (g *Generator) Describe(ctx context.Context, images []string, productName string) ([]Outcome, error) {
	out := make([]Outcome, len(images))
	if len(images) == 0 {
		return out, nil
	}

	if g.client == nil || !g.cfg.Enabled() {
		log.Info().
			Int("images", len(images)).
			Msg("Analysis capability not configured, synthesizing fallback tags")
		for i := range out {
			out[i] = fallbackOutcome(productName, i+1)
		}
		return out, nil
	}

	batchSize := g.cfg.SubBatchSize
	if batchSize <= 0 {
		batchSize = 5
	}

	for start := 0; start < len(images); start += batchSize {
		end := start + batchSize
		if end > len(images) {
			end = len(images)
		}
		chunk := images[start:end]

		results, err := g.describeBatch(ctx, chunk, productName, start)
		if err != nil {
			if jobutil.IsFatal(err) {
				return nil, err
			}
			log.Warn().
				Err(err).
				Int("from", start+1).
				Int("to", end).
				Msg("Sub-batch description failed, synthesizing fallback tags")
			results = make([]Outcome, len(chunk))
			for i := range results {
				results[i] = fallbackOutcome(productName, start+i+1)
			}
		}
		copy(out[start:end], results)

		// Rate-limit courtesy pause between sub-batches.
		if end < len(images) && g.pause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(g.pause):
			}
		}
	}

	return out, nil
}

// describeBatch runs one conversational analysis job for a sub-batch and
// returns exactly len(chunk) outcomes on success.
func (g *Generator) describeBatch(ctx context.Context, chunk []string, productName string, offset int) ([]Outcome, error) {
	var threadID string
	err := jobutil.Retry(ctx, "analysis: create thread", jobutil.RetryAttempts, time.Second, func() error {
		var err error
		threadID, err = g.client.StartConversation(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(productName, chunk, offset)
	err = jobutil.Retry(ctx, "analysis: post message", jobutil.RetryAttempts, time.Second, func() error {
		return g.client.PostMessage(ctx, threadID, prompt)
	})
	if err != nil {
		return nil, err
	}

	var runID string
	err = jobutil.Retry(ctx, "analysis: create run", jobutil.RetryAttempts, time.Second, func() error {
		var err error
		runID, err = g.client.StartAnalysis(ctx, threadID, g.cfg.AssistantID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("thread", threadID).
		Str("run", runID).
		Int("images", len(chunk)).
		Msg("Analysis run started, polling")

	err = jobutil.Poll(ctx, "analysis run", g.cfg.PollInterval, g.cfg.PollAttempts, func() (bool, error) {
		state, err := g.client.AnalysisState(ctx, threadID, runID)
		if err != nil {
			return false, err
		}
		switch state {
		case RunSucceeded:
			return true, nil
		case RunFailed, RunCancelled:
			return false, &jobutil.ValidationError{Reason: "analysis run ended " + state.String()}
		default:
			return false, nil
		}
	})
	if err != nil {
		return nil, err
	}

	reply, err := g.client.AssistantReply(ctx, threadID, runID)
	if err != nil {
		return nil, err
	}

	parsed, err := jsonutil.ParseWithKey[batchReply](reply, "results")
	if err != nil {
		return nil, err
	}

	out := make([]Outcome, len(chunk))
	for i := range chunk {
		pos := offset + i + 1
		if i >= len(parsed.Results) {
			out[i] = fallbackOutcome(productName, pos)
			continue
		}
		r := parsed.Results[i]
		out[i] = Outcome{
			AltTag:      seo.ValidateAltTag(r.AltTag, productName),
			SeoFilename: seo.GeneratedFilename(r.SeoFilename),
		}
		if r.SeoFilename == "" {
			out[i].SeoFilename = seo.FallbackFilename(productName, pos)
		}
	}

	log.Debug().
		Int("received", len(parsed.Results)).
		Int("expected", len(chunk)).
		Msg("Sub-batch descriptions parsed")
	return out, nil
}

func fallbackOutcome(productName string, n int) Outcome {
	return Outcome{
		AltTag:      seo.FallbackAltTag(productName, n),
		SeoFilename: seo.FallbackFilename(productName, n),
	}
}
