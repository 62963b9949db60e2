// Package finish runs the last pipeline stage: per-image two-phase
// compression and format conversion against a target size band, followed by
// re-hosting under the SEO filename. Every failure degrades to the best URL
// already in hand; the output is one confidence-scored result per input image.
package finish

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sellerstudio/imageprep/internal/config"
	"github.com/sellerstudio/imageprep/internal/describe"
	"github.com/sellerstudio/imageprep/internal/enhance"
	"github.com/sellerstudio/imageprep/internal/jobutil"
	"github.com/sellerstudio/imageprep/internal/seo"
)

// Confidence levels reflect how many stages succeeded for an image.
const (
	// ConfidenceFull: compression, conversion, and hosting all succeeded
	// with the asset inside the size band.
	ConfidenceFull = 8
	// ConfidenceSizePartial: hosted, but the asset stayed out of band after
	// the corrective retry.
	ConfidenceSizePartial = 7
	// ConfidenceUnhosted: conversion succeeded but hosting failed; the
	// enhanced URL is used.
	ConfidenceUnhosted = 6
	// ConfidenceEnhancedOnly: optimization unavailable, enhancement
	// succeeded; raw enhanced URL used.
	ConfidenceEnhancedOnly = 5
	// ConfidenceFailedEnhanced: optimization attempted and failed on an
	// enhanced image.
	ConfidenceFailedEnhanced = 4
	// ConfidenceOriginalOnly: nothing worked beyond locating the image.
	ConfidenceOriginalOnly = 3
	// ConfidenceSynthetic: catastrophic placeholder record.
	ConfidenceSynthetic = 1
)

// Result is the pipeline's final per-image record.
type Result struct {
	AltTag            string `json:"altTag"`
	SeoFilename       string `json:"seoFilename"`
	ProcessedImageURL string `json:"processedImageUrl"`
	Confidence        int    `json:"confidence"`
}

// Finisher runs the compression/hosting stage.
type Finisher struct {
	cfg       config.OptimizeConfig
	optimizer Optimizer
	fetcher   Fetcher
	hoster    Hoster
	workers   int
}

// NewFinisher builds a Finisher. A nil optimizer (capability unconfigured)
// makes Finish pass the enhancement-stage URLs straight through; a nil hoster
// caps results at ConfidenceUnhosted.
func NewFinisher(cfg config.OptimizeConfig, optimizer Optimizer, fetcher Fetcher, hoster Hoster, workers int) *Finisher {
	if workers <= 0 {
		workers = 1
	}
	return &Finisher{cfg: cfg, optimizer: optimizer, fetcher: fetcher, hoster: hoster, workers: workers}
}

// Finish produces one Result per enhancement outcome, same order. Images are
// processed independently on a bounded worker pool; only a fatal auth error
// aborts the stage.
func (f *Finisher) Finish(ctx context.Context, enhanced []enhance.Outcome, descs []describe.Outcome) ([]Result, error) {
	out := make([]Result, len(enhanced))
	if len(enhanced) == 0 {
		return out, nil
	}

	names := uniqueFilenames(enhanced, descs)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(f.workers)

	for i := range enhanced {
		i := i
		group.Go(func() error {
			res, err := f.finishOne(groupCtx, enhanced[i], descAt(descs, i), names[i])
			if jobutil.IsFatal(err) {
				return err
			}
			out[i] = res
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// finishOne runs the two-phase optimization and hosting for a single image.
func (f *Finisher) finishOne(ctx context.Context, enh enhance.Outcome, desc describe.Outcome, filename string) (Result, error) {
	res := Result{
		AltTag:            desc.AltTag,
		SeoFilename:       filename,
		ProcessedImageURL: enh.ProcessedURL,
	}

	if f.optimizer == nil || !f.cfg.Enabled() {
		res.Confidence = passThroughConfidence(enh)
		return res, nil
	}

	failed := func(step string, err error) (Result, error) {
		if jobutil.IsFatal(err) {
			return res, err
		}
		log.Warn().Err(err).Str("step", step).Str("image", enh.ProcessedURL).Msg("Optimization failed, using unoptimized URL")
		if enh.WasEnhanced {
			res.Confidence = ConfidenceFailedEnhanced
		} else {
			res.Confidence = ConfidenceOriginalOnly
		}
		return res, nil
	}

	data, err := f.fetchBytes(ctx, enh.ProcessedURL)
	if err != nil {
		return failed("fetch", err)
	}

	var ref string
	err = jobutil.Retry(ctx, "optimize: compress", jobutil.RetryAttempts, time.Second, func() error {
		var err error
		ref, err = f.optimizer.Compress(ctx, data)
		return err
	})
	if err != nil {
		return failed("compress", err)
	}

	final, inBand, err := f.convertToBand(ctx, ref)
	if err != nil {
		return failed("convert", err)
	}

	f.checkBounds(final, enh.ProcessedURL)

	if f.hoster == nil {
		res.Confidence = ConfidenceUnhosted
		return res, nil
	}

	var hostedURL string
	err = jobutil.Retry(ctx, "hosting: upload", jobutil.RetryAttempts, time.Second, func() error {
		var err error
		hostedURL, err = f.hoster.Upload(ctx, final, filename+"."+f.cfg.TargetFormat, "image/"+f.cfg.TargetFormat)
		return err
	})
	if err != nil {
		if jobutil.IsFatal(err) {
			return res, err
		}
		log.Warn().Err(err).Str("image", enh.ProcessedURL).Msg("Hosting failed, using enhanced URL")
		res.Confidence = ConfidenceUnhosted
		return res, nil
	}

	res.ProcessedImageURL = hostedURL
	if inBand {
		res.Confidence = ConfidenceFull
	} else {
		res.Confidence = ConfidenceSizePartial
	}
	return res, nil
}

// convertToBand runs the conversion call and, when the result lands outside
// the size band, resubmits once with an adjusted bounding box: widened below
// the minimum, tightened above the maximum. After that single corrective
// retry per direction the best attempt is accepted as-is.
func (f *Finisher) convertToBand(ctx context.Context, ref string) (data []byte, inBand bool, err error) {
	convert := func(box int) ([]byte, error) {
		var out []byte
		err := jobutil.Retry(ctx, "optimize: convert", jobutil.RetryAttempts, time.Second, func() error {
			var err error
			out, err = f.optimizer.Convert(ctx, ref, f.cfg.TargetFormat, box, box)
			return err
		})
		return out, err
	}

	box := f.cfg.MaxBox
	data, err = convert(box)
	if err != nil {
		return nil, false, err
	}

	switch band := f.sizeBand(data); band {
	case 0:
		return data, true, nil
	case -1:
		// Undersized: widen the box so the service keeps more detail.
		box = box * 3 / 2
	case 1:
		// Oversized: tighten the box.
		box = box / 2
	}

	log.Debug().
		Int("kb", len(data)/1024).
		Int("retry_box", box).
		Msg("Converted asset out of size band, resubmitting once")

	corrected, err := convert(box)
	if err != nil {
		// The first conversion is still a valid asset; keep it.
		log.Warn().Err(err).Msg("Corrective conversion failed, keeping first attempt")
		return data, false, nil
	}
	return corrected, f.sizeBand(corrected) == 0, nil
}

// sizeBand reports -1 below the minimum, 1 above the maximum, 0 in band.
func (f *Finisher) sizeBand(data []byte) int {
	kb := len(data) / 1024
	switch {
	case kb < f.cfg.MinSizeKB:
		return -1
	case kb > f.cfg.MaxSizeKB:
		return 1
	default:
		return 0
	}
}

// checkBounds decodes the converted asset's metadata and logs when the
// service ignored the bounding box. Best-effort: many formats carry no
// readable dimensions and that is fine.
func (f *Finisher) checkBounds(data []byte, source string) {
	meta, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return
	}
	w, h := int(meta.ImageWidth), int(meta.ImageHeight)
	if w == 0 || h == 0 {
		return
	}
	if w > f.cfg.MaxBox || h > f.cfg.MaxBox {
		log.Warn().
			Int("width", w).
			Int("height", h).
			Int("box", f.cfg.MaxBox).
			Str("image", source).
			Msg("Converted asset exceeds requested bounding box")
	}
}

func (f *Finisher) fetchBytes(ctx context.Context, url string) ([]byte, error) {
	if f.fetcher == nil {
		return nil, &jobutil.ValidationError{Reason: "no fetcher configured"}
	}
	var data []byte
	err := jobutil.Retry(ctx, "fetch image", jobutil.RetryAttempts, time.Second, func() error {
		var err error
		data, err = f.fetcher.Fetch(ctx, url)
		return err
	})
	return data, err
}

// passThroughConfidence scores an image the optimizer never touched.
func passThroughConfidence(enh enhance.Outcome) int {
	if enh.WasEnhanced {
		return ConfidenceEnhancedOnly
	}
	return ConfidenceOriginalOnly
}

// descAt guards against a description slice shorter than the batch.
func descAt(descs []describe.Outcome, i int) describe.Outcome {
	if i < len(descs) {
		return descs[i]
	}
	return describe.Outcome{
		AltTag:      fmt.Sprintf("image %d", i+1),
		SeoFilename: fmt.Sprintf("image-%d", i+1),
	}
}

// uniqueFilenames validates every SEO filename with the strict hosting rules
// and suffixes duplicates with the image position so hosted URLs never
// collide within a batch. Runs before the worker pool so no state is shared.
func uniqueFilenames(enhanced []enhance.Outcome, descs []describe.Outcome) []string {
	names := make([]string, len(enhanced))
	seen := make(map[string]struct{}, len(enhanced))
	for i := range enhanced {
		name := seo.ValidateSeoFilename(descAt(descs, i).SeoFilename)
		if _, dup := seen[name]; dup {
			name = seo.ValidateSeoFilename(fmt.Sprintf("%s-%d", name, i+1))
		}
		seen[name] = struct{}{}
		names[i] = name
	}
	return names
}
