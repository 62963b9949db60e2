package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sellerstudio/imageprep/internal/config"
	"github.com/sellerstudio/imageprep/internal/describe"
	"github.com/sellerstudio/imageprep/internal/enhance"
	"github.com/sellerstudio/imageprep/internal/finish"
	"github.com/sellerstudio/imageprep/internal/jobutil"
)

// happyDescriber returns model-style tags for every image.
type happyDescriber struct{ calls int }

func (d *happyDescriber) Describe(ctx context.Context, images []string, productName string) ([]describe.Outcome, error) {
	d.calls++
	out := make([]describe.Outcome, len(images))
	for i := range images {
		out[i] = describe.Outcome{
			AltTag:      fmt.Sprintf("%s view %d", productName, i+1),
			SeoFilename: fmt.Sprintf("view-%d", i+1),
		}
	}
	return out, nil
}

type authFailDescriber struct{}

func (authFailDescriber) Describe(ctx context.Context, images []string, productName string) ([]describe.Outcome, error) {
	return nil, &jobutil.AuthError{Op: "analysis: create thread"}
}

// happyEnhancer upscales everything; passEnhancer passes everything through.
type happyEnhancer struct{}

func (happyEnhancer) Enhance(ctx context.Context, images []string) ([]enhance.Outcome, error) {
	out := make([]enhance.Outcome, len(images))
	for i, u := range images {
		out[i] = enhance.Outcome{OriginalURL: u, ProcessedURL: u + "?up", WasEnhanced: true}
	}
	return out, nil
}

type passEnhancer struct{}

func (passEnhancer) Enhance(ctx context.Context, images []string) ([]enhance.Outcome, error) {
	out := make([]enhance.Outcome, len(images))
	for i, u := range images {
		out[i] = enhance.Outcome{OriginalURL: u, ProcessedURL: u}
	}
	return out, nil
}

// hostingFinisher simulates a fully working finishing stage; passFinisher a
// missing optimizer.
type hostingFinisher struct{}

func (hostingFinisher) Finish(ctx context.Context, enhanced []enhance.Outcome, descs []describe.Outcome) ([]finish.Result, error) {
	out := make([]finish.Result, len(enhanced))
	for i := range enhanced {
		out[i] = finish.Result{
			AltTag:            descs[i].AltTag,
			SeoFilename:       descs[i].SeoFilename,
			ProcessedImageURL: fmt.Sprintf("https://cdn.example/%d/%s.webp", i+1, descs[i].SeoFilename),
			Confidence:        finish.ConfidenceFull,
		}
	}
	return out, nil
}

type passFinisher struct{}

func (passFinisher) Finish(ctx context.Context, enhanced []enhance.Outcome, descs []describe.Outcome) ([]finish.Result, error) {
	out := make([]finish.Result, len(enhanced))
	for i, e := range enhanced {
		conf := finish.ConfidenceOriginalOnly
		if e.WasEnhanced {
			conf = finish.ConfidenceEnhancedOnly
		}
		out[i] = finish.Result{
			AltTag:            descs[i].AltTag,
			SeoFilename:       descs[i].SeoFilename,
			ProcessedImageURL: e.ProcessedURL,
			Confidence:        conf,
		}
	}
	return out, nil
}

func manyURLs(n int) string {
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "https://img.example/%d.jpg\n", i)
	}
	return sb.String()
}

func testProduct(n int) config.Product {
	return config.Product{
		Name:         "Kettle",
		Article:      "KT-100",
		UserSelected: manyURLs(n),
	}
}

func TestRun_TwelveURLsFullyOptimized(t *testing.T) {
	p := New(config.Default(), &happyDescriber{}, happyEnhancer{}, hostingFinisher{})

	s, err := p.Run(context.Background(), testProduct(12))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(s.Results) != 10 {
		t.Fatalf("got %d results, want 10 (batch cap)", len(s.Results))
	}
	urls := map[string]bool{}
	for i, r := range s.Results {
		if r.Confidence != finish.ConfidenceFull {
			t.Errorf("result %d confidence = %d, want %d", i, r.Confidence, finish.ConfidenceFull)
		}
		if urls[r.ProcessedImageURL] {
			t.Errorf("result %d hosted URL %q duplicated", i, r.ProcessedImageURL)
		}
		urls[r.ProcessedImageURL] = true
	}
	if s.OptimizedCount != 10 || s.EnhancedCount != 0 || s.FallbackCount != 0 {
		t.Errorf("counters = optimized %d / enhanced %d / fallback %d, want 10/0/0",
			s.OptimizedCount, s.EnhancedCount, s.FallbackCount)
	}
	if s.Stage != StageAssembled {
		t.Errorf("stage = %v, want assembled", s.Stage)
	}
}

func TestRun_UpscalerUnconfiguredCapsConfidence(t *testing.T) {
	p := New(config.Default(), &happyDescriber{}, passEnhancer{}, passFinisher{})

	s, err := p.Run(context.Background(), testProduct(4))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	for i, r := range s.Results {
		if r.Confidence > finish.ConfidenceEnhancedOnly {
			t.Errorf("result %d confidence = %d, want <= %d without upscaling", i, r.Confidence, finish.ConfidenceEnhancedOnly)
		}
		if r.ProcessedImageURL == "" {
			t.Errorf("result %d has empty URL", i)
		}
	}
}

func TestRun_NoImagesYieldsSyntheticRecord(t *testing.T) {
	p := New(config.Default(), &happyDescriber{}, happyEnhancer{}, hostingFinisher{})

	s, err := p.Run(context.Background(), config.Product{Name: "Чайник", Article: "X"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(s.Results) != 1 {
		t.Fatalf("got %d results, want single synthetic record", len(s.Results))
	}
	r := s.Results[0]
	if r.Confidence != finish.ConfidenceSynthetic {
		t.Errorf("confidence = %d, want %d", r.Confidence, finish.ConfidenceSynthetic)
	}
	if r.ProcessedImageURL == "" {
		t.Error("synthetic record has empty URL")
	}
	if r.SeoFilename != "chaynik" {
		t.Errorf("SeoFilename = %q, want transliterated product name", r.SeoFilename)
	}
	if s.Stage != StageFailed {
		t.Errorf("stage = %v, want failed", s.Stage)
	}
}

func TestRun_AuthErrorAbortsRun(t *testing.T) {
	p := New(config.Default(), authFailDescriber{}, happyEnhancer{}, hostingFinisher{})

	_, err := p.Run(context.Background(), testProduct(2))
	if !jobutil.IsFatal(err) {
		t.Errorf("Run returned %v, want fatal auth error", err)
	}
}

func TestRun_OrderPreserved(t *testing.T) {
	p := New(config.Default(), &happyDescriber{}, passEnhancer{}, passFinisher{})

	s, err := p.Run(context.Background(), testProduct(5))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	for i, r := range s.Results {
		want := fmt.Sprintf("https://img.example/%d.jpg", i+1)
		if r.ProcessedImageURL != want {
			t.Errorf("result %d URL = %q, want %q (input order)", i, r.ProcessedImageURL, want)
		}
	}
}

func TestSummary_Text(t *testing.T) {
	s := &Summary{
		Results:        make([]finish.Result, 3),
		OptimizedCount: 1,
		EnhancedCount:  1,
		FallbackCount:  1,
	}
	got := s.Text()
	for _, want := range []string{"3 image(s)", "1 fully optimized", "1 enhanced only", "1 fallback"} {
		if !strings.Contains(got, want) {
			t.Errorf("Text() = %q, missing %q", got, want)
		}
	}
}

func TestStageString(t *testing.T) {
	stages := map[Stage]string{
		StageLocated:   "located",
		StageDescribed: "described",
		StageEnhanced:  "enhanced",
		StageFinished:  "finished",
		StageAssembled: "assembled",
		StageFailed:    "failed",
	}
	for s, want := range stages {
		if s.String() != want {
			t.Errorf("Stage(%d).String() = %q, want %q", int(s), s.String(), want)
		}
	}
}
