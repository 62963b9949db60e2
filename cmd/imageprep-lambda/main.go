// Package main provides the Lambda entry point for the image preparation
// pipeline: one invocation prepares one product's images end to end.
//
// Input is a product JSON document; output is the run summary with the
// confidence-scored results. Capability API keys come from the environment
// or SSM Parameter Store at cold start.
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/sellerstudio/imageprep/internal/boot"
	"github.com/sellerstudio/imageprep/internal/config"
	"github.com/sellerstudio/imageprep/internal/logging"
	"github.com/sellerstudio/imageprep/internal/metrics"
	"github.com/sellerstudio/imageprep/internal/pipeline"
)

var coldStart = true

var s3Client *s3.Client

func init() {
	initStart := time.Now()
	logging.Init(false)

	aws := boot.InitAWS()
	boot.LoadSecrets(aws.SSM)
	s3Client = boot.InitS3(aws.Config)

	log.Info().Dur("initDuration", time.Since(initStart)).Msg("Lambda init complete")
}

func main() {
	lambda.Start(handler)
}

func handler(ctx context.Context, product config.Product) (*pipeline.Summary, error) {
	if coldStart {
		coldStart = false
		log.Info().Msg("Cold start, first invocation")
	}
	log.Info().Str("product", product.Name).Str("article", product.Article).Msg("Pipeline Lambda invoked")

	// Leave headroom before the invocation deadline so the summary still
	// gets returned instead of the runtime killing us mid-stage.
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline.Add(-5*time.Second))
		defer cancel()
	}

	cfg := config.FromEnv()
	summary, err := pipeline.Build(cfg, s3Client).Run(ctx, product)
	if err != nil {
		return nil, err
	}

	metrics.NewRecorder().
		Dimension("Article", product.Article).
		Count("ImagesPrepared", len(summary.Results)).
		Count("ImagesOptimized", summary.OptimizedCount).
		Count("ImagesEnhancedOnly", summary.EnhancedCount).
		Count("ImagesFallback", summary.FallbackCount).
		Metric("RunDuration", float64(summary.Duration.Milliseconds()), metrics.UnitMilliseconds).
		Property("product", product.Name).
		Flush()

	return summary, nil
}
