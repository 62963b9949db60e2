package pipeline

import (
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sellerstudio/imageprep/internal/config"
	"github.com/sellerstudio/imageprep/internal/describe"
	"github.com/sellerstudio/imageprep/internal/enhance"
	"github.com/sellerstudio/imageprep/internal/finish"
	"github.com/sellerstudio/imageprep/internal/hosting"
)

// Build wires the real capability clients for every configured capability
// and assembles the pipeline. Unconfigured capabilities get nil clients and
// their stages degrade per policy. s3Client may be nil when hosting is not
// configured.
func Build(cfg config.PipelineConfig, s3Client *s3.Client) *Pipeline {
	var analysisClient describe.Client
	if cfg.Analysis.Enabled() {
		analysisClient = describe.NewOpenAIClient(cfg.Analysis.APIKey, cfg.Analysis.BaseURL)
	}

	var upscaleClient enhance.Client
	if cfg.Upscale.Enabled() {
		upscaleClient = enhance.NewHTTPClient(cfg.Upscale.BaseURL, cfg.Upscale.APIToken)
	}

	var optimizer finish.Optimizer
	if cfg.Optimize.Enabled() && cfg.Optimize.BaseURL != "" {
		optimizer = finish.NewHTTPOptimizer(cfg.Optimize.BaseURL, cfg.Optimize.APIKey)
	}

	var hoster finish.Hoster
	if cfg.Hosting.Enabled() && s3Client != nil {
		hoster = hosting.NewS3Host(s3Client, cfg.Hosting)
	}

	return New(cfg,
		describe.NewGenerator(cfg.Analysis, analysisClient),
		enhance.NewEnhancer(cfg.Upscale, upscaleClient, cfg.Concurrency),
		finish.NewFinisher(cfg.Optimize, optimizer, finish.NewHTTPFetcher(), hoster, cfg.Concurrency),
	)
}
