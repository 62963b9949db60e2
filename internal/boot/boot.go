// Package boot provides Lambda cold-start bootstrap helpers.
//
// Each entrypoint needs some subset of: AWS config, an S3 client, and API
// keys pulled from SSM Parameter Store. This package extracts the common
// init patterns so an entrypoint's init() is a short composition of helpers.
package boot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// AWSClients holds the core AWS SDK clients shared across entrypoints.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it with common clients.
// Fatals if the config cannot be loaded; nothing works without it.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitS3 creates an S3 client for image hosting.
func InitS3(cfg aws.Config) *s3.Client {
	return s3.NewFromConfig(cfg)
}

// secretParam maps an environment variable to its SSM parameter, with the
// param name itself overridable through a second env var.
type secretParam struct {
	envVar       string
	paramEnvVar  string
	defaultParam string
}

var secretParams = []secretParam{
	{"OPENAI_API_KEY", "SSM_OPENAI_KEY_PARAM", "/imageprep/prod/openai-api-key"},
	{"OPENAI_ASSISTANT_ID", "SSM_OPENAI_ASSISTANT_PARAM", "/imageprep/prod/openai-assistant-id"},
	{"UPSCALE_API_TOKEN", "SSM_UPSCALE_TOKEN_PARAM", "/imageprep/prod/upscale-api-token"},
	{"OPTIMIZE_API_KEY", "SSM_OPTIMIZE_KEY_PARAM", "/imageprep/prod/optimize-api-key"},
}

// LoadSecrets fills the capability API keys from SSM Parameter Store for any
// that are not already set in the environment. A missing parameter is not
// fatal: the corresponding capability simply stays unconfigured and its
// stage degrades per policy.
func LoadSecrets(ssmClient *ssm.Client) {
	for _, p := range secretParams {
		if os.Getenv(p.envVar) != "" {
			continue
		}
		paramName := os.Getenv(p.paramEnvVar)
		if paramName == "" {
			paramName = p.defaultParam
		}
		start := time.Now()
		result, err := ssmClient.GetParameter(context.Background(), &ssm.GetParameterInput{
			Name:           &paramName,
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			log.Warn().Err(err).Str("param", paramName).Str("envVar", p.envVar).
				Msg("Secret not found in SSM, capability stays unconfigured")
			continue
		}
		os.Setenv(p.envVar, *result.Parameter.Value)
		log.Debug().Str("param", paramName).Dur("elapsed", time.Since(start)).Msg("Secret loaded from SSM")
	}
}
