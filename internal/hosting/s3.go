// Package hosting re-hosts finished assets on S3 and hands back stable public
// URLs for publication.
package hosting

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sellerstudio/imageprep/internal/config"
)

// S3Host uploads assets under a per-run folder so SEO filenames from
// different runs never overwrite each other.
type S3Host struct {
	client *s3.Client
	cfg    config.HostingConfig
	runDir string
}

// NewS3Host builds a hoster for one pipeline run.
func NewS3Host(client *s3.Client, cfg config.HostingConfig) *S3Host {
	return &S3Host{
		client: client,
		cfg:    cfg,
		runDir: uuid.NewString()[:8],
	}
}

// Upload puts the asset at <prefix>/<runDir>/<filename> and returns its
// public URL.
func (h *S3Host) Upload(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	key := path.Join(h.cfg.Prefix, h.runDir, filename)

	_, err := h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &h.cfg.Bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("hosting: put %s: %w", key, err)
	}

	url := h.publicURL(key)
	log.Debug().
		Str("key", key).
		Int("bytes", len(data)).
		Str("url", url).
		Msg("Asset hosted")
	return url, nil
}

func (h *S3Host) publicURL(key string) string {
	if h.cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(h.cfg.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", h.cfg.Bucket, h.cfg.Region, key)
}
