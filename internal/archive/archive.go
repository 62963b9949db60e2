// Package archive exports a finished pipeline run as a single ZIP bundle:
// every processed image stored under its SEO filename, plus a manifest.json
// with the alt tags, URLs, and confidence scores.
package archive

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/sellerstudio/imageprep/internal/config"
	"github.com/sellerstudio/imageprep/internal/finish"
)

// zipMethodZstd is the ZIP compression method ID for Zstandard (APPNOTE 6.3.7).
// Registered in init() with zstd level 12 (SpeedBestCompression in
// klauspost/compress).
const zipMethodZstd uint16 = 93

func init() {
	zip.RegisterCompressor(zipMethodZstd, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(12)))
	})
}

// Fetcher downloads a processed image for inclusion in the bundle.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Manifest is the machine-readable run record stored alongside the images.
type Manifest struct {
	Product    string          `json:"product"`
	Article    string          `json:"article"`
	ExportedAt time.Time       `json:"exportedAt"`
	Results    []finish.Result `json:"results"`
}

// Export writes the run bundle to w. Images that cannot be fetched are
// skipped with a warning; they stay in the manifest so nothing is lost
// silently. Only a broken ZIP stream itself is an error.
func Export(ctx context.Context, w io.Writer, product config.Product, results []finish.Result, fetcher Fetcher) error {
	zw := zip.NewWriter(w)

	for i, r := range results {
		if r.ProcessedImageURL == "" {
			continue
		}
		data, err := fetcher.Fetch(ctx, r.ProcessedImageURL)
		if err != nil {
			log.Warn().Err(err).Str("url", r.ProcessedImageURL).Msg("Skipping image in export bundle")
			continue
		}

		name := r.SeoFilename
		if name == "" {
			name = fmt.Sprintf("image-%d", i+1)
		}
		header := &zip.FileHeader{
			Name:     "images/" + name + extensionFor(data),
			Method:   zipMethodZstd,
			Modified: time.Now(),
		}
		entry, err := zw.CreateHeader(header)
		if err != nil {
			zw.Close()
			return fmt.Errorf("archive: create entry %s: %w", header.Name, err)
		}
		if _, err := entry.Write(data); err != nil {
			zw.Close()
			return fmt.Errorf("archive: write entry %s: %w", header.Name, err)
		}
	}

	manifest := Manifest{
		Product:    product.Name,
		Article:    product.Article,
		ExportedAt: time.Now().UTC(),
		Results:    results,
	}
	// The manifest is tiny JSON; Deflate keeps it readable by any unzip tool.
	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     "manifest.json",
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("archive: create manifest entry: %w", err)
	}
	enc := json.NewEncoder(entry)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		zw.Close()
		return fmt.Errorf("archive: write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("archive: close bundle: %w", err)
	}
	return nil
}

// extensionFor sniffs the image format from magic bytes. Hosted output is
// normally WebP; originals passed through as fallback may be JPEG or PNG.
func extensionFor(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return ".webp"
	case len(data) >= 8 && string(data[0:8]) == "\x89PNG\r\n\x1a\n":
		return ".png"
	case len(data) >= 3 && string(data[0:3]) == "\xff\xd8\xff":
		return ".jpg"
	default:
		return ""
	}
}
