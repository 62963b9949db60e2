// Package locator merges candidate image URLs for a product from three
// prioritized sources into one ordered, deduplicated, size-capped list.
//
// Pure functions only; no network access. An empty result means "nothing to
// process", not an error.
package locator

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sellerstudio/imageprep/internal/config"
)

// Source identifies which tier a candidate URL came from.
type Source int

const (
	SourceUserSelected Source = iota
	SourceSupplierParsed
	SourcePlatformOriginal
)

func (s Source) String() string {
	switch s {
	case SourceUserSelected:
		return "user_selected"
	case SourceSupplierParsed:
		return "supplier_parsed"
	case SourcePlatformOriginal:
		return "platform_original"
	default:
		return "unknown"
	}
}

// Candidate is one image URL plus the tier it was taken from.
type Candidate struct {
	URL    string
	Source Source
}

// Locate picks the highest-priority tier that yields at least one valid URL
// and returns its candidates, deduplicated case-sensitively in first-seen
// order and truncated to maxImages. Tiers are never mixed.
func Locate(p config.Product, maxImages int) []Candidate {
	tiers := []struct {
		raw    string
		source Source
	}{
		{p.UserSelected, SourceUserSelected},
		{p.SupplierParsed, SourceSupplierParsed},
		{p.PlatformOriginal, SourcePlatformOriginal},
	}

	for _, tier := range tiers {
		urls := parseURLList(tier.raw)
		if len(urls) == 0 {
			continue
		}
		if len(urls) > maxImages {
			log.Debug().
				Str("source", tier.source.String()).
				Int("found", len(urls)).
				Int("cap", maxImages).
				Msg("Candidate list truncated to batch cap")
			urls = urls[:maxImages]
		}
		candidates := make([]Candidate, len(urls))
		for i, u := range urls {
			candidates[i] = Candidate{URL: u, Source: tier.source}
		}
		log.Debug().
			Str("source", tier.source.String()).
			Int("count", len(candidates)).
			Msg("Image candidates located")
		return candidates
	}

	log.Debug().Str("article", p.Article).Msg("No image candidates in any source tier")
	return nil
}

// URLs projects candidates to their URL strings, preserving order.
func URLs(candidates []Candidate) []string {
	urls := make([]string, len(candidates))
	for i, c := range candidates {
		urls[i] = c.URL
	}
	return urls
}

// parseURLList splits a raw source string on newlines and commas, trims each
// entry, keeps only http(s) URLs, and deduplicates preserving first-seen order.
func parseURLList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == ','
	})

	seen := make(map[string]struct{}, len(fields))
	var urls []string
	for _, f := range fields {
		u := strings.TrimSpace(f)
		if !strings.HasPrefix(u, "http") {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}
