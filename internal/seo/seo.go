// Package seo validates and normalizes the SEO metadata produced for product
// images: alt tags and URL-safe filenames, including Cyrillic transliteration.
package seo

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const (
	// MaxAltTagLen is the alt attribute ceiling recommended for marketplaces.
	MaxAltTagLen = 125
	// MaxFilenameLen is the strict ceiling applied before hosting.
	MaxFilenameLen = 60
	// MaxGeneratedFilenameLen is the looser ceiling for model-produced names.
	MaxGeneratedFilenameLen = 80
)

// stopWords are generic "this is a picture" nouns that add no SEO value in an
// alt tag. Matched case-insensitively as whole tokens.
var stopWords = map[string]struct{}{
	"фото":        {},
	"фотография":  {},
	"изображение": {},
	"картинка":    {},
	"image":       {},
	"photo":       {},
	"picture":     {},
	"img":         {},
}

// translitTable maps Cyrillic runes to Latin sequences (GOST-ish, the variant
// marketplaces use for slugs).
var translitTable = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "sch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
}

// Transliterate converts Cyrillic text to Latin. Other runes pass through
// unchanged; case is preserved by lowercasing the mapped sequence only for
// lowercase input.
func Transliterate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		lower := unicode.ToLower(r)
		mapped, ok := translitTable[lower]
		if !ok {
			b.WriteRune(r)
			continue
		}
		if r != lower && mapped != "" {
			b.WriteString(strings.ToUpper(mapped[:1]) + mapped[1:])
		} else {
			b.WriteString(mapped)
		}
	}
	return b.String()
}

// ValidateAltTag normalizes an alt tag: collapses whitespace, strips stop
// words, and trims to MaxAltTagLen. An empty result falls back to the product
// name so the tag is never empty.
func ValidateAltTag(alt, productName string) string {
	fields := strings.Fields(alt)
	kept := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[strings.ToLower(f)]; stop {
			continue
		}
		kept = append(kept, f)
	}

	out := strings.Join(kept, " ")
	if out == "" {
		out = strings.Join(strings.Fields(productName), " ")
	}
	if len(out) > MaxAltTagLen {
		out = truncateRunes(out, MaxAltTagLen)
	}
	return out
}

// ValidateSeoFilename normalizes a filename to the strict hosting charset:
// transliterated, lowercase, only [a-z0-9-], no leading/trailing or doubled
// hyphens, extension stripped, at most MaxFilenameLen. An unusable input
// falls back to a timestamped placeholder, so the result is never empty.
func ValidateSeoFilename(name string) string {
	return slug(name, MaxFilenameLen)
}

// GeneratedFilename applies the same normalization with the looser generator
// ceiling, used on model-produced names inside the description stage.
func GeneratedFilename(name string) string {
	return slug(name, MaxGeneratedFilenameLen)
}

func slug(name string, maxLen int) string {
	// Drop a trailing extension before normalizing, "photo.JPG" → "photo".
	if dot := strings.LastIndex(name, "."); dot > 0 && len(name)-dot <= 5 {
		name = name[:dot]
	}

	name = strings.ToLower(Transliterate(name))

	var b strings.Builder
	b.Grow(len(name))
	lastHyphen := true // swallow leading separators
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	out := strings.Trim(b.String(), "-")
	if len(out) > maxLen {
		out = strings.Trim(out[:maxLen], "-")
	}
	if out == "" {
		out = fmt.Sprintf("image-%d", time.Now().Unix())
	}
	return out
}

// FallbackAltTag synthesizes the degraded alt tag for image position n
// (1-based). The synthetic text bypasses stop-word stripping: "image" is
// load-bearing here, not filler.
func FallbackAltTag(productName string, n int) string {
	return truncateRunes(fmt.Sprintf("%s - image %d", strings.Join(strings.Fields(productName), " "), n), MaxAltTagLen)
}

// FallbackFilename synthesizes the degraded SEO filename for image position n.
func FallbackFilename(productName string, n int) string {
	return ValidateSeoFilename(fmt.Sprintf("%s-%d", productName, n))
}

// truncateRunes cuts s to at most max bytes without splitting a rune.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if b.Len()+len(string(r)) > max {
			break
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
