package describe

import (
	"fmt"
	"strings"

	"github.com/sellerstudio/imageprep/internal/seo"
)

// buildPrompt creates the structured instruction for one sub-batch. The image
// references are numbered with their global batch positions so the assistant's
// results array lines up with the caller's slots.
func buildPrompt(productName string, imageURLs []string, offset int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are preparing SEO metadata for product images of %q.\n\n", productName)
	fmt.Fprintf(&sb, "Analyze the %d product images listed below and produce exactly %d results, one per image, in the listed order.\n\n", len(imageURLs), len(imageURLs))

	sb.WriteString("Rules for each result:\n")
	fmt.Fprintf(&sb, "- altTag: a concise visual description for the alt attribute, at most %d characters, no generic filler words like \"photo\" or \"image\".\n", seo.MaxAltTagLen)
	fmt.Fprintf(&sb, "- seoFilename: lowercase Latin letters, digits and hyphens only, no extension, at most %d characters, descriptive of the product and view.\n\n", seo.MaxGeneratedFilenameLen)

	sb.WriteString("Images:\n")
	for i, u := range imageURLs {
		fmt.Fprintf(&sb, "%d. %s\n", offset+i+1, u)
	}

	sb.WriteString("\nRespond with ONLY a JSON object of the form ")
	sb.WriteString(`{"results":[{"altTag":"...","seoFilename":"..."}]}`)
	sb.WriteString(" and nothing else.\n")

	return sb.String()
}
