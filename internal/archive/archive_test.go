package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/sellerstudio/imageprep/internal/config"
	"github.com/sellerstudio/imageprep/internal/finish"
)

type fakeFetcher struct {
	data map[string][]byte
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	if d, ok := f.data[url]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("fetch %s: not found", url)
}

func webpBytes() []byte {
	return []byte("RIFF\x00\x00\x00\x00WEBPVP8 fake-payload")
}

func openBundle(t *testing.T, buf *bytes.Buffer) *zip.Reader {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("reading bundle: %v", err)
	}
	zr.RegisterDecompressor(zipMethodZstd, func(r io.Reader) io.ReadCloser {
		zd, err := zstd.NewReader(r)
		if err != nil {
			t.Fatalf("zstd reader: %v", err)
		}
		return zd.IOReadCloser()
	})
	return zr
}

func TestExport_BundleContainsImagesAndManifest(t *testing.T) {
	product := config.Product{Name: "Чайник", Article: "KT-100"}
	results := []finish.Result{
		{AltTag: "чайник вид 1", SeoFilename: "chaynik-1", ProcessedImageURL: "https://cdn.example/a", Confidence: 8},
		{AltTag: "чайник вид 2", SeoFilename: "chaynik-2", ProcessedImageURL: "https://cdn.example/b", Confidence: 8},
	}
	fetcher := &fakeFetcher{data: map[string][]byte{
		"https://cdn.example/a": webpBytes(),
		"https://cdn.example/b": webpBytes(),
	}}

	var buf bytes.Buffer
	if err := Export(context.Background(), &buf, product, results, fetcher); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	zr := openBundle(t, &buf)
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"images/chaynik-1.webp", "images/chaynik-2.webp", "manifest.json"} {
		if !names[want] {
			t.Errorf("bundle missing %q, got %v", want, names)
		}
	}

	mf, err := zr.Open("manifest.json")
	if err != nil {
		t.Fatalf("open manifest: %v", err)
	}
	defer mf.Close()
	var m Manifest
	if err := json.NewDecoder(mf).Decode(&m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if m.Product != "Чайник" || m.Article != "KT-100" {
		t.Errorf("manifest product = %q/%q, want Чайник/KT-100", m.Product, m.Article)
	}
	if len(m.Results) != 2 {
		t.Errorf("manifest has %d results, want 2", len(m.Results))
	}
}

func TestExport_ImageRoundTripsThroughZstd(t *testing.T) {
	results := []finish.Result{
		{SeoFilename: "kettle", ProcessedImageURL: "https://cdn.example/a", Confidence: 8},
	}
	fetcher := &fakeFetcher{data: map[string][]byte{"https://cdn.example/a": webpBytes()}}

	var buf bytes.Buffer
	if err := Export(context.Background(), &buf, config.Product{Name: "Kettle"}, results, fetcher); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	zr := openBundle(t, &buf)
	f, err := zr.Open("images/kettle.webp")
	if err != nil {
		t.Fatalf("open image entry: %v", err)
	}
	defer f.Close()
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read image entry: %v", err)
	}
	if !bytes.Equal(got, webpBytes()) {
		t.Errorf("image bytes did not round-trip: got %d bytes", len(got))
	}
}

func TestExport_UnfetchableImageStaysInManifest(t *testing.T) {
	results := []finish.Result{
		{SeoFilename: "gone", ProcessedImageURL: "https://cdn.example/missing", Confidence: 3},
	}
	var buf bytes.Buffer
	if err := Export(context.Background(), &buf, config.Product{Name: "X"}, results, &fakeFetcher{}); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	zr := openBundle(t, &buf)
	if len(zr.File) != 1 || zr.File[0].Name != "manifest.json" {
		names := make([]string, 0, len(zr.File))
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		t.Fatalf("bundle files = %v, want manifest only", names)
	}
	mf, _ := zr.Open("manifest.json")
	defer mf.Close()
	var m Manifest
	if err := json.NewDecoder(mf).Decode(&m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if len(m.Results) != 1 {
		t.Errorf("manifest has %d results, want the skipped image recorded", len(m.Results))
	}
}

func TestExtensionFor(t *testing.T) {
	cases := []struct {
		data []byte
		want string
	}{
		{webpBytes(), ".webp"},
		{[]byte("\x89PNG\r\n\x1a\n...."), ".png"},
		{[]byte("\xff\xd8\xff\xe0...."), ".jpg"},
		{[]byte("plain text"), ""},
	}
	for _, c := range cases {
		if got := extensionFor(c.data); got != c.want {
			t.Errorf("extensionFor(%q...) = %q, want %q", c.data[:4], got, c.want)
		}
	}
}
