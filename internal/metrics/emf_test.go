package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestRecorder_FlushEmitsEMFDocument(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorderTo(&buf)
	r.Dimension("Product", "KT-100").
		Count("ImagesLocated", 10).
		Count("ImagesOptimized", 8).
		Metric("RunDuration", 4200, UnitMilliseconds).
		Property("runId", "ab12cd34")
	r.Flush()

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("Flush wrote nothing")
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(line), &doc); err != nil {
		t.Fatalf("Flush output is not valid JSON: %v", err)
	}

	if doc["Product"] != "KT-100" {
		t.Errorf("Product dimension = %v, want KT-100", doc["Product"])
	}
	if doc["ImagesLocated"] != float64(10) {
		t.Errorf("ImagesLocated = %v, want 10", doc["ImagesLocated"])
	}
	if doc["RunDuration"] != float64(4200) {
		t.Errorf("RunDuration = %v, want 4200", doc["RunDuration"])
	}
	if doc["runId"] != "ab12cd34" {
		t.Errorf("runId property = %v, want ab12cd34", doc["runId"])
	}

	aws, ok := doc["_aws"].(map[string]any)
	if !ok {
		t.Fatal("missing _aws directive")
	}
	cms, ok := aws["CloudWatchMetrics"].([]any)
	if !ok || len(cms) != 1 {
		t.Fatalf("CloudWatchMetrics = %v, want single entry", aws["CloudWatchMetrics"])
	}
	cm := cms[0].(map[string]any)
	if cm["Namespace"] != Namespace {
		t.Errorf("Namespace = %v, want %q", cm["Namespace"], Namespace)
	}
	metricDefs := cm["Metrics"].([]any)
	if len(metricDefs) != 3 {
		t.Errorf("got %d metric definitions, want 3", len(metricDefs))
	}
	first := metricDefs[0].(map[string]any)
	if first["Name"] != "ImagesLocated" || first["Unit"] != UnitCount {
		t.Errorf("first metric = %v, want ImagesLocated/Count (insertion order)", first)
	}
}

func TestRecorder_MetricOverwriteKeepsSingleDefinition(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorderTo(&buf)
	r.Count("ImagesLocated", 3)
	r.Count("ImagesLocated", 7)
	r.Flush()

	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if doc["ImagesLocated"] != float64(7) {
		t.Errorf("ImagesLocated = %v, want last write 7", doc["ImagesLocated"])
	}
	aws := doc["_aws"].(map[string]any)
	cm := aws["CloudWatchMetrics"].([]any)[0].(map[string]any)
	if defs := cm["Metrics"].([]any); len(defs) != 1 {
		t.Errorf("got %d metric definitions, want 1", len(defs))
	}
}

func TestRecorder_NoMetricsNoOutput(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorderTo(&buf)
	r.Dimension("Product", "X").Property("runId", "y")
	r.Flush()

	if buf.Len() != 0 {
		t.Errorf("Flush wrote %q with no metrics recorded, want nothing", buf.String())
	}
}
