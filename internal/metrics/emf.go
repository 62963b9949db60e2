// Package metrics emits pipeline run metrics in AWS CloudWatch Embedded
// Metrics Format (EMF): structured JSON lines on stdout that CloudWatch
// extracts automatically, with no API calls and no added latency. Outside
// Lambda the lines are still useful as machine-readable run records.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Namespace is the CloudWatch namespace for all imageprep metrics.
const Namespace = "ImagePrep"

// Standard CloudWatch metric units.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
	UnitNone         = "None"
)

type metricDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

type cwMetric struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []metricDef `json:"Metrics"`
}

type emfDirective struct {
	Timestamp         int64      `json:"Timestamp"`
	CloudWatchMetrics []cwMetric `json:"CloudWatchMetrics"`
}

// Recorder accumulates dimensions, metrics, and properties for one EMF flush.
// Not safe for concurrent use; create one per pipeline run.
type Recorder struct {
	out        io.Writer
	dimensions map[string]string
	names      []string // metric insertion order, for deterministic output
	metrics    map[string]metricDef
	values     map[string]float64
	properties map[string]any
}

// NewRecorder creates a Recorder writing to stdout.
func NewRecorder() *Recorder {
	return NewRecorderTo(os.Stdout)
}

// NewRecorderTo creates a Recorder writing EMF lines to w.
func NewRecorderTo(w io.Writer) *Recorder {
	return &Recorder{
		out:        w,
		dimensions: make(map[string]string),
		metrics:    make(map[string]metricDef),
		values:     make(map[string]float64),
		properties: make(map[string]any),
	}
}

// Dimension adds an indexed, filterable dimension.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records a named value with a CloudWatch unit.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	if _, exists := r.metrics[name]; !exists {
		r.names = append(r.names, name)
	}
	r.metrics[name] = metricDef{Name: name, Unit: unit}
	r.values[name] = value
	return r
}

// Count records an integer count metric.
func (r *Recorder) Count(name string, n int) *Recorder {
	return r.Metric(name, float64(n), UnitCount)
}

// Property adds a searchable non-metric field (no CloudWatch metric, no cost).
func (r *Recorder) Property(key string, value any) *Recorder {
	r.properties[key] = value
	return r
}

// Flush serializes the EMF document as one JSON line. The Recorder must not
// be reused afterwards.
func (r *Recorder) Flush() {
	if len(r.metrics) == 0 {
		return
	}

	doc := make(map[string]any, len(r.dimensions)+len(r.values)+len(r.properties)+1)

	defs := make([]metricDef, 0, len(r.names))
	for _, name := range r.names {
		defs = append(defs, r.metrics[name])
	}
	dimKeys := make([]string, 0, len(r.dimensions))
	for k := range r.dimensions {
		dimKeys = append(dimKeys, k)
	}

	doc["_aws"] = emfDirective{
		Timestamp: time.Now().UnixMilli(),
		CloudWatchMetrics: []cwMetric{{
			Namespace:  Namespace,
			Dimensions: [][]string{dimKeys},
			Metrics:    defs,
		}},
	}
	for k, v := range r.dimensions {
		doc[k] = v
	}
	for k, v := range r.values {
		doc[k] = v
	}
	for k, v := range r.properties {
		doc[k] = v
	}

	data, err := json.Marshal(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emf: marshal metrics: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, string(data))
}
