package analytics

import (
	"encoding/json"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// Metric names reported by the web client. Anything else is rejected.
const (
	MetricLCP  = "LCP"
	MetricCLS  = "CLS"
	MetricINP  = "INP"
	MetricFID  = "FID"
	MetricFCP  = "FCP"
	MetricTTFB = "TTFB"
)

// Ratings follow the web-vitals library buckets.
const (
	RatingGood             = "good"
	RatingNeedsImprovement = "needs-improvement"
	RatingPoor             = "poor"
)

// WebVitalSample is a single metric measurement posted by the browser.
type WebVitalSample struct {
	Metric      string          `json:"metric" validate:"required"`
	Value       float64         `json:"value" validate:"gte=0"`
	Rating      string          `json:"rating"`
	Page        string          `json:"page" validate:"required,max=2048"`
	NavigationType string       `json:"navigation_type"`
	SampleID    string          `json:"sample_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Attributes  json.RawMessage `json:"attributes"`
}

// WebVitalRow mirrors the web_vitals BigQuery schema.
type WebVitalRow struct {
	SampleID       string             `bigquery:"sample_id"`
	UserID         *string            `bigquery:"user_id"`
	Metric         string             `bigquery:"metric"`
	Value          float64            `bigquery:"value"`
	Rating         string             `bigquery:"rating"`
	Page           string             `bigquery:"page"`
	NavigationType *string            `bigquery:"navigation_type"`
	UserAgent      *string            `bigquery:"user_agent"`
	OccurredAt     time.Time          `bigquery:"occurred_at"`
	ReceivedAt     time.Time          `bigquery:"received_at"`
	Attributes     cbigquery.NullJSON `bigquery:"attributes"`
}

var knownMetrics = map[string]struct{}{
	MetricLCP:  {},
	MetricCLS:  {},
	MetricINP:  {},
	MetricFID:  {},
	MetricFCP:  {},
	MetricTTFB: {},
}

var knownRatings = map[string]struct{}{
	RatingGood:             {},
	RatingNeedsImprovement: {},
	RatingPoor:             {},
}
