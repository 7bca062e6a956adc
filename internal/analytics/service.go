package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/kickoffclub/hq-backend/pkg/errors"
	"github.com/kickoffclub/hq-backend/pkg/logger"
)

// MaxSamplesPerReport caps how many vitals a single report may carry.
const MaxSamplesPerReport = 25

type rowWriter interface {
	Insert(ctx context.Context, row WebVitalRow) error
	Flush(ctx context.Context) error
}

// ReportContext carries the request-scoped attribution for a vitals report.
type ReportContext struct {
	UserID    uuid.UUID
	UserAgent string
}

// Service ingests web vital reports from the browser and forwards them to
// BigQuery.
type Service interface {
	RecordVitals(ctx context.Context, rc ReportContext, samples []WebVitalSample) error
	Flush(ctx context.Context) error
}

type service struct {
	writer rowWriter
	logg   *logger.Logger
	now    func() time.Time
}

// ServiceParams wires the analytics service dependencies.
type ServiceParams struct {
	Writer *BigQueryWriter
	Logger *logger.Logger
}

// NewService builds the vitals ingestion service.
func NewService(params ServiceParams) (Service, error) {
	if params.Writer == nil {
		return nil, fmt.Errorf("vitals writer required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		writer: params.Writer,
		logg:   params.Logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) RecordVitals(ctx context.Context, rc ReportContext, samples []WebVitalSample) error {
	if len(samples) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one sample is required")
	}
	if len(samples) > MaxSamplesPerReport {
		return pkgerrors.New(pkgerrors.CodeValidation, "too many samples in one report").
			WithDetails(map[string]any{"max_samples": MaxSamplesPerReport})
	}

	received := s.now()
	for i := range samples {
		row, err := s.toRow(&samples[i], rc, received)
		if err != nil {
			return err
		}
		if err := s.writer.Insert(ctx, *row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeProvider, err, "writing web vitals")
		}
	}
	return nil
}

// Flush drains any buffered rows, used on shutdown.
func (s *service) Flush(ctx context.Context) error {
	return s.writer.Flush(ctx)
}

func (s *service) toRow(sample *WebVitalSample, rc ReportContext, received time.Time) (*WebVitalRow, error) {
	metric := strings.ToUpper(strings.TrimSpace(sample.Metric))
	if _, ok := knownMetrics[metric]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown web vital metric").
			WithDetails(map[string]any{"metric": sample.Metric})
	}
	if sample.Value < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "metric value must not be negative")
	}

	rating := strings.ToLower(strings.TrimSpace(sample.Rating))
	if rating == "" {
		rating = RatingGood
	}
	if _, ok := knownRatings[rating]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown web vital rating").
			WithDetails(map[string]any{"rating": sample.Rating})
	}

	page := strings.TrimSpace(sample.Page)
	if page == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "page is required")
	}

	attributes, err := encodeJSON(sample.Attributes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sample attributes")
	}

	sampleID := strings.TrimSpace(sample.SampleID)
	if sampleID == "" {
		sampleID = uuid.NewString()
	}

	occurredAt := sample.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = received
	}

	row := &WebVitalRow{
		SampleID:   sampleID,
		Metric:     metric,
		Value:      sample.Value,
		Rating:     rating,
		Page:       page,
		OccurredAt: occurredAt.UTC(),
		ReceivedAt: received,
		Attributes: attributes,
	}
	if rc.UserID != uuid.Nil {
		id := rc.UserID.String()
		row.UserID = &id
	}
	if nav := strings.TrimSpace(sample.NavigationType); nav != "" {
		row.NavigationType = &nav
	}
	if ua := strings.TrimSpace(rc.UserAgent); ua != "" {
		row.UserAgent = &ua
	}
	return row, nil
}
