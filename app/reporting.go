package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/metercore/metercore/domain/billing"
	"github.com/metercore/metercore/domain/usage"
	"github.com/metercore/metercore/ports"
)

// ReportingService answers billing and analytics queries. Unlike admission
// and recording, errors here propagate: a report the caller cannot trust is
// worse than no report.
type ReportingService struct {
	store  ports.UsageStore
	logger zerolog.Logger
}

// NewReportingService creates a reporting service.
func NewReportingService(store ports.UsageStore, logger zerolog.Logger) *ReportingService {
	return &ReportingService{store: store, logger: logger}
}

// CustomerSummary aggregates a customer's usage over [start, end).
func (s *ReportingService) CustomerSummary(ctx context.Context, customerID string, start, end time.Time) (usage.Summary, error) {
	events, err := s.store.ListByCustomer(ctx, customerID, start, end, 0, 0)
	if err != nil {
		return usage.Summary{}, fmt.Errorf("list events for customer %s: %w", customerID, err)
	}
	return usage.Summarize(events, start, end), nil
}

// OrganizationSummary aggregates an organization's usage over [start, end).
// Organization is not the partition key, so this reads across partitions.
func (s *ReportingService) OrganizationSummary(ctx context.Context, org string, start, end time.Time) (usage.Summary, error) {
	events, err := s.store.ListByOrganization(ctx, org, start, end)
	if err != nil {
		return usage.Summary{}, fmt.Errorf("list events for organization %s: %w", org, err)
	}
	return usage.Summarize(events, start, end), nil
}

// CustomerEvents returns a page of raw events for a customer.
func (s *ReportingService) CustomerEvents(ctx context.Context, customerID string, start, end time.Time, limit, offset int) ([]usage.Event, error) {
	events, err := s.store.ListByCustomer(ctx, customerID, start, end, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list events for customer %s: %w", customerID, err)
	}
	return events, nil
}

// CustomerAnalytics derives the daily breakdown, peak day, most-used kind,
// and success rate for a customer over [start, end).
func (s *ReportingService) CustomerAnalytics(ctx context.Context, customerID string, start, end time.Time) (usage.Analytics, error) {
	events, err := s.store.ListByCustomer(ctx, customerID, start, end, 0, 0)
	if err != nil {
		return usage.Analytics{}, fmt.Errorf("list events for customer %s: %w", customerID, err)
	}
	return usage.Analyze(events, start, end), nil
}

// CustomerStatement folds one calendar month of a customer's usage into a
// statement with per-kind line items.
func (s *ReportingService) CustomerStatement(ctx context.Context, customerID string, month time.Time) (billing.Statement, error) {
	start, end := usage.MonthBounds(month)
	summary, err := s.CustomerSummary(ctx, customerID, start, end)
	if err != nil {
		return billing.Statement{}, err
	}
	return billing.BuildStatement(customerID, summary), nil
}
