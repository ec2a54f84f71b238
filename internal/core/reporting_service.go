package core

import (
	"context"
	"fmt"
	"time"
)

// DefaultTopProducts is the ranking size used when the caller does not ask for one.
const DefaultTopProducts = 10

// ReportingService provides read-only reporting over committed data.
type ReportingService interface {
	// FinanceMetrics reports on the calendar days from..to (inclusive) in the
	// service's reporting location.
	FinanceMetrics(ctx context.Context, from, to time.Time, topN int) (*MetricsReport, error)
}

type reportingService struct {
	reader   Reader
	location *time.Location
}

// NewReportingService constructs a ReportingService that buckets days in loc.
func NewReportingService(reader Reader, loc *time.Location) ReportingService {
	if loc == nil {
		loc = time.UTC
	}
	return &reportingService{reader: reader, location: loc}
}

func (s *reportingService) FinanceMetrics(ctx context.Context, from, to time.Time, topN int) (*MetricsReport, error) {
	if from.IsZero() || to.IsZero() {
		return nil, invalid("period", "from and to are required")
	}
	if to.Before(from) {
		return nil, invalid("period", "to must not be before from")
	}
	if topN <= 0 {
		topN = DefaultTopProducts
	}
	period := DayPeriod(from, to, s.location)

	orders, err := s.reader.ListOrders(ctx, OrderFilter{From: period.Start, To: period.End})
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	entries, err := s.reader.ListFinanceEntries(ctx, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load finance entries: %w", err)
	}

	seen := make(map[string]bool)
	var productIDs []string
	for _, o := range orders {
		for _, l := range o.Lines {
			if l.UnitCost == nil && !seen[l.ProductID] {
				seen[l.ProductID] = true
				productIDs = append(productIDs, l.ProductID)
			}
		}
	}
	history := map[string][]CostRecord{}
	if len(productIDs) > 0 {
		history, err = s.reader.CostHistory(ctx, productIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load cost history: %w", err)
		}
	}

	report := ComputeFinanceMetrics(MetricsInput{
		Period:      period,
		CostHistory: history,
		Orders:      orders,
		Entries:     entries,
		TopN:        topN,
		Location:    s.location,
	})
	return &report, nil
}
