package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/docqa/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil (unlimited mode, no tracking).
func New(br BudgetReader) *Service {
	return &Service{br: br, now: func() time.Time { return time.Now().UTC() }}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	if s.br != nil {
		return s.br.Report(period)
	}

	now := s.now()
	if period == domusage.PeriodDay {
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return domusage.NewReport(period, start.UnixMilli(), start.AddDate(0, 0, 1).UnixMilli(), 0, 0)
	}
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return domusage.NewReport(domusage.PeriodMonth, start.UnixMilli(), start.AddDate(0, 1, 0).UnixMilli(), 0, 0)
}
