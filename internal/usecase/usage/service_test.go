package usage

import (
	"context"
	"testing"
	"time"

	domusage "github.com/kailas-cloud/docqa/internal/domain/usage"
)

type mockBudgetReader struct {
	reportFn func(period domusage.Period) domusage.Report
}

func (m *mockBudgetReader) Report(period domusage.Period) domusage.Report {
	return m.reportFn(period)
}

func TestGetReport_DelegatesToBudget(t *testing.T) {
	var gotPeriod domusage.Period
	br := &mockBudgetReader{reportFn: func(p domusage.Period) domusage.Report {
		gotPeriod = p
		return domusage.NewReport(p, 1, 2, 3000, 10000)
	}}
	svc := New(br)

	r := svc.GetReport(context.Background(), domusage.PeriodDay)
	if gotPeriod != domusage.PeriodDay {
		t.Errorf("expected day period, got %q", gotPeriod)
	}
	if r.TokensUsed() != 3000 || r.TokensRemaining() != 7000 || r.IsExhausted() {
		t.Errorf("unexpected report %+v", r)
	}
}

func TestGetReport_NoBudget_Day(t *testing.T) {
	svc := New(nil)
	svc.now = func() time.Time { return time.Date(2024, 6, 15, 13, 0, 0, 0, time.UTC) }

	r := svc.GetReport(context.Background(), domusage.PeriodDay)

	start := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	if r.PeriodStart() != start.UnixMilli() {
		t.Errorf("expected period start %d, got %d", start.UnixMilli(), r.PeriodStart())
	}
	if r.PeriodEnd() != start.Add(24*time.Hour).UnixMilli() {
		t.Errorf("unexpected period end %d", r.PeriodEnd())
	}
	if r.TokensLimit() != 0 || r.TokensUsed() != 0 || r.IsExhausted() {
		t.Errorf("expected unlimited empty report, got %+v", r)
	}
}

func TestGetReport_NoBudget_Month(t *testing.T) {
	svc := New(nil)
	svc.now = func() time.Time { return time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC) }

	r := svc.GetReport(context.Background(), domusage.PeriodMonth)

	if r.Period() != domusage.PeriodMonth {
		t.Errorf("expected month, got %q", r.Period())
	}
	if r.PeriodEnd() != time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("month should end on Jan 1st, got %d", r.PeriodEnd())
	}
}
