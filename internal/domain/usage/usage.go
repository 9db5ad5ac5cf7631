package usage

// Period is the aggregation granularity.
type Period string

// Aggregation periods.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod maps a query value to a Period. Empty means month.
func ParsePeriod(s string) (Period, bool) {
	switch Period(s) {
	case "", PeriodMonth:
		return PeriodMonth, true
	case PeriodDay:
		return PeriodDay, true
	default:
		return "", false
	}
}

// Report is the embedding token usage of one period against its budget.
// A zero TokensLimit means the budget is unlimited.
type Report struct {
	period          Period
	periodStart     int64
	periodEnd       int64
	tokensUsed      int64
	tokensLimit     int64
	tokensRemaining int64
	exhausted       bool
}

// NewReport creates a usage report. Timestamps are unix millis.
func NewReport(period Period, start, end, used, limit int64) Report {
	r := Report{period: period, periodStart: start, periodEnd: end, tokensUsed: used, tokensLimit: limit}
	if limit > 0 {
		r.tokensRemaining = max(limit-used, 0)
		r.exhausted = used >= limit
	}
	return r
}

// Period returns the aggregation granularity.
func (r Report) Period() Period { return r.period }

// PeriodStart returns the period start (unix millis).
func (r Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end, which is also the budget reset time (unix millis).
func (r Report) PeriodEnd() int64 { return r.periodEnd }

// TokensUsed returns the tokens consumed in the period.
func (r Report) TokensUsed() int64 { return r.tokensUsed }

// TokensLimit returns the budget cap, zero when unlimited.
func (r Report) TokensLimit() int64 { return r.tokensLimit }

// TokensRemaining returns the tokens left, zero when unlimited.
func (r Report) TokensRemaining() int64 { return r.tokensRemaining }

// IsExhausted reports whether a limited budget is spent.
func (r Report) IsExhausted() bool { return r.exhausted }
