package usage

import "testing"

func TestNewReport_Limited(t *testing.T) {
	r := NewReport(PeriodMonth, 1700000000000, 1702600000000, 384200, 1000000)

	if r.Period() != PeriodMonth {
		t.Errorf("Period() = %q", r.Period())
	}
	if r.PeriodStart() != 1700000000000 || r.PeriodEnd() != 1702600000000 {
		t.Errorf("period = %d..%d", r.PeriodStart(), r.PeriodEnd())
	}
	if r.TokensRemaining() != 615800 {
		t.Errorf("TokensRemaining() = %d", r.TokensRemaining())
	}
	if r.IsExhausted() {
		t.Error("IsExhausted() = true, want false")
	}
}

func TestNewReport_Exhausted(t *testing.T) {
	r := NewReport(PeriodDay, 0, 0, 1200, 1000)
	if !r.IsExhausted() {
		t.Error("IsExhausted() = false, want true")
	}
	if r.TokensRemaining() != 0 {
		t.Errorf("TokensRemaining() = %d", r.TokensRemaining())
	}
}

func TestNewReport_Unlimited(t *testing.T) {
	r := NewReport(PeriodDay, 0, 0, 5000, 0)
	if r.IsExhausted() || r.TokensRemaining() != 0 || r.TokensLimit() != 0 {
		t.Errorf("unlimited budget reported as %+v", r)
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in   string
		want Period
		ok   bool
	}{
		{"", PeriodMonth, true},
		{"month", PeriodMonth, true},
		{"day", PeriodDay, true},
		{"year", "", false},
	}
	for _, tc := range tests {
		got, ok := ParsePeriod(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParsePeriod(%q) = %q, %v", tc.in, got, ok)
		}
	}
}
