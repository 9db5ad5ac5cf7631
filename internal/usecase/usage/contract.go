package usage

import domusage "github.com/kailas-cloud/docqa/internal/domain/usage"

// BudgetReader provides read-only access to token budget state.
type BudgetReader interface {
	Report(period domusage.Period) domusage.Report
}
