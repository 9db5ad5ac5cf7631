package domain

import "context"

// Generator produces a completion for a single assembled prompt.
// Implementations wrap provider failures with ErrGenerationFailed.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
