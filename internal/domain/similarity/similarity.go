// Package similarity ranks vectors by cosine similarity.
package similarity

import (
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// Candidate is a stored vector identified by its chunk index.
type Candidate struct {
	Index  int
	Vector []float32
}

// Match is a ranked candidate.
type Match struct {
	Index int
	Score float64
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of a and b clamped to [-1, 1].
// A zero vector has no direction and yields 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%d vs %d: %w", len(a), len(b), domain.ErrVectorDimMismatch)
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return Clamp(dot / (math.Sqrt(na) * math.Sqrt(nb))), nil
}

// Clamp bounds a similarity to [-1, 1] against floating point drift.
func Clamp(s float64) float64 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	default:
		return s
	}
}

// Rank scores every candidate against query and returns at most topK matches,
// highest score first, equal scores by ascending index.
func Rank(query []float32, candidates []Candidate, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top_k %d: %w", topK, domain.ErrInvalidTopK)
	}
	if Norm(query) == 0 {
		return nil, fmt.Errorf("query embedding has zero norm: %w", domain.ErrInvalidConfiguration)
	}

	matches := make([]Match, len(candidates))
	for i, c := range candidates {
		s, err := Cosine(query, c.Vector)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", c.Index, err)
		}
		matches[i] = Match{Index: c.Index, Score: s}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Index < matches[j].Index
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}
