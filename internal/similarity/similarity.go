// Package similarity provides a heuristic text-closeness score used as a
// fallback when exact substring search finds nothing.
package similarity

import (
	"sort"
	"strings"
)

// Threshold is the score a candidate must exceed to count as similar.
const Threshold = 0.3

// Score estimates how close candidate is to query, in [0, 1]. Any non-empty
// string scores at least 0.8 against itself, whitespace included.
func Score(query, candidate string) float64 {
	if query == "" || candidate == "" {
		return 0
	}
	q := normalize(query)
	c := normalize(candidate)
	if q == c {
		return 0.9
	}
	if q == "" || c == "" {
		return 0
	}
	if strings.Contains(c, q) {
		return 0.9
	}
	if strings.Contains(q, c) {
		return 0.8
	}

	qWords := strings.Fields(q)
	cWords := strings.Fields(c)
	overlap := 0
	for _, cw := range cWords {
		for _, qw := range qWords {
			if strings.Contains(cw, qw) || strings.Contains(qw, cw) {
				overlap++
				break
			}
		}
	}
	if overlap > 0 {
		s := float64(overlap) / float64(max(len(qWords), len(cWords)))
		return min(0.7, s)
	}

	if len(q) < 5 && len(c) < 5 && (strings.Contains(q, c) || strings.Contains(c, q)) {
		return 0.6
	}
	return 0
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Field extracts one searchable string from an item.
type Field[T any] func(T) string

// Result is a search hit. Exact hits carry score 1.
type Result[T any] struct {
	Item  T
	Score float64
	Exact bool
}

// Search returns items whose fields contain query. Only when no item matches
// exactly does it fall back to items whose best field score exceeds
// Threshold, ordered by descending score.
func Search[T any](query string, items []T, fields ...Field[T]) []Result[T] {
	q := normalize(query)
	if q == "" || len(fields) == 0 {
		return nil
	}

	var exact []Result[T]
	for _, item := range items {
		for _, f := range fields {
			if strings.Contains(normalize(f(item)), q) {
				exact = append(exact, Result[T]{Item: item, Score: 1, Exact: true})
				break
			}
		}
	}
	if len(exact) > 0 {
		return exact
	}

	var similar []Result[T]
	for _, item := range items {
		best := 0.0
		for _, f := range fields {
			best = max(best, Score(q, f(item)))
		}
		if best > Threshold {
			similar = append(similar, Result[T]{Item: item, Score: best})
		}
	}
	sort.SliceStable(similar, func(i, j int) bool {
		return similar[i].Score > similar[j].Score
	})
	return similar
}
