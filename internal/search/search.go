// Package search implements the dashboard's relevance-scored text search
// over the activity log and the task list. It is a linear scan with a fixed
// four-tier score table, not a search engine: no index, no tokenization
// beyond whitespace splitting.
package search

import (
	"errors"
	"sort"
	"strings"

	"missionctl/internal/domain"
)

// PageSize caps the number of results returned per query.
const PageSize = 20

// ErrEmptyQuery is returned when the query is empty or whitespace-only.
var ErrEmptyQuery = errors.New("query parameter required")

// Result ties a matched record to the collection it came from and its score.
type Result struct {
	Type  string `json:"type" enum:"activity,task"`
	Item  any    `json:"item"`
	Score int    `json:"score"`
}

// Score tiers. A result below ScoreSubstring never leaves the filter step.
const (
	ScoreExact     = 100
	ScorePrefix    = 90
	ScoreWord      = 70
	ScoreSubstring = 50
)

// Query filters activities and tasks by case-insensitive substring
// containment, scores each match over its concatenated searchable text,
// and returns the top PageSize results sorted by score descending.
// Ties keep activities before tasks (stable sort over the merged list).
func Query(q string, activities []domain.Activity, tasks []domain.Task) ([]Result, error) {
	if strings.TrimSpace(q) == "" {
		return nil, ErrEmptyQuery
	}
	needle := strings.ToLower(q)

	results := make([]Result, 0, len(activities)+len(tasks))
	for _, a := range activities {
		if !containsAny(needle, a.Details, a.Action, a.Type) {
			continue
		}
		text := a.Details + " " + a.Action + " " + a.Type
		results = append(results, Result{Type: "activity", Item: a, Score: score(text, needle)})
	}
	for _, t := range tasks {
		if !containsFold(t.Title, needle) && !(t.Description != "" && containsFold(t.Description, needle)) {
			continue
		}
		// The separator is always appended, so a task without a description
		// scores at most ScorePrefix even when its title equals the query.
		text := t.Title + " " + t.Description
		results = append(results, Result{Type: "task", Item: t, Score: score(text, needle)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > PageSize {
		results = results[:PageSize]
	}
	return results, nil
}

// score ranks text against an already lower-cased query. Tiers are evaluated
// in strict priority order; candidates that passed the filter always contain
// the query somewhere, so 0 is unreachable in practice.
func score(text, needle string) int {
	text = strings.ToLower(text)
	switch {
	case text == needle:
		return ScoreExact
	case strings.HasPrefix(text, needle):
		return ScorePrefix
	case hasToken(text, needle):
		return ScoreWord
	case strings.Contains(text, needle):
		return ScoreSubstring
	}
	return 0
}

func hasToken(text, needle string) bool {
	for _, tok := range strings.Fields(text) {
		if tok == needle {
			return true
		}
	}
	return false
}

func containsFold(field, needle string) bool {
	return strings.Contains(strings.ToLower(field), needle)
}

func containsAny(needle string, fields ...string) bool {
	for _, f := range fields {
		if containsFold(f, needle) {
			return true
		}
	}
	return false
}
