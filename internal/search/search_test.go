package search

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"missionctl/internal/domain"
)

func activity(id, typ, action, details string) domain.Activity {
	return domain.Activity{ID: id, Timestamp: "2024-01-01T00:00:00Z", Type: typ, Action: action, Details: details}
}

func task(id, title, description string) domain.Task {
	return domain.Task{
		ID:        id,
		Title:     title,
		Status:    domain.StatusPending,
		Priority:  domain.PriorityHigh,
		CreatedAt: "2024-01-01T00:00:00Z",

		Description: description,
	}
}

func TestBlankQueryRejected(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := Query(q, []domain.Activity{activity("a1", "file", "edit", "x")}, nil)
		assert.ErrorIs(t, err, ErrEmptyQuery, "query %q", q)
	}
}

func TestSubstringScoreScenario(t *testing.T) {
	acts := []domain.Activity{activity("a1", "file", "edit", "Updated the config file")}
	results, err := Query("config", acts, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "activity", results[0].Type)
	assert.Equal(t, ScoreSubstring, results[0].Score)
	assert.Equal(t, acts[0], results[0].Item)
}

func TestTrailingSeparatorBreaksExactMatch(t *testing.T) {
	// Concatenated text is "deploy " (empty description appended), so the
	// exact tier never fires; the prefix tier does.
	tasks := []domain.Task{task("t1", "Deploy", "")}
	results, err := Query("deploy", nil, tasks)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ScorePrefix, results[0].Score)
}

func TestScoreTiers(t *testing.T) {
	cases := []struct {
		text  string
		query string
		want  int
	}{
		{"deploy", "deploy", ScoreExact},
		{"Deploy", "deploy", ScoreExact},
		{"deploy now", "deploy", ScorePrefix},
		{"deploy ", "deploy", ScorePrefix},
		{"the cat sat", "cat", ScoreWord},
		{"filed under category", "cat", ScoreSubstring},
		{"unrelated", "cat", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, score(tc.text, tc.query), "score(%q, %q)", tc.text, tc.query)
	}
}

func TestWholeWordBeatsSubstring(t *testing.T) {
	acts := []domain.Activity{
		activity("a1", "note", "create", "the cat sat"),
		activity("a2", "note", "create", "filed under category"),
	}
	results, err := Query("cat", acts, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, ScoreWord, results[0].Score)
	assert.Equal(t, "a1", results[0].Item.(domain.Activity).ID)
	assert.Equal(t, ScoreSubstring, results[1].Score)
	assert.Equal(t, "a2", results[1].Item.(domain.Activity).ID)
}

func TestExactRanksAboveSubstring(t *testing.T) {
	tasks := []domain.Task{
		task("t1", "deploy", "now"),
		task("t2", "deploy", ""),
	}
	acts := []domain.Activity{activity("a1", "exec", "run", "redeployment started")}
	results, err := Query("deploy", acts, tasks)
	require.NoError(t, err)
	require.Len(t, results, 3)
	// t2 concatenates to "deploy " -> prefix; t1 to "deploy now" -> prefix;
	// the activity only contains the query inside a longer token.
	assert.Equal(t, "task", results[0].Type)
	assert.Equal(t, ScorePrefix, results[0].Score)
	assert.Equal(t, ScoreSubstring, results[2].Score)
	assert.Equal(t, "activity", results[2].Type)
}

func TestCaseInsensitive(t *testing.T) {
	acts := []domain.Activity{activity("a1", "FILE", "Edit", "touched README")}
	upper, err := Query("FILE", acts, nil)
	require.NoError(t, err)
	lower, err := Query("file", acts, nil)
	require.NoError(t, err)
	assert.Equal(t, upper, lower)
	require.Len(t, lower, 1)
}

func TestFilterFieldsIndependent(t *testing.T) {
	acts := []domain.Activity{
		activity("a1", "exec", "send", "posted digest"),
		activity("a2", "file", "edit", "send later"),
		activity("a3", "file", "edit", "nothing here"),
	}
	results, err := Query("send", acts, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NotEqual(t, "a3", r.Item.(domain.Activity).ID)
	}
}

func TestDescriptionOnlyMatch(t *testing.T) {
	tasks := []domain.Task{task("t1", "Write report", "summarize quarterly metrics")}
	results, err := Query("metrics", nil, tasks)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ScoreSubstring, results[0].Score)
}

func TestTruncationAndOrdering(t *testing.T) {
	var acts []domain.Activity
	for i := 0; i < 15; i++ {
		acts = append(acts, activity(fmt.Sprintf("a%d", i), "file", "edit", "alpha update"))
	}
	var tasks []domain.Task
	for i := 0; i < 15; i++ {
		tasks = append(tasks, task(fmt.Sprintf("t%d", i), "chase alpha", "x"))
	}
	results, err := Query("alpha", acts, tasks)
	require.NoError(t, err)
	assert.Len(t, results, PageSize)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	for _, r := range results {
		assert.Contains(t, []int{ScoreSubstring, ScoreWord, ScorePrefix, ScoreExact}, r.Score)
	}
}

func TestEqualScoreKeepsActivitiesFirst(t *testing.T) {
	acts := []domain.Activity{activity("a1", "file", "edit", "touched widget code")}
	tasks := []domain.Task{task("t1", "fix widget rendering", "x")}
	results, err := Query("widget", acts, tasks)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, results[0].Score, results[1].Score)
	assert.Equal(t, "activity", results[0].Type)
	assert.Equal(t, "task", results[1].Type)
}

func TestNoMatches(t *testing.T) {
	results, err := Query("zzz", []domain.Activity{activity("a1", "file", "edit", "nope")}, []domain.Task{task("t1", "nothing", "")})
	require.NoError(t, err)
	assert.Empty(t, results)
}
