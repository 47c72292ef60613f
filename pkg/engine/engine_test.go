package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dataforge/dataprep/pkg/config"
	"github.com/dataforge/dataprep/pkg/model"
)

func newTestEngine(t *testing.T, mutate func(*config.Config)) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	e, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return e
}

func twoColumnSnapshot(t *testing.T) *model.DatasetSnapshot {
	t.Helper()
	return mustSnapshot(t, []model.Column{
		{Name: "name", Type: model.TypeString, Values: []interface{}{" a", "b ", "c", "d"}},
		{Name: "word", Type: model.TypeString, Values: []interface{}{"one", "two", "three", "four"}},
	})
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = New(config.DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestApplySuccessfulRun(t *testing.T) {
	e := newTestEngine(t, nil)
	snap := twoColumnSnapshot(t)

	rules := []model.PreprocessingRule{
		{ID: "trim_whitespace/name", Kind: model.KindTrimWhitespace, Column: "name"},
	}

	next, bulk, err := e.Apply(context.Background(), snap, rules, nil)
	require.NoError(t, err)
	require.NotNil(t, next)

	assert.Equal(t, 1, bulk.TotalRules)
	assert.Equal(t, 1, bulk.SuccessfulRules)
	assert.Equal(t, 0, bulk.FailedRules)
	assert.Equal(t, 1.0, bulk.SuccessRate)
	assert.Equal(t, 2, bulk.TotalRowsAffected)
	assert.Equal(t, "a", next.Column("name").Values[0])

	// Input snapshot is never mutated
	assert.Equal(t, " a", snap.Column("name").Values[0])
}

func TestApplyRowAccountingInvariant(t *testing.T) {
	e := newTestEngine(t, nil)
	snap := twoColumnSnapshot(t)

	rules := []model.PreprocessingRule{
		{ID: "trim_whitespace/name", Kind: model.KindTrimWhitespace, Column: "name"},
		{ID: "dedupe_rows", Kind: model.KindDedupeRows},
	}

	_, bulk, err := e.Apply(context.Background(), snap, rules, nil)
	require.NoError(t, err)

	for _, result := range bulk.Results {
		require.True(t, result.Success)
		assert.Equal(t, 4, result.RowsAffected+result.RowsSkipped,
			"rule %s accounting", result.Rule.ID)
	}
}

// A rule list [R1 failing, R2] under each policy: FailFast applies
// nothing after R1; ContinueOnError still applies R2.
func TestApplyFailurePolicies(t *testing.T) {
	failing := model.PreprocessingRule{
		ID:         "cast_type/word",
		Kind:       model.KindCastType,
		Column:     "word",
		Parameters: map[string]interface{}{"target_type": "integer"},
	}
	trailing := model.PreprocessingRule{
		ID:     "trim_whitespace/name",
		Kind:   model.KindTrimWhitespace,
		Column: "name",
	}

	t.Run("fail fast stops the run", func(t *testing.T) {
		e := newTestEngine(t, func(c *config.Config) { c.FailurePolicy = model.FailFast })
		snap := twoColumnSnapshot(t)

		next, bulk, err := e.Apply(context.Background(), snap, []model.PreprocessingRule{failing, trailing}, nil)
		require.NoError(t, err)

		assert.Equal(t, 2, bulk.TotalRules)
		assert.Equal(t, 0, bulk.SuccessfulRules)
		assert.Equal(t, 1, bulk.FailedRules)
		require.Len(t, bulk.Results, 1)
		assert.False(t, bulk.Results[0].Success)
		assert.NotEmpty(t, bulk.Results[0].ErrorMessage)
		assert.Equal(t, 0.0, bulk.SuccessRate)

		// The working copy equals the input: the failed rule's output
		// was discarded and the second rule never ran.
		assert.Equal(t, " a", next.Column("name").Values[0])
		assert.Equal(t, model.TypeString, next.Column("word").Type)
	})

	t.Run("continue on error applies the rest", func(t *testing.T) {
		e := newTestEngine(t, func(c *config.Config) { c.FailurePolicy = model.ContinueOnError })
		snap := twoColumnSnapshot(t)

		next, bulk, err := e.Apply(context.Background(), snap, []model.PreprocessingRule{failing, trailing}, nil)
		require.NoError(t, err)

		assert.Equal(t, 1, bulk.SuccessfulRules)
		assert.Equal(t, 1, bulk.FailedRules)
		require.Len(t, bulk.Results, 2)
		assert.False(t, bulk.Results[0].Success)
		assert.True(t, bulk.Results[1].Success)
		assert.Equal(t, 0.5, bulk.SuccessRate)

		assert.Equal(t, "a", next.Column("name").Values[0])
		assert.Equal(t, model.TypeString, next.Column("word").Type)
	})
}

func TestApplyValidationFailureNeverStopsTheRun(t *testing.T) {
	e := newTestEngine(t, func(c *config.Config) { c.FailurePolicy = model.FailFast })
	snap := twoColumnSnapshot(t)

	rules := []model.PreprocessingRule{
		{ID: "trim_whitespace/gone", Kind: model.KindTrimWhitespace, Column: "gone"},
		{ID: "trim_whitespace/name", Kind: model.KindTrimWhitespace, Column: "name"},
	}

	next, bulk, err := e.Apply(context.Background(), snap, rules, nil)
	require.NoError(t, err)

	require.Len(t, bulk.Results, 2)
	assert.False(t, bulk.Results[0].Success)
	assert.NotEmpty(t, bulk.Results[0].ValidationMessage)
	assert.Empty(t, bulk.Results[0].ErrorMessage)
	assert.True(t, bulk.Results[1].Success)
	assert.Equal(t, "a", next.Column("name").Values[0])
}

func TestApplyValidatesNonNumericImputation(t *testing.T) {
	e := newTestEngine(t, nil)
	snap := twoColumnSnapshot(t)

	rules := []model.PreprocessingRule{
		{ID: "impute_mean/name", Kind: model.KindImputeMean, Column: "name"},
	}

	_, bulk, err := e.Apply(context.Background(), snap, rules, nil)
	require.NoError(t, err)
	require.Len(t, bulk.Results, 1)
	assert.False(t, bulk.Results[0].Success)
	assert.Contains(t, bulk.Results[0].ValidationMessage, "not numeric")
}

func TestApplyUnknownKindIsTransformationError(t *testing.T) {
	e := newTestEngine(t, nil)
	snap := twoColumnSnapshot(t)

	rules := []model.PreprocessingRule{
		{ID: "mystery/name", Kind: model.TransformationKind("mystery"), Column: "name"},
	}

	_, bulk, err := e.Apply(context.Background(), snap, rules, nil)
	require.NoError(t, err)
	require.Len(t, bulk.Results, 1)
	assert.False(t, bulk.Results[0].Success)
	assert.Contains(t, bulk.Results[0].ErrorMessage, "unknown transformation kind")
}

func TestApplyCancellationAtRuleBoundary(t *testing.T) {
	e := newTestEngine(t, nil)
	snap := twoColumnSnapshot(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	next, bulk, err := e.Apply(ctx, snap, []model.PreprocessingRule{
		{ID: "trim_whitespace/name", Kind: model.KindTrimWhitespace, Column: "name"},
	}, nil)

	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, next)
	require.NotNil(t, bulk)
	assert.Empty(t, bulk.Results)
}

func TestApplyEmitsProgress(t *testing.T) {
	e := newTestEngine(t, nil)
	snap := twoColumnSnapshot(t)

	var seen []model.RuleApplicationProgress
	rules := []model.PreprocessingRule{
		{ID: "trim_whitespace/name", Kind: model.KindTrimWhitespace, Column: "name"},
		{ID: "dedupe_rows", Kind: model.KindDedupeRows},
	}

	_, _, err := e.Apply(context.Background(), snap, rules, func(p model.RuleApplicationProgress) {
		seen = append(seen, p)
	})
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, 0, seen[0].RuleIndex)
	assert.Equal(t, 0.0, seen[0].Percentage)
	assert.Equal(t, 1, seen[1].RuleIndex)
	assert.Equal(t, 0.5, seen[1].Percentage)
	assert.Equal(t, 2, seen[0].TotalRules)
}

func TestApplyRuleBudgetStopsScheduling(t *testing.T) {
	e := newTestEngine(t, func(c *config.Config) { c.RuleBudget = time.Nanosecond })
	snap := twoColumnSnapshot(t)

	rules := []model.PreprocessingRule{
		{ID: "trim_whitespace/name", Kind: model.KindTrimWhitespace, Column: "name"},
		{ID: "dedupe_rows", Kind: model.KindDedupeRows},
	}

	// The budget is checked before each rule; with a nanosecond budget
	// at most the first rule runs.
	time.Sleep(time.Millisecond)
	_, bulk, err := e.Apply(context.Background(), snap, rules, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(bulk.Results), 1)
}

func TestApplyIsDeterministic(t *testing.T) {
	e := newTestEngine(t, nil)
	snap := mustSnapshot(t, []model.Column{
		{Name: "name", Type: model.TypeString, Values: []interface{}{" a", " a", "b", nil}},
		{Name: "amount", Type: model.TypeFloat, Values: []interface{}{1.5, 1.5, 2.5, nil}},
	})

	rules := []model.PreprocessingRule{
		{ID: "dedupe_rows", Kind: model.KindDedupeRows},
		{ID: "trim_whitespace/name", Kind: model.KindTrimWhitespace, Column: "name"},
		{ID: "impute_mean/amount", Kind: model.KindImputeMean, Column: "amount"},
	}

	first, firstBulk, err := e.Apply(context.Background(), snap, rules, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, againBulk, err := e.Apply(context.Background(), snap, rules, nil)
		require.NoError(t, err)
		assert.Equal(t, first, again)

		// Everything except durations matches run to run
		require.Len(t, againBulk.Results, len(firstBulk.Results))
		for j := range againBulk.Results {
			assert.Equal(t, firstBulk.Results[j].Rule, againBulk.Results[j].Rule)
			assert.Equal(t, firstBulk.Results[j].RowsAffected, againBulk.Results[j].RowsAffected)
			assert.Equal(t, firstBulk.Results[j].RowsSkipped, againBulk.Results[j].RowsSkipped)
			assert.Equal(t, firstBulk.Results[j].Success, againBulk.Results[j].Success)
		}
	}
}

func TestApplyEmptyRuleList(t *testing.T) {
	e := newTestEngine(t, nil)
	snap := twoColumnSnapshot(t)

	next, bulk, err := e.Apply(context.Background(), snap, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, snap, next)
	assert.Equal(t, 0, bulk.TotalRules)
	assert.Equal(t, 0.0, bulk.SuccessRate)
}
