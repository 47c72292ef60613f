package detector

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dataforge/dataprep/pkg/config"
	"github.com/dataforge/dataprep/pkg/model"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := New(config.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	return d
}

// cleanSnapshot triggers none of the quality checks
func cleanSnapshot(t *testing.T) *model.DatasetSnapshot {
	t.Helper()
	snap, err := model.NewSnapshot([]model.Column{
		{Name: "age", Type: model.TypeInteger, Values: []interface{}{
			int64(20), int64(25), int64(30), int64(35), int64(40), int64(45),
		}},
		{Name: "city", Type: model.TypeString, Values: []interface{}{
			"aberdeen", "aberdeen", "belfast", "belfast", "cardiff", "cardiff",
		}},
	})
	require.NoError(t, err)
	return snap
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = New(config.DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestDetectCleanSnapshotYieldsNoIssues(t *testing.T) {
	d := newTestDetector(t)

	issues, err := d.Detect(context.Background(), cleanSnapshot(t), "")
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestDetectNilSnapshotIsFatal(t *testing.T) {
	d := newTestDetector(t)

	_, err := d.Detect(context.Background(), nil, "")
	require.Error(t, err)
	assert.True(t, IsDetectorError(err))
}

func TestDetectMissingLabelColumnIsFatal(t *testing.T) {
	d := newTestDetector(t)

	_, err := d.Detect(context.Background(), cleanSnapshot(t), "nonexistent")
	require.Error(t, err)
	assert.True(t, IsDetectorError(err))
}

func TestDetectMalformedSnapshotIsFatal(t *testing.T) {
	d := newTestDetector(t)
	snap := &model.DatasetSnapshot{Columns: []model.Column{
		{Name: "a", Type: model.TypeString, Values: []interface{}{"x", "y"}},
		{Name: "b", Type: model.TypeString, Values: []interface{}{"z"}},
	}}

	_, err := d.Detect(context.Background(), snap, "")
	require.Error(t, err)
	assert.True(t, IsDetectorError(err))
}

func TestDetectMissingValueSeverityBands(t *testing.T) {
	d := newTestDetector(t)

	missingColumn := func(missing, rows int) *model.DatasetSnapshot {
		values := make([]interface{}, rows)
		for i := 0; i < rows; i++ {
			if i < missing {
				values[i] = nil
			} else {
				values[i] = fmt.Sprintf("v%d", i)
			}
		}
		snap, err := model.NewSnapshot([]model.Column{
			{Name: "feature", Type: model.TypeString, Values: values},
		})
		require.NoError(t, err)
		return snap
	}

	findMissing := func(issues []model.QualityIssue) *model.QualityIssue {
		for i := range issues {
			if issues[i].Type == model.IssueMissingValues {
				return &issues[i]
			}
		}
		return nil
	}

	t.Run("exactly half missing is high", func(t *testing.T) {
		issues, err := d.Detect(context.Background(), missingColumn(500, 1000), "")
		require.NoError(t, err)
		issue := findMissing(issues)
		require.NotNil(t, issue)
		assert.Equal(t, model.SeverityHigh, issue.Severity)
		assert.Equal(t, "missing_values/feature", issue.ID)
	})

	t.Run("above half missing is critical", func(t *testing.T) {
		issues, err := d.Detect(context.Background(), missingColumn(501, 1000), "")
		require.NoError(t, err)
		issue := findMissing(issues)
		require.NotNil(t, issue)
		assert.Equal(t, model.SeverityCritical, issue.Severity)
		assert.Equal(t, "drop the column", issue.SuggestedFix)
	})

	t.Run("ten percent missing is medium", func(t *testing.T) {
		issues, err := d.Detect(context.Background(), missingColumn(100, 1000), "")
		require.NoError(t, err)
		issue := findMissing(issues)
		require.NotNil(t, issue)
		assert.Equal(t, model.SeverityMedium, issue.Severity)
		assert.Equal(t, "impute missing values", issue.SuggestedFix)
	})
}

func TestDetectDuplicateRows(t *testing.T) {
	d := newTestDetector(t)

	// 100 rows, 10 of them exact duplicates
	values := make([]interface{}, 100)
	for i := 0; i < 90; i++ {
		values[i] = int64(i)
	}
	for i := 90; i < 100; i++ {
		values[i] = int64(i - 90)
	}
	snap, err := model.NewSnapshot([]model.Column{
		{Name: "id", Type: model.TypeInteger, Values: values},
	})
	require.NoError(t, err)

	issues, err := d.Detect(context.Background(), snap, "")
	require.NoError(t, err)

	var dup *model.QualityIssue
	for i := range issues {
		if issues[i].Type == model.IssueDuplicateRows {
			dup = &issues[i]
		}
	}
	require.NotNil(t, dup)
	// 10% duplicates sits at the bottom band of {0.5, 0.3, 0.2}
	assert.Equal(t, model.SeverityLow, dup.Severity)
	assert.Equal(t, "duplicate_rows", dup.ID)
	assert.Equal(t, "", dup.Column)
	assert.Equal(t, 10.0, dup.MetadataFloat("duplicates"))
}

func TestDetectClassImbalance(t *testing.T) {
	d := newTestDetector(t)

	labels := make([]interface{}, 100)
	for i := 0; i < 95; i++ {
		labels[i] = "common"
	}
	for i := 95; i < 100; i++ {
		labels[i] = "rare"
	}
	ids := make([]interface{}, 100)
	for i := range ids {
		ids[i] = int64(i)
	}
	snap, err := model.NewSnapshot([]model.Column{
		{Name: "id", Type: model.TypeInteger, Values: ids},
		{Name: "label", Type: model.TypeString, Values: labels},
	})
	require.NoError(t, err)

	issues, err := d.Detect(context.Background(), snap, "label")
	require.NoError(t, err)

	var imbalance *model.QualityIssue
	for i := range issues {
		if issues[i].Type == model.IssueClassImbalance {
			imbalance = &issues[i]
		}
	}
	require.NotNil(t, imbalance)
	assert.Equal(t, "label", imbalance.Column)
	assert.Equal(t, "rare", imbalance.MetadataString("minority_class"))
	assert.InDelta(t, 0.05, imbalance.MetadataFloat("ratio"), 1e-9)
	assert.Equal(t, model.SeverityMedium, imbalance.Severity)
}

func TestDetectOutliers(t *testing.T) {
	d := newTestDetector(t)

	values := make([]interface{}, 20)
	for i := 0; i < 19; i++ {
		values[i] = float64(10 + i%3)
	}
	values[19] = float64(100000)
	snap, err := model.NewSnapshot([]model.Column{
		{Name: "amount", Type: model.TypeFloat, Values: values},
	})
	require.NoError(t, err)

	issues, err := d.Detect(context.Background(), snap, "")
	require.NoError(t, err)

	var outlier *model.QualityIssue
	for i := range issues {
		if issues[i].Type == model.IssueOutliers {
			outlier = &issues[i]
		}
	}
	require.NotNil(t, outlier)
	assert.Equal(t, "amount", outlier.Column)
	assert.Equal(t, 1.0, outlier.MetadataFloat("flagged"))
	assert.Equal(t, "zscore", outlier.MetadataString("method"))
}

func TestDetectConstantColumn(t *testing.T) {
	d := newTestDetector(t)
	snap, err := model.NewSnapshot([]model.Column{
		{Name: "id", Type: model.TypeInteger, Values: []interface{}{int64(1), int64(2), int64(3)}},
		{Name: "flag", Type: model.TypeString, Values: []interface{}{"on", "on", "on"}},
	})
	require.NoError(t, err)

	issues, err := d.Detect(context.Background(), snap, "")
	require.NoError(t, err)

	found := false
	for _, issue := range issues {
		if issue.Type == model.IssueConstantColumn {
			found = true
			assert.Equal(t, "flag", issue.Column)
			assert.Equal(t, model.SeverityMedium, issue.Severity)
		}
	}
	assert.True(t, found)
}

func TestDetectWhitespaceAndEncoding(t *testing.T) {
	d := newTestDetector(t)
	snap, err := model.NewSnapshot([]model.Column{
		{Name: "name", Type: model.TypeString, Values: []interface{}{
			" padded", "ok", "bad\xff\xfe", "trailing ",
		}},
	})
	require.NoError(t, err)

	issues, err := d.Detect(context.Background(), snap, "")
	require.NoError(t, err)

	types := make(map[model.IssueType]model.Severity)
	for _, issue := range issues {
		types[issue.Type] = issue.Severity
	}
	assert.Contains(t, types, model.IssueWhitespace)
	assert.Equal(t, model.SeverityLow, types[model.IssueWhitespace])
	assert.Contains(t, types, model.IssueEncoding)
	assert.GreaterOrEqual(t, types[model.IssueEncoding], model.SeverityMedium)
}

func TestDetectDateFormatMix(t *testing.T) {
	d := newTestDetector(t)
	snap, err := model.NewSnapshot([]model.Column{
		{Name: "created", Type: model.TypeDateTime, Values: []interface{}{
			"2024-01-15", "01/16/2024", "2024-01-17T00:00:00Z", "not a date",
		}},
	})
	require.NoError(t, err)

	issues, err := d.Detect(context.Background(), snap, "")
	require.NoError(t, err)

	var dateIssue *model.QualityIssue
	for i := range issues {
		if issues[i].Type == model.IssueDateFormat {
			dateIssue = &issues[i]
		}
	}
	require.NotNil(t, dateIssue)
	assert.Equal(t, 1.0, dateIssue.MetadataFloat("unparseable"))
}

func TestDetectHighCardinality(t *testing.T) {
	d := newTestDetector(t)

	values := make([]interface{}, 100)
	for i := range values {
		values[i] = fmt.Sprintf("user-%d", i)
	}
	snap, err := model.NewSnapshot([]model.Column{
		{Name: "user", Type: model.TypeString, Values: values},
	})
	require.NoError(t, err)

	issues, err := d.Detect(context.Background(), snap, "")
	require.NoError(t, err)

	found := false
	for _, issue := range issues {
		if issue.Type == model.IssueHighCardinality {
			found = true
			assert.Equal(t, model.SeverityInfo, issue.Severity)
		}
	}
	assert.True(t, found)
}

func TestDetectIsDeterministic(t *testing.T) {
	d := newTestDetector(t)

	columns := make([]model.Column, 0, 12)
	for c := 0; c < 12; c++ {
		values := make([]interface{}, 50)
		for i := range values {
			if i%5 == 0 {
				values[i] = nil
			} else {
				values[i] = fmt.Sprintf(" v%d-%d", c, i%7)
			}
		}
		columns = append(columns, model.Column{
			Name:   fmt.Sprintf("col%02d", c),
			Type:   model.TypeString,
			Values: values,
		})
	}
	snap, err := model.NewSnapshot(columns)
	require.NoError(t, err)

	first, err := d.Detect(context.Background(), snap, "")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	for run := 0; run < 5; run++ {
		again, err := d.Detect(context.Background(), snap, "")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDetectOrdersDatasetIssuesFirst(t *testing.T) {
	d := newTestDetector(t)

	// Duplicates plus a per-column whitespace issue
	snap, err := model.NewSnapshot([]model.Column{
		{Name: "name", Type: model.TypeString, Values: []interface{}{
			" a", " a", " a", "b", "c", "d", "e", "f", "g", "h",
		}},
	})
	require.NoError(t, err)

	issues, err := d.Detect(context.Background(), snap, "")
	require.NoError(t, err)
	require.NotEmpty(t, issues)
	assert.Equal(t, model.IssueDuplicateRows, issues[0].Type)
}

func TestFilterActionable(t *testing.T) {
	issues := []model.QualityIssue{
		{ID: "a", Severity: model.SeverityInfo},
		{ID: "b", Severity: model.SeverityMedium},
		{ID: "c", Severity: model.SeverityCritical},
	}

	actionable := FilterActionable(issues, model.SeverityMedium)
	require.Len(t, actionable, 2)
	assert.Equal(t, "b", actionable[0].ID)
	assert.Equal(t, "c", actionable[1].ID)

	assert.Len(t, FilterActionable(issues, model.SeverityInfo), 3)
	assert.Empty(t, FilterActionable(nil, model.SeverityInfo))
}
