// pkg/engine/transforms.go
package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dataforge/dataprep/pkg/config"
	"github.com/dataforge/dataprep/pkg/model"
)

// transformFunc executes one transformation as a pure function: the
// input snapshot is read-only and a fresh snapshot comes back, so a
// failed rule leaves the working copy untouched. The two ints are
// rowsAffected and rowsSkipped against the input snapshot's row count.
type transformFunc func(snap *model.DatasetSnapshot, rule model.PreprocessingRule) (*model.DatasetSnapshot, int, int, error)

// transforms is the closed dispatch table over transformation kinds.
// Every kind is enumerable and testable in isolation; there is no
// open-ended registration.
var transforms = map[model.TransformationKind]transformFunc{
	model.KindDropColumn:              transformDropColumn,
	model.KindDropRows:                transformDropRows,
	model.KindImputeMean:              transformImputeMean,
	model.KindImputeMedian:            transformImputeMedian,
	model.KindImputeMode:              transformImputeMode,
	model.KindTrimWhitespace:          transformTrimWhitespace,
	model.KindCastType:                transformCastType,
	model.KindClipOutliers:            transformClipOutliers,
	model.KindDedupeRows:              transformDedupeRows,
	model.KindResampleMinorityClass:   transformResampleMinority,
	model.KindTruncateHighCardinality: transformTruncateHighCardinality,
	model.KindNormalizeDateFormat:     transformNormalizeDateFormat,
}

func transformDropColumn(snap *model.DatasetSnapshot, rule model.PreprocessingRule) (*model.DatasetSnapshot, int, int, error) {
	columns := make([]model.Column, 0, len(snap.Columns)-1)
	for _, col := range snap.Columns {
		if col.Name == rule.Column {
			continue
		}
		columns = append(columns, col)
	}
	if len(columns) == 0 {
		return nil, 0, 0, errors.New("dropping the last remaining column")
	}

	next := (&model.DatasetSnapshot{Columns: columns}).Clone()
	// Structural change: the whole dataset is affected by convention.
	return next, snap.RowCount(), 0, nil
}

func transformDropRows(snap *model.DatasetSnapshot, rule model.PreprocessingRule) (*model.DatasetSnapshot, int, int, error) {
	col := snap.Column(rule.Column)
	predicate := rule.ParamString("predicate", "missing")

	matches := func(v interface{}) bool {
		switch predicate {
		case "invalid_encoding":
			s, ok := v.(string)
			return ok && (!utf8.ValidString(s) || strings.ContainsRune(s, '�'))
		case "missing":
			return v == nil
		default:
			return false
		}
	}

	keep := make([]int, 0, snap.RowCount())
	for i := 0; i < snap.RowCount(); i++ {
		if !matches(col.Values[i]) {
			keep = append(keep, i)
		}
	}

	dropped := snap.RowCount() - len(keep)
	return subsetRows(snap, keep), dropped, len(keep), nil
}

func transformImputeMean(snap *model.DatasetSnapshot, rule model.PreprocessingRule) (*model.DatasetSnapshot, int, int, error) {
	values := numericCells(snap.Column(rule.Column))
	if len(values) == 0 {
		return nil, 0, 0, fmt.Errorf("column %q has no values to derive a mean from", rule.Column)
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return fillMissing(snap, rule.Column, sum/float64(len(values)))
}

func transformImputeMedian(snap *model.DatasetSnapshot, rule model.PreprocessingRule) (*model.DatasetSnapshot, int, int, error) {
	values := numericCells(snap.Column(rule.Column))
	if len(values) == 0 {
		return nil, 0, 0, fmt.Errorf("column %q has no values to derive a median from", rule.Column)
	}

	sort.Float64s(values)
	mid := len(values) / 2
	median := values[mid]
	if len(values)%2 == 0 {
		median = (values[mid-1] + values[mid]) / 2
	}
	return fillMissing(snap, rule.Column, median)
}

func transformImputeMode(snap *model.DatasetSnapshot, rule model.PreprocessingRule) (*model.DatasetSnapshot, int, int, error) {
	col := snap.Column(rule.Column)

	counts := make(map[string]int)
	firstValue := make(map[string]interface{})
	for _, v := range col.Values {
		if v == nil {
			continue
		}
		key := model.CellString(v)
		if _, seen := counts[key]; !seen {
			firstValue[key] = v
		}
		counts[key]++
	}
	if len(counts) == 0 {
		return nil, 0, 0, fmt.Errorf("column %q has no values to derive a mode from", rule.Column)
	}

	// Highest count wins; lexicographic key breaks ties so replays
	// always pick the same mode.
	var modeKey string
	best := -1
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if counts[key] > best {
			modeKey = key
			best = counts[key]
		}
	}

	next := snap.Clone()
	target := next.Column(rule.Column)
	affected := 0
	for i, v := range target.Values {
		if v == nil {
			target.Values[i] = firstValue[modeKey]
			affected++
		}
	}
	return next, affected, snap.RowCount() - affected, nil
}

func transformTrimWhitespace(snap *model.DatasetSnapshot, rule model.PreprocessingRule) (*model.DatasetSnapshot, int, int, error) {
	next := snap.Clone()
	target := next.Column(rule.Column)

	affected := 0
	for i, v := range target.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		trimmed := strings.TrimSpace(s)
		if trimmed != s {
			target.Values[i] = trimmed
			affected++
		}
	}
	return next, affected, snap.RowCount() - affected, nil
}

func transformCastType(snap *model.DatasetSnapshot, rule model.PreprocessingRule) (*model.DatasetSnapshot, int, int, error) {
	targetType := model.ColumnType(rule.ParamString("target_type", string(model.TypeString)))

	next := snap.Clone()
	target := next.Column(rule.Column)

	affected := 0
	for i, v := range target.Values {
		if v == nil {
			continue
		}

		var converted interface{}
		var err error
		switch targetType {
		case model.TypeInteger:
			converted, err = model.ToInt(v)
		case model.TypeFloat:
			converted, err = model.ToFloat(v)
		case model.TypeBoolean:
			converted, err = model.ToBool(v)
		case model.TypeDateTime:
			converted, err = model.ToTime(v)
		case model.TypeString:
			converted = model.ToString(v)
		default:
			return nil, 0, 0, fmt.Errorf("unknown target type %q", targetType)
		}
		if err != nil {
			return nil, 0, 0, fmt.Errorf("row %d of column %q cannot cast to %s: %w", i, rule.Column, targetType, err)
		}

		if model.CellString(converted) != model.CellString(v) {
			affected++
		}
		target.Values[i] = converted
	}
	target.Type = targetType

	return next, affected, snap.RowCount() - affected, nil
}

func transformClipOutliers(snap *model.DatasetSnapshot, rule model.PreprocessingRule) (*model.DatasetSnapshot, int, int, error) {
	col := snap.Column(rule.Column)
	values := numericCells(col)
	if len(values) < 4 {
		return snap.Clone(), 0, snap.RowCount(), nil
	}

	threshold := rule.ParamFloat("threshold", 3.0)
	var lower, upper float64
	switch rule.ParamString("method", config.OutlierMethodZScore) {
	case config.OutlierMethodIQR:
		sorted := make([]float64, len(values))
		copy(sorted, values)
		sort.Float64s(sorted)
		q1 := quantile(sorted, 0.25)
		q3 := quantile(sorted, 0.75)
		iqr := q3 - q1
		lower, upper = q1-threshold*iqr, q3+threshold*iqr
	default:
		m := 0.0
		for _, v := range values {
			m += v
		}
		m /= float64(len(values))
		sum := 0.0
		for _, v := range values {
			d := v - m
			sum += d * d
		}
		dev := math.Sqrt(sum / float64(len(values)-1))
		if dev == 0 {
			return snap.Clone(), 0, snap.RowCount(), nil
		}
		lower, upper = m-threshold*dev, m+threshold*dev
	}

	next := snap.Clone()
	target := next.Column(rule.Column)
	affected := 0
	for i, v := range target.Values {
		if v == nil {
			continue
		}
		f, err := model.ToFloat(v)
		if err != nil {
			continue
		}
		clipped := f
		if f < lower {
			clipped = lower
		} else if f > upper {
			clipped = upper
		}
		if clipped == f {
			continue
		}
		if target.Type == model.TypeInteger {
			target.Values[i] = int64(math.Round(clipped))
		} else {
			target.Values[i] = clipped
		}
		affected++
	}
	return next, affected, snap.RowCount() - affected, nil
}

func transformDedupeRows(snap *model.DatasetSnapshot, rule model.PreprocessingRule) (*model.DatasetSnapshot, int, int, error) {
	seen := make(map[string]struct{}, snap.RowCount())
	keep := make([]int, 0, snap.RowCount())
	for i := 0; i < snap.RowCount(); i++ {
		sig := snap.RowSignature(i)
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		keep = append(keep, i)
	}

	removed := snap.RowCount() - len(keep)
	return subsetRows(snap, keep), removed, len(keep), nil
}

func transformResampleMinority(snap *model.DatasetSnapshot, rule model.PreprocessingRule) (*model.DatasetSnapshot, int, int, error) {
	minority := rule.ParamString("minority_class", "")
	if minority == "" {
		return nil, 0, 0, errors.New("minority_class parameter is required")
	}
	targetRatio := rule.ParamFloat("target_ratio", 0.1)
	if targetRatio <= 0 || targetRatio >= 1 {
		return nil, 0, 0, fmt.Errorf("target_ratio %v out of range (0,1)", targetRatio)
	}

	label := snap.Column(rule.Column)
	rows := snap.RowCount()
	minorityRows := make([]int, 0)
	for i, v := range label.Values {
		if v != nil && model.CellString(v) == minority {
			minorityRows = append(minorityRows, i)
		}
	}
	if len(minorityRows) == 0 {
		return nil, 0, 0, fmt.Errorf("class %q not present in column %q", minority, rule.Column)
	}

	// Smallest k with (m+k)/(n+k) >= target
	m, n := float64(len(minorityRows)), float64(rows)
	k := int(math.Ceil((targetRatio*n - m) / (1 - targetRatio)))
	if k <= 0 {
		return snap.Clone(), 0, rows, nil
	}

	next := snap.Clone()
	for c := range next.Columns {
		col := &next.Columns[c]
		for copyIdx := 0; copyIdx < k; copyIdx++ {
			src := minorityRows[copyIdx%len(minorityRows)]
			col.Values = append(col.Values, snap.Columns[c].Values[src])
		}
	}

	// Affected counts the minority rows that were replicated.
	return next, len(minorityRows), rows - len(minorityRows), nil
}

func transformTruncateHighCardinality(snap *model.DatasetSnapshot, rule model.PreprocessingRule) (*model.DatasetSnapshot, int, int, error) {
	maxCategories := rule.ParamInt("max_categories", 50)
	if maxCategories <= 0 {
		return nil, 0, 0, fmt.Errorf("max_categories %d must be positive", maxCategories)
	}
	replacement := rule.ParamString("replacement", "__other__")

	col := snap.Column(rule.Column)
	counts := make(map[string]int)
	for _, v := range col.Values {
		if v == nil {
			continue
		}
		counts[model.CellString(v)]++
	}
	if len(counts) <= maxCategories {
		return snap.Clone(), 0, snap.RowCount(), nil
	}

	// Keep the most frequent categories; lexicographic order breaks
	// count ties deterministically.
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(a, b int) bool {
		if counts[keys[a]] != counts[keys[b]] {
			return counts[keys[a]] > counts[keys[b]]
		}
		return keys[a] < keys[b]
	})
	kept := make(map[string]struct{}, maxCategories)
	for _, key := range keys[:maxCategories] {
		kept[key] = struct{}{}
	}

	next := snap.Clone()
	target := next.Column(rule.Column)
	affected := 0
	for i, v := range target.Values {
		if v == nil {
			continue
		}
		if _, keep := kept[model.CellString(v)]; keep {
			continue
		}
		target.Values[i] = replacement
		affected++
	}
	return next, affected, snap.RowCount() - affected, nil
}

func transformNormalizeDateFormat(snap *model.DatasetSnapshot, rule model.PreprocessingRule) (*model.DatasetSnapshot, int, int, error) {
	targetFormat := rule.ParamString("target_format", time.RFC3339)

	next := snap.Clone()
	target := next.Column(rule.Column)
	affected := 0
	for i, v := range target.Values {
		if v == nil {
			continue
		}
		t, err := model.ToTime(v)
		if err != nil {
			// Unparseable cells stay untouched and count as skipped;
			// repeated detection will keep surfacing them.
			continue
		}
		normalized := t.Format(targetFormat)
		if prev, ok := v.(string); ok && prev == normalized {
			continue
		}
		target.Values[i] = normalized
		affected++
	}
	target.Type = model.TypeDateTime

	return next, affected, snap.RowCount() - affected, nil
}

// subsetRows builds a new snapshot containing only the kept row
// indexes, in order.
func subsetRows(snap *model.DatasetSnapshot, keep []int) *model.DatasetSnapshot {
	columns := make([]model.Column, len(snap.Columns))
	for c, col := range snap.Columns {
		values := make([]interface{}, len(keep))
		for i, row := range keep {
			values[i] = col.Values[row]
		}
		columns[c] = model.Column{Name: col.Name, Type: col.Type, Values: values}
	}
	return &model.DatasetSnapshot{Columns: columns}
}

// fillMissing replaces nil cells of a numeric column with the fill
// value, rounding for integer columns.
func fillMissing(snap *model.DatasetSnapshot, column string, fill float64) (*model.DatasetSnapshot, int, int, error) {
	next := snap.Clone()
	target := next.Column(column)

	var fillValue interface{}
	if target.Type == model.TypeInteger {
		fillValue = int64(math.Round(fill))
	} else {
		fillValue = fill
	}

	affected := 0
	for i, v := range target.Values {
		if v == nil {
			target.Values[i] = fillValue
			affected++
		}
	}
	return next, affected, snap.RowCount() - affected, nil
}

// numericCells extracts non-missing numeric cells as float64
func numericCells(col *model.Column) []float64 {
	if col == nil {
		return nil
	}
	values := make([]float64, 0, len(col.Values))
	for _, v := range col.Values {
		if v == nil {
			continue
		}
		f, err := model.ToFloat(v)
		if err != nil {
			continue
		}
		values = append(values, f)
	}
	return values
}

// quantile interpolates the q-th quantile of sorted values
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
