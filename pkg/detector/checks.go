// pkg/detector/checks.go
package detector

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dataforge/dataprep/pkg/config"
	"github.com/dataforge/dataprep/pkg/model"
)

// checkDuplicateRows flags exact duplicate rows at dataset level
func checkDuplicateRows(snap *model.DatasetSnapshot, cfg *config.Config) *model.QualityIssue {
	rows := snap.RowCount()
	seen := make(map[string]struct{}, rows)
	duplicates := 0
	for i := 0; i < rows; i++ {
		sig := snap.RowSignature(i)
		if _, ok := seen[sig]; ok {
			duplicates++
		} else {
			seen[sig] = struct{}{}
		}
	}

	ratio := float64(duplicates) / float64(rows)
	severity, found := cfg.DuplicateRowBands.Classify(ratio)
	if !found {
		return nil
	}

	return &model.QualityIssue{
		ID:           model.IssueID(model.IssueDuplicateRows, ""),
		Type:         model.IssueDuplicateRows,
		Severity:     severity,
		Description:  fmt.Sprintf("%d of %d rows are exact duplicates (%.1f%%)", duplicates, rows, ratio*100),
		SuggestedFix: "remove duplicate rows, keeping the first occurrence",
		Metadata: map[string]interface{}{
			"duplicates": float64(duplicates),
			"ratio":      ratio,
		},
	}
}

// checkClassImbalance flags a minority class ratio below the
// configured threshold. Only evaluated when a label column is given.
func checkClassImbalance(snap *model.DatasetSnapshot, labelColumn string, cfg *config.Config) *model.QualityIssue {
	col := snap.Column(labelColumn)
	if col == nil {
		return nil
	}

	counts := make(map[string]int)
	total := 0
	for _, v := range col.Values {
		if v == nil {
			continue
		}
		counts[model.CellString(v)]++
		total++
	}
	if len(counts) < 2 || total == 0 {
		return nil
	}

	// Deterministic minority pick: smallest count, lexicographic label
	// as the tie-break.
	classes := make([]string, 0, len(counts))
	for class := range counts {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	minority := classes[0]
	for _, class := range classes[1:] {
		if counts[class] < counts[minority] {
			minority = class
		}
	}

	ratio := float64(counts[minority]) / float64(total)
	if ratio >= cfg.MinorityClassRatio {
		return nil
	}

	// Severity scales inversely with the minority ratio.
	severity := model.SeverityMedium
	if ratio < cfg.MinorityClassRatio/2 {
		severity = model.SeverityHigh
	}

	return &model.QualityIssue{
		ID:           model.IssueID(model.IssueClassImbalance, labelColumn),
		Type:         model.IssueClassImbalance,
		Severity:     severity,
		Column:       labelColumn,
		Description:  fmt.Sprintf("minority class %q holds %.1f%% of labeled rows", minority, ratio*100),
		SuggestedFix: "oversample the minority class",
		Metadata: map[string]interface{}{
			"minority_class": minority,
			"ratio":          ratio,
			"target_ratio":   cfg.MinorityClassRatio,
		},
	}
}

// checkEncoding flags string cells that are not valid UTF-8 or carry
// the Unicode replacement character left behind by a broken decode.
func checkEncoding(col model.Column, rows int, cfg *config.Config) *model.QualityIssue {
	affected := 0
	for _, v := range col.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if !utf8.ValidString(s) || strings.ContainsRune(s, '�') {
			affected++
		}
	}
	if affected == 0 {
		return nil
	}

	ratio := float64(affected) / float64(rows)
	severity, _ := cfg.MissingValueBands.Classify(ratio)
	// Undecodable text corrupts anything trained on it.
	if severity < model.SeverityMedium {
		severity = model.SeverityMedium
	}

	return &model.QualityIssue{
		ID:           model.IssueID(model.IssueEncoding, col.Name),
		Type:         model.IssueEncoding,
		Severity:     severity,
		Column:       col.Name,
		Description:  fmt.Sprintf("column %q has %d undecodable values", col.Name, affected),
		SuggestedFix: "drop rows with undecodable values",
		Metadata: map[string]interface{}{
			"affected": float64(affected),
			"ratio":    ratio,
		},
	}
}

// checkMissingValues bands the missing ratio of a column
func checkMissingValues(col model.Column, rows int, cfg *config.Config) *model.QualityIssue {
	missing := col.MissingCount()
	ratio := float64(missing) / float64(rows)
	severity, found := cfg.MissingValueBands.Classify(ratio)
	if !found {
		return nil
	}

	fix := "impute missing values"
	if ratio > cfg.MissingDropRatio {
		fix = "drop the column"
	}

	return &model.QualityIssue{
		ID:           model.IssueID(model.IssueMissingValues, col.Name),
		Type:         model.IssueMissingValues,
		Severity:     severity,
		Column:       col.Name,
		Description:  fmt.Sprintf("column %q is missing %d of %d values (%.1f%%)", col.Name, missing, rows, ratio*100),
		SuggestedFix: fix,
		Metadata: map[string]interface{}{
			"missing":     float64(missing),
			"ratio":       ratio,
			"column_type": string(col.Type),
		},
	}
}

// typeOrder fixes the dominant-type tie-break for inconsistency checks
var typeOrder = []model.ColumnType{
	model.TypeInteger,
	model.TypeFloat,
	model.TypeBoolean,
	model.TypeDateTime,
	model.TypeString,
}

// checkTypeInconsistency flags a column whose raw values do not
// uniformly infer to one semantic type. A pure integer/float mix is
// treated as consistent numeric data.
func checkTypeInconsistency(col model.Column, cfg *config.Config) *model.QualityIssue {
	counts := make(map[model.ColumnType]int)
	total := 0
	for _, v := range col.Values {
		if v == nil {
			continue
		}
		counts[model.InferType(v)]++
		total++
	}
	if total == 0 {
		return nil
	}

	// Integers embed into floats without loss.
	if counts[model.TypeInteger] > 0 && counts[model.TypeFloat] > 0 {
		counts[model.TypeFloat] += counts[model.TypeInteger]
		delete(counts, model.TypeInteger)
	}
	if len(counts) < 2 {
		return nil
	}

	dominant := typeOrder[len(typeOrder)-1]
	best := -1
	for _, t := range typeOrder {
		if counts[t] > best {
			dominant = t
			best = counts[t]
		}
	}

	ratio := 1 - float64(best)/float64(total)
	severity, found := cfg.MissingValueBands.Classify(ratio)
	if !found {
		severity = model.SeverityLow
	}

	return &model.QualityIssue{
		ID:           model.IssueID(model.IssueTypeInconsistency, col.Name),
		Type:         model.IssueTypeInconsistency,
		Severity:     severity,
		Column:       col.Name,
		Description:  fmt.Sprintf("column %q mixes %d semantic types; %.1f%% of values do not parse as %s", col.Name, len(counts), ratio*100, dominant),
		SuggestedFix: fmt.Sprintf("cast column to %s", dominant),
		Metadata: map[string]interface{}{
			"dominant_type": string(dominant),
			"ratio":         ratio,
		},
	}
}

// checkConstantColumn flags a column with exactly one unique value
func checkConstantColumn(col model.Column, rows int) *model.QualityIssue {
	if rows < 2 {
		return nil
	}

	unique := make(map[string]struct{}, 2)
	for _, v := range col.Values {
		if v == nil {
			continue
		}
		unique[model.CellString(v)] = struct{}{}
		if len(unique) > 1 {
			return nil
		}
	}
	if len(unique) != 1 {
		return nil
	}

	return &model.QualityIssue{
		ID:           model.IssueID(model.IssueConstantColumn, col.Name),
		Type:         model.IssueConstantColumn,
		Severity:     model.SeverityMedium,
		Column:       col.Name,
		Description:  fmt.Sprintf("column %q holds a single constant value and carries no signal", col.Name),
		SuggestedFix: "drop the column",
		Metadata: map[string]interface{}{
			"unique": float64(1),
		},
	}
}

// checkOutliers flags numeric cells outside the configured z-score or
// IQR fences. Severity scales with the proportion of flagged rows.
func checkOutliers(col model.Column, rows int, cfg *config.Config) *model.QualityIssue {
	if !col.Type.IsNumeric() {
		return nil
	}

	values := numericValues(col)
	if len(values) < 4 {
		return nil
	}

	var flagged int
	switch cfg.OutlierMethod {
	case config.OutlierMethodIQR:
		lower, upper := iqrFences(values, cfg.OutlierThreshold)
		for _, v := range values {
			if v < lower || v > upper {
				flagged++
			}
		}
	default:
		m := mean(values)
		dev := stddev(values, m)
		if dev == 0 {
			return nil
		}
		for _, v := range values {
			if z := (v - m) / dev; z > cfg.OutlierThreshold || z < -cfg.OutlierThreshold {
				flagged++
			}
		}
	}
	if flagged == 0 {
		return nil
	}

	ratio := float64(flagged) / float64(rows)
	severity, found := cfg.MissingValueBands.Classify(ratio)
	if !found {
		severity = model.SeverityLow
	}

	return &model.QualityIssue{
		ID:           model.IssueID(model.IssueOutliers, col.Name),
		Type:         model.IssueOutliers,
		Severity:     severity,
		Column:       col.Name,
		Description:  fmt.Sprintf("column %q has %d outlier values (%s method)", col.Name, flagged, cfg.OutlierMethod),
		SuggestedFix: "clip outliers to the detection fences",
		Metadata: map[string]interface{}{
			"flagged":   float64(flagged),
			"ratio":     ratio,
			"method":    cfg.OutlierMethod,
			"threshold": cfg.OutlierThreshold,
		},
	}
}

// checkDateFormat flags date-like columns whose string values parse
// under more than one layout, or fail to parse at all.
func checkDateFormat(col model.Column) *model.QualityIssue {
	if col.Type != model.TypeDateTime {
		return nil
	}

	formats := make(map[string]struct{})
	unparseable := 0
	stringCells := 0
	for _, v := range col.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		stringCells++
		if format := model.MatchDateFormat(s); format != "" {
			formats[format] = struct{}{}
		} else {
			unparseable++
		}
	}
	if stringCells == 0 {
		return nil
	}
	if len(formats) <= 1 && unparseable == 0 {
		return nil
	}

	return &model.QualityIssue{
		ID:           model.IssueID(model.IssueDateFormat, col.Name),
		Type:         model.IssueDateFormat,
		Severity:     model.SeverityMedium,
		Column:       col.Name,
		Description:  fmt.Sprintf("column %q mixes %d date formats with %d unparseable values", col.Name, len(formats), unparseable),
		SuggestedFix: "normalize dates to a single format",
		Metadata: map[string]interface{}{
			"formats":     float64(len(formats)),
			"unparseable": float64(unparseable),
		},
	}
}

// checkWhitespace flags leading or trailing whitespace in string cells
func checkWhitespace(col model.Column, rows int) *model.QualityIssue {
	affected := 0
	for _, v := range col.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if s != strings.TrimSpace(s) {
			affected++
		}
	}
	if affected == 0 {
		return nil
	}

	return &model.QualityIssue{
		ID:           model.IssueID(model.IssueWhitespace, col.Name),
		Type:         model.IssueWhitespace,
		Severity:     model.SeverityLow,
		Column:       col.Name,
		Description:  fmt.Sprintf("column %q has %d values with leading or trailing whitespace", col.Name, affected),
		SuggestedFix: "trim whitespace",
		Metadata: map[string]interface{}{
			"affected": float64(affected),
			"ratio":    float64(affected) / float64(rows),
		},
	}
}

// checkHighCardinality flags categorical columns whose unique-value
// ratio exceeds the configured threshold. Informational only.
func checkHighCardinality(col model.Column, cfg *config.Config) *model.QualityIssue {
	if col.Type != model.TypeString {
		return nil
	}

	unique := make(map[string]struct{})
	total := 0
	for _, v := range col.Values {
		if v == nil {
			continue
		}
		unique[model.CellString(v)] = struct{}{}
		total++
	}
	if total == 0 {
		return nil
	}

	ratio := float64(len(unique)) / float64(total)
	if ratio <= cfg.HighCardinalityRatio {
		return nil
	}

	return &model.QualityIssue{
		ID:           model.IssueID(model.IssueHighCardinality, col.Name),
		Type:         model.IssueHighCardinality,
		Severity:     model.SeverityInfo,
		Column:       col.Name,
		Description:  fmt.Sprintf("column %q has %d unique values across %d rows", col.Name, len(unique), total),
		SuggestedFix: "truncate rare categories",
		Metadata: map[string]interface{}{
			"unique": float64(len(unique)),
			"ratio":  ratio,
		},
	}
}

// numericValues extracts non-missing numeric cells as float64
func numericValues(col model.Column) []float64 {
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

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	variance := sum / float64(len(values)-1)
	return math.Sqrt(variance)
}

// iqrFences returns Tukey fences at multiplier*IQR beyond the quartiles
func iqrFences(values []float64, multiplier float64) (float64, float64) {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	return q1 - multiplier*iqr, q3 + multiplier*iqr
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
