package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityBandsClassify(t *testing.T) {
	bands := SeverityBands{Critical: 0.5, High: 0.2, Medium: 0.05}

	tests := []struct {
		name     string
		ratio    float64
		want     Severity
		wantSome bool
	}{
		{"zero ratio means no issue", 0, SeverityInfo, false},
		{"negative ratio means no issue", -0.1, SeverityInfo, false},
		{"just above zero is low", 0.001, SeverityLow, true},
		{"exactly on medium boundary stays low", 0.05, SeverityLow, true},
		{"just above medium boundary", 0.051, SeverityMedium, true},
		{"exactly on high boundary stays medium", 0.2, SeverityMedium, true},
		{"just above high boundary", 0.21, SeverityHigh, true},
		{"exactly half is high, not critical", 0.5, SeverityHigh, true},
		{"just above half is critical", 0.5000001, SeverityCritical, true},
		{"fully defective is critical", 1.0, SeverityCritical, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, some := bands.Classify(tt.ratio)
			assert.Equal(t, tt.wantSome, some)
			if some {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSeverityBandsValidate(t *testing.T) {
	assert.NoError(t, SeverityBands{Critical: 0.5, High: 0.2, Medium: 0.05}.Validate())
	assert.Error(t, SeverityBands{Critical: 0.2, High: 0.5, Medium: 0.05}.Validate())
	assert.Error(t, SeverityBands{Critical: 1.5, High: 0.2, Medium: 0.05}.Validate())
	assert.Error(t, SeverityBands{Critical: 0.5, High: 0.2, Medium: -0.1}.Validate())
}

func TestSeverityOrdering(t *testing.T) {
	assert.True(t, SeverityCritical > SeverityHigh)
	assert.True(t, SeverityHigh > SeverityMedium)
	assert.True(t, SeverityMedium > SeverityLow)
	assert.True(t, SeverityLow > SeverityInfo)
}

func TestParseSeverity(t *testing.T) {
	for _, sev := range []Severity{SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		parsed, err := ParseSeverity(sev.String())
		require.NoError(t, err)
		assert.Equal(t, sev, parsed)
	}

	parsed, err := ParseSeverity("  CRITICAL ")
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, parsed)

	_, err = ParseSeverity("urgent")
	assert.Error(t, err)
}

func TestParseFailurePolicy(t *testing.T) {
	policy, err := ParseFailurePolicy("fail_fast")
	require.NoError(t, err)
	assert.Equal(t, FailFast, policy)

	policy, err = ParseFailurePolicy("ContinueOnError")
	require.NoError(t, err)
	assert.Equal(t, ContinueOnError, policy)

	_, err = ParseFailurePolicy("panic")
	assert.Error(t, err)
}
