package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshotValidation(t *testing.T) {
	t.Run("valid snapshot", func(t *testing.T) {
		snap, err := NewSnapshot([]Column{
			{Name: "id", Type: TypeInteger, Values: []interface{}{int64(1), int64(2)}},
			{Name: "name", Type: TypeString, Values: []interface{}{"a", "b"}},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, snap.RowCount())
	})

	t.Run("no columns", func(t *testing.T) {
		_, err := NewSnapshot(nil)
		assert.Error(t, err)
	})

	t.Run("unnamed column", func(t *testing.T) {
		_, err := NewSnapshot([]Column{
			{Name: "", Type: TypeString, Values: []interface{}{"a"}},
		})
		assert.Error(t, err)
	})

	t.Run("duplicate column names", func(t *testing.T) {
		_, err := NewSnapshot([]Column{
			{Name: "x", Type: TypeString, Values: []interface{}{"a"}},
			{Name: "x", Type: TypeString, Values: []interface{}{"b"}},
		})
		assert.Error(t, err)
	})

	t.Run("ragged columns", func(t *testing.T) {
		_, err := NewSnapshot([]Column{
			{Name: "a", Type: TypeString, Values: []interface{}{"x", "y"}},
			{Name: "b", Type: TypeString, Values: []interface{}{"z"}},
		})
		assert.Error(t, err)
	})
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	snap, err := NewSnapshot([]Column{
		{Name: "v", Type: TypeInteger, Values: []interface{}{int64(1), int64(2), int64(3)}},
	})
	require.NoError(t, err)

	clone := snap.Clone()
	clone.Columns[0].Values[0] = int64(99)
	clone.Columns[0].Name = "renamed"

	assert.Equal(t, int64(1), snap.Columns[0].Values[0])
	assert.Equal(t, "v", snap.Columns[0].Name)
}

func TestColumnLookup(t *testing.T) {
	snap, err := NewSnapshot([]Column{
		{Name: "a", Type: TypeString, Values: []interface{}{"x"}},
		{Name: "b", Type: TypeInteger, Values: []interface{}{int64(1)}},
	})
	require.NoError(t, err)

	require.NotNil(t, snap.Column("b"))
	assert.Equal(t, TypeInteger, snap.Column("b").Type)
	assert.Nil(t, snap.Column("missing"))
	assert.True(t, snap.HasColumn("a"))
	assert.False(t, snap.HasColumn("c"))
	assert.Equal(t, []string{"a", "b"}, snap.ColumnNames())
}

func TestMissingCountTreatsEmptyStringAsValue(t *testing.T) {
	col := Column{Name: "c", Type: TypeString, Values: []interface{}{nil, "", "x", nil}}
	assert.Equal(t, 2, col.MissingCount())
}

func TestRowSignatureDistinguishesNilFromEmptyString(t *testing.T) {
	snap, err := NewSnapshot([]Column{
		{Name: "a", Type: TypeString, Values: []interface{}{nil, ""}},
		{Name: "b", Type: TypeString, Values: []interface{}{"x", "x"}},
	})
	require.NoError(t, err)

	assert.NotEqual(t, snap.RowSignature(0), snap.RowSignature(1))
}

func TestRowSignatureEqualForIdenticalRows(t *testing.T) {
	snap, err := NewSnapshot([]Column{
		{Name: "a", Type: TypeInteger, Values: []interface{}{int64(1), int64(1)}},
		{Name: "b", Type: TypeString, Values: []interface{}{"x", "x"}},
	})
	require.NoError(t, err)

	assert.Equal(t, snap.RowSignature(0), snap.RowSignature(1))
}
