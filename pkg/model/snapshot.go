// pkg/model/snapshot.go
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ColumnType is the inferred semantic type of a column
type ColumnType string

const (
	TypeString   ColumnType = "string"
	TypeInteger  ColumnType = "integer"
	TypeFloat    ColumnType = "float"
	TypeBoolean  ColumnType = "boolean"
	TypeDateTime ColumnType = "datetime"
)

// IsNumeric reports whether values of this type can be treated as numbers
func (t ColumnType) IsNumeric() bool {
	return t == TypeInteger || t == TypeFloat
}

// Column is a named, typed sequence of cell values. A nil cell is a
// missing value; an empty string is a present value.
type Column struct {
	Name   string
	Type   ColumnType
	Values []interface{}
}

// MissingCount returns the number of nil cells in the column
func (c Column) MissingCount() int {
	missing := 0
	for _, v := range c.Values {
		if v == nil {
			missing++
		}
	}
	return missing
}

// clone returns a deep copy of the column. Cell values are immutable
// scalars, so copying the slice is sufficient.
func (c Column) clone() Column {
	values := make([]interface{}, len(c.Values))
	copy(values, c.Values)
	return Column{Name: c.Name, Type: c.Type, Values: values}
}

// DatasetSnapshot is an immutable columnar view of a training dataset.
// Components never mutate a snapshot in place; transformations produce
// a fresh working copy via Clone.
type DatasetSnapshot struct {
	Columns []Column
}

// NewSnapshot builds a snapshot from columns, validating its shape
func NewSnapshot(columns []Column) (*DatasetSnapshot, error) {
	s := &DatasetSnapshot{Columns: columns}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks structural integrity: at least one column and an
// identical value count across all columns.
func (s *DatasetSnapshot) Validate() error {
	if s == nil {
		return errors.New("snapshot is nil")
	}
	if len(s.Columns) == 0 {
		return errors.New("snapshot has no columns")
	}
	rows := len(s.Columns[0].Values)
	seen := make(map[string]struct{}, len(s.Columns))
	for _, col := range s.Columns {
		if col.Name == "" {
			return errors.New("snapshot contains an unnamed column")
		}
		if _, dup := seen[col.Name]; dup {
			return fmt.Errorf("snapshot contains duplicate column %q", col.Name)
		}
		seen[col.Name] = struct{}{}
		if len(col.Values) != rows {
			return fmt.Errorf("column %q has %d values, expected %d",
				col.Name, len(col.Values), rows)
		}
	}
	return nil
}

// RowCount returns the number of rows in the snapshot
func (s *DatasetSnapshot) RowCount() int {
	if s == nil || len(s.Columns) == 0 {
		return 0
	}
	return len(s.Columns[0].Values)
}

// Clone returns a deep copy suitable for use as a working copy
func (s *DatasetSnapshot) Clone() *DatasetSnapshot {
	columns := make([]Column, len(s.Columns))
	for i, col := range s.Columns {
		columns[i] = col.clone()
	}
	return &DatasetSnapshot{Columns: columns}
}

// Column returns the column with the given name, or nil if absent
func (s *DatasetSnapshot) Column(name string) *Column {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether a column with the given name exists
func (s *DatasetSnapshot) HasColumn(name string) bool {
	return s.Column(name) != nil
}

// ColumnNames returns column names in declaration order
func (s *DatasetSnapshot) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// RowSignature returns a canonical encoding of row i across all
// columns, used for exact-duplicate detection. Missing cells encode
// distinctly from empty strings.
func (s *DatasetSnapshot) RowSignature(i int) string {
	var sb strings.Builder
	for ci, col := range s.Columns {
		if ci > 0 {
			sb.WriteByte(0x1f)
		}
		sb.WriteString(CellString(col.Values[i]))
	}
	return sb.String()
}

// CellString returns a canonical string encoding of a single cell
func CellString(v interface{}) string {
	if v == nil {
		return "\x00"
	}
	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", val)
	}
}
