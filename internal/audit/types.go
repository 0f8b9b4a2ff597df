package audit

import "time"

const (
	DefaultStatusColumn = "recipient_status"
	DefaultOutputColumn = "sent_to_personal_acc"
)

// Cell is a single CSV value. The zero value is null.
type Cell struct {
	Value string
	Valid bool
}

// Text returns a non-null cell holding s.
func Text(s string) Cell { return Cell{Value: s, Valid: true} }

// Null reports whether the cell carries no value.
func (c Cell) Null() bool { return !c.Valid }

// Table is a parsed CSV: named columns and rows of equal width.
type Table struct {
	Columns []string
	Rows    [][]Cell
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Result tracks the outcome of a single audit run.
type Result struct {
	Table    *Table
	Encoding string
	Strategy string
	Rows     int
	Personal int
	Skipped  int
	Duration time.Duration
}
