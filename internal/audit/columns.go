package audit

import "strings"

// TrimColumns strips surrounding whitespace from every column name.
func TrimColumns(t *Table) {
	for i, c := range t.Columns {
		t.Columns[i] = strings.TrimSpace(c)
	}
}

// RequireColumn fails with a MissingColumnError when name is not a column
// of t. The match is exact and case-sensitive.
func RequireColumn(t *Table, name string) error {
	if t.ColumnIndex(name) >= 0 {
		return nil
	}
	available := make([]string, len(t.Columns))
	copy(available, t.Columns)
	return &MissingColumnError{Column: name, Available: available}
}
