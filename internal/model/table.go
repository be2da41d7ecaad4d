package model

// RawTable is an already-loaded tabular record set: a header and string cells.
type RawTable struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the position of a header column, or -1.
func (t *RawTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at row/col, or "" when the row is short.
func (t *RawTable) Cell(row, col int) string {
	if col < 0 || row < 0 || row >= len(t.Rows) {
		return ""
	}
	r := t.Rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}
