package measure

import "fmt"

// Result is a structured measurement array: named columns and one row per
// datapoint. Column names carry the unit in parentheses, e.g. "Voltage (V)".
type Result struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

// NewResult allocates an empty result for the given columns.
func NewResult(columns ...string) Result {
	return Result{Columns: append([]string(nil), columns...)}
}

// Append adds one datapoint. The value count must match the column count.
func (r *Result) Append(values ...float64) error {
	if len(values) != len(r.Columns) {
		return fmt.Errorf("datapoint has %d values for %d columns", len(values), len(r.Columns))
	}
	row := make([]float64, len(values))
	copy(row, values)
	r.Rows = append(r.Rows, row)
	return nil
}

// Len returns the number of datapoints.
func (r Result) Len() int { return len(r.Rows) }

// Equal compares columns and all rows.
func (r Result) Equal(other Result) bool {
	if len(r.Columns) != len(other.Columns) || len(r.Rows) != len(other.Rows) {
		return false
	}
	for i := range r.Columns {
		if r.Columns[i] != other.Columns[i] {
			return false
		}
	}
	for i := range r.Rows {
		if len(r.Rows[i]) != len(other.Rows[i]) {
			return false
		}
		for j := range r.Rows[i] {
			if r.Rows[i][j] != other.Rows[i][j] {
				return false
			}
		}
	}
	return true
}
