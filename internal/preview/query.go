package preview

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Filter is one predicate over a column.
type Filter struct {
	Column string `json:"column" binding:"required"`
	Op     string `json:"op" binding:"required"`
	Value  string `json:"value"`
}

// Sort orders the result by one column.
type Sort struct {
	Column    string `json:"column" binding:"required"`
	Direction string `json:"direction"`
}

// Query filters then sorts; returns matching records and their count.
func (p *Previewer) Query(path string, filters []Filter, sortBy *Sort) (*Frame, []map[string]any, error) {
	frame, err := p.Load(path)
	if err != nil {
		return nil, nil, err
	}

	rows := frame.Rows
	for _, f := range filters {
		col := columnIndex(frame, f.Column)
		if col < 0 {
			return nil, nil, fmt.Errorf("unknown column %q", f.Column)
		}
		rows, err = applyFilter(rows, col, f)
		if err != nil {
			return nil, nil, err
		}
	}

	if sortBy != nil && sortBy.Column != "" {
		col := columnIndex(frame, sortBy.Column)
		if col < 0 {
			return nil, nil, fmt.Errorf("unknown column %q", sortBy.Column)
		}
		sorted := make([][]any, len(rows))
		copy(sorted, rows)
		desc := strings.EqualFold(sortBy.Direction, "desc")
		sort.SliceStable(sorted, func(i, j int) bool {
			less := cellLess(cellAt(sorted[i], col), cellAt(sorted[j], col))
			if desc {
				return cellLess(cellAt(sorted[j], col), cellAt(sorted[i], col))
			}
			return less
		})
		rows = sorted
	}

	return frame, frame.Records(rows), nil
}

func columnIndex(frame *Frame, name string) int {
	for i, col := range frame.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

func applyFilter(rows [][]any, col int, f Filter) ([][]any, error) {
	var keep func(cell any) bool

	switch f.Op {
	case "contains":
		needle := strings.ToLower(f.Value)
		keep = func(cell any) bool {
			return strings.Contains(strings.ToLower(renderCell(cell)), needle)
		}
	case "equals":
		keep = func(cell any) bool {
			return renderCell(cell) == f.Value
		}
	case "gt":
		keep = func(cell any) bool {
			return cellLess(parseComparable(f.Value), cell)
		}
	case "lt":
		keep = func(cell any) bool {
			return cellLess(cell, parseComparable(f.Value))
		}
	default:
		return nil, fmt.Errorf("unknown filter op %q", f.Op)
	}

	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		if keep(cellAt(row, col)) {
			out = append(out, row)
		}
	}
	return out, nil
}

func cellAt(row []any, col int) any {
	if col < len(row) {
		return row[col]
	}
	return ""
}

// cellLess compares numerically when both sides are numbers, lexically
// otherwise. Empty cells sort first.
func cellLess(a, b any) bool {
	na, aNum := cellNumber(a)
	nb, bNum := cellNumber(b)
	if aNum && bNum {
		return na < nb
	}
	return renderCell(a) < renderCell(b)
}

func cellNumber(cell any) (float64, bool) {
	switch v := cell.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func renderCell(cell any) string {
	switch v := cell.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return fmt.Sprint(cell)
}

// parseComparable types a filter literal the same way cells are typed.
func parseComparable(value string) any {
	trimmed := strings.TrimSpace(value)
	if v, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return v
	}
	return value
}
