// Package preview parses tabular data files into typed in-memory frames for
// the browser's dataframe views.
package preview

import (
	"strconv"
	"strings"
)

// Dtype is the inferred column type, named after the conventions data
// scientists already know.
type Dtype string

const (
	DtypeInt    Dtype = "int64"
	DtypeFloat  Dtype = "float64"
	DtypeBool   Dtype = "bool"
	DtypeObject Dtype = "object"
)

// ColumnInfo pairs a column with its inferred dtype.
type ColumnInfo struct {
	Name  string `json:"name"`
	Dtype Dtype  `json:"dtype"`
}

// Frame is one parsed data file. Cells are string, int64, float64 or bool;
// empty cells stay "".
type Frame struct {
	Columns    []string
	ColumnInfo []ColumnInfo
	Rows       [][]any
}

// TotalRows is the number of data rows (header excluded).
func (f *Frame) TotalRows() int {
	return len(f.Rows)
}

// Records renders rows as column-keyed maps, the shape the browser consumes.
func (f *Frame) Records(rows [][]any) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]any, len(f.Columns))
		for i, col := range f.Columns {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		out = append(out, rec)
	}
	return out
}

// buildFrame types raw string cells: per column, infer the narrowest dtype
// that fits every non-empty cell, then convert.
func buildFrame(header []string, raw [][]string) *Frame {
	f := &Frame{
		Columns:    header,
		ColumnInfo: make([]ColumnInfo, len(header)),
		Rows:       make([][]any, len(raw)),
	}

	for col, name := range header {
		dtype := inferDtype(raw, col)
		f.ColumnInfo[col] = ColumnInfo{Name: name, Dtype: dtype}
	}

	for i, rawRow := range raw {
		row := make([]any, len(header))
		for col := range header {
			var cell string
			if col < len(rawRow) {
				cell = rawRow[col]
			}
			row[col] = convertCell(cell, f.ColumnInfo[col].Dtype)
		}
		f.Rows[i] = row
	}
	return f
}

func inferDtype(raw [][]string, col int) Dtype {
	sawValue := false
	isInt, isFloat, isBool := true, true, true

	for _, row := range raw {
		if col >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		sawValue = true

		if isInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			if !isBoolLiteral(cell) {
				isBool = false
			}
		}
		if !isInt && !isFloat && !isBool {
			return DtypeObject
		}
	}

	switch {
	case !sawValue:
		return DtypeObject
	case isBool:
		return DtypeBool
	case isInt:
		return DtypeInt
	case isFloat:
		return DtypeFloat
	}
	return DtypeObject
}

func convertCell(cell string, dtype Dtype) any {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return ""
	}

	switch dtype {
	case DtypeInt:
		if v, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return v
		}
	case DtypeFloat:
		if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return v
		}
	case DtypeBool:
		switch strings.ToLower(trimmed) {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return cell
}

func isBoolLiteral(cell string) bool {
	switch strings.ToLower(cell) {
	case "true", "false":
		return true
	}
	return false
}
