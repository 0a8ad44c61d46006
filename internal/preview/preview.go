package preview

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupported marks files the previewer cannot parse into a frame.
var ErrUnsupported = errors.New("unsupported tabular format")

const cacheSize = 8

// TabularExts reports whether a path looks like a previewable data file.
func TabularExts(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx", ".xls":
		return true
	}
	return false
}

// Previewer parses data files and caches the resulting frames. Cache keys
// include modtime and size, so an edited file is simply re-parsed.
type Previewer struct {
	cache *lru.Cache[string, *Frame]
}

func New() *Previewer {
	cache, _ := lru.New[string, *Frame](cacheSize)
	return &Previewer{cache: cache}
}

// Load parses path (or returns the cached frame).
func (p *Previewer) Load(path string) (*Frame, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s:%d:%d", path, info.ModTime().Unix(), info.Size())
	if frame, ok := p.cache.Get(key); ok {
		return frame, nil
	}

	frame, err := parse(path)
	if err != nil {
		return nil, err
	}
	p.cache.Add(key, frame)
	return frame, nil
}

// Rows returns one page of records.
func (p *Previewer) Rows(path string, offset, limit int) (*Frame, []map[string]any, error) {
	frame, err := p.Load(path)
	if err != nil {
		return nil, nil, err
	}

	total := frame.TotalRows()
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return frame, frame.Records(frame.Rows[offset:end]), nil
}

func parse(path string) (*Frame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSV(path)
	case ".xlsx", ".xls":
		return parseExcel(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}

func parseCSV(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return buildFrame(nil, nil), nil
	}
	return buildFrame(records[0], records[1:]), nil
}

// parseExcel reads the first sheet of a workbook; that matches what the
// spreadsheet-using analysts actually look at.
func parseExcel(path string) (*Frame, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", filepath.Base(path), err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return buildFrame(nil, nil), nil
	}

	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return buildFrame(nil, nil), nil
	}
	return buildFrame(rows[0], rows[1:]), nil
}
