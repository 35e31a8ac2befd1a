// Package dataset loads and preprocesses tabular indicator data: schema
// inference, deduplication and aggregation, imputation, and standardization.
package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/reliefscope/needscan/internal/apperr"
)

// Table is a raw tabular dataset: a header row plus string-valued rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// LoadOptions configures table loading.
type LoadOptions struct {
	Delimiter rune   // default ','
	SheetName string // xlsx only; default first sheet
}

// Load reads a table from a CSV or XLSX file, chosen by extension.
func Load(path string, opts LoadOptions) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "dataset not found: %s", path)
	}

	var (
		table *Table
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		table, err = loadXLSX(path, opts)
	default:
		table, err = loadCSV(path, opts)
	}
	if err != nil {
		return nil, err
	}

	if len(table.Header) == 0 || len(table.Rows) == 0 {
		return nil, apperr.New(apperr.KindData, "dataset is empty: %s", path)
	}
	return table, nil
}

func loadCSV(path string, opts LoadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "open dataset: %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1 // allow variable fields

	var table Table
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindFormat, eris.Wrap(err, "csv: read row"), "unparseable dataset: %s", path)
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
		if first {
			table.Header = record
			first = false
			continue
		}
		table.Rows = append(table.Rows, record)
	}

	return &table, nil
}

func loadXLSX(path string, opts LoadOptions) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFormat, eris.Wrap(err, "xlsx: open file"), "unparseable dataset: %s", path)
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFormat, err, "unparseable dataset: %s", path)
	}

	var table Table
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		if i == 0 {
			table.Header = cells
			continue
		}
		table.Rows = append(table.Rows, cells)
	}

	return &table, nil
}

func getSheet(f *xlsx.File, opts LoadOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: file has no sheets")
	}
	return f.Sheets[0], nil
}

// cell returns the value of column i in the row, tolerating short rows.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
