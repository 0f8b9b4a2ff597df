package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ignite/personal-audit/internal/audit"
)

const DefaultSheet = "Sheet1"

// Write renders t as a single-sheet xlsx workbook to w: a bold header row
// then one row per record, with no index column. Numeric text becomes a
// number cell and null cells are left empty.
func Write(w io.Writer, sheet string, t *audit.Table) error {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, sheet); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}

	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = excelize.Cell{StyleID: bold, Value: c}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range t.Rows {
		values := make([]interface{}, len(row))
		for j, c := range row {
			values[j] = cellValue(c)
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(axis, values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Bytes renders the workbook into memory.
func Bytes(sheet string, t *audit.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, sheet, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cellValue(c audit.Cell) interface{} {
	if c.Null() {
		return nil
	}
	v := c.Value
	if n, err := strconv.ParseInt(v, 10, 64); err == nil && !hasLeadingZero(v) {
		return n
	}
	if strings.ContainsAny(v, ".eE") {
		if f, err := strconv.ParseFloat(v, 64); err == nil && !hasLeadingZero(v) {
			return f
		}
	}
	return v
}

// hasLeadingZero keeps codes like "00123" as text.
func hasLeadingZero(v string) bool {
	v = strings.TrimPrefix(v, "-")
	return len(v) > 1 && v[0] == '0' && v[1] != '.'
}
