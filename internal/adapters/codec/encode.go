package codec

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/okian/csvmerge/internal/domain/merge"
)

// SheetName is the worksheet EncodeXLSX writes.
const SheetName = "merged"

var header = []any{"name", "date", "value", "lag"}

// EncodeCSV writes one name,date,value,lag line per row with no header and
// no newline after the last row. A null lag is an empty field.
func EncodeCSV(w io.Writer, rows []merge.Row) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	for _, row := range rows {
		if err := cw.Write(row.Fields()); err != nil {
			return fmt.Errorf("%w: %v", ErrEncode, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}

	if _, err := w.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return nil
}

// EncodeXLSX writes rows to a workbook with one sheet and a header row.
// Values and lags are numeric cells; a null lag leaves its cell empty.
func EncodeXLSX(w io.Writer, rows []merge.Row) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}

	for i, row := range rows {
		n := i + 2
		cell, err := excelize.CoordinatesToCellName(1, n)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEncode, err)
		}
		values := []any{row.Name, row.Date, row.Value}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("%w: row %d: %v", ErrEncode, n, err)
		}
		if row.Lag != nil {
			if err := f.SetCellValue(SheetName, fmt.Sprintf("D%d", n), *row.Lag); err != nil {
				return fmt.Errorf("%w: row %d: %v", ErrEncode, n, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return nil
}
