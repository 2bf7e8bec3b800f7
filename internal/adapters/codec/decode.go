package codec

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeOption configures Decode.
type DecodeOption func(*decodeConfig)

type decodeConfig struct {
	skipHeader bool
}

// WithSkipHeader drops the first non-blank row.
func WithSkipHeader(skip bool) DecodeOption {
	return func(c *decodeConfig) { c.skipHeader = skip }
}

// Decode reads a table from r. Files named *.xlsx are read from their first
// sheet; anything else is parsed as CSV. Blank rows are dropped.
func Decode(name string, r io.Reader, opts ...DecodeOption) ([][]string, error) {
	var cfg decodeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var (
		rows [][]string
		err  error
	)
	if isXLSX(name) {
		rows, err = decodeXLSX(r)
	} else {
		rows, err = decodeCSV(r)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}

	out := rows[:0]
	for _, row := range rows {
		if isBlank(row) {
			continue
		}
		out = append(out, row)
	}
	if cfg.skipHeader && len(out) > 0 {
		out = out[1:]
	}
	return out, nil
}

func decodeCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
}

func decodeXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
