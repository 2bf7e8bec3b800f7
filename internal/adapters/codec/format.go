// Package codec reads uploaded tables and writes merged series as CSV or XLSX.
package codec

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/okian/csvmerge/internal/domain/merge"
)

// Format names an output encoding.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx" in any case; empty means csv.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", CSV:
		return CSV, nil
	case XLSX:
		return XLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType is the MIME type of the encoded output.
func (f Format) ContentType() string {
	if f == XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Filename is the attachment name of the encoded output.
func (f Format) Filename() string {
	return "merged_file." + string(f)
}

// Encode writes rows in format f.
func (f Format) Encode(w io.Writer, rows []merge.Row) error {
	switch f {
	case CSV:
		return EncodeCSV(w, rows)
	case XLSX:
		return EncodeXLSX(w, rows)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

func isXLSX(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xlsx")
}
