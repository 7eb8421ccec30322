// Package export writes CSV downloads and plain-text print documents.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Table is a CSV document: a header row followed by data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Append adds a row.
func (t *Table) Append(row ...string) {
	t.Rows = append(t.Rows, row)
}

// WriteCSV encodes the table to w.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("export csv: write header: %w", err)
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export csv: write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename returns "<base>_<timestamp>.<ext>" in UTC.
func Filename(base, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", base, now.UTC().Format("20060102_150405"), ext)
}

// CSV streams the table as an attachment.
func CSV(c echo.Context, base string, t Table) error {
	attachment(c, "text/csv; charset=utf-8", Filename(base, "csv", time.Now()))
	c.Response().WriteHeader(http.StatusOK)
	return WriteCSV(c.Response(), t)
}

// Text sends a plain-text document as an attachment.
func Text(c echo.Context, filename, body string) error {
	attachment(c, echo.MIMETextPlainCharsetUTF8, filename)
	return c.String(http.StatusOK, body)
}

func attachment(c echo.Context, contentType, filename string) {
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, contentType)
	h.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
}
