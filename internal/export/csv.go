// Package export serializes finished result rows into downloadable
// artifacts: the spreadsheet-facing CSV and an optional parquet archive.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/thomasbroadsword/PhotoGenSeo/internal/models"
)

// CSVFilename is the suggested download name for the CSV artifact.
const CSVFilename = "photogen-seo-export.csv"

// Semicolon-separated on purpose: descriptions routinely contain commas, and
// regional spreadsheet defaults expect ';'. Rows use CRLF and the file starts
// with a UTF-8 BOM so spreadsheet apps detect the encoding.
const (
	fieldSeparator = ";"
	rowTerminator  = "\r\n"
	utf8BOM        = "\uFEFF"
)

var csvHeader = []string{"EAN", "Name", "Description", "EAN from images", "Dimensions", "Volume/weight", "Error"}

// CSV renders the rows as the complete artifact bytes. It never mutates the
// rows and may be called repeatedly.
func CSV(rows []models.ResultRow) []byte {
	var b strings.Builder
	b.WriteString(utf8BOM)
	writeRecord(&b, csvHeader)
	for _, row := range rows {
		writeRecord(&b, []string{
			row.EAN,
			row.ProductName,
			row.Description,
			deref(row.EANFromImages),
			deref(row.Dimensions),
			deref(row.VolumeOrWeight),
			row.Error,
		})
	}
	return []byte(b.String())
}

// WriteCSV streams the artifact to a writer.
func WriteCSV(w io.Writer, rows []models.ResultRow) error {
	if _, err := w.Write(CSV(rows)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// writeRecord emits one row with every field quoted; embedded quotes are
// doubled. encoding/csv quotes only when it must, which breaks consumers
// that expect uniformly quoted fields, so the quoting is done here.
func writeRecord(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteString(fieldSeparator)
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteString(rowTerminator)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
