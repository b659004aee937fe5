package export

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/thomasbroadsword/PhotoGenSeo/internal/models"
)

// archiveRow is the flat parquet schema for one result row. Missing optional
// values are stored as empty strings, matching the CSV artifact.
type archiveRow struct {
	EAN            string `parquet:"ean"`
	Name           string `parquet:"name"`
	Description    string `parquet:"description"`
	EANFromImages  string `parquet:"ean_from_images"`
	Dimensions     string `parquet:"dimensions"`
	VolumeOrWeight string `parquet:"volume_or_weight"`
	Error          string `parquet:"error"`
}

// WriteParquet writes the rows as a parquet archive, for feeding results into
// downstream analytics without re-parsing CSV.
func WriteParquet(path string, rows []models.ResultRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}
	records := make([]archiveRow, 0, len(rows))
	for _, row := range rows {
		records = append(records, archiveRow{
			EAN:            row.EAN,
			Name:           row.ProductName,
			Description:    row.Description,
			EANFromImages:  deref(row.EANFromImages),
			Dimensions:     deref(row.Dimensions),
			VolumeOrWeight: deref(row.VolumeOrWeight),
			Error:          row.Error,
		})
	}

	writer := parquet.NewGenericWriter[archiveRow](file)
	if _, err := writer.Write(records); err != nil {
		file.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		file.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return file.Close()
}
