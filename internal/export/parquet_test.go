package export

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
)

// readParquet loads an archive back for round-trip assertions.
func readParquet(path string) ([]archiveRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat parquet file: %w", err)
	}
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[archiveRow](pf)
	defer reader.Close()

	var records []archiveRow
	batch := make([]archiveRow, 16)
	for {
		n, err := reader.Read(batch)
		if n > 0 {
			records = append(records, batch[:n]...)
		}
		if err != nil {
			break
		}
	}
	return records, nil
}
