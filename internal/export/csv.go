package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

const CSVContentType = "text/csv; charset=utf-8"

// WriteCSV writes records and flushes.
func WriteCSV(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
