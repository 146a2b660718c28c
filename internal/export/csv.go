// Package export writes stored series in formats other tools can open.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes a "time,y" header followed by one row per sample.
func WriteCSV(out io.Writer, t, y []float64) error {
	if len(t) != len(y) {
		return fmt.Errorf("export: %d times but %d values", len(t), len(y))
	}

	w := csv.NewWriter(out)
	if err := w.Write([]string{"time", "y"}); err != nil {
		return err
	}
	for i := range t {
		row := []string{
			strconv.FormatFloat(t[i], 'f', 6, 64),
			strconv.FormatFloat(y[i], 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
