package format

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"

	"github.com/hydrologic/mainstem/internal/geo"
)

// MimeCSV is the mime type of the CSV export.
const MimeCSV = "text/csv"

// CSV flattens the attributes of a feature collection into one table:
// an id column followed by the sorted union of attribute names across
// all features. Geometry is not exported. Missing attributes render as
// empty cells.
func CSV(features []geo.Feature) ([]byte, error) {
	names := map[string]struct{}{}
	for _, f := range features {
		for k := range f.Props {
			names[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(names))
	for k := range names {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{"id"}, cols...)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(header))
	for _, f := range features {
		row[0] = f.ID
		for i, col := range cols {
			if v, ok := f.Props[col]; ok {
				row[i+1] = fmt.Sprintf("%v", v)
			} else {
				row[i+1] = ""
			}
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
