package trainer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/liamcoop/greenscore/failure"
	"github.com/liamcoop/greenscore/features"
)

// LabelColumn holds the historical outcome: 1 defaulted, 0 repaid.
const LabelColumn = "is_default"

// LoadCSV reads a training table from path. The first row is the header and
// must name every raw applicant field plus LabelColumn; other columns are
// ignored.
func LoadCSV(path string) ([]features.Record, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, failure.TrainingData("load csv", fmt.Errorf("open %s: %w", path, err))
	}
	defer f.Close() //nolint:errcheck

	return ReadCSV(f)
}

// ReadCSV is LoadCSV over an arbitrary reader.
func ReadCSV(r io.Reader) ([]features.Record, []int, error) {
	const op = "load csv"

	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, nil, failure.TrainingData(op, fmt.Errorf("parse: %w", err))
	}
	if len(rows) == 0 {
		return nil, nil, failure.TrainingData(op, fmt.Errorf("file is empty (no header row)"))
	}

	col := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		col[h] = i
	}
	for _, name := range append(append([]string(nil), features.RawFields...), LabelColumn) {
		if _, ok := col[name]; !ok {
			return nil, nil, failure.TrainingData(op, fmt.Errorf("missing column %q", name))
		}
	}

	records := make([]features.Record, 0, len(rows)-1)
	labels := make([]int, 0, len(rows)-1)

	for i, row := range rows[1:] {
		line := i + 2
		vals := make(map[string]float64, len(features.RawFields))
		for _, name := range features.RawFields {
			v, err := strconv.ParseFloat(row[col[name]], 64)
			if err != nil {
				return nil, nil, failure.TrainingData(op, fmt.Errorf("row %d column %q: %q is not a number", line, name, row[col[name]]))
			}
			vals[name] = v
		}

		label, err := parseLabel(row[col[LabelColumn]])
		if err != nil {
			return nil, nil, failure.TrainingData(op, fmt.Errorf("row %d column %q: %w", line, LabelColumn, err))
		}

		records = append(records, features.FromFields(vals))
		labels = append(labels, label)
	}

	return records, labels, nil
}

// parseLabel accepts 0/1 and boolean spellings.
func parseLabel(s string) (int, error) {
	switch s {
	case "0", "False", "false":
		return 0, nil
	case "1", "True", "true":
		return 1, nil
	}
	return 0, fmt.Errorf("%q is not 0 or 1", s)
}
