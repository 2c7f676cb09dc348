// Package csvbatch reads patient records from CSV uploads and writes scored CSV.
package csvbatch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/liamcoop/eligibility/prediction"
)

// ResultColumns are appended to every scored row, in this order
var ResultColumns = []string{
	"eligible",
	"eligible_probability",
	"not_eligible_probability",
	"confidence",
	"error",
}

// ErrEmpty is returned for input without a header row
var ErrEmpty = errors.New("csv has no header row")

// TooManyRowsError is returned when an upload exceeds the batch limit
type TooManyRowsError struct {
	Limit int
}

func (e *TooManyRowsError) Error() string {
	return fmt.Sprintf("csv has more than %d rows", e.Limit)
}

// headerAliases maps normalized header names to canonical field names.
// The training export uses the feature names on the right-hand side of each pair.
var headerAliases = map[string]string{
	"age":               prediction.FieldAge,
	"age_years":         prediction.FieldAge,
	"gender":            prediction.FieldGender,
	"sex":               prediction.FieldGender,
	"icd_frequency":     prediction.FieldICDFrequency,
	"icd_freq":          prediction.FieldICDFrequency,
	"cpt_frequency":     prediction.FieldCPTFrequency,
	"cpt_freq":          prediction.FieldCPTFrequency,
	"month":             prediction.FieldMonth,
	"month_of_approval": prediction.FieldMonth,
}

// Table is a parsed upload. Rows keep the original cells so results can be
// appended to them; Records holds the same rows as prediction input.
type Table struct {
	Header  []string
	Rows    [][]string
	Records []prediction.Fields
}

// Read parses a CSV upload. Columns are matched to fields by header name,
// ignoring case, surrounding spaces and the separator used between words.
// Unknown columns are carried through untouched. Rows may be shorter than the
// header but not longer. Empty cells are left out so
// the record reports them as missing. maxRows <= 0 disables the limit.
func Read(r io.Reader, maxRows int) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		field, ok := headerAliases[normalizeHeader(name)]
		if !ok {
			continue
		}
		if _, dup := columns[field]; dup {
			return nil, fmt.Errorf("csv maps more than one column to %s", field)
		}
		columns[field] = i
	}

	var missing []string
	for _, field := range prediction.RequiredFields() {
		if _, ok := columns[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, &prediction.MissingFieldsError{Fields: missing}
	}

	table := &Table{Header: header}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row %d: %w", len(table.Rows)+1, err)
		}
		if isBlank(row) {
			continue
		}
		if len(row) > len(header) {
			return nil, fmt.Errorf("csv row %d has %d cells but the header has %d", len(table.Rows)+1, len(row), len(header))
		}
		if maxRows > 0 && len(table.Rows) >= maxRows {
			return nil, &TooManyRowsError{Limit: maxRows}
		}

		fields := make(prediction.Fields, len(columns))
		for field, i := range columns {
			if i < len(row) && strings.TrimSpace(row[i]) != "" {
				fields[field] = strings.TrimSpace(row[i])
			}
		}
		table.Rows = append(table.Rows, row)
		table.Records = append(table.Records, fields)
	}

	return table, nil
}

// Write emits the table with ResultColumns appended. outcomes must hold one
// entry per row, in row order.
func Write(w io.Writer, table *Table, outcomes []prediction.Outcome) error {
	if len(outcomes) != len(table.Rows) {
		return fmt.Errorf("have %d outcomes for %d rows", len(outcomes), len(table.Rows))
	}

	writer := csv.NewWriter(w)
	header := append(append([]string(nil), table.Header...), ResultColumns...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for i, row := range table.Rows {
		out := make([]string, len(table.Header), len(table.Header)+len(ResultColumns))
		copy(out, row)
		out = append(out, resultCells(outcomes[i])...)
		if err := writer.Write(out); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i+1, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func resultCells(o prediction.Outcome) []string {
	if o.Err != nil || o.Result == nil {
		msg := "no result"
		if o.Err != nil {
			msg = o.Err.Error()
		}
		return []string{"", "", "", "", msg}
	}
	return []string{
		strconv.FormatBool(o.Result.Eligible),
		formatFloat(o.Result.EligibleProbability),
		formatFloat(o.Result.NotEligibleProbability),
		formatFloat(o.Result.Confidence),
		"",
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func normalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.':
			return '_'
		}
		return r
	}, name)
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
