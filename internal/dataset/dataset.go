// Package dataset reads, validates and writes the tabular files enriched by
// geodata-cli.
package dataset

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultMaxRows is the daily free-tier request quota of the address service.
// One lookup is assumed per distinct key, and distinct keys are bounded by
// the row count.
const DefaultMaxRows = 10000

var (
	// ErrEmptyDataset is returned when a file has no data rows.
	ErrEmptyDataset = eris.New("dataset is empty")
	// ErrRequestBudgetExceeded is returned when a file has more rows than the
	// request budget allows.
	ErrRequestBudgetExceeded = eris.New("request budget exceeded")
	// ErrMissingColumn is returned when a required key column is absent.
	ErrMissingColumn = eris.New("missing column")
)

// Record maps a column name to its value. An empty string is the
// placeholder for "no value".
type Record map[string]string

// Dataset is an ordered set of records sharing one header.
type Dataset struct {
	Source  string
	Header  []string
	Records []Record
}

// Len returns the number of data rows.
func (d *Dataset) Len() int { return len(d.Records) }

// HasColumn reports whether the header contains name.
func (d *Dataset) HasColumn(name string) bool {
	return slices.Contains(d.Header, name)
}

// AddColumns appends columns to the header in the given order. Columns that
// already exist keep their original position.
func (d *Dataset) AddColumns(cols ...string) {
	for _, c := range cols {
		if !d.HasColumn(c) {
			d.Header = append(d.Header, c)
		}
	}
}

// RequireColumns fails with ErrMissingColumn listing every absent name.
func (d *Dataset) RequireColumns(names ...string) error {
	var missing []string
	for _, n := range names {
		if !d.HasColumn(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return eris.Wrapf(ErrMissingColumn, "dataset: %s lacks column(s) %s", d.Source, strings.Join(missing, ", "))
	}
	return nil
}

// Validate checks the row count against the empty and budget limits.
// A non-positive maxRows disables the budget check.
func (d *Dataset) Validate(maxRows int) error {
	if len(d.Records) == 0 {
		return eris.Wrapf(ErrEmptyDataset, "dataset: failed to get data from %s", d.Source)
	}
	if maxRows > 0 && len(d.Records) > maxRows {
		return eris.Wrapf(ErrRequestBudgetExceeded,
			"dataset: %d rows exceed the daily request limit of %d", len(d.Records), maxRows)
	}
	return nil
}
