// Package enrich implements the batch key-lookup pipeline: distinct keys are
// collected per binding, resolved once each through a Lookuper, and spliced
// back into every record as a fixed set of columns.
package enrich

import (
	"context"
	"strings"

	"github.com/sells-group/geodata-cli/internal/dataset"
)

// Result holds the projected fields of one successful lookup.
type Result map[string]string

// Lookuper resolves a single key. It reports false when the service has no
// usable answer for the key.
type Lookuper interface {
	Lookup(ctx context.Context, key string) (Result, bool, error)
}

// LookupFunc adapts a function to the Lookuper interface.
type LookupFunc func(ctx context.Context, key string) (Result, bool, error)

// Lookup implements Lookuper.
func (f LookupFunc) Lookup(ctx context.Context, key string) (Result, bool, error) {
	return f(ctx, key)
}

// KeyFunc derives the lookup key of a record. It reports false when the
// record has no key and should receive placeholders without a lookup.
type KeyFunc func(dataset.Record) (string, bool)

// ColumnKey keys records by the trimmed value of a column.
func ColumnKey(column string) KeyFunc {
	return func(r dataset.Record) (string, bool) {
		v := strings.TrimSpace(r[column])
		return v, v != ""
	}
}

// ExtractKeys returns the distinct keys of records in first-appearance order.
func ExtractKeys(records []dataset.Record, key KeyFunc) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, r := range records {
		k, ok := key(r)
		if !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// Field copies Source from a Result into the record column Column.
type Field struct {
	Column string
	Source string
}

// Binding ties one key type to its lookup and destination columns.
type Binding struct {
	Name     string
	Key      KeyFunc
	Lookup   Lookuper
	Fields   []Field
	Requires []string // input columns the key is read from
}

// Columns returns the destination columns in order.
func (b Binding) Columns() []string {
	cols := make([]string, len(b.Fields))
	for i, f := range b.Fields {
		cols[i] = f.Column
	}
	return cols
}

// Profile is a named set of bindings plus the naming of its output file.
type Profile struct {
	Name     string
	Prefix   string
	Dated    bool
	Bindings []Binding
}

// Columns returns every destination column in introduction order.
func (p Profile) Columns() []string {
	var cols []string
	seen := make(map[string]struct{})
	for _, b := range p.Bindings {
		for _, c := range b.Columns() {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			cols = append(cols, c)
		}
	}
	return cols
}

// Requires returns the input columns needed by any binding.
func (p Profile) Requires() []string {
	var cols []string
	seen := make(map[string]struct{})
	for _, b := range p.Bindings {
		for _, c := range b.Requires {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			cols = append(cols, c)
		}
	}
	return cols
}

// OutputName derives the output file name for source, stamping date when
// the profile is dated.
func (p Profile) OutputName(date, source string) string {
	if !p.Dated {
		date = ""
	}
	return dataset.OutputName(p.Prefix, date, source)
}
