package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/htmlindex"
)

// ErrUnknownEncoding is returned for a character encoding label that cannot
// be resolved.
var ErrUnknownEncoding = eris.New("unknown encoding")

const utf8BOM = "\ufeff"

// ReadOptions configures ReadFile.
type ReadOptions struct {
	Dialect  Dialect // zero value means Unix
	Encoding string  // WHATWG label, e.g. "windows-1251"; empty means UTF-8
	MaxRows  int     // request budget; zero means DefaultMaxRows, negative disables
}

// ReadFile loads a CSV (or .xlsx) file and validates it against opts.
func ReadFile(path string, opts ReadOptions) (*Dataset, error) {
	var (
		ds  *Dataset
		err error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		ds, err = readXLSX(path)
	} else {
		ds, err = readCSVFile(path, opts)
	}
	if err != nil {
		return nil, err
	}

	maxRows := opts.MaxRows
	if maxRows == 0 {
		maxRows = DefaultMaxRows
	}
	if err := ds.Validate(maxRows); err != nil {
		return nil, err
	}
	return ds, nil
}

func readCSVFile(path string, opts ReadOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	ds, err := Read(f, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}
	ds.Source = path
	return ds, nil
}

// CheckEncoding fails with ErrUnknownEncoding when label is not a known
// character encoding. An empty label means UTF-8.
func CheckEncoding(label string) error {
	if label == "" {
		return nil
	}
	if _, err := htmlindex.Get(label); err != nil {
		return eris.Wrapf(ErrUnknownEncoding, "dataset: encoding %q", label)
	}
	return nil
}

// Read parses CSV from r without validating the row count.
func Read(r io.Reader, opts ReadOptions) (*Dataset, error) {
	if opts.Encoding != "" {
		enc, err := htmlindex.Get(opts.Encoding)
		if err != nil {
			return nil, eris.Wrapf(ErrUnknownEncoding, "dataset: encoding %q", opts.Encoding)
		}
		r = enc.NewDecoder().Reader(r)
	}

	dialect := opts.Dialect
	if dialect.Delimiter == 0 {
		dialect = Unix
	}

	cr := csv.NewReader(r)
	cr.Comma = dialect.Delimiter
	cr.FieldsPerRecord = -1

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "dataset: read row")
		}
		rows = append(rows, rec)
	}
	return fromRows(rows)
}

func readXLSX(path string) (*Dataset, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Wrapf(ErrEmptyDataset, "dataset: %s has no sheets", path)
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		blank := true
		for i, cell := range row.Cells {
			cells[i] = cell.String()
			if cells[i] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		rows = append(rows, cells)
	}

	ds, err := fromRows(rows)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}
	ds.Source = path
	return ds, nil
}

// fromRows turns a header row plus data rows into a Dataset. Short rows are
// padded with empty values.
func fromRows(rows [][]string) (*Dataset, error) {
	if len(rows) == 0 {
		return &Dataset{}, nil
	}

	header := rows[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	seen := make(map[string]struct{}, len(header))
	for _, h := range header {
		if _, dup := seen[h]; dup {
			return nil, eris.Errorf("dataset: duplicate column %q", h)
		}
		seen[h] = struct{}{}
	}

	ds := &Dataset{
		Header:  header,
		Records: make([]Record, 0, len(rows)-1),
	}
	for i, row := range rows[1:] {
		if len(row) > len(header) {
			return nil, eris.Errorf("dataset: row %d has %d fields, header has %d", i+2, len(row), len(header))
		}
		rec := make(Record, len(header))
		for j, h := range header {
			if j < len(row) {
				rec[h] = row[j]
			} else {
				rec[h] = ""
			}
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}
