package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// OutputName derives the output file name from the source path:
// <prefix>_<date>_<base>, or <prefix>_<base> when date is empty.
// Spreadsheet sources are written as CSV.
func OutputName(prefix, date, source string) string {
	base := filepath.Base(source)
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".xlsx") {
		base = strings.TrimSuffix(base, ext) + ".csv"
	}
	parts := []string{prefix}
	if date != "" {
		parts = append(parts, date)
	}
	parts = append(parts, base)
	return strings.Join(parts, "_")
}

// WriteFile writes ds to path. A partially written file is removed on error.
func WriteFile(path string, ds *Dataset, dialect Dialect) (err error) {
	if ds.Len() == 0 {
		return eris.Wrap(ErrEmptyDataset, "dataset: nothing to write")
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "dataset: create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = eris.Wrapf(cerr, "dataset: close %s", path)
		}
		if err != nil {
			if rmErr := os.Remove(path); rmErr != nil {
				zap.L().Warn("dataset: remove partial output", zap.String("path", path), zap.Error(rmErr))
			}
		}
	}()

	if err = Write(f, ds, dialect); err != nil {
		return eris.Wrapf(err, "dataset: write %s", path)
	}
	return nil
}

// Write emits the header followed by every record in order.
func Write(w io.Writer, ds *Dataset, dialect Dialect) error {
	if ds.Len() == 0 {
		return eris.Wrap(ErrEmptyDataset, "dataset: nothing to write")
	}
	if dialect.Delimiter == 0 {
		dialect = Unix
	}

	cw := csv.NewWriter(w)
	cw.Comma = dialect.Delimiter
	cw.UseCRLF = dialect.UseCRLF

	if err := cw.Write(ds.Header); err != nil {
		return eris.Wrap(err, "dataset: write header")
	}
	row := make([]string, len(ds.Header))
	for _, rec := range ds.Records {
		for i, h := range ds.Header {
			row[i] = rec[h]
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "dataset: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "dataset: flush")
}
