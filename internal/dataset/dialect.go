package dataset

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidDialect is returned for an unknown dialect name.
var ErrInvalidDialect = eris.New("invalid csv dialect")

// Dialect describes the delimiter and line terminator of a CSV file.
type Dialect struct {
	Name      string
	Delimiter rune
	UseCRLF   bool
}

// Supported dialects.
var (
	Excel    = Dialect{Name: "excel", Delimiter: ',', UseCRLF: true}
	ExcelTab = Dialect{Name: "excel_tab", Delimiter: '\t', UseCRLF: true}
	Unix     = Dialect{Name: "unix", Delimiter: ',', UseCRLF: false}
)

// Dialects returns the supported dialects in display order.
func Dialects() []Dialect {
	return []Dialect{Excel, ExcelTab, Unix}
}

// ParseDialect resolves a dialect by name. An empty name selects Unix.
func ParseDialect(name string) (Dialect, error) {
	if name == "" {
		return Unix, nil
	}
	names := make([]string, 0, 3)
	for _, d := range Dialects() {
		if d.Name == name {
			return d, nil
		}
		names = append(names, "'"+d.Name+"'")
	}
	return Dialect{}, eris.Wrapf(ErrInvalidDialect, "dataset: csv dialect %q is incorrect, valid values: %s", name, strings.Join(names, ", "))
}
