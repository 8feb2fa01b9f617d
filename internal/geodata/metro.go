package geodata

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/geodata-cli/internal/dataset"
	"github.com/sells-group/geodata-cli/internal/enrich"
	"github.com/sells-group/geodata-cli/pkg/dadata"
)

// MetroStations is the number of nearest stations written per record.
const MetroStations = 3

// DefaultMetroCities are the FIAS ids of cities with a metro system.
var DefaultMetroCities = []string{
	"0c5b2444-70a0-4932-980c-b4dc0d3f02b5", // Moscow
	"c2deb16a-0330-4f05-821f-1d09c93331e6", // Saint Petersburg
	"bb035cc3-1dc2-4627-9d25-a1bf2d4b936b", // Samara
	"555e7d61-d9a7-4ba6-9770-6caa8198c483", // Nizhny Novgorod
	"93b3df57-4c89-44df-ac42-96f05e9cd3b9", // Kazan
	"2763c110-cb8b-416a-9dac-ad28a55b4402", // Yekaterinburg
	"8dea00e3-9aab-4d8e-887c-ef2aaa546456", // Novosibirsk
}

// MetroOptions selects the columns and cities used by the metro profile.
type MetroOptions struct {
	AddressColumn string
	CityColumn    string
	Cities        []string
}

func (o MetroOptions) withDefaults() MetroOptions {
	if o.AddressColumn == "" {
		o.AddressColumn = "address_rus"
	}
	if o.CityColumn == "" {
		o.CityColumn = "city_fias_id"
	}
	if len(o.Cities) == 0 {
		o.Cities = DefaultMetroCities
	}
	return o
}

// MetroColumns returns the station name, line and distance columns for
// stations 1..MetroStations.
func MetroColumns() []string {
	cols := make([]string, 0, 3*MetroStations)
	for i := 1; i <= MetroStations; i++ {
		cols = append(cols,
			fmt.Sprintf("metro_station_name_%d", i),
			fmt.Sprintf("metro_line_name_%d", i),
			fmt.Sprintf("metro_distance_%d", i),
		)
	}
	return cols
}

// Metro attaches the nearest metro stations to addresses located in one of
// the configured cities.
func Metro(c dadata.Client, opts MetroOptions) enrich.Profile {
	opts = opts.withDefaults()

	var fields []enrich.Field
	for _, col := range MetroColumns() {
		fields = append(fields, enrich.Field{Column: col, Source: col})
	}

	return enrich.Profile{
		Name:   ProfileMetro,
		Prefix: "with_metro",
		Dated:  true,
		Bindings: []enrich.Binding{{
			Name:     "metro",
			Key:      metroKey(opts),
			Lookup:   CleanMetro(c),
			Fields:   fields,
			Requires: []string{opts.CityColumn, opts.AddressColumn},
		}},
	}
}

func metroKey(opts MetroOptions) enrich.KeyFunc {
	cities := make(map[string]struct{}, len(opts.Cities))
	for _, id := range opts.Cities {
		cities[strings.ToLower(strings.TrimSpace(id))] = struct{}{}
	}
	address := enrich.ColumnKey(opts.AddressColumn)

	return func(r dataset.Record) (string, bool) {
		city := strings.ToLower(strings.TrimSpace(r[opts.CityColumn]))
		if _, ok := cities[city]; !ok {
			return "", false
		}
		return address(r)
	}
}

// CleanMetro standardizes an address and returns its nearest stations.
// Addresses without stations are absent.
func CleanMetro(c dadata.Client) enrich.LookupFunc {
	return func(ctx context.Context, address string) (enrich.Result, bool, error) {
		cleaned, err := c.Clean(ctx, KindAddress, address)
		if err != nil {
			return nil, false, err
		}
		if cleaned == nil || len(cleaned.Metro) == 0 {
			return nil, false, nil
		}

		res := enrich.Result{}
		for i, m := range cleaned.Metro[:min(len(cleaned.Metro), MetroStations)] {
			n := i + 1
			res[fmt.Sprintf("metro_station_name_%d", n)] = m.Name
			res[fmt.Sprintf("metro_line_name_%d", n)] = m.Line
			if m.Distance != nil {
				res[fmt.Sprintf("metro_distance_%d", n)] = formatFloat(*m.Distance)
			}
		}
		return res, true, nil
	}
}

