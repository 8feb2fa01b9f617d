// Package geodata defines the enrichment profiles that bind Dadata lookups
// to dataset columns.
package geodata

import (
	"context"
	"strconv"

	"github.com/sells-group/geodata-cli/internal/enrich"
	"github.com/sells-group/geodata-cli/pkg/dadata"
)

// KindAddress is the Dadata entity kind used by every profile.
const KindAddress = "address"

// Profile names, also used as subcommand names.
const (
	ProfileCoords  = "coords"
	ProfileMetro   = "metro"
	ProfileReverse = "reverse"
)

// Result keys produced by the identifier lookup.
const (
	srcLat = "lat"
	srcLon = "lon"
)

// districtFields are copied from the street lookup alongside coordinates.
var districtFields = []string{"city_area", "city_district_fias_id", "city_district_with_type"}

// Coords attaches coordinates of the city, region, street, area and
// settlement referenced by FIAS identifiers.
func Coords(c dadata.Client) enrich.Profile {
	lookup := FindCoords(c)

	street := latLon("street")
	for _, f := range districtFields {
		street = append(street, enrich.Field{Column: f, Source: f})
	}

	return enrich.Profile{
		Name:   ProfileCoords,
		Prefix: "with_coord",
		Dated:  true,
		Bindings: []enrich.Binding{
			idBinding("city", lookup, latLon("city")),
			idBinding("region", lookup, latLon("region")),
			idBinding("street", lookup, street),
			idBinding("area", lookup, latLon("area")),
			idBinding("settlement", lookup, latLon("settlement")),
		},
	}
}

func idBinding(level string, lookup enrich.Lookuper, fields []enrich.Field) enrich.Binding {
	col := level + "_fias_id"
	return enrich.Binding{
		Name:     level,
		Key:      enrich.ColumnKey(col),
		Lookup:   lookup,
		Fields:   fields,
		Requires: []string{col},
	}
}

func latLon(level string) []enrich.Field {
	return []enrich.Field{
		{Column: level + "_lat", Source: srcLat},
		{Column: level + "_lon", Source: srcLon},
	}
}

// FindCoords resolves a FIAS identifier to its coordinates and district.
// Suggestions without numeric geo_lat and geo_lon are treated as absent.
func FindCoords(c dadata.Client) enrich.LookupFunc {
	return func(ctx context.Context, id string) (enrich.Result, bool, error) {
		suggestions, err := c.FindByID(ctx, KindAddress, id)
		if err != nil {
			return nil, false, err
		}
		if len(suggestions) == 0 || suggestions[0].Data == nil {
			return nil, false, nil
		}
		data := suggestions[0].Data

		lat, okLat := data.Float("geo_lat")
		lon, okLon := data.Float("geo_lon")
		if !okLat || !okLon {
			return nil, false, nil
		}

		res := enrich.Result{
			srcLat: formatFloat(lat),
			srcLon: formatFloat(lon),
		}
		for _, f := range districtFields {
			res[f] = data.String(f)
		}
		return res, true, nil
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
