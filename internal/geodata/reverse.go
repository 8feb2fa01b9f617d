package geodata

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geodata-cli/internal/dataset"
	"github.com/sells-group/geodata-cli/internal/enrich"
	"github.com/sells-group/geodata-cli/pkg/dadata"
)

// wgs84 is the SRID of coordinates read from datasets.
const wgs84 = 4326

// ReverseFields are copied from the nearest address to each coordinate.
var ReverseFields = []string{
	"area_fias_id",
	"area_with_type",
	"city_with_type",
	"city_fias_id",
	"federal_district",
	"capital_marker",
	"fias_id",
	"fias_level",
	"region_with_type",
	"region_fias_id",
	"settlement_with_type",
	"settlement_fias_id",
	"street_with_type",
	"street_fias_id",
}

// ReverseOptions selects the coordinate columns of the reverse profile.
type ReverseOptions struct {
	LatColumn string
	LonColumn string
}

func (o ReverseOptions) withDefaults() ReverseOptions {
	if o.LatColumn == "" {
		o.LatColumn = "lat"
	}
	if o.LonColumn == "" {
		o.LonColumn = "long"
	}
	return o
}

// Reverse attaches administrative subdivisions of the address nearest to each
// record's coordinates.
func Reverse(c dadata.Client, opts ReverseOptions) enrich.Profile {
	opts = opts.withDefaults()

	fields := make([]enrich.Field, len(ReverseFields))
	for i, f := range ReverseFields {
		fields[i] = enrich.Field{Column: f, Source: f}
	}

	return enrich.Profile{
		Name:   ProfileReverse,
		Prefix: "updated",
		Bindings: []enrich.Binding{{
			Name:     "coordinates",
			Key:      pointKey(opts),
			Lookup:   GeolocateAddress(c),
			Fields:   fields,
			Requires: []string{opts.LatColumn, opts.LonColumn},
		}},
	}
}

// ParsePoint builds a WGS84 point from textual latitude and longitude. Decimal
// commas are accepted.
func ParsePoint(lat, lon string) (*geom.Point, error) {
	y, err := parseCoord(lat)
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: latitude %q", lat)
	}
	x, err := parseCoord(lon)
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: longitude %q", lon)
	}
	if y < -90 || y > 90 {
		return nil, eris.Errorf("geodata: latitude %v out of range", y)
	}
	if x < -180 || x > 180 {
		return nil, eris.Errorf("geodata: longitude %v out of range", x)
	}
	return geom.NewPointFlat(geom.XY, []float64{x, y}).SetSRID(wgs84), nil
}

func parseCoord(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, eris.New("not a finite number")
	}
	return f, nil
}

// PointKey renders a point as the "lat,lon" lookup key.
func PointKey(p *geom.Point) string {
	return formatFloat(p.Y()) + "," + formatFloat(p.X())
}

func pointKey(opts ReverseOptions) enrich.KeyFunc {
	return func(r dataset.Record) (string, bool) {
		lat, lon := strings.TrimSpace(r[opts.LatColumn]), strings.TrimSpace(r[opts.LonColumn])
		if lat == "" || lon == "" {
			return "", false
		}
		p, err := ParsePoint(lat, lon)
		if err != nil {
			return "", false
		}
		return PointKey(p), true
	}
}

// GeolocateAddress resolves a "lat,lon" key to the fields of the nearest
// address.
func GeolocateAddress(c dadata.Client) enrich.LookupFunc {
	return func(ctx context.Context, key string) (enrich.Result, bool, error) {
		lat, lon, ok := strings.Cut(key, ",")
		if !ok {
			return nil, false, eris.Errorf("geodata: malformed point key %q", key)
		}
		p, err := ParsePoint(lat, lon)
		if err != nil {
			return nil, false, err
		}

		suggestions, err := c.Geolocate(ctx, KindAddress, p.Y(), p.X())
		if err != nil {
			return nil, false, err
		}
		if len(suggestions) == 0 || suggestions[0].Data == nil {
			return nil, false, nil
		}

		data := suggestions[0].Data
		res := make(enrich.Result, len(ReverseFields))
		for _, f := range ReverseFields {
			res[f] = data.String(f)
		}
		return res, true, nil
	}
}
