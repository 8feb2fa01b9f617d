package dadata

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
)

// Cleaned is the first result of the cleaner API, reduced to the fields the
// enrichment reads.
type Cleaned struct {
	Metro []Metro `json:"metro"`
}

// Metro is a nearby metro station as returned by the cleaner, nearest first.
type Metro struct {
	Name     string
	Line     string
	Distance *float64 // kilometers; nil when the service omits it
}

// UnmarshalJSON accepts distance as a JSON number or a numeric string.
func (m *Metro) UnmarshalJSON(b []byte) error {
	var raw struct {
		Name     string `json:"name"`
		Line     string `json:"line"`
		Distance any    `json:"distance"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	m.Name = raw.Name
	m.Line = raw.Line
	m.Distance = nil
	switch d := raw.Distance.(type) {
	case float64:
		m.Distance = &d
	case string:
		if f, err := strconv.ParseFloat(d, 64); err == nil {
			m.Distance = &f
		}
	}
	return nil
}

// Clean implements Client.
func (c *httpClient) Clean(ctx context.Context, kind, text string) (*Cleaned, error) {
	var results []*Cleaned
	if err := c.post(ctx, c.cleanerURL+"/clean/"+kind, []string{text}, true, &results); err != nil {
		return nil, eris.Wrapf(err, "dadata: clean %s", kind)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}
