package enrich

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/geodata-cli/internal/dataset"
	"github.com/sells-group/geodata-cli/internal/throttle"
)

type stubLookup struct {
	results map[string]Result
	errs    map[string]error
	calls   map[string]int
	order   []string
}

func newStub(results map[string]Result) *stubLookup {
	return &stubLookup{results: results, errs: map[string]error{}, calls: map[string]int{}}
}

func (s *stubLookup) Lookup(_ context.Context, key string) (Result, bool, error) {
	s.calls[key]++
	s.order = append(s.order, key)
	if err, ok := s.errs[key]; ok {
		return nil, false, err
	}
	r, ok := s.results[key]
	return r, ok, nil
}

func (s *stubLookup) total() int {
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

type fatalErr struct{}

func (fatalErr) Error() string { return "quota exhausted" }
func (fatalErr) Fatal() bool   { return true }

type transientErr struct{ retry bool }

func (e transientErr) Error() string   { return fmt.Sprintf("lookup error (transient=%t)", e.retry) }
func (e transientErr) Transient() bool { return e.retry }

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

func cityProfile(l Lookuper) Profile {
	return Profile{
		Name:   "coords",
		Prefix: "with_coord",
		Dated:  true,
		Bindings: []Binding{{
			Name:     "city",
			Key:      ColumnKey("city_fias_id"),
			Lookup:   l,
			Requires: []string{"city_fias_id"},
			Fields: []Field{
				{Column: "city_lat", Source: "lat"},
				{Column: "city_lon", Source: "lon"},
			},
		}},
	}
}

func newDataset(header []string, rows ...dataset.Record) *dataset.Dataset {
	return &dataset.Dataset{Source: "in.csv", Header: header, Records: rows}
}

func TestExtractKeys_DistinctFirstAppearance(t *testing.T) {
	records := []dataset.Record{
		{"id": "b"},
		{"id": " a "},
		{"id": ""},
		{"id": "b"},
		{},
		{"id": "c"},
	}
	assert.Equal(t, []string{"b", "a", "c"}, ExtractKeys(records, ColumnKey("id")))
	assert.Empty(t, ExtractKeys(nil, ColumnKey("id")))
}

func TestProfile_ColumnsAndRequires(t *testing.T) {
	p := Profile{Bindings: []Binding{
		{Requires: []string{"a"}, Fields: []Field{{Column: "x"}, {Column: "y"}}},
		{Requires: []string{"b", "a"}, Fields: []Field{{Column: "z"}, {Column: "x"}}},
	}}
	assert.Equal(t, []string{"x", "y", "z"}, p.Columns())
	assert.Equal(t, []string{"a", "b"}, p.Requires())
}

func TestProfile_OutputName(t *testing.T) {
	dated := Profile{Prefix: "with_coord", Dated: true}
	assert.Equal(t, "with_coord_05_03_24_in.csv", dated.OutputName("05_03_24", "/data/in.csv"))

	undated := Profile{Prefix: "updated"}
	assert.Equal(t, "updated_in.csv", undated.OutputName("05_03_24", "in.csv"))
}

func TestRun_SharedKeyLookedUpOnce(t *testing.T) {
	stub := newStub(map[string]Result{"X1": {"lat": "55.75", "lon": "37.62"}})
	ds := newDataset([]string{"name", "city_fias_id"},
		dataset.Record{"name": "a", "city_fias_id": "X1"},
		dataset.Record{"name": "b", "city_fias_id": "X1"},
	)

	sum, err := New(cityProfile(stub)).Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, 1, stub.calls["X1"])
	for _, r := range ds.Records {
		assert.Equal(t, "55.75", r["city_lat"])
		assert.Equal(t, "37.62", r["city_lon"])
	}
	assert.Equal(t, []string{"name", "city_fias_id", "city_lat", "city_lon"}, ds.Header)

	require.Len(t, sum.Lookups, 1)
	assert.Equal(t, 1, sum.Lookups[0].Keys)
	assert.Equal(t, 1, sum.Lookups[0].Calls)
	assert.Equal(t, 1, sum.Lookups[0].Resolved)
	assert.Equal(t, 2, sum.Lookups[0].Enriched)
	assert.Equal(t, 1, sum.Calls())
}

func TestRun_EmptyKeyGetsPlaceholdersWithoutLookup(t *testing.T) {
	stub := newStub(map[string]Result{"X1": {"lat": "1", "lon": "2"}})
	ds := newDataset([]string{"city_fias_id"},
		dataset.Record{"city_fias_id": ""},
		dataset.Record{"city_fias_id": "X1"},
	)

	sum, err := New(cityProfile(stub)).Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, []string{"X1"}, stub.order)
	assert.Equal(t, "", ds.Records[0]["city_lat"])
	assert.Contains(t, ds.Records[0], "city_lat")
	assert.Contains(t, ds.Records[0], "city_lon")
	assert.Equal(t, 1, sum.Lookups[0].Unkeyed)
}

func TestRun_FailedAndAbsentKeysBecomePlaceholders(t *testing.T) {
	stub := newStub(map[string]Result{"ok": {"lat": "1", "lon": "2"}})
	stub.errs["boom"] = errors.New("dadata: parse response: unexpected EOF")
	ds := newDataset([]string{"city_fias_id"},
		dataset.Record{"city_fias_id": "boom"},
		dataset.Record{"city_fias_id": "missing"},
		dataset.Record{"city_fias_id": "ok"},
		dataset.Record{"city_fias_id": "boom"},
	)

	sum, err := New(cityProfile(stub)).Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, 1, stub.calls["boom"], "failed keys are not retried")
	assert.Equal(t, "", ds.Records[0]["city_lat"])
	assert.Equal(t, "", ds.Records[1]["city_lon"])
	assert.Equal(t, "1", ds.Records[2]["city_lat"])
	assert.Equal(t, "", ds.Records[3]["city_lat"])

	st := sum.Lookups[0]
	assert.Equal(t, 0, st.Transient)
	assert.Equal(t, 1, st.Permanent)
	assert.Equal(t, 1, st.Absent)
	assert.Equal(t, 1, st.Resolved)
	assert.Equal(t, 3, st.Unresolved)
}

func TestRun_FailuresSplitByTransience(t *testing.T) {
	stub := newStub(map[string]Result{"ok": {"lat": "1", "lon": "2"}})
	stub.errs["timeout"] = fmt.Errorf("dadata: find address by id: %w", transientErr{retry: true})
	stub.errs["reset"] = transientErr{retry: true}
	stub.errs["bad"] = transientErr{retry: false}
	stub.errs["plain"] = errors.New("dadata: parse response")
	ds := newDataset([]string{"city_fias_id"},
		dataset.Record{"city_fias_id": "timeout"},
		dataset.Record{"city_fias_id": "bad"},
		dataset.Record{"city_fias_id": "ok"},
		dataset.Record{"city_fias_id": "reset"},
		dataset.Record{"city_fias_id": "plain"},
	)

	sum, err := New(cityProfile(stub)).Run(context.Background(), ds)
	require.NoError(t, err)

	st := sum.Lookups[0]
	assert.Equal(t, 5, st.Calls)
	assert.Equal(t, 1, st.Resolved)
	assert.Equal(t, 2, st.Transient)
	assert.Equal(t, 2, st.Permanent)
	assert.Equal(t, 4, st.Unresolved)
	for _, i := range []int{0, 1, 3, 4} {
		assert.Equal(t, "", ds.Records[i]["city_lat"], "row %d", i)
	}
}

func TestRun_FatalErrorAborts(t *testing.T) {
	stub := newStub(nil)
	stub.errs["a"] = fmt.Errorf("wrapped: %w", fatalErr{})
	ds := newDataset([]string{"city_fias_id"},
		dataset.Record{"city_fias_id": "a"},
		dataset.Record{"city_fias_id": "b"},
	)

	_, err := New(cityProfile(stub)).Run(context.Background(), ds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exhausted")
	assert.Equal(t, []string{"a"}, stub.order)
}

func TestRun_CancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	l := LookupFunc(func(context.Context, string) (Result, bool, error) {
		calls++
		cancel()
		return nil, false, context.Canceled
	})
	ds := newDataset([]string{"city_fias_id"},
		dataset.Record{"city_fias_id": "a"},
		dataset.Record{"city_fias_id": "b"},
	)

	_, err := New(cityProfile(l)).Run(ctx, ds)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRun_MissingKeyColumn(t *testing.T) {
	stub := newStub(nil)
	ds := newDataset([]string{"name"}, dataset.Record{"name": "a"})

	_, err := New(cityProfile(stub)).Run(context.Background(), ds)
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrMissingColumn)
	assert.Zero(t, stub.total())
}

func TestRun_PreservesOrderAndIsRectangular(t *testing.T) {
	results := map[string]Result{}
	var rows []dataset.Record
	for i := 0; i < dataset.DefaultMaxRows; i++ {
		key := fmt.Sprintf("k%d", i%37)
		if i%5 == 0 {
			key = ""
		}
		if i%37 < 30 {
			results[key] = Result{"lat": fmt.Sprint(i % 37), "lon": "0"}
		}
		rows = append(rows, dataset.Record{"n": fmt.Sprint(i), "city_fias_id": key})
	}
	stub := newStub(results)
	ds := newDataset([]string{"n", "city_fias_id"}, rows...)

	_, err := New(cityProfile(stub)).Run(context.Background(), ds)
	require.NoError(t, err)

	require.Len(t, ds.Records, dataset.DefaultMaxRows)
	for i, r := range ds.Records {
		require.Equal(t, fmt.Sprint(i), r["n"])
		require.Len(t, r, len(ds.Header))
	}
	for _, c := range stub.calls {
		require.Equal(t, 1, c)
	}
}

func TestRun_ThrottledLookupsTakeAtLeastThreeSeconds(t *testing.T) {
	clk := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	start := clk.now
	th := throttle.New(30, time.Second, throttle.WithClock(clk))
	l := LookupFunc(func(ctx context.Context, key string) (Result, bool, error) {
		if err := th.Acquire(ctx); err != nil {
			return nil, false, err
		}
		return Result{"lat": key}, true, nil
	})

	var rows []dataset.Record
	for i := 0; i < 100; i++ {
		rows = append(rows, dataset.Record{"city_fias_id": fmt.Sprintf("id-%d", i)})
	}
	ds := newDataset([]string{"city_fias_id"}, rows...)

	sum, err := New(cityProfile(l), WithProgressInterval(0)).Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 100, sum.Calls())
	assert.GreaterOrEqual(t, clk.now.Sub(start), 3*time.Second)
}

func TestRun_SeparateCachePerBinding(t *testing.T) {
	stub := newStub(map[string]Result{"X": {"lat": "1", "lon": "2"}})
	p := cityProfile(stub)
	p.Bindings = append(p.Bindings, Binding{
		Name:     "region",
		Key:      ColumnKey("region_fias_id"),
		Lookup:   stub,
		Requires: []string{"region_fias_id"},
		Fields:   []Field{{Column: "region_lat", Source: "lat"}},
	})
	ds := newDataset([]string{"city_fias_id", "region_fias_id"},
		dataset.Record{"city_fias_id": "X", "region_fias_id": "X"},
	)

	sum, err := New(p).Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls["X"])
	assert.Equal(t, "1", ds.Records[0]["region_lat"])
	require.Len(t, sum.Lookups, 2)
	assert.Equal(t, "region", sum.Lookups[1].Binding)
}

func TestSummary_WriteFile(t *testing.T) {
	sum := &Summary{
		RunID:   "run-1",
		Profile: "coords",
		Source:  "in.csv",
		Rows:    2,
		Elapsed: "1s",
		Lookups: []Stats{{Binding: "city", Keys: 4, Calls: 4, Resolved: 1, Transient: 2, Permanent: 1}},
	}
	path := filepath.Join(t.TempDir(), "summary.yaml")
	require.NoError(t, sum.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, "run-1", got["run_id"])
	assert.Equal(t, "coords", got["profile"])
	lookups, ok := got["lookups"].([]any)
	require.True(t, ok)
	require.Len(t, lookups, 1)
	city := lookups[0].(map[string]any)
	assert.Equal(t, "city", city["binding"])
	assert.Equal(t, 2, city["failed_transient"])
	assert.Equal(t, 1, city["failed_permanent"])

	sum.Log()
}

func TestProgress_NilIsNoop(t *testing.T) {
	var p *Progress
	assert.NotPanics(t, func() { p.Update(1) })

	p = NewProgress("city", 3, time.Hour)
	assert.NotPanics(t, func() {
		p.Update(1)
		p.Update(2)
		p.Update(3)
	})
}
