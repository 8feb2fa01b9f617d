package enrich

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/geodata-cli/internal/dataset"
)

// Summary describes one enrichment run.
type Summary struct {
	RunID     string    `yaml:"run_id,omitempty"`
	Profile   string    `yaml:"profile"`
	Source    string    `yaml:"source"`
	Output    string    `yaml:"output,omitempty"`
	Rows      int       `yaml:"rows"`
	StartedAt time.Time `yaml:"started_at"`
	Elapsed   string    `yaml:"elapsed"`
	Lookups   []Stats   `yaml:"lookups"`
}

// Calls returns the total number of lookups made across bindings.
func (s *Summary) Calls() int {
	n := 0
	for _, st := range s.Lookups {
		n += st.Calls
	}
	return n
}

// WriteFile stores the summary as YAML.
func (s *Summary) WriteFile(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "enrich: marshal summary")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "enrich: write summary %s", path)
	}
	return nil
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRunID tags the summary with a run identifier.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// WithProgressInterval sets how often progress is logged. Zero logs only
// the first and last key of each binding.
func WithProgressInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.interval = d }
}

// Pipeline enriches datasets according to a Profile.
type Pipeline struct {
	profile  Profile
	runID    string
	interval time.Duration
}

// New creates a Pipeline for profile.
func New(profile Profile, opts ...Option) *Pipeline {
	p := &Pipeline{profile: profile, interval: time.Second}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run enriches ds in place. Every record ends up with every profile column;
// records whose key is missing or unresolved get empty values. On error the
// dataset may be partially enriched and should not be written.
func (p *Pipeline) Run(ctx context.Context, ds *dataset.Dataset) (*Summary, error) {
	start := time.Now()
	sum := &Summary{
		RunID:     p.runID,
		Profile:   p.profile.Name,
		Source:    ds.Source,
		Rows:      ds.Len(),
		StartedAt: start.UTC(),
	}

	if err := ds.RequireColumns(p.profile.Requires()...); err != nil {
		return sum, err
	}
	ds.AddColumns(p.profile.Columns()...)

	for _, b := range p.profile.Bindings {
		keys := ExtractKeys(ds.Records, b.Key)
		zap.L().Info("enrich: resolving keys",
			zap.String("profile", p.profile.Name),
			zap.String("binding", b.Name),
			zap.Int("keys", len(keys)),
		)

		var progress *Progress
		if len(keys) > 0 {
			progress = NewProgress(b.Name, len(keys), p.interval)
		}

		cache, stats, err := Resolve(ctx, b.Name, b.Lookup, keys, progress)
		if err != nil {
			sum.Lookups = append(sum.Lookups, stats)
			sum.Elapsed = time.Since(start).String()
			return sum, err
		}

		apply(ds.Records, b, cache, &stats)
		sum.Lookups = append(sum.Lookups, stats)
	}

	sum.Elapsed = time.Since(start).String()
	return sum, nil
}

// apply writes the binding's columns into every record.
func apply(records []dataset.Record, b Binding, cache Cache, stats *Stats) {
	for _, r := range records {
		var res Result
		if key, ok := b.Key(r); ok {
			res = cache[key]
			if res == nil {
				stats.Unresolved++
			} else {
				stats.Enriched++
			}
		} else {
			stats.Unkeyed++
		}
		for _, f := range b.Fields {
			r[f.Column] = res[f.Source]
		}
	}
}

// Log writes the summary through the global logger.
func (s *Summary) Log() {
	for _, st := range s.Lookups {
		zap.L().Info("enrich: binding summary",
			zap.String("run_id", s.RunID),
			zap.String("binding", st.Binding),
			zap.Int("keys", st.Keys),
			zap.Int("calls", st.Calls),
			zap.Int("resolved", st.Resolved),
			zap.Int("absent", st.Absent),
			zap.Int("failed_transient", st.Transient),
			zap.Int("failed_permanent", st.Permanent),
			zap.Int("records_without_key", st.Unkeyed),
		)
	}
	zap.L().Info("enrich: run complete",
		zap.String("run_id", s.RunID),
		zap.String("profile", s.Profile),
		zap.String("source", s.Source),
		zap.String("output", s.Output),
		zap.Int("rows", s.Rows),
		zap.Int("calls", s.Calls()),
		zap.String("elapsed", s.Elapsed),
	)
}
