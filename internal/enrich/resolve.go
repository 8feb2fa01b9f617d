package enrich

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Cache maps every resolved key to its Result. Absent and failed keys map to
// nil so they are never looked up twice.
type Cache map[string]Result

// Stats counts the outcome of resolving one binding.
type Stats struct {
	Binding    string `yaml:"binding"`
	Keys       int    `yaml:"keys"`
	Calls      int    `yaml:"calls"`
	Resolved   int    `yaml:"resolved"`
	Absent     int    `yaml:"absent"`
	Transient  int    `yaml:"failed_transient"`
	Permanent  int    `yaml:"failed_permanent"`
	Enriched   int    `yaml:"records_enriched"`
	Unkeyed    int    `yaml:"records_without_key"`
	Unresolved int    `yaml:"records_unresolved"`
}

// fatal is implemented by errors after which every further call would fail
// the same way.
type fatal interface {
	Fatal() bool
}

func isFatal(err error) bool {
	var f fatal
	return errors.As(err, &f) && f.Fatal()
}

// transient is implemented by errors that a later run may not hit again,
// such as a timeout or a 5xx response.
type transient interface {
	Transient() bool
}

func isTransient(err error) bool {
	var t transient
	return errors.As(err, &t) && t.Transient()
}

// Resolve looks up each of the distinct keys once, sequentially. Per-key
// errors are logged and cached as absent; fatal errors and context
// cancellation stop the run.
func Resolve(ctx context.Context, name string, l Lookuper, keys []string, p *Progress) (Cache, Stats, error) {
	cache := make(Cache, len(keys))
	stats := Stats{Binding: name, Keys: len(keys)}

	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return cache, stats, eris.Wrapf(err, "enrich: resolve %s", name)
		}

		stats.Calls++
		res, ok, err := l.Lookup(ctx, key)
		switch {
		case err != nil:
			if ctx.Err() != nil || isFatal(err) {
				return cache, stats, eris.Wrapf(err, "enrich: resolve %s key %q", name, key)
			}
			retry := isTransient(err)
			if retry {
				stats.Transient++
			} else {
				stats.Permanent++
			}
			cache[key] = nil
			zap.L().Warn("enrich: lookup failed",
				zap.String("binding", name),
				zap.String("key", key),
				zap.Bool("transient", retry),
				zap.Error(err),
			)
		case !ok || res == nil:
			stats.Absent++
			cache[key] = nil
			zap.L().Debug("enrich: no result",
				zap.String("binding", name),
				zap.String("key", key),
			)
		default:
			stats.Resolved++
			cache[key] = res
		}

		p.Update(i + 1)
	}
	return cache, stats, nil
}
