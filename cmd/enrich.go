package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geodata-cli/internal/config"
	"github.com/sells-group/geodata-cli/internal/dataset"
	"github.com/sells-group/geodata-cli/internal/enrich"
	"github.com/sells-group/geodata-cli/internal/throttle"
	"github.com/sells-group/geodata-cli/pkg/dadata"
)

// now stamps output file names; replaced in tests.
var now = time.Now

// profileFunc builds an enrichment profile on top of a Dadata client.
type profileFunc func(c dadata.Client) enrich.Profile

// newDadataClient builds the single client shared by every lookup of a run.
func newDadataClient(c *config.Config) dadata.Client {
	return dadata.NewClient(c.Dadata.APIKey, c.Dadata.SecretKey,
		dadata.WithSuggestURL(c.Dadata.SuggestURL),
		dadata.WithCleanerURL(c.Dadata.CleanerURL),
		dadata.WithTimeout(c.Dadata.Timeout()),
		dadata.WithGeolocateRadius(c.Dadata.GeolocateRadius),
		dadata.WithThrottle(throttle.New(c.Throttle.Calls, c.Throttle.Period)),
	)
}

// runEnrichment reads path, enriches it with the profile named mode and
// writes the result. Nothing is written when any step fails.
func runEnrichment(ctx context.Context, mode, path string, build profileFunc) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialect, err := dataset.ParseDialect(flagDialect)
	if err != nil {
		return err
	}
	if err := dataset.CheckEncoding(flagEncoding); err != nil {
		return err
	}
	if err := cfg.Validate(mode); err != nil {
		return err
	}

	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID), zap.String("profile", mode))

	maxRows := cfg.Dataset.MaxRows
	if maxRows <= 0 {
		maxRows = -1
	}
	ds, err := dataset.ReadFile(path, dataset.ReadOptions{
		Dialect:  dialect,
		Encoding: flagEncoding,
		MaxRows:  maxRows,
	})
	if err != nil {
		return eris.Wrap(err, mode)
	}
	log.Info("dataset loaded",
		zap.String("source", path),
		zap.Int("rows", ds.Len()),
		zap.Int("columns", len(ds.Header)),
	)

	profile := build(newDadataClient(cfg))
	summary, err := enrich.New(profile, enrich.WithRunID(runID)).Run(ctx, ds)
	if err != nil {
		if summary != nil {
			summary.Log()
		}
		return eris.Wrap(err, mode)
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return eris.Wrapf(err, "%s: create output dir", mode)
	}
	out := filepath.Join(cfg.Output.Dir, profile.OutputName(now().Format(cfg.Output.DateFormat), path))
	if err := dataset.WriteFile(out, ds, dialect); err != nil {
		return eris.Wrap(err, mode)
	}
	summary.Output = out
	summary.Log()

	if flagSummary != "" {
		if err := summary.WriteFile(flagSummary); err != nil {
			return eris.Wrap(err, mode)
		}
	}

	log.Info("enriched dataset written", zap.String("output", out))
	return nil
}
