package listingsync

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fairhome/fairhome/internal/fetcher"
	"github.com/fairhome/fairhome/internal/model"
	"github.com/fairhome/fairhome/internal/store"
)

// DefaultSourceURL is the Chicago affordable rental housing developments feed.
const DefaultSourceURL = "https://data.cityofchicago.org/resource/s6ha-ppgi.json"

// Result is the outcome of one sync run.
type Result struct {
	Success bool  `json:"success"`
	Count   int   `json:"count"`
	Err     error `json:"-"`
}

// Runner executes the fetch-transform-replace routine. Concurrent triggers
// (manual endpoint racing the schedule) are coalesced: callers that arrive
// while a run is in flight share that run's result instead of starting a
// second delete+insert against the same table.
type Runner struct {
	store     store.Store
	fetcher   fetcher.Fetcher
	sourceURL string
	group     singleflight.Group
}

// NewRunner creates a Runner. If sourceURL is empty the default feed is used.
func NewRunner(st store.Store, f fetcher.Fetcher, sourceURL string) *Runner {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	return &Runner{store: st, fetcher: f, sourceURL: sourceURL}
}

// Run executes a sync, or joins the in-flight one.
func (r *Runner) Run(ctx context.Context) Result {
	v, err, shared := r.group.Do("sync", func() (any, error) {
		return r.run(ctx), nil
	})
	if err != nil {
		// The closure never returns an error; results carry their own.
		return Result{Err: eris.Wrap(err, "sync: run")}
	}
	res := v.(Result)
	if shared {
		zap.L().Info("sync trigger joined in-flight run",
			zap.Bool("success", res.Success),
			zap.Int("count", res.Count),
		)
	}
	return res
}

func (r *Runner) run(ctx context.Context) Result {
	log := zap.L().With(zap.String("component", "listingsync"))
	start := time.Now()

	runID, err := r.store.StartRun(ctx)
	if err != nil {
		log.Error("sync: start run log", zap.Error(err))
		return Result{Err: err}
	}

	result := r.execute(ctx, log)

	if result.Err != nil {
		if logErr := r.store.FailRun(ctx, runID, result.Err.Error()); logErr != nil {
			log.Error("sync: record failure", zap.Error(logErr))
		}
		log.Error("sync failed",
			zap.Error(result.Err),
			zap.Duration("elapsed", time.Since(start)),
		)
		return result
	}

	if err := r.store.CompleteRun(ctx, runID, int64(result.Count)); err != nil {
		log.Error("sync: record completion", zap.Error(err))
	}
	log.Info("sync complete",
		zap.Int("count", result.Count),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result
}

func (r *Runner) execute(ctx context.Context, log *zap.Logger) Result {
	log.Info("fetching upstream feed", zap.String("url", r.sourceURL))

	body, err := r.fetcher.Download(ctx, r.sourceURL)
	if err != nil {
		return Result{Err: eris.Wrap(err, "sync: fetch feed")}
	}
	defer body.Close() //nolint:errcheck

	records, err := fetcher.DecodeJSONArray[model.ChicagoHousingRecord](body)
	if err != nil {
		return Result{Err: eris.Wrap(err, "sync: decode feed")}
	}

	listings := Transform(records)
	log.Info("transformed feed",
		zap.Int("records", len(records)),
		zap.Int("listings", len(listings)),
		zap.Int("dropped", len(records)-len(listings)),
	)

	committed, err := r.store.ReplaceListings(ctx, listings)
	if err != nil {
		// The table may be empty or partially populated at this point; the
		// committed count tells the caller where the batch boundary fell.
		return Result{Count: committed, Err: eris.Wrapf(err, "sync: replace listings (%d committed)", committed)}
	}

	return Result{Success: true, Count: committed}
}
