package workers

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"vega/internal/domain/chain"
	"vega/internal/domain/snapshot"
	"vega/internal/metrics"
	"vega/pkg/errors"
)

// ChainSource fetches raw option chains from the broker
type ChainSource interface {
	GetOptionChain(ctx context.Context, symbol string) (*chain.RawChain, error)
}

// SnapshotWriter is the store's write path
type SnapshotWriter interface {
	Store(ctx context.Context, symbol string, date time.Time, contracts []chain.Contract, underlying float64) (*snapshot.ChainSnapshot, error)
}

// AlertPublisher emits collection events
type AlertPublisher interface {
	PublishUnusualActivity(ctx context.Context, symbol string, entry snapshot.UnusualEntry)
	PublishSnapshotCollected(ctx context.Context, snap *snapshot.ChainSnapshot)
}

// CollectorWorker captures a daily chain snapshot per tracked symbol.
// Symbols are isolated: one failing symbol never blocks the rest, and the
// run error aggregates the individual failures.
type CollectorWorker struct {
	*BaseWorker
	source        ChainSource
	writer        SnapshotWriter
	normalizer    *chain.Normalizer
	publisher     AlertPublisher
	symbols       []string
	alertMinScore float64
}

// NewCollectorWorker creates the daily snapshot collector
func NewCollectorWorker(
	source ChainSource,
	writer SnapshotWriter,
	normalizer *chain.Normalizer,
	publisher AlertPublisher,
	symbols []string,
	interval time.Duration,
	alertMinScore float64,
	enabled bool,
) *CollectorWorker {
	return &CollectorWorker{
		BaseWorker:    NewBaseWorker("snapshot_collector", interval, enabled),
		source:        source,
		writer:        writer,
		normalizer:    normalizer,
		publisher:     publisher,
		symbols:       symbols,
		alertMinScore: alertMinScore,
	}
}

// Run collects one snapshot per symbol
func (w *CollectorWorker) Run(ctx context.Context) error {
	start := time.Now()
	date := start.UTC().Truncate(24 * time.Hour)

	multiErr := &errors.MultiError{}
	collected := 0

	for _, symbol := range w.symbols {
		if ctx.Err() != nil {
			multiErr.Add(ctx.Err())
			break
		}

		if err := w.collectSymbol(ctx, symbol, date); err != nil {
			w.Log().Errorw("Symbol collection failed", "symbol", symbol, "error", err)
			multiErr.Add(errors.Wrapf(err, "collect %s", symbol))
			continue
		}
		collected++
	}

	duration := time.Since(start)
	if multiErr.HasErrors() {
		w.RecordError(multiErr, duration)
	} else {
		w.RecordRun(duration)
	}

	w.Log().Infow("Collection cycle finished",
		"collected", collected,
		"failed", len(w.symbols)-collected,
		"duration", duration,
	)

	return multiErr.ToError()
}

func (w *CollectorWorker) collectSymbol(ctx context.Context, symbol string, date time.Time) error {
	fetchStart := time.Now()
	raw, err := w.source.GetOptionChain(ctx, symbol)
	metrics.RecordBrokerCall("chains", time.Since(fetchStart), err)
	if err != nil {
		return err
	}
	if raw.IsEmpty() {
		return errors.Wrapf(errors.ErrEmptyChain, "symbol %s", symbol)
	}

	contracts := w.normalizer.Normalize(raw)

	snap, err := w.writer.Store(ctx, symbol, date, contracts, raw.Underlying.Last)
	metrics.RecordSnapshotWrite(symbol, len(contracts), err)
	if err != nil {
		return err
	}

	w.Log().Infow("Snapshot collected",
		"symbol", symbol,
		"contracts", len(contracts),
		"volume", humanize.Comma(raw.TotalVolume()),
		"unusual", len(snap.Unusual),
	)

	if w.publisher != nil {
		w.publisher.PublishSnapshotCollected(ctx, snap)
		for _, entry := range snap.Unusual {
			if entry.Score >= w.alertMinScore {
				w.publisher.PublishUnusualActivity(ctx, symbol, entry)
			}
		}
		metrics.UnusualFlowsExtracted.WithLabelValues(symbol).Add(float64(len(snap.Unusual)))
	}

	return nil
}
