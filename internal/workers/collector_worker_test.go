package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vega/internal/domain/chain"
	"vega/internal/domain/snapshot"
	"vega/pkg/errors"
)

type stubSource struct {
	chains map[string]*chain.RawChain
	errs   map[string]error
	calls  []string
}

func (s *stubSource) GetOptionChain(_ context.Context, symbol string) (*chain.RawChain, error) {
	s.calls = append(s.calls, symbol)
	if err, ok := s.errs[symbol]; ok {
		return nil, err
	}
	return s.chains[symbol], nil
}

type stubWriter struct {
	stored map[string]*snapshot.ChainSnapshot
	err    error
}

func (s *stubWriter) Store(_ context.Context, symbol string, date time.Time, contracts []chain.Contract, underlying float64) (*snapshot.ChainSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	snap := &snapshot.ChainSnapshot{
		Symbol:          symbol,
		Date:            date,
		UnderlyingPrice: underlying,
		Stats:           snapshot.DailyStats{ContractCount: len(contracts)},
		Unusual: []snapshot.UnusualEntry{
			{Symbol: symbol, Score: 7.5},
			{Symbol: symbol, Score: 3.2},
		},
	}
	if s.stored == nil {
		s.stored = make(map[string]*snapshot.ChainSnapshot)
	}
	s.stored[symbol] = snap
	return snap, nil
}

type stubPublisher struct {
	alerts    []snapshot.UnusualEntry
	collected []string
}

func (s *stubPublisher) PublishUnusualActivity(_ context.Context, _ string, entry snapshot.UnusualEntry) {
	s.alerts = append(s.alerts, entry)
}

func (s *stubPublisher) PublishSnapshotCollected(_ context.Context, snap *snapshot.ChainSnapshot) {
	s.collected = append(s.collected, snap.Symbol)
}

func smallChain() *chain.RawChain {
	return &chain.RawChain{
		Underlying: chain.Underlying{Last: 100},
		CallExpDateMap: map[string]map[string][]chain.RawContract{
			"2025-06-20:10": {
				"100": {{
					StrikePrice:    chain.FlexFloat(100),
					TotalVolume:    chain.FlexFloat(500),
					OpenInterest:   chain.FlexFloat(1000),
					Mark:           chain.FlexFloat(2.5),
					ExpirationDate: []byte(`"2025-06-20"`),
				}},
			},
		},
	}
}

func newCollector(source ChainSource, writer SnapshotWriter, publisher AlertPublisher, symbols []string) *CollectorWorker {
	return NewCollectorWorker(source, writer, chain.NewNormalizer(chain.DefaultParams()), publisher, symbols, time.Hour, 6.0, true)
}

func TestCollectorRun_AllSymbols(t *testing.T) {
	source := &stubSource{chains: map[string]*chain.RawChain{"SPY": smallChain(), "QQQ": smallChain()}}
	writer := &stubWriter{}
	publisher := &stubPublisher{}

	w := newCollector(source, writer, publisher, []string{"SPY", "QQQ"})
	err := w.Run(context.Background())

	require.NoError(t, err)
	assert.Len(t, writer.stored, 2)
	assert.ElementsMatch(t, []string{"SPY", "QQQ"}, publisher.collected)
	// only entries clearing the alert floor are published
	require.Len(t, publisher.alerts, 2)
	for _, a := range publisher.alerts {
		assert.GreaterOrEqual(t, a.Score, 6.0)
	}
}

func TestCollectorRun_SymbolIsolation(t *testing.T) {
	source := &stubSource{
		chains: map[string]*chain.RawChain{"QQQ": smallChain()},
		errs:   map[string]error{"SPY": errors.ErrBrokerUnavailable},
	}
	writer := &stubWriter{}

	w := newCollector(source, writer, &stubPublisher{}, []string{"SPY", "QQQ"})
	err := w.Run(context.Background())

	// the failing symbol surfaces in the run error but QQQ still lands
	require.Error(t, err)
	assert.Contains(t, writer.stored, "QQQ")
	assert.NotContains(t, writer.stored, "SPY")
	assert.Equal(t, []string{"SPY", "QQQ"}, source.calls)

	health := w.Health()
	assert.Equal(t, int64(1), health.ErrorCount)
}

func TestCollectorRun_EmptyChain(t *testing.T) {
	source := &stubSource{chains: map[string]*chain.RawChain{"SPY": {}}}
	w := newCollector(source, &stubWriter{}, &stubPublisher{}, []string{"SPY"})

	err := w.Run(context.Background())
	assert.ErrorIs(t, err, errors.ErrEmptyChain)
}

func TestSchedulerLifecycle(t *testing.T) {
	sched := NewScheduler()

	source := &stubSource{chains: map[string]*chain.RawChain{"SPY": smallChain()}}
	w := newCollector(source, &stubWriter{}, &stubPublisher{}, []string{"SPY"})
	sched.RegisterWorker(w)

	require.NoError(t, sched.Start(context.Background()))
	assert.True(t, sched.IsRunning())
	assert.Error(t, sched.Start(context.Background()))

	// the immediate first run fires before stop
	assert.Eventually(t, func() bool {
		return w.Health().RunCount > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sched.Stop())
	assert.False(t, sched.IsRunning())
	assert.Error(t, sched.Stop())
}

func TestSchedulerSkipsDisabledWorker(t *testing.T) {
	sched := NewScheduler()

	source := &stubSource{chains: map[string]*chain.RawChain{"SPY": smallChain()}}
	w := NewCollectorWorker(source, &stubWriter{}, chain.NewNormalizer(chain.DefaultParams()), nil, []string{"SPY"}, time.Hour, 6.0, false)
	sched.RegisterWorker(w)

	require.NoError(t, sched.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, sched.Stop())

	assert.Equal(t, int64(0), w.Health().RunCount)
}
