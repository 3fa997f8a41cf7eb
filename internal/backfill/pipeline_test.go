package backfill

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

type fakeProvider struct {
	mu       sync.Mutex
	calls    int
	failures int // first N calls fail
}

func (p *fakeProvider) PlatformName() string { return "fake" }

func (p *fakeProvider) Klines(_ context.Context, market enum.Market, symbol, interval string, startMs, endMs int64, _ int) ([]model.Kline, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.calls <= p.failures {
		return nil, errors.New("transport down")
	}

	intervalSec, err := model.IntervalSeconds(interval)
	if err != nil {
		return nil, err
	}

	var klines []model.Kline
	for open := startMs; open <= endMs; open += intervalSec * 1000 {
		klines = append(klines, model.Kline{
			Exchange: p.PlatformName(),
			Market:   market,
			Symbol:   symbol,
			Interval: interval,
			OpenTime: open,
			Open:     1, High: 2, Low: 0.5, Close: 1.5, Volume: 10,
		})
	}

	return klines, nil
}

type fakeStore struct {
	mu   sync.Mutex
	bars map[int64]model.Kline
}

func newFakeStore() *fakeStore {
	return &fakeStore{bars: make(map[int64]model.Kline)}
}

func (s *fakeStore) UpsertKlines(_ context.Context, klines []model.Kline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range klines {
		s.bars[k.OpenTime] = k
	}

	return nil
}

func (s *fakeStore) CountKlines(_ context.Context, _ string, _ enum.Market, _, _ string, start, end int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for open := range s.bars {
		if open >= start && open <= end {
			count++
		}
	}

	return count, nil
}

func (s *fakeStore) KlineTimeBounds(_ context.Context, _ string, _ enum.Market, _, _ string, start, end int64) (int64, int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		minOpen, maxOpen int64
		found            bool
	)
	for open := range s.bars {
		if open < start || open > end {
			continue
		}
		if !found || open < minOpen {
			minOpen = open
		}
		if !found || open > maxOpen {
			maxOpen = open
		}
		found = true
	}

	return minOpen, maxOpen, found, nil
}

func testConfig() Config {
	return Config{
		Market:    enum.MarketSpot,
		Symbol:    "BTCUSDT",
		Interval:  "1d",
		StartTime: 1502928000,
		EndTime:   1503705600,
		Limit:     5,
	}
}

func TestPipelineBackfillsRange(t *testing.T) {
	provider := &fakeProvider{}
	store := newFakeStore()

	pipeline, err := NewPipeline(provider, store, testConfig())
	require.NoError(t, err)

	require.NoError(t, Wait(pipeline.Run(t.Context())))

	count, err := store.CountKlines(t.Context(), "fake", enum.MarketSpot, "BTCUSDT", "1d", 1502928000000, 1503705600000)
	require.NoError(t, err)
	assert.Equal(t, int64(10), count)
}

func TestPipelineStatusSequence(t *testing.T) {
	pipeline, err := NewPipeline(&fakeProvider{}, newFakeStore(), testConfig())
	require.NoError(t, err)

	var states []model.State
	for status := range pipeline.Run(t.Context()) {
		states = append(states, status.State)
	}

	assert.Equal(t, []model.State{
		model.StateInitializing,
		model.StateRunning,
		model.StateFinished,
	}, states)
}

func TestPipelineSkipsCompleteRange(t *testing.T) {
	provider := &fakeProvider{}
	store := newFakeStore()

	pipeline, err := NewPipeline(provider, store, testConfig())
	require.NoError(t, err)
	require.NoError(t, Wait(pipeline.Run(t.Context())))

	fetched := provider.calls

	var states []model.State
	for status := range pipeline.Run(t.Context()) {
		states = append(states, status.State)
	}

	assert.Equal(t, []model.State{model.StateInitializing, model.StateFinished}, states)
	assert.Equal(t, fetched, provider.calls, "complete range must not refetch")
}

func TestPipelineRetriesTransientFailure(t *testing.T) {
	provider := &fakeProvider{failures: 1}
	store := newFakeStore()

	pipeline, err := NewPipeline(provider, store, testConfig())
	require.NoError(t, err)

	require.NoError(t, Wait(pipeline.Run(t.Context())))
}

func TestPipelineFailsAfterExhaustedAttempts(t *testing.T) {
	provider := &fakeProvider{failures: 1000}
	store := newFakeStore()

	pipeline, err := NewPipeline(provider, store, testConfig())
	require.NoError(t, err)

	err = Wait(pipeline.Run(t.Context()))
	assert.ErrorIs(t, err, exception.ErrDataIncomplete)
}

func TestPipelineRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.StartTime = cfg.EndTime

	_, err := NewPipeline(&fakeProvider{}, newFakeStore(), cfg)
	assert.Error(t, err)

	_, err = NewPipeline(nil, newFakeStore(), testConfig())
	assert.ErrorIs(t, err, exception.ErrNilInstance)
}
