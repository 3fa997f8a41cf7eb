package backfill

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

const (
	defaultLimit       = 1000
	defaultMaxAttempts = 3
)

// KlineProvider fetches one page of bars from the exchange collaborator.
type KlineProvider interface {
	PlatformName() string
	Klines(ctx context.Context, market enum.Market, symbol, interval string, startMs, endMs int64, limit int) ([]model.Kline, error)
}

// KlineStore is the persistence surface the pipeline needs.
type KlineStore interface {
	UpsertKlines(ctx context.Context, klines []model.Kline) error
	CountKlines(ctx context.Context, exchange string, market enum.Market, symbol, interval string, start, end int64) (int64, error)
	KlineTimeBounds(ctx context.Context, exchange string, market enum.Market, symbol, interval string, start, end int64) (minOpen, maxOpen int64, ok bool, err error)
}

// Config describes one backfill range. Times are unix seconds.
type Config struct {
	Market      enum.Market
	Symbol      string
	Interval    string
	StartTime   int64
	EndTime     int64
	Limit       int // exchange page-size cap, default 1000
	MaxAttempts int // default 3
}

func (c Config) withDefaults() Config {
	if c.Limit <= 0 {
		c.Limit = defaultLimit
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	return c
}

// Validate checks if the config is usable.
func (c Config) Validate() error {
	if !c.Market.IsAvailable() {
		return errors.Wrapf(exception.ErrInvalidArgument, "market: %d", c.Market)
	}
	if c.Symbol == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "symbol is empty")
	}
	if _, err := model.IntervalSeconds(c.Interval); err != nil {
		return err
	}
	if c.StartTime >= c.EndTime {
		return errors.Wrapf(exception.ErrInvalidArgument, "start %d must be before end %d", c.StartTime, c.EndTime)
	}
	return nil
}

// Pipeline guarantees historical completeness of one kline range before
// any node starts consuming it.
type Pipeline struct {
	provider KlineProvider
	store    KlineStore
	cfg      Config
}

// NewPipeline validates the config and creates a pipeline.
func NewPipeline(provider KlineProvider, store KlineStore, cfg Config) (*Pipeline, error) {
	if provider == nil || store == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "backfill provider/store")
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Pipeline{provider: provider, store: store, cfg: cfg}, nil
}

// Run streams the pipeline status sequence:
// initializing -> running -> finished/failed. The channel is closed
// after the terminal status; errors never panic the spawned task.
func (p *Pipeline) Run(ctx context.Context) <-chan model.Status {
	out := make(chan model.Status, 4)

	go func() {
		defer close(out)

		out <- model.StatusInitializing()

		done, err := p.completed(ctx)
		if err != nil {
			out <- model.StatusFailed(err.Error())
			return
		}
		if done {
			out <- model.StatusFinished()
			return
		}

		out <- model.StatusRunning()

		if err := p.backfill(ctx); err != nil {
			out <- model.StatusFailed(err.Error())
			return
		}

		out <- model.StatusFinished()
	}()

	return out
}

// Wait drains a status stream and converts a terminal failure into an
// error.
func Wait(statuses <-chan model.Status) error {
	for status := range statuses {
		if status.State == model.StateFailed {
			return errors.Wrapf(exception.ErrDataIncomplete, "backfill failed: %s", status.Reason)
		}
	}

	return nil
}

// backfill loops fetch attempts. Every attempt restarts from the
// chunking step: a partial success is still completeness-checked, so
// already stored bars are never fetched twice.
func (p *Pipeline) backfill(ctx context.Context) error {
	var lastErr error

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		done, err := p.completed(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if err := p.fetchRange(ctx); err != nil {
			lastErr = err
			logs.Warnf("backfill attempt %d/%d failed, symbol: %s, err: %+v",
				attempt, p.cfg.MaxAttempts, p.cfg.Symbol, err)
			continue
		}
	}

	done, err := p.completed(ctx)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	return errors.Wrapf(exception.ErrDataIncomplete, "symbol: %s, interval: %s, attempts: %d, last err: %v",
		p.cfg.Symbol, p.cfg.Interval, p.cfg.MaxAttempts, lastErr)
}

// completed reports whether the stored range already matches the
// analytically expected bar count. The min/max open-time bounds are
// verified too: a count match alone would misdiagnose duplicate or
// shifted bars as complete.
func (p *Pipeline) completed(ctx context.Context) (bool, error) {
	expected, err := ExpectedBars(p.cfg.Interval, p.cfg.StartTime, p.cfg.EndTime)
	if err != nil {
		return false, err
	}

	var (
		exchange = p.provider.PlatformName()
		startMs  = p.cfg.StartTime * 1000
		endMs    = p.cfg.EndTime * 1000
	)

	count, err := p.store.CountKlines(ctx, exchange, p.cfg.Market, p.cfg.Symbol, p.cfg.Interval, startMs, endMs)
	if err != nil {
		return false, errors.Wrap(err, "count klines")
	}

	if count != expected {
		return false, nil
	}

	minOpen, maxOpen, ok, err := p.store.KlineTimeBounds(ctx, exchange, p.cfg.Market, p.cfg.Symbol, p.cfg.Interval, startMs, endMs)
	if err != nil {
		return false, errors.Wrap(err, "kline time bounds")
	}
	if !ok {
		return false, nil
	}

	intervalSec, err := model.IntervalSeconds(p.cfg.Interval)
	if err != nil {
		return false, err
	}

	return minOpen == startMs && maxOpen == startMs+(expected-1)*intervalSec*1000, nil
}

func (p *Pipeline) fetchRange(ctx context.Context) error {
	chunks, err := Group(p.cfg.Interval, p.cfg.StartTime, p.cfg.EndTime, p.cfg.Limit)
	if err != nil {
		return err
	}

	for _, chunk := range chunks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		klines, err := p.provider.Klines(ctx, p.cfg.Market, p.cfg.Symbol, p.cfg.Interval, chunk.Start, chunk.End, p.cfg.Limit)
		if err != nil {
			return errors.Wrapf(err, "fetch chunk [%d, %d]", chunk.Start, chunk.End)
		}

		if err := p.store.UpsertKlines(ctx, klines); err != nil {
			return errors.Wrapf(err, "upsert chunk [%d, %d]", chunk.Start, chunk.End)
		}
	}

	return nil
}
