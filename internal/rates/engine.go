package rates

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yanun0323/errors"

	"main/pkg/exception"
)

const (
	defaultCacheTTL         = 30 * time.Second
	defaultOutlierThreshold = 0.1
	defaultDecayFactor      = 0.9
	defaultExchangeWeight   = 1.0
)

// RateSource is one exchange's quote for a directed pair.
type RateSource struct {
	Rate     float64
	Datetime time.Time
}

// ExchangeRate is a fused result with provenance.
type ExchangeRate struct {
	Rate     float64
	Datetime time.Time
	Source   string
	Weight   float64
}

// Pair is a directed base/quote key. It is always maintained together
// with its inverse.
type Pair struct {
	Base  string
	Quote string
}

func (p Pair) inverse() Pair {
	return Pair{Base: p.Quote, Quote: p.Base}
}

func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// Option tunes the fusion behavior. Zero values fall back to defaults.
type Option struct {
	CacheTTL         time.Duration
	OutlierThreshold float64
	DecayFactor      float64 // weight multiplier per hour of staleness
	ExchangeWeights  map[string]float64
}

func (opt Option) withDefaults() Option {
	if opt.CacheTTL <= 0 {
		opt.CacheTTL = defaultCacheTTL
	}
	if opt.OutlierThreshold <= 0 {
		opt.OutlierThreshold = defaultOutlierThreshold
	}
	if opt.DecayFactor <= 0 {
		opt.DecayFactor = defaultDecayFactor
	}
	return opt
}

type cachedRate struct {
	rate     ExchangeRate
	cachedAt time.Time
}

// Engine fuses rate observations pushed by rate-source nodes into
// best-effort exchange rates. It is a pure in-memory fusion: queries
// never block on network calls. A single bad feed is tolerated through
// outlier rejection, fresher data is favored through decay weighting,
// and pairs with no direct market resolve through triangulation.
type Engine struct {
	mu            sync.Mutex
	opt           Option
	sources       map[Pair]map[string]RateSource
	cache         map[Pair]cachedRate
	intermediates map[string]struct{}
	clock         func() time.Time
}

// NewEngine creates an engine with the given options.
func NewEngine(opt Option) *Engine {
	return &Engine{
		opt:           opt.withDefaults(),
		sources:       make(map[Pair]map[string]RateSource),
		cache:         make(map[Pair]cachedRate),
		intermediates: make(map[string]struct{}),
		clock:         time.Now,
	}
}

// WithClock swaps the time source for deterministic tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	if clock != nil {
		e.clock = clock
	}
	return e
}

// UpdateRate stores an observation under (base, quote) and its
// reciprocal under (quote, base) atomically, then invalidates any
// cached merged rate the update could contribute to.
func (e *Engine) UpdateRate(base, quote string, rate float64, source string, at time.Time) error {
	if base == "" || quote == "" || source == "" {
		return errors.Wrapf(exception.ErrInvalidArgument, "base: %q, quote: %q, source: %q", base, quote, source)
	}
	if base == quote {
		return errors.Wrapf(exception.ErrInvalidArgument, "base equals quote: %s", base)
	}
	if rate <= 0 || math.IsInf(rate, 0) || math.IsNaN(rate) {
		return errors.Wrapf(exception.ErrInvalidArgument, "rate: %v", rate)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := Pair{Base: base, Quote: quote}
	e.store(p, source, RateSource{Rate: rate, Datetime: at})
	e.store(p.inverse(), source, RateSource{Rate: 1 / rate, Datetime: at})

	e.intermediates[base] = struct{}{}
	e.intermediates[quote] = struct{}{}

	e.invalidate(base, quote)

	return nil
}

func (e *Engine) store(p Pair, source string, src RateSource) {
	m, ok := e.sources[p]
	if !ok {
		m = make(map[string]RateSource)
		e.sources[p] = m
	}
	m[source] = src
}

// invalidate drops every cached rate touching either currency. Deeper
// triangulation chains that do not touch an endpoint age out via TTL.
func (e *Engine) invalidate(base, quote string) {
	for p := range e.cache {
		if p.Base == base || p.Quote == base || p.Base == quote || p.Quote == quote {
			delete(e.cache, p)
		}
	}
}

// GetRate returns the fused rate for (base, quote). The merge is always
// computed on the lexicographically canonical direction and inverted on
// the way out, so rate(A,B) == 1/rate(B,A) holds exactly.
func (e *Engine) GetRate(base, quote string) (ExchangeRate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.resolve(Pair{Base: base, Quote: quote}, map[string]struct{}{})
}

func (e *Engine) resolve(p Pair, visited map[string]struct{}) (ExchangeRate, bool) {
	if p.Base == p.Quote {
		return ExchangeRate{Rate: 1, Datetime: e.clock(), Source: "identity", Weight: defaultExchangeWeight}, true
	}

	if p.Base > p.Quote {
		rate, ok := e.resolveCanonical(p.inverse(), visited)
		if !ok {
			return ExchangeRate{}, false
		}
		rate.Rate = 1 / rate.Rate
		return rate, true
	}

	return e.resolveCanonical(p, visited)
}

func (e *Engine) resolveCanonical(p Pair, visited map[string]struct{}) (ExchangeRate, bool) {
	now := e.clock()

	if cached, ok := e.cache[p]; ok && now.Sub(cached.cachedAt) < e.opt.CacheTTL {
		return cached.rate, true
	}

	if merged, ok := e.mergeDirect(p, now); ok {
		e.cache[p] = cachedRate{rate: merged, cachedAt: now}
		return merged, true
	}

	if rate, ok := e.triangulate(p, visited); ok {
		e.cache[p] = cachedRate{rate: rate, cachedAt: now}
		return rate, true
	}

	return ExchangeRate{}, false
}

// mergeDirect fuses all sources of one directed pair: reject outliers
// against the leave-one-out mean, then weight the survivors by
// exchange weight times decay^hoursSinceObserved.
func (e *Engine) mergeDirect(p Pair, now time.Time) (ExchangeRate, bool) {
	srcs := e.sources[p]
	if len(srcs) == 0 {
		return ExchangeRate{}, false
	}

	names := make([]string, 0, len(srcs))
	var sum float64
	for name, src := range srcs {
		names = append(names, name)
		sum += src.Rate
	}
	sort.Strings(names)

	var (
		weightedSum float64
		totalWeight float64
		newest      time.Time
		kept        []string
	)

	for _, name := range names {
		src := srcs[name]

		if len(srcs) > 1 {
			othersMean := (sum - src.Rate) / float64(len(srcs)-1)
			if othersMean > 0 && math.Abs(src.Rate-othersMean)/othersMean >= e.opt.OutlierThreshold {
				continue
			}
		}

		weight := e.sourceWeight(name, src, now)
		weightedSum += src.Rate * weight
		totalWeight += weight
		kept = append(kept, name)
		if src.Datetime.After(newest) {
			newest = src.Datetime
		}
	}

	if totalWeight <= 0 {
		return ExchangeRate{}, false
	}

	return ExchangeRate{
		Rate:     weightedSum / totalWeight,
		Datetime: newest,
		Source:   strings.Join(kept, ","),
		Weight:   totalWeight,
	}, true
}

func (e *Engine) sourceWeight(name string, src RateSource, now time.Time) float64 {
	weight := defaultExchangeWeight
	if w, ok := e.opt.ExchangeWeights[name]; ok && w > 0 {
		weight = w
	}

	hours := now.Sub(src.Datetime).Hours()
	if hours > 0 {
		weight *= math.Pow(e.opt.DecayFactor, hours)
	}

	return weight
}

// triangulate resolves (base, X) and (X, quote) through every known
// intermediate currency and multiplies the first pair of legs that both
// resolve. Provenance is tagged as "src1->X->src2".
func (e *Engine) triangulate(p Pair, visited map[string]struct{}) (ExchangeRate, bool) {
	visited[p.Base] = struct{}{}
	visited[p.Quote] = struct{}{}

	inters := make([]string, 0, len(e.intermediates))
	for currency := range e.intermediates {
		if _, seen := visited[currency]; seen {
			continue
		}
		inters = append(inters, currency)
	}
	sort.Strings(inters)

	for _, x := range inters {
		left, ok := e.resolve(Pair{Base: p.Base, Quote: x}, visited)
		if !ok {
			continue
		}

		right, ok := e.resolve(Pair{Base: x, Quote: p.Quote}, visited)
		if !ok {
			continue
		}

		datetime := left.Datetime
		if right.Datetime.Before(datetime) {
			datetime = right.Datetime
		}

		return ExchangeRate{
			Rate:     left.Rate * right.Rate,
			Datetime: datetime,
			Source:   fmt.Sprintf("%s->%s->%s", left.Source, x, right.Source),
			Weight:   math.Min(left.Weight, right.Weight),
		}, true
	}

	return ExchangeRate{}, false
}

// ConvertAmount converts an amount between two currencies using the
// fused rate.
func (e *Engine) ConvertAmount(from, to string, amount float64) (float64, error) {
	if from == to {
		return amount, nil
	}

	rate, ok := e.GetRate(from, to)
	if !ok {
		return 0, errors.Wrapf(exception.ErrRateNotFound, "pair: %s/%s", from, to)
	}

	return amount * rate.Rate, nil
}

// CleanupExpired prunes sources and cache entries older than maxAge and
// rebuilds the intermediate-currency set from what remains.
func (e *Engine) CleanupExpired(maxAge time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.clock().Add(-maxAge)

	for p, srcs := range e.sources {
		for name, src := range srcs {
			if src.Datetime.Before(cutoff) {
				delete(srcs, name)
			}
		}
		if len(srcs) == 0 {
			delete(e.sources, p)
		}
	}

	for p, cached := range e.cache {
		if cached.cachedAt.Before(cutoff) {
			delete(e.cache, p)
		}
	}

	e.intermediates = make(map[string]struct{}, len(e.sources))
	for p := range e.sources {
		e.intermediates[p.Base] = struct{}{}
		e.intermediates[p.Quote] = struct{}{}
	}
}
