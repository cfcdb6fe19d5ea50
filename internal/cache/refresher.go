package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/gateway"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

// ErrRefreshInFlight is returned by RunOnce while another cycle runs.
var ErrRefreshInFlight = errors.New("refresh already in flight")

// RefreshState is the state of the refresh cycle.
type RefreshState int32

const (
	RefreshIdle RefreshState = iota
	RefreshInFlight
)

func (s RefreshState) String() string {
	if s == RefreshInFlight {
		return "in_flight"
	}
	return "idle"
}

// CycleResult summarizes one refresh cycle.
type CycleResult struct {
	Candidates int
	Refreshed  int
	Failed     int
	Duration   time.Duration
}

// RefresherStats is a point-in-time view of the refresher.
type RefresherStats struct {
	State         RefreshState
	Cycles        int64
	SkippedTicks  int64
	LastRefreshAt time.Time
	LastResult    CycleResult
}

// Refresher proactively refetches contextless entries near expiry.
// At most one cycle runs at a time; ticks arriving during a cycle are
// dropped.
type Refresher struct {
	store       *FlagStore
	gateway     gateway.Gateway
	interval    time.Duration
	window      time.Duration
	concurrency int
	logger      *slog.Logger
	telemetry   telemetry.Provider

	state   atomic.Int32
	cycles  atomic.Int64
	skipped atomic.Int64

	mu         sync.Mutex
	lastAt     time.Time
	lastResult CycleResult

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRefresher creates a stopped refresher.
func NewRefresher(store *FlagStore, gw gateway.Gateway, config Config, logger *slog.Logger, tp telemetry.Provider) *Refresher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Refresher{
		store:       store,
		gateway:     gw,
		interval:    config.RefreshInterval,
		window:      config.RefreshWindow,
		concurrency: config.RefreshConcurrency,
		logger:      logger,
		telemetry:   tp,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the ticker loop. It does nothing when the interval is zero.
func (r *Refresher) Start() {
	if r.interval <= 0 {
		return
	}
	r.wg.Add(1)
	go r.loop()
}

// Stop ends the loop and waits for an in-flight cycle. Pending fetches
// are cancelled. Stop is safe to call more than once.
func (r *Refresher) Stop() {
	r.once.Do(func() {
		r.cancel()
		r.wg.Wait()
	})
}

func (r *Refresher) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

// tick starts a cycle in the background unless one is already running.
func (r *Refresher) tick() {
	if !r.state.CompareAndSwap(int32(RefreshIdle), int32(RefreshInFlight)) {
		r.skipped.Add(1)
		r.logger.Debug("refresh tick skipped, previous cycle still running")
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.state.Store(int32(RefreshIdle))
		r.cycle(r.ctx)
	}()
}

// RunOnce runs a cycle synchronously.
func (r *Refresher) RunOnce(ctx context.Context) (CycleResult, error) {
	if !r.state.CompareAndSwap(int32(RefreshIdle), int32(RefreshInFlight)) {
		return CycleResult{}, ErrRefreshInFlight
	}
	defer r.state.Store(int32(RefreshIdle))

	return r.cycle(ctx), nil
}

func (r *Refresher) cycle(ctx context.Context) CycleResult {
	start := time.Now()
	keys := r.store.RefreshCandidates(r.window)

	var refreshed, failed atomic.Int64
	if len(keys) > 0 {
		var g errgroup.Group
		g.SetLimit(r.concurrency)

		for _, key := range keys {
			g.Go(func() error {
				if r.refreshKey(ctx, key) {
					refreshed.Add(1)
				} else {
					failed.Add(1)
				}
				// Each refetch settles independently.
				return nil
			})
		}
		_ = g.Wait()
	}

	result := CycleResult{
		Candidates: len(keys),
		Refreshed:  int(refreshed.Load()),
		Failed:     int(failed.Load()),
		Duration:   time.Since(start),
	}

	r.cycles.Add(1)
	r.mu.Lock()
	r.lastAt = start
	r.lastResult = result
	r.mu.Unlock()

	r.telemetry.RecordRefresh(ctx, result.Refreshed, result.Failed, result.Duration)
	if len(keys) > 0 {
		r.logger.Debug("refresh cycle completed",
			slog.Int("candidates", result.Candidates),
			slog.Int("refreshed", result.Refreshed),
			slog.Int("failed", result.Failed),
			slog.Duration("duration", result.Duration),
		)
	}

	return result
}

// refreshKey refetches one entry. Failed fetches leave the entry to
// expire naturally, and a key removed meanwhile is not re-added.
func (r *Refresher) refreshKey(ctx context.Context, key domain.CacheKey) bool {
	current := r.store.Debug(key)
	res := r.gateway.FetchFlag(ctx, key.Flag, key.Target, current.Value)
	if !res.Cacheable {
		return false
	}
	return r.store.Replace(key, res.Value)
}

// Stats returns refresher statistics.
func (r *Refresher) Stats() RefresherStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RefresherStats{
		State:         RefreshState(r.state.Load()),
		Cycles:        r.cycles.Load(),
		SkippedTicks:  r.skipped.Load(),
		LastRefreshAt: r.lastAt,
		LastResult:    r.lastResult,
	}
}
