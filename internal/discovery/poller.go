// Package discovery detects newly listed AMM pools by polling the pool
// provider and diffing against the set of pools already seen.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"solana-swap-bot/internal/domain"
	"solana-swap-bot/internal/observability"
)

// DefaultInterval is the poll cadence.
const DefaultInterval = 10 * time.Second

// PoolSource lists every pool currently known to the provider.
type PoolSource interface {
	ListPools(ctx context.Context) ([]domain.Pool, error)
}

// Callback receives each newly observed pool exactly once.
type Callback func(ctx context.Context, pool domain.Pool)

// Options configures a MarketPoller.
type Options struct {
	Interval time.Duration // default DefaultInterval
	Logger   *log.Logger   // nil uses log.Default()
	// Trigger forces an immediate poll. Signals arriving while a poll is
	// running collapse into at most one follow-up poll.
	Trigger <-chan struct{}
}

// MarketPoller is an idle/listening state machine around a single poll
// goroutine. Polls never overlap and the known set only grows.
type MarketPoller struct {
	source   PoolSource
	interval time.Duration
	logger   *log.Logger
	trigger  <-chan struct{}

	mu        sync.Mutex // guards lifecycle fields
	listening bool
	cancel    context.CancelFunc
	done      chan struct{}

	knownMu sync.RWMutex
	known   map[string]struct{}
}

// NewMarketPoller creates an idle poller.
func NewMarketPoller(source PoolSource, opts Options) *MarketPoller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &MarketPoller{
		source:   source,
		interval: opts.Interval,
		logger:   opts.Logger,
		trigger:  opts.Trigger,
		known:    make(map[string]struct{}),
	}
}

// Start seeds the known set synchronously and then polls until Stop or ctx
// is done. Seeded pools never reach cb. Calling Start while listening logs
// and returns nil. A failed seed leaves the poller idle.
func (p *MarketPoller) Start(ctx context.Context, cb Callback) error {
	if cb == nil {
		return errors.New("discovery: nil callback")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.listening {
		p.logger.Printf("market poller already listening")
		return nil
	}

	start := time.Now()
	pools, err := p.source.ListPools(ctx)
	observability.RecordPoll(time.Since(start), 0, p.KnownCount(), err)
	if err != nil {
		return fmt.Errorf("seed pools: %w", err)
	}
	p.knownMu.Lock()
	for _, pool := range pools {
		p.known[pool.Address] = struct{}{}
	}
	seeded := len(p.known)
	p.knownMu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.listening = true
	p.cancel = cancel
	p.done = done

	go p.run(runCtx, done, cb)

	p.logger.Printf("market poller listening: known=%d interval=%s", seeded, p.interval)
	return nil
}

// Stop cancels polling and waits for the poll goroutine to exit, so no
// callback fires after it returns. Safe to call repeatedly.
func (p *MarketPoller) Stop() {
	p.mu.Lock()
	if !p.listening {
		p.mu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.listening = false
	p.mu.Unlock()

	cancel()
	<-done
	p.logger.Printf("market poller stopped")
}

// Listening reports whether the poll goroutine is active.
func (p *MarketPoller) Listening() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listening
}

// KnownCount returns the size of the known pool set.
func (p *MarketPoller) KnownCount() int {
	p.knownMu.RLock()
	defer p.knownMu.RUnlock()
	return len(p.known)
}

func (p *MarketPoller) run(ctx context.Context, done chan struct{}, cb Callback) {
	defer func() {
		p.mu.Lock()
		if p.done == done {
			p.listening = false
		}
		p.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-p.trigger:
		}
		p.poll(ctx, cb)
		p.drainTrigger()
	}
}

// drainTrigger drops at most one queued signal raised during the last poll.
func (p *MarketPoller) drainTrigger() {
	if p.trigger == nil {
		return
	}
	select {
	case <-p.trigger:
	default:
	}
}

// poll fetches the provider's pools and emits the ones not yet known. A
// failed fetch adds nothing.
func (p *MarketPoller) poll(ctx context.Context, cb Callback) {
	start := time.Now()
	pools, err := p.source.ListPools(ctx)
	if err != nil {
		observability.RecordPoll(time.Since(start), 0, p.KnownCount(), err)
		if ctx.Err() == nil {
			p.logger.Printf("poll pools failed: %v", err)
		}
		return
	}

	var fresh []domain.Pool
	p.knownMu.Lock()
	for _, pool := range pools {
		if _, ok := p.known[pool.Address]; ok {
			continue
		}
		p.known[pool.Address] = struct{}{}
		fresh = append(fresh, pool)
	}
	known := len(p.known)
	p.knownMu.Unlock()

	observability.RecordPoll(time.Since(start), len(fresh), known, nil)

	for _, pool := range fresh {
		if ctx.Err() != nil {
			return
		}
		p.logger.Printf("new pool: address=%s base=%s quote=%s", pool.Address, pool.BaseMint, pool.QuoteMint)
		cb(ctx, pool)
	}
}
