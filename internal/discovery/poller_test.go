package discovery

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-swap-bot/internal/domain"
)

// scriptedSource returns results[i] on the i-th call, repeating the last.
type scriptedSource struct {
	mu      sync.Mutex
	results []sourceResult
	calls   int
}

type sourceResult struct {
	pools []domain.Pool
	err   error
}

func (s *scriptedSource) ListPools(context.Context) ([]domain.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.calls, len(s.results)-1)
	s.calls++
	return s.results[i].pools, s.results[i].err
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func pools(addrs ...string) []domain.Pool {
	out := make([]domain.Pool, len(addrs))
	for i, a := range addrs {
		out[i] = domain.NewPool(a, "Mint"+a, domain.WrappedSOLMint, "LP"+a, "BV"+a, "QV"+a)
	}
	return out
}

type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) cb(_ context.Context, p domain.Pool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, p.Address)
}

func (r *recorder) Seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func quietLogger() *log.Logger {
	return log.New(&bytes.Buffer{}, "", 0)
}

func TestMarketPoller_EmitsOnlyNewPoolsOnce(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{
		{pools: pools("A", "B")},
		{pools: pools("A", "B", "C")},
		{pools: pools("A", "B", "C")},
	}}
	p := NewMarketPoller(src, Options{Interval: 5 * time.Millisecond, Logger: quietLogger()})
	rec := &recorder{}

	require.NoError(t, p.Start(context.Background(), rec.cb))
	defer p.Stop()

	require.Eventually(t, func() bool { return src.Calls() >= 4 }, time.Second, time.Millisecond)
	p.Stop()

	assert.Equal(t, []string{"C"}, rec.Seen())
	assert.Equal(t, 3, p.KnownCount())
}

func TestMarketPoller_SeedFailureStaysIdle(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{{err: errors.New("rpc down")}}}
	p := NewMarketPoller(src, Options{Interval: time.Millisecond, Logger: quietLogger()})

	err := p.Start(context.Background(), (&recorder{}).cb)
	require.Error(t, err)
	assert.False(t, p.Listening())
	assert.Equal(t, 0, p.KnownCount())
}

func TestMarketPoller_TickErrorAddsNothingAndContinues(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{
		{pools: pools("A")},
		{pools: pools("A", "B"), err: errors.New("partial failure")},
		{pools: pools("A", "B")},
	}}
	p := NewMarketPoller(src, Options{Interval: 5 * time.Millisecond, Logger: quietLogger()})
	rec := &recorder{}

	require.NoError(t, p.Start(context.Background(), rec.cb))
	require.Eventually(t, func() bool { return len(rec.Seen()) == 1 }, time.Second, time.Millisecond)
	p.Stop()

	assert.Equal(t, []string{"B"}, rec.Seen())
}

func TestMarketPoller_StartTwiceIsNoop(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{{pools: pools("A")}}}
	var buf bytes.Buffer
	p := NewMarketPoller(src, Options{Interval: time.Hour, Logger: log.New(&buf, "", 0)})

	require.NoError(t, p.Start(context.Background(), (&recorder{}).cb))
	require.NoError(t, p.Start(context.Background(), (&recorder{}).cb))
	assert.Equal(t, 1, src.Calls())
	assert.Contains(t, buf.String(), "already listening")

	p.Stop()
	p.Stop()
	assert.False(t, p.Listening())
}

func TestMarketPoller_NoCallbackAfterStop(t *testing.T) {
	src := &growingSource{}
	p := NewMarketPoller(src, Options{Interval: time.Millisecond, Logger: quietLogger()})
	rec := &recorder{}

	require.NoError(t, p.Start(context.Background(), rec.cb))
	require.Eventually(t, func() bool { return len(rec.Seen()) > 2 }, time.Second, time.Millisecond)

	p.Stop()
	after := len(rec.Seen())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, len(rec.Seen()))
}

func TestMarketPoller_TriggerForcesPoll(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{
		{pools: pools("A")},
		{pools: pools("A", "B")},
	}}
	trigger := make(chan struct{}, 1)
	p := NewMarketPoller(src, Options{Interval: time.Hour, Logger: quietLogger(), Trigger: trigger})
	rec := &recorder{}

	require.NoError(t, p.Start(context.Background(), rec.cb))
	defer p.Stop()

	trigger <- struct{}{}
	require.Eventually(t, func() bool { return len(rec.Seen()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"B"}, rec.Seen())
}

func TestMarketPoller_ContextCancelEndsListening(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{{pools: pools("A")}}}
	p := NewMarketPoller(src, Options{Interval: time.Millisecond, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx, (&recorder{}).cb))
	cancel()

	require.Eventually(t, func() bool { return !p.Listening() }, time.Second, time.Millisecond)
	p.Stop()
}

// growingSource adds one pool per call.
type growingSource struct {
	mu sync.Mutex
	n  int
}

func (g *growingSource) ListPools(context.Context) ([]domain.Pool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	addrs := make([]string, g.n)
	for i := range addrs {
		addrs[i] = string(rune('A'+i%26)) + time.Duration(i).String()
	}
	return pools(addrs...), nil
}
