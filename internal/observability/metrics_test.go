package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gathered returns the value of the named series whose labels include want.
func gathered(t *testing.T, name string, want map[string]string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue metrics
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func TestRecordPoll(t *testing.T) {
	before := gathered(t, "solana_swap_bot_discovery_pools_discovered_total", nil)
	errsBefore := gathered(t, "solana_swap_bot_discovery_poll_errors_total", nil)

	RecordPoll(10*time.Millisecond, 3, 42, nil)
	RecordPoll(10*time.Millisecond, 5, 0, errors.New("rpc down"))

	assert.Equal(t, before+3, gathered(t, "solana_swap_bot_discovery_pools_discovered_total", nil))
	assert.Equal(t, errsBefore+1, gathered(t, "solana_swap_bot_discovery_poll_errors_total", nil))
	assert.Equal(t, 42.0, gathered(t, "solana_swap_bot_discovery_known_pools", nil))
}

func TestSetBreakerState(t *testing.T) {
	labels := map[string]string{"name": "test"}
	trips := gathered(t, "solana_swap_bot_breaker_trips_total", labels)

	SetBreakerState("test", 1, true)
	assert.Equal(t, 1.0, gathered(t, "solana_swap_bot_breaker_state", labels))
	SetBreakerState("test", 2, false)
	assert.Equal(t, 2.0, gathered(t, "solana_swap_bot_breaker_state", labels))

	assert.Equal(t, trips+1, gathered(t, "solana_swap_bot_breaker_trips_total", labels))
}

func TestRecordNotification(t *testing.T) {
	labels := map[string]string{"kind": "trade", "status": "error"}
	before := gathered(t, "solana_swap_bot_notify_sent_total", labels)

	RecordNotification("trade", errors.New("telegram down"))
	RecordNotification("trade", nil)

	assert.Equal(t, before+1, gathered(t, "solana_swap_bot_notify_sent_total", labels))
}

func TestHandlerExposesNamespace(t *testing.T) {
	RecordRateLimited("quote")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `solana_swap_bot_ratelimit_denials_total{key="quote"}`)
}
