package discovery

import (
	"context"
	"log"
	"strings"

	"solana-swap-bot/internal/observability"
	"solana-swap-bot/internal/solana"
)

// poolInitMarker appears in AMM v4 logs when a pool is created.
const poolInitMarker = "initialize2"

// LogTrigger turns pool-initialisation log notifications into poll
// wake-ups. It only reduces latency; the interval poll stays authoritative.
type LogTrigger struct {
	stream    solana.LogSubscriber
	programID string
	logger    *log.Logger
	ch        chan struct{}
}

// NewLogTrigger creates a trigger for programID (RaydiumAMMV4 when empty).
func NewLogTrigger(stream solana.LogSubscriber, programID string, logger *log.Logger) *LogTrigger {
	if programID == "" {
		programID = RaydiumAMMV4
	}
	if logger == nil {
		logger = log.Default()
	}
	return &LogTrigger{
		stream:    stream,
		programID: programID,
		logger:    logger,
		ch:        make(chan struct{}, 1),
	}
}

// C is passed as Options.Trigger.
func (t *LogTrigger) C() <-chan struct{} {
	return t.ch
}

// Run subscribes until ctx is done.
func (t *LogTrigger) Run(ctx context.Context) error {
	filter := solana.LogsFilter{Mentions: []string{t.programID}}
	return t.stream.Run(ctx, filter, t.handle)
}

func (t *LogTrigger) handle(n solana.LogNotification) {
	if n.Err != nil || !IsPoolInit(n.Logs) {
		return
	}
	observability.RecordPollTrigger()
	t.logger.Printf("pool init seen: tx=%s slot=%d", n.Signature, n.Slot)
	select {
	case t.ch <- struct{}{}:
	default:
	}
}

// IsPoolInit reports whether logs contain a pool initialisation instruction.
func IsPoolInit(logs []string) bool {
	for _, line := range logs {
		if strings.HasPrefix(line, "Program log:") && strings.Contains(line, poolInitMarker) {
			return true
		}
	}
	return false
}
