package solana

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ConfirmOptions bounds a confirmation wait.
type ConfirmOptions struct {
	Commitment   string
	Timeout      time.Duration
	PollInterval time.Duration
}

// DefaultConfirmOptions waits up to 60s for confirmed commitment.
func DefaultConfirmOptions() ConfirmOptions {
	return ConfirmOptions{
		Commitment:   CommitmentConfirmed,
		Timeout:      60 * time.Second,
		PollInterval: 2 * time.Second,
	}
}

// ConfirmTransaction polls the signature status until it reaches the
// requested commitment, fails on-chain, or the timeout expires. Expiry
// returns ErrConfirmTimeout; the transaction may still land later.
func ConfirmTransaction(ctx context.Context, rpc RPCClient, signature string, opts ConfirmOptions) (*SignatureStatus, error) {
	def := DefaultConfirmOptions()
	if opts.Commitment == "" {
		opts.Commitment = def.Commitment
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		statuses, err := rpc.GetSignatureStatuses(waitCtx, []string{signature})
		switch {
		case err != nil:
			lastErr = err
		case len(statuses) > 0 && statuses[0] != nil:
			status := statuses[0]
			if status.Err != nil {
				return status, fmt.Errorf("%w: %s: %v", ErrTransactionFailed, signature, status.Err)
			}
			if status.Reached(opts.Commitment) {
				return status, nil
			}
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if lastErr != nil && !errors.Is(lastErr, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s: %s (last error: %v)", ErrConfirmTimeout, opts.Timeout, signature, lastErr)
			}
			return nil, fmt.Errorf("%w after %s: %s", ErrConfirmTimeout, opts.Timeout, signature)
		case <-ticker.C:
		}
	}
}
