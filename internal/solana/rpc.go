package solana

import (
	"context"
	"errors"
)

// Errors returned by the RPC client.
var (
	ErrConfirmTimeout    = errors.New("transaction confirmation timed out")
	ErrTransactionFailed = errors.New("transaction failed on-chain")
	ErrAccountNotFound   = errors.New("account not found")

	ErrBlockTimeUnavailable = errors.New("block time unavailable")
)

// RPCClient is the subset of Solana JSON-RPC the bot uses.
type RPCClient interface {
	// GetHealth returns nil when the node reports itself healthy.
	GetHealth(ctx context.Context) error

	// GetProgramAccounts lists accounts owned by program that match opts.
	GetProgramAccounts(ctx context.Context, program string, opts *ProgramAccountsOpts) ([]ProgramAccount, error)

	// GetAccountInfo retrieves an account. Returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetTokenAccountBalance returns the balance of an SPL token account.
	GetTokenAccountBalance(ctx context.Context, account string) (*TokenAmount, error)

	// SendTransaction submits a signed, serialized transaction and returns its signature.
	SendTransaction(ctx context.Context, tx []byte) (string, error)

	// GetSignatureStatuses looks up the status of each signature. Unknown
	// signatures yield nil entries.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)
}
