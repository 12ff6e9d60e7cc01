package solana

import "context"

// LogSubscriber streams program log notifications.
type LogSubscriber interface {
	// Run delivers notifications matching filter to handler until ctx is
	// done. Implementations reconnect on their own.
	Run(ctx context.Context, filter LogsFilter, handler func(LogNotification)) error
}

// LogsFilter defines subscription filter for logs.
type LogsFilter struct {
	// Mentions filters logs that mention any of these program IDs.
	Mentions []string
}

// LogNotification represents a logs subscription message.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{}
}
