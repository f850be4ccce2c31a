package transport

import "context"

// ChatTarget addresses a chat (and optional forum topic thread).
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Adapter is the outbound message transport.
//
// Implementations must be safe for concurrent use: every sender job and the
// generation path share one adapter instance.
type Adapter interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error
	SendPhoto(ctx context.Context, to ChatTarget, image []byte, caption string) error

	Stop(ctx context.Context) error
}
