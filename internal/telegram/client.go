package telegram

import "context"

// Client is the outbound platform boundary. Every call may fail with a
// transport error; callers treat such failures as logged, non-fatal
// failures of that single operation.
type Client interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	KickMember(ctx context.Context, chatID int64, userID int64) error
	UnbanMember(ctx context.Context, chatID int64, userID int64) error
	GetChat(ctx context.Context, chatID int64) (Profile, error)
}
