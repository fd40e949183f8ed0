// Package platform abstracts the chat platform the bot runs on. The
// engine and the bot service only ever see these contracts; the REST and
// in-memory implementations live alongside them.
package platform

import (
	"context"
	"errors"
	"time"
)

var ErrMessageNotFound = errors.New("message not found")

// File is a binary attachment delivered with a message.
type File struct {
	Name string
	Data []byte
}

// Payload is the message content handed to the platform. ApproveID, when
// set, asks the platform to render an approval control correlated to a
// held task.
type Payload struct {
	Content   string
	Files     []File
	Ephemeral bool
	ApproveID string
}

// MessageHandle refers to a message that has been sent to a channel.
type MessageHandle interface {
	ID() string
	Reply(ctx context.Context, p Payload) (MessageHandle, error)
}

// Channel is a destination messages can be sent to independently of any
// interaction token.
type Channel interface {
	ID() string
	Send(ctx context.Context, p Payload) (MessageHandle, error)
	Fetch(ctx context.Context, messageID string) (MessageHandle, error)

	// Restricted reports whether the channel is flagged for restricted
	// content. Non-default models are only allowed here.
	Restricted() bool
}

// ReplyContext is the originating interactive reply handle. Its edit
// token is only valid for a bounded window after CreatedAt; callers must
// fall back to Channel-level delivery once the window has closed.
type ReplyContext interface {
	CreatedAt() time.Time
	Reply(ctx context.Context, p Payload) (MessageHandle, error)
	EditReply(ctx context.Context, p Payload) (MessageHandle, error)
	FollowUp(ctx context.Context, p Payload) (MessageHandle, error)
	Channel() Channel
}
