package platform

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryChannel records sent messages. It backs the mock platform mode
// and the engine/bot tests.
type InMemoryChannel struct {
	mu         sync.Mutex
	id         string
	restricted bool
	messages   []*InMemoryMessage
}

func NewInMemoryChannel(restricted bool) *InMemoryChannel {
	return &InMemoryChannel{id: uuid.NewString(), restricted: restricted}
}

func (c *InMemoryChannel) ID() string       { return c.id }
func (c *InMemoryChannel) Restricted() bool { return c.restricted }

func (c *InMemoryChannel) Send(_ context.Context, p Payload) (MessageHandle, error) {
	return c.record(p, ""), nil
}

func (c *InMemoryChannel) Fetch(_ context.Context, messageID string) (MessageHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.messages {
		if m.id == messageID {
			return m, nil
		}
	}
	return nil, ErrMessageNotFound
}

// Messages returns a snapshot of everything sent so far.
func (c *InMemoryChannel) Messages() []*InMemoryMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*InMemoryMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *InMemoryChannel) record(p Payload, replyTo string) *InMemoryMessage {
	m := &InMemoryMessage{id: uuid.NewString(), channel: c, Payload: p, ReplyTo: replyTo}
	c.mu.Lock()
	c.messages = append(c.messages, m)
	c.mu.Unlock()
	return m
}

// InMemoryMessage is a sent message plus its threading parent, if any.
type InMemoryMessage struct {
	id      string
	channel *InMemoryChannel

	Payload Payload
	ReplyTo string
}

func (m *InMemoryMessage) ID() string { return m.id }

func (m *InMemoryMessage) Reply(_ context.Context, p Payload) (MessageHandle, error) {
	return m.channel.record(p, m.id), nil
}

// InMemoryInteraction implements ReplyContext against an InMemoryChannel.
// CreatedAt is caller-controlled so reply-window behavior is observable.
type InMemoryInteraction struct {
	mu        sync.Mutex
	createdAt time.Time
	channel   *InMemoryChannel
	reply     *InMemoryMessage
	edits     []Payload
	followUps []Payload
}

func NewInMemoryInteraction(ch *InMemoryChannel, createdAt time.Time) *InMemoryInteraction {
	return &InMemoryInteraction{createdAt: createdAt, channel: ch}
}

func (i *InMemoryInteraction) CreatedAt() time.Time { return i.createdAt }
func (i *InMemoryInteraction) Channel() Channel {
	if i.channel == nil {
		return nil
	}
	return i.channel
}

func (i *InMemoryInteraction) Reply(_ context.Context, p Payload) (MessageHandle, error) {
	m := i.channel.record(p, "")
	i.mu.Lock()
	i.reply = m
	i.mu.Unlock()
	return m, nil
}

func (i *InMemoryInteraction) EditReply(_ context.Context, p Payload) (MessageHandle, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.edits = append(i.edits, p)
	if i.reply == nil {
		i.reply = i.channel.record(p, "")
		return i.reply, nil
	}
	i.reply.Payload = p
	return i.reply, nil
}

func (i *InMemoryInteraction) FollowUp(_ context.Context, p Payload) (MessageHandle, error) {
	i.mu.Lock()
	i.followUps = append(i.followUps, p)
	i.mu.Unlock()
	return i.channel.record(p, ""), nil
}

// Edits returns every payload passed to EditReply, in order.
func (i *InMemoryInteraction) Edits() []Payload {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]Payload, len(i.edits))
	copy(out, i.edits)
	return out
}

// FollowUps returns every payload passed to FollowUp, in order.
func (i *InMemoryInteraction) FollowUps() []Payload {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]Payload, len(i.followUps))
	copy(out, i.followUps)
	return out
}
