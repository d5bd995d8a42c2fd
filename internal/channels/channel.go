// Package channels defines the transport-agnostic messaging surface the
// orchestrator sends replies through and the per-transport implementations
// (internal/channels/telegram, ...) receive inbound turns on.
package channels

import "context"

// ChannelMessage is an inbound turn delivered by a transport.
type ChannelMessage struct {
	AgentID   string
	ChatID    string // transport-specific conversation identifier
	SenderID  string // transport-specific sender identifier
	Text      string
	MessageID string
}

// Attachment is a single outbound file reference, parsed from a
// "[KIND:target]" marker in the orchestrator's reply.
type Attachment struct {
	Kind   string
	Target string
}

// SendMessage is an outbound reply the orchestrator hands to a channel.
type SendMessage struct {
	ChatID      string
	Text        string
	Attachments []Attachment
}

// Handler processes one inbound ChannelMessage and returns the reply text.
// Implemented by the orchestrator; channels never compute replies
// themselves.
type Handler func(ctx context.Context, msg ChannelMessage) (string, error)

// Channel is a bidirectional transport: Listen blocks, feeding inbound
// messages to handler until ctx is canceled; Send delivers an outbound
// reply.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg SendMessage) error
	Listen(ctx context.Context, handler Handler) error
	HealthCheck(ctx context.Context) bool
}

// Registry tracks the set of running channels for graceful shutdown and
// health reporting.
type Registry struct {
	channels map[string]Channel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

func (r *Registry) Register(c Channel) {
	r.channels[c.Name()] = c
}

func (r *Registry) Get(name string) (Channel, bool) {
	c, ok := r.channels[name]
	return c, ok
}

func (r *Registry) All() []Channel {
	out := make([]Channel, 0, len(r.channels))
	for _, c := range r.channels {
		out = append(out, c)
	}
	return out
}
