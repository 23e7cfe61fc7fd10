package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	id "attestry/pkg/domain"
	"attestry/pkg/requestcontext"
)

// Publisher records registry notifications. Emission is synchronous and
// fail-closed against the store: if the event cannot be appended, the
// mutation that produced it must fail. Stream delivery is non-blocking and
// best-effort so a slow broker never stalls a registry call.
type Publisher struct {
	store  Store
	logger *slog.Logger
	stream chan Event
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for dropped-event reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithStream attaches a buffered stream drained by a worker. Events that do
// not fit the buffer are dropped from the stream, never from the store.
func WithStream(buffer int) Option {
	return func(p *Publisher) {
		p.stream = make(chan Event, buffer)
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit appends an event to the store and offers it to the stream. The event
// ID and timestamp are filled in when absent; the request ID is taken from
// the context.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if err := p.store.Append(ctx, event); err != nil {
		return err
	}

	if p.stream != nil {
		select {
		case p.stream <- event:
		default:
			if p.logger != nil {
				p.logger.WarnContext(ctx, "event stream buffer full, dropping from stream",
					"kind", string(event.Kind),
					"account", event.Account.String(),
				)
			}
		}
	}
	return nil
}

// List returns the recorded events for an account in emission order.
func (p *Publisher) List(ctx context.Context, account id.AccountID) ([]Event, error) {
	return p.store.ListByAccount(ctx, account)
}

// Stream exposes the stream channel for a draining worker. Nil when the
// publisher was built without WithStream.
func (p *Publisher) Stream() <-chan Event {
	return p.stream
}
