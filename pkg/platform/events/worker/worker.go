package worker

import (
	"context"
	"log/slog"

	"attestry/pkg/platform/events"
)

// Worker drains the publisher's stream channel into a sink. Sink failures
// are logged and skipped: stream delivery is best-effort, the event store
// remains the record.
type Worker struct {
	sink   events.Sink
	inbox  <-chan events.Event
	logger *slog.Logger
}

func NewWorker(sink events.Sink, inbox <-chan events.Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Publish(ctx, event); err != nil {
				if w.logger != nil {
					w.logger.ErrorContext(ctx, "event sink publish failed",
						"kind", string(event.Kind),
						"account", event.Account.String(),
						"error", err.Error(),
					)
				}
			}
		}
	}
}
