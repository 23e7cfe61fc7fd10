package worker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attestry/pkg/platform/events"
	"attestry/pkg/platform/events/worker"
)

type recordingSink struct {
	mu        sync.Mutex
	published []events.Event
	attempts  int
	fail      bool
}

func (s *recordingSink) Publish(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.fail {
		return errors.New("broker unavailable")
	}
	s.published = append(s.published, event)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

func (s *recordingSink) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func TestWorkerDrainsStream(t *testing.T) {
	sink := &recordingSink{}
	inbox := make(chan events.Event, 4)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- worker.NewWorker(sink, inbox, logger).Run(ctx)
	}()

	inbox <- events.Event{Kind: events.KindIdentityCreated, Account: "acct-alice"}
	inbox <- events.Event{Kind: events.KindCredentialAdded, Account: "acct-alice"}

	require.Eventually(t, func() bool { return sink.count() == 2 },
		time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancellation")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, events.KindIdentityCreated, sink.published[0].Kind)
	assert.Equal(t, events.KindCredentialAdded, sink.published[1].Kind)
}

func TestWorkerSurvivesSinkFailures(t *testing.T) {
	sink := &recordingSink{fail: true}
	inbox := make(chan events.Event, 4)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = worker.NewWorker(sink, inbox, logger).Run(ctx)
	}()

	inbox <- events.Event{Kind: events.KindIdentityCreated, Account: "acct-alice"}
	require.Eventually(t, func() bool { return sink.attemptCount() == 1 },
		time.Second, 10*time.Millisecond)

	// The failing publish must not stop the loop.
	sink.mu.Lock()
	sink.fail = false
	sink.mu.Unlock()
	inbox <- events.Event{Kind: events.KindCredentialAdded, Account: "acct-alice"}

	require.Eventually(t, func() bool { return sink.count() == 1 },
		time.Second, 10*time.Millisecond)
	assert.Equal(t, events.KindCredentialAdded, sink.published[0].Kind)
}
