package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "attestry/pkg/domain"
	"attestry/pkg/platform/events"
	eventsmemory "attestry/pkg/platform/events/store/memory"
	"attestry/pkg/requestcontext"
)

func TestEmit(t *testing.T) {
	ctx := context.Background()
	account := id.AccountID("acct-alice")

	t.Run("fills id, timestamp, and request id", func(t *testing.T) {
		store := eventsmemory.NewInMemoryStore()
		pub := events.NewPublisher(store)
		ctx := requestcontext.WithRequestID(ctx, "req-1")

		require.NoError(t, pub.Emit(ctx, events.Event{
			Kind:    events.KindIdentityCreated,
			Account: account,
			Name:    "Alice",
		}))

		recorded, err := pub.List(ctx, account)
		require.NoError(t, err)
		require.Len(t, recorded, 1)
		assert.NotEmpty(t, recorded[0].ID)
		assert.False(t, recorded[0].Timestamp.IsZero())
		assert.Equal(t, "req-1", recorded[0].RequestID)
		assert.Equal(t, "Alice", recorded[0].Name)
	})

	t.Run("preserves emission order per account", func(t *testing.T) {
		store := eventsmemory.NewInMemoryStore()
		pub := events.NewPublisher(store)

		kinds := []events.Kind{
			events.KindIdentityCreated,
			events.KindCredentialAdded,
			events.KindCredentialRevoked,
		}
		for _, kind := range kinds {
			require.NoError(t, pub.Emit(ctx, events.Event{Kind: kind, Account: account}))
		}

		recorded, err := pub.List(ctx, account)
		require.NoError(t, err)
		require.Len(t, recorded, len(kinds))
		for i, kind := range kinds {
			assert.Equal(t, kind, recorded[i].Kind)
		}
	})

	t.Run("store failures fail the emission", func(t *testing.T) {
		pub := events.NewPublisher(failingStore{})
		err := pub.Emit(ctx, events.Event{Kind: events.KindIdentityCreated, Account: account})
		assert.Error(t, err)
	})

	t.Run("stream overflow drops from the stream only", func(t *testing.T) {
		store := eventsmemory.NewInMemoryStore()
		pub := events.NewPublisher(store, events.WithStream(1))

		require.NoError(t, pub.Emit(ctx, events.Event{Kind: events.KindIdentityCreated, Account: account}))
		require.NoError(t, pub.Emit(ctx, events.Event{Kind: events.KindCredentialAdded, Account: account}))

		recorded, err := pub.List(ctx, account)
		require.NoError(t, err)
		assert.Len(t, recorded, 2, "the store must hold every event")

		select {
		case evt := <-pub.Stream():
			assert.Equal(t, events.KindIdentityCreated, evt.Kind)
		case <-time.After(time.Second):
			t.Fatal("expected one buffered stream event")
		}
		select {
		case evt := <-pub.Stream():
			t.Fatalf("expected the overflow event to be dropped, got %s", evt.Kind)
		default:
		}
	})
}

func TestStreamNilWithoutOption(t *testing.T) {
	pub := events.NewPublisher(eventsmemory.NewInMemoryStore())
	assert.Nil(t, pub.Stream())
}

type failingStore struct{}

func (failingStore) Append(context.Context, events.Event) error {
	return errors.New("append failed")
}

func (failingStore) ListByAccount(context.Context, id.AccountID) ([]events.Event, error) {
	return nil, errors.New("list failed")
}
