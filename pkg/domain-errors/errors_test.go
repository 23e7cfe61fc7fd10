package domainerrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "attestry/pkg/domain-errors"
)

func TestNew(t *testing.T) {
	err := dErrors.New(dErrors.CodeNotFound, "no identity exists for account")
	assert.EqualError(t, err, "not_found: no identity exists for account")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	assert.False(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestWrap(t *testing.T) {
	t.Run("nil cause yields nil", func(t *testing.T) {
		assert.NoError(t, dErrors.Wrap(nil, dErrors.CodeInternal, "ignored"))
	})

	t.Run("cause stays reachable through errors.Is", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := dErrors.Wrap(cause, dErrors.CodeInternal, "identity store failure")
		require.Error(t, err)
		assert.True(t, errors.Is(err, cause))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestHasCode(t *testing.T) {
	inner := dErrors.New(dErrors.CodeNotFound, "missing")
	outer := dErrors.Wrap(inner, dErrors.CodeInternal, "lookup failed")

	assert.True(t, dErrors.HasCode(outer, dErrors.CodeInternal))
	assert.True(t, dErrors.HasCode(outer, dErrors.CodeNotFound), "codes deeper in the chain must match")
	assert.False(t, dErrors.HasCode(outer, dErrors.CodeUnauthorized))
	assert.False(t, dErrors.HasCode(nil, dErrors.CodeInternal))
	assert.False(t, dErrors.HasCode(errors.New("plain"), dErrors.CodeInternal))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(dErrors.New(dErrors.CodeConflict, "dup")))
	assert.Equal(t, dErrors.CodeInternal, dErrors.CodeOf(errors.New("plain")))

	// fmt wrapping must not hide the code.
	wrapped := fmt.Errorf("handler: %w", dErrors.New(dErrors.CodeOutOfRange, "index past end"))
	assert.Equal(t, dErrors.CodeOutOfRange, dErrors.CodeOf(wrapped))
	assert.True(t, dErrors.Is(wrapped, dErrors.CodeOutOfRange))
}
