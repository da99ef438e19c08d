package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	e := New(ErrKindPermissionDenied, "constraint view restricted")
	assert.Equal(t, "[permission_denied] constraint view restricted", e.Error())

	cause := errors.New("mssql: The SELECT permission was denied")
	wrapped := Wrap(ErrKindPermissionDenied, "constraint view restricted", cause)
	assert.Contains(t, wrapped.Error(), "permission_denied")
	assert.Contains(t, wrapped.Error(), cause.Error())
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("network unreachable")
	err := Wrap(ErrKindConnectionFailed, "dial failed", cause)

	require.ErrorIs(t, err, cause)

	// Kind survives an extra layer of fmt wrapping.
	outer := fmt.Errorf("acquiring handle: %w", err)
	assert.Equal(t, ErrKindConnectionFailed, Kind(outer))
	assert.True(t, IsConnectionFailed(outer))
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		kind ErrKind
		pred func(error) bool
	}{
		{ErrKindNotFound, IsNotFound},
		{ErrKindConnectionFailed, IsConnectionFailed},
		{ErrKindAuthFailed, IsAuthFailed},
		{ErrKindTimeout, IsTimeout},
		{ErrKindQueryFailed, IsQueryFailed},
		{ErrKindInvalidInput, IsInvalidInput},
		{ErrKindPermissionDenied, IsPermissionDenied},
		{ErrKindIncompatible, IsIncompatible},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.True(t, tt.pred(New(tt.kind, "boom")))
			assert.False(t, tt.pred(errors.New("plain error")))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrKindConnectionFailed, "x")))
	assert.True(t, IsFatal(New(ErrKindAuthFailed, "x")))
	assert.True(t, IsFatal(New(ErrKindTimeout, "x")))

	assert.False(t, IsFatal(New(ErrKindPermissionDenied, "x")))
	assert.False(t, IsFatal(New(ErrKindNotFound, "x")))
	assert.False(t, IsFatal(New(ErrKindIncompatible, "x")))
	assert.False(t, IsFatal(New(ErrKindQueryFailed, "x")))
	assert.False(t, IsFatal(nil))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, ErrKindUnknown, Kind(errors.New("nope")))
	assert.Equal(t, ErrKindUnknown, Kind(nil))
}
