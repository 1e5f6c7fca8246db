package errors_test

import (
	"fmt"
	"testing"

	"github.com/jrsteele09/planb-provider/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapf(t *testing.T) {
	require.NoError(t, errors.Wrapf(nil, "realm %s", "/test"))

	err := errors.Wrapf(errors.ErrUnknownRealm, "realm %s", "/nope")
	require.EqualError(t, err, "realm /nope: unknown realm")
	require.True(t, errors.Is(err, errors.ErrUnknownRealm))
	require.False(t, errors.Is(err, errors.ErrInvalidRequest))
}

type storeError struct{ realm string }

func (e *storeError) Error() string { return "store down for " + e.realm }

func TestAs(t *testing.T) {
	err := fmt.Errorf("validate: %w", &storeError{realm: "/test"})

	var target *storeError
	require.True(t, errors.As(err, &target))
	require.Equal(t, "/test", target.realm)
}
