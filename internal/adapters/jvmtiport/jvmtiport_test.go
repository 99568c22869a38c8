package jvmtiport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdapterReportsNoCapabilities(t *testing.T) {
	a := New()
	require.False(t, a.IsRedefineSupported())
	require.False(t, a.IsRetransformSupported())
}

func TestAdapterMethodsFailFastWithoutAttach(t *testing.T) {
	a := New()
	ctx := context.Background()

	_, err := a.LoadedClasses(ctx)
	require.True(t, errors.Is(err, ErrNativeAgentNotAttached))

	_, err = a.BytecodeOf(ctx, nil)
	require.True(t, errors.Is(err, ErrNativeAgentNotAttached))

	err = a.Redefine(ctx, nil, nil)
	require.True(t, errors.Is(err, ErrNativeAgentNotAttached))

	_, err = a.InstancesOf(ctx, nil)
	require.True(t, errors.Is(err, ErrNativeAgentNotAttached))

	_, err = a.FieldsOf(ctx, nil)
	require.True(t, errors.Is(err, ErrNativeAgentNotAttached))

	err = a.SetFields(ctx, nil, nil)
	require.True(t, errors.Is(err, ErrNativeAgentNotAttached))
}
