package classid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bytehotd/bytehotd/pkg/fingerprint"
)

func TestResolveParsesAndCaches(t *testing.T) {
	r, err := New(8)
	require.NoError(t, err)

	data := buildClass(t, "com/example/Widget", "java/lang/Object")
	fp := fingerprint.Of(data)

	name, err := r.Resolve(context.Background(), "Widget.class", data, fp)
	require.NoError(t, err)
	require.Equal(t, "com/example/Widget", name)

	cached, ok := r.Lookup("Widget.class")
	require.True(t, ok)
	require.Equal(t, "com/example/Widget", cached)
}

func TestResolveReusesCacheOnUnchangedFingerprint(t *testing.T) {
	r, err := New(8)
	require.NoError(t, err)

	data := buildClass(t, "com/example/Widget", "java/lang/Object")
	fp := fingerprint.Of(data)

	_, err = r.Resolve(context.Background(), "Widget.class", data, fp)
	require.NoError(t, err)

	// Corrupt the bytes but keep the same fingerprint key: if the
	// resolver actually re-parsed, this would fail to parse.
	name, err := r.Resolve(context.Background(), "Widget.class", []byte("not a class file"), fp)
	require.NoError(t, err)
	require.Equal(t, "com/example/Widget", name)
}

func TestForgetEvictsEntry(t *testing.T) {
	r, err := New(8)
	require.NoError(t, err)

	data := buildClass(t, "com/example/Widget", "java/lang/Object")
	fp := fingerprint.Of(data)
	_, err = r.Resolve(context.Background(), "Widget.class", data, fp)
	require.NoError(t, err)

	r.Forget("Widget.class")

	_, ok := r.Lookup("Widget.class")
	require.False(t, ok)
}

func TestResolveRejectsMalformedBytes(t *testing.T) {
	r, err := New(8)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "Bad.class", []byte("garbage"), "fp-1")
	require.Error(t, err)
}
