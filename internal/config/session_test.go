package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestToSessionConfigTranslatesFields(t *testing.T) {
	cfg := Config{
		WatchRoots:           []WatchRoot{{Path: "/srv/app/classes", Recursive: true}},
		DebounceMS:           250,
		AllowMethodAddition:  true,
		RedefineTimeoutMS:    6000,
		SnapshotRetentionMS:  90000,
		QuarantineErrorCount: 3,
		QuarantineWindowMS:   30000,
		IncludePatterns:      []string{"*.class"},
		ExcludePatterns:      []string{"*Test.class"},
		FrameworkHooks:       []string{"spring"},
	}

	sc := cfg.ToSessionConfig()

	require.Len(t, sc.WatchRoots, 1)
	require.Equal(t, "/srv/app/classes", sc.WatchRoots[0].Path)
	require.True(t, sc.WatchRoots[0].Recursive)
	require.Equal(t, 250*time.Millisecond, sc.Debounce)
	require.True(t, sc.AllowMethodAddition)
	require.Equal(t, 6*time.Second, sc.RedefineTimeout)
	require.Equal(t, 90*time.Second, sc.SnapshotRetention)
	require.Equal(t, 3, sc.QuarantineErrorCount)
	require.Equal(t, 30*time.Second, sc.QuarantineWindow)
	require.Equal(t, []string{"*.class"}, sc.IncludePatterns)
	require.Equal(t, []string{"*Test.class"}, sc.ExcludePatterns)
	require.Equal(t, []string{"spring"}, sc.FrameworkHooks)
}
