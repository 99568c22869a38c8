// Package integration exercises the production adapters (fsport,
// journalsink/sqlitestore, sysclock) wired into a real session, as
// opposed to internal/session's own tests which drive the in-memory
// ports.Fake* collaborators. The JVM side stays a ports.FakeInstrumentation:
// jvmtiport is an honest cgo-boundary stub with nothing to attach to
// in a test process (see internal/adapters/jvmtiport).
package integration

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bytehotd/bytehotd/internal/adapters/fsport"
	"github.com/bytehotd/bytehotd/internal/adapters/journalsink"
	"github.com/bytehotd/bytehotd/internal/adapters/sysclock"
	"github.com/bytehotd/bytehotd/internal/events"
	"github.com/bytehotd/bytehotd/internal/ports"
	"github.com/bytehotd/bytehotd/internal/session"
)

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations", "sqlite")
}

func TestHappyPathOverRealFilesystemAndSQLiteJournal(t *testing.T) {
	root := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	writer, closer, err := journalsink.Open(context.Background(), journalsink.Config{
		Driver:        journalsink.DriverSQLite,
		SQLitePath:    dbPath,
		MigrationsDir: migrationsDir(t),
	}, nil)
	require.NoError(t, err)
	defer closer.Close()

	fs := fsport.New(nil)
	clock := sysclock.New()
	inst := ports.NewFakeInstrumentation()

	className := "com/example/Greeter"
	path := filepath.Join(root, "Greeter.class")
	require.NoError(t, os.WriteFile(path, buildClass(className, nil, "v1"), 0o644))
	inst.LoadClass(className, buildClass(className, nil, "v1"))
	inst.AddInstance(className, "instance-1", nil)

	sess, err := session.New(inst, fs, writer, clock, session.Config{
		WatchRoots: []session.WatchRoot{{Path: root, Recursive: false}},
		Debounce:   20 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sess.Start(ctx))

	require.NoError(t, os.WriteFile(path, buildClass(className, nil, "v2"), 0o644))

	require.Eventually(t, func() bool {
		recs, err := writer.ReadFrom(context.Background(), 0)
		require.NoError(t, err)
		for _, rec := range recs {
			if event, ok := rec.(events.DomainEvent); ok && event.PayloadType == events.TypeRedefinitionSucceeded {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)

	sess.Shutdown("test complete")

	recs, err := writer.ReadFrom(context.Background(), 0)
	require.NoError(t, err)

	var kinds []events.PayloadType
	for _, rec := range recs {
		event := rec.(events.DomainEvent)
		kinds = append(kinds, event.PayloadType)
	}
	require.Contains(t, kinds, events.TypeFileChanged)
	require.Contains(t, kinds, events.TypeBytecodeValidated)
	require.Contains(t, kinds, events.TypeRedefinitionSucceeded)
	require.Contains(t, kinds, events.TypeInstancesUpdated)
}
