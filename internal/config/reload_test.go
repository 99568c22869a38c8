package config

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReloaderEmitsNewConfigOnWrite(t *testing.T) {
	path := writeConfigFile(t, `
watch_roots:
  - path: /srv/app/classes
debounce_ms: 200
`)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	reloaded := make(chan *Config, 1)
	r := NewReloader(path, logger, func(c *Config) { reloaded <- c }, WithDebounce(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Watch(ctx)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`
watch_roots:
  - path: /srv/app/classes
debounce_ms: 75
`), 0o644))

	select {
	case cfg := <-reloaded:
		require.Equal(t, 75, cfg.DebounceMS)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestReloaderKeepsPreviousConfigOnInvalidReload(t *testing.T) {
	path := writeConfigFile(t, `
watch_roots:
  - path: /srv/app/classes
`)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	invalid := make(chan error, 1)
	r := NewReloader(path, logger, func(*Config) {}, WithDebounce(10*time.Millisecond), WithInvalidHandler(func(err error) { invalid <- err }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Watch(ctx)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`debounce_ms: 50`), 0o644))

	select {
	case err := <-invalid:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for invalid-reload callback")
	}
}
