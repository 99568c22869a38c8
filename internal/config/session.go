package config

import "github.com/bytehotd/bytehotd/internal/session"

// ToSessionConfig translates the loaded ConfigurationPort into
// session.Config. Millisecond ints become time.Duration; fields
// session.Config doesn't expose through configuration (the class
// identity cache size, teardown grace period) are left zero so
// session.DefaultConfig's values apply.
func (c Config) ToSessionConfig() session.Config {
	roots := make([]session.WatchRoot, len(c.WatchRoots))
	for i, r := range c.WatchRoots {
		roots[i] = session.WatchRoot{Path: r.Path, Recursive: r.Recursive}
	}
	return session.Config{
		WatchRoots:           roots,
		Debounce:             c.Debounce(),
		IncludePatterns:      c.IncludePatterns,
		ExcludePatterns:      c.ExcludePatterns,
		AllowMethodAddition:  c.AllowMethodAddition,
		RedefineTimeout:      c.RedefineTimeout(),
		SnapshotRetention:    c.SnapshotRetention(),
		QuarantineErrorCount: c.QuarantineErrorCount,
		QuarantineWindow:     c.QuarantineWindow(),
		FrameworkHooks:       c.FrameworkHooks,
	}
}
