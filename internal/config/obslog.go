package config

import "github.com/bytehotd/bytehotd/internal/obslog"

// ToObslogConfig translates the loaded log settings into obslog.Config.
func (c Config) ToObslogConfig() obslog.Config {
	return obslog.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		Output:     c.Log.Output,
		Filename:   c.Log.Filename,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}
