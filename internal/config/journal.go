package config

import "github.com/bytehotd/bytehotd/internal/adapters/journalsink"

// ToJournalConfig translates the loaded journal settings into
// journalsink.Config.
func (c Config) ToJournalConfig() journalsink.Config {
	return journalsink.Config{
		Driver:        journalsink.Driver(c.Journal.Driver),
		SQLitePath:    c.Journal.SQLitePath,
		PostgresDSN:   c.Journal.PostgresDSN,
		MigrationsDir: c.Journal.MigrationsDir,
	}
}
