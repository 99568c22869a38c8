// Command replay prints every event a durable journal recorded, in
// append order, for post-incident inspection (spec.md §4.2's replay
// contract: schema-version back-filled, correlation chains intact).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bytehotd/bytehotd/internal/adapters/journalsink"
	"github.com/bytehotd/bytehotd/internal/events"
)

func main() {
	var (
		driver        string
		sqlitePath    string
		postgresDSN   string
		migrationsDir string
		correlationID string
		className     string
	)

	root := &cobra.Command{
		Use:   "replay",
		Short: "Print every event recorded in a ByteHot journal, in append order",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			writer, closer, err := journalsink.Open(ctx, journalsink.Config{
				Driver:        journalsink.Driver(driver),
				SQLitePath:    sqlitePath,
				PostgresDSN:   postgresDSN,
				MigrationsDir: migrationsDir,
			}, nil)
			if err != nil {
				return fmt.Errorf("replay: open journal: %w", err)
			}
			defer closer.Close()

			var print func(events.DomainEvent) error = func(e events.DomainEvent) error {
				if correlationID != "" && e.CorrelationID != correlationID {
					return nil
				}
				if className != "" && e.AggregateID != className {
					return nil
				}
				enc, err := json.Marshal(e)
				if err != nil {
					return err
				}
				fmt.Println(string(enc))
				return nil
			}

			return writer.Replay(ctx, print)
		},
	}

	root.Flags().StringVar(&driver, "driver", "sqlite", "journal backend: memory, sqlite, or postgres")
	root.Flags().StringVar(&sqlitePath, "sqlite-path", "bytehot-journal.db", "path to the sqlite journal file")
	root.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "postgres connection string")
	root.Flags().StringVar(&migrationsDir, "migrations-dir", "migrations/sqlite", "goose migrations directory")
	root.Flags().StringVar(&correlationID, "correlation-id", "", "only print events sharing this correlation id")
	root.Flags().StringVar(&className, "class", "", "only print events for this class name")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
