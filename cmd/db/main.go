package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/veilscan/fogstore/internal/config"
	"github.com/veilscan/fogstore/internal/database"
	"github.com/veilscan/fogstore/internal/database/dbpebble"
	"github.com/veilscan/fogstore/internal/database/dbsqlite"
	"github.com/veilscan/fogstore/internal/logging"
)

var (
	Version = "0.0.0"

	// Global flags
	datadir    string
	configFile string
)

func init() {
	rootCmd.PersistentFlags().StringVar(
		&datadir,
		"datadir",
		config.DefaultBaseDirectory,
		"Set the base directory for fogstore. Default directory is ~/.fogstore",
	)
	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Path to config file (default: datadir/fogstore.toml)",
	)
}

var rootCmd = &cobra.Command{
	Use:   "db",
	Short: "Fogstore database maintenance tool",
	Long: `Maintenance commands for the fogstore recovery database: apply schema
migrations, inspect the schema version and list ingress keys with their
ingestion progress. Migrations only apply to the sqlite backend.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.BaseDirectory = datadir
		config.SetDirectories()

		if configFile == "" {
			configFile = path.Join(config.BaseDirectory, config.ConfigFileName)
		}
		config.LoadConfigs(configFile)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.Backend != config.BackendSQLite {
			fmt.Println("pebble backend has no schema migrations, nothing to do")
			return nil
		}
		if err := os.MkdirAll(config.DBPath, 0750); err != nil {
			return err
		}
		db, err := dbsqlite.OpenDB(sqlitePath())
		if err != nil {
			return fmt.Errorf("error opening database: %w", err)
		}
		defer db.Close()

		ctx := cmd.Context()
		before, err := dbsqlite.SchemaVersion(ctx, db)
		if err != nil {
			return err
		}
		if err := dbsqlite.Migrate(ctx, db); err != nil {
			return fmt.Errorf("error migrating: %w", err)
		}
		after, err := dbsqlite.SchemaVersion(ctx, db)
		if err != nil {
			return err
		}
		fmt.Printf("schema version %d -> %d\n", before, after)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "schema-version",
	Short: "Show the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.Backend != config.BackendSQLite {
			fmt.Println("pebble backend is unversioned")
			return nil
		}
		db, err := dbsqlite.OpenDB(sqlitePath())
		if err != nil {
			return fmt.Errorf("error opening database: %w", err)
		}
		defer db.Close()

		v, err := dbsqlite.SchemaVersion(cmd.Context(), db)
		if err != nil {
			return err
		}
		fmt.Printf("schema version %d\n", v)
		return nil
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List ingress keys with their ingestion progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return fmt.Errorf("error opening database: %w", err)
		}
		defer store.Close()

		ctx := cmd.Context()
		keys, err := store.ListIngressKeys(ctx)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			fmt.Println("no ingress keys registered")
			return nil
		}
		for _, k := range keys {
			r, err := store.GetBlockRange(ctx, k.Key)
			if err != nil {
				return err
			}
			state := "active"
			if k.Decommissioned {
				state = "decommissioned"
			}
			fmt.Printf("%s  start=%d  %s", hex.EncodeToString(k.Key), k.StartBlock, state)
			if r.Ingested {
				fmt.Printf("  high_water=%d  gaps=%d", r.HighWater, len(r.Gaps))
			} else {
				fmt.Printf("  no blocks ingested")
			}
			fmt.Println()
		}
		return nil
	},
}

func sqlitePath() string {
	return filepath.Join(config.DBPath, "fogstore.db")
}

func openStore() (database.RecoveryDB, error) {
	switch config.Backend {
	case config.BackendSQLite:
		db, err := dbsqlite.OpenDB(sqlitePath())
		if err != nil {
			return nil, err
		}
		if err := dbsqlite.CheckSchema(context.Background(), db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return dbsqlite.NewStore(db), nil
	case config.BackendPebble:
		db, err := dbpebble.OpenDB(filepath.Join(config.DBPath, "pebble"))
		if err != nil {
			return nil, err
		}
		return dbpebble.NewStore(db), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", config.Backend)
	}
}

func main() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(keysCmd)

	if err := rootCmd.Execute(); err != nil {
		logging.L.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
