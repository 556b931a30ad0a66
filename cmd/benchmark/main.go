package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/veilscan/fogstore/internal/benchmark"
	"github.com/veilscan/fogstore/internal/config"
	"github.com/veilscan/fogstore/internal/database"
	"github.com/veilscan/fogstore/internal/database/dbpebble"
	"github.com/veilscan/fogstore/internal/database/dbsqlite"
	"github.com/veilscan/fogstore/internal/logging"
)

func main() {
	var (
		backend  = flag.String("backend", config.BackendSQLite, "Storage backend: sqlite or pebble")
		datadir  = flag.String("datadir", "", "Data directory (default: a temp dir, removed afterwards)")
		blocks   = flag.Int("blocks", 1000, "Number of blocks to ingest")
		outputs  = flag.Int("outputs", 50, "Outputs per block")
		logLevel = flag.String("loglevel", "info", "Log level")
	)
	flag.Parse()

	if *logLevel == "debug" {
		logging.SetLogLevel(zerolog.DebugLevel)
	}

	dir := *datadir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "fogstore-bench-*")
		if err != nil {
			logging.L.Fatal().Err(err).Msg("could not create temp dir")
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	store, err := openStore(*backend, dir)
	if err != nil {
		logging.L.Fatal().Err(err).Msg("could not open store")
	}
	defer store.Close()

	if _, err := benchmark.Run(context.Background(), store, *blocks, *outputs); err != nil {
		logging.L.Fatal().Err(err).Msg("benchmark failed")
	}
}

func openStore(backend, dir string) (database.RecoveryDB, error) {
	switch backend {
	case config.BackendSQLite:
		db, err := dbsqlite.OpenDB(filepath.Join(dir, "bench.db"))
		if err != nil {
			return nil, err
		}
		if err := dbsqlite.Migrate(context.Background(), db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return dbsqlite.NewStore(db), nil
	case config.BackendPebble:
		db, err := dbpebble.OpenDB(filepath.Join(dir, "pebble"))
		if err != nil {
			return nil, err
		}
		return dbpebble.NewStore(db), nil
	}
	logging.L.Fatal().Str("backend", backend).Msg("backend undefined")
	return nil, nil
}
