package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"

	"github.com/veilscan/fogstore/internal/config"
	"github.com/veilscan/fogstore/internal/database"
	"github.com/veilscan/fogstore/internal/database/dbpebble"
	"github.com/veilscan/fogstore/internal/database/dbsqlite"
	"github.com/veilscan/fogstore/internal/logging"
	"github.com/veilscan/fogstore/internal/server"
)

var (
	displayVersion bool
	Version        = "0.0.0"
)

func init() {
	flag.StringVar(
		&config.BaseDirectory,
		"datadir",
		config.DefaultBaseDirectory,
		"Set the base directory for fogstore. Default directory is ~/.fogstore",
	)
	flag.BoolVar(
		&displayVersion,
		"version",
		false,
		"show version of fogstore",
	)
	flag.Parse()

	if displayVersion {
		// we only need the version for this
		return
	}

	config.SetDirectories()

	err := os.Mkdir(config.BaseDirectory, 0750)
	if err != nil && !errors.Is(err, os.ErrExist) {
		logging.L.Fatal().Err(err).Msg("error creating base directory")
	}

	logging.L.Info().Msgf("base directory %s", config.BaseDirectory)

	// load after loggers are instantiated
	config.LoadConfigs(path.Join(config.BaseDirectory, config.ConfigFileName))

	if config.LogsPath != "" {
		err = logging.SetLogOutput(config.LogsPath, "fogstore.log", config.LogToConsole)
		if err != nil {
			logging.L.Fatal().Err(err).Msg("error setting log output")
		}
	}

	err = os.Mkdir(config.DBPath, 0750)
	if err != nil && !errors.Is(err, os.ErrExist) {
		logging.L.Fatal().Err(err).Msg("error creating db path")
	}
}

func main() {
	if displayVersion {
		fmt.Printf("fogstore %s\n", Version)
		return
	}
	defer logging.Close()

	store, err := openStore()
	if err != nil {
		logging.L.Fatal().Err(err).Msg("could not open store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.L.Err(err).Msg("error closing store")
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	go server.RunServer(server.NewApiHandler(store))
	logging.L.Info().Msgf("serving on %s", config.HTTPHost)

	<-interrupt
	logging.L.Info().Msg("program interrupted")
}

// openStore opens the configured backend. The server never migrates the
// sqlite schema itself; run `db migrate` first on a fresh data dir.
func openStore() (database.RecoveryDB, error) {
	switch config.Backend {
	case config.BackendSQLite:
		db, err := dbsqlite.OpenDB(filepath.Join(config.DBPath, "fogstore.db"))
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
