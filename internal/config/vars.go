package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	ConfigFileName       string = "fogstore.toml"
	DefaultBaseDirectory string = "~/.fogstore"
)

// Storage backend selection.
const (
	BackendSQLite = "sqlite"
	BackendPebble = "pebble"
)

var (
	LogLevel     = "info"
	LogsPath     = ""
	LogToConsole = true
)

var (
	BaseDirectory = ""
	DBPath        = ""

	Backend = BackendSQLite

	HTTPHost = "127.0.0.1:8100"
)

// Pool and transaction tuning. PoolSize bounds the sql connection pool;
// a caller that cannot finish within TxTimeout fails transient and is
// expected to retry with backoff, at most RetryAttempts times.
var (
	PoolSize      = 4
	TxTimeout     = 10 * time.Second
	RetryAttempts = 5
)

// one has to call SetDirectories otherwise config.DBPath will be empty
func SetDirectories() {
	BaseDirectory = resolvePath(BaseDirectory)

	DBPath = filepath.Join(BaseDirectory, "data")
	LogsPath = filepath.Join(BaseDirectory, "logs")
}

func resolvePath(p string) string {
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
