package dbsqlite

import (
	"database/sql"

	_ "modernc.org/sqlite" // driver

	"github.com/veilscan/fogstore/internal/config"
)

// OpenDB opens the sqlite database at path with the pragmas the store
// depends on: immediate transactions so every write txn takes the write
// lock up front, WAL for concurrent readers, and a busy timeout so a
// blocked writer waits instead of failing immediately.
func OpenDB(path string) (*sql.DB, error) {
	dsn := "file:" + path +
		"?_txlock=immediate" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(config.PoolSize)
	db.SetMaxIdleConns(config.PoolSize)
	db.SetConnMaxLifetime(0)

	return db, nil
}
