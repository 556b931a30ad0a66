package dbpebble

import (
	"github.com/cockroachdb/pebble"
)

// OpenDB opens the embedded pebble database at dbPath.
func OpenDB(dbPath string) (*pebble.DB, error) {
	opts := (&pebble.Options{}).EnsureDefaults()
	opts.Cache = pebble.NewCache(128 << 20)
	opts.BytesPerSync = 1 << 20

	return pebble.Open(dbPath, opts)
}
