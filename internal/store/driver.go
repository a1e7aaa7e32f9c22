package store

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"
	"gwi.com/chat-memory/internal/utils"
)

const (
	driverName       = "sqlite3_memory"
	distanceFunction = "vec_distance_l2"
)

var registerOnce sync.Once

// registerDriver installs a sqlite3 driver whose connections carry the vector
// distance function and enforce foreign keys.
func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if err := conn.RegisterFunc(distanceFunction, squaredL2Blob, true); err != nil {
					return fmt.Errorf("failed to register %s: %w", distanceFunction, err)
				}
				if _, err := conn.Exec("PRAGMA foreign_keys = ON", nil); err != nil {
					return fmt.Errorf("failed to enable foreign keys: %w", err)
				}
				return nil
			},
		})
	})
}

// squaredL2Blob is the SQL-visible distance between two encoded vectors.
func squaredL2Blob(a, b []byte) (float64, error) {
	va, err := DecodeVector(a)
	if err != nil {
		return 0, err
	}
	vb, err := DecodeVector(b)
	if err != nil {
		return 0, err
	}
	return utils.SquaredL2Distance(va, vb)
}
