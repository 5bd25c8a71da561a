// Package sqlite implements the task archive on an embedded SQLite database.
//
// It is the driver for single-node deployments: one database file, opened in
// WAL mode behind a fixed-size zombiezen connection pool.
package sqlite
