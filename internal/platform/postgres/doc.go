// Package postgres implements the task archive on PostgreSQL.
//
// Connections go through database/sql with the pgx driver. The schema is
// managed by goose migrations embedded in the binary.
package postgres
