// Package store defines the task archive storage contract shared by the
// memory, postgres and sqlite drivers, its error vocabulary, and the SQL
// transaction helper the postgres driver builds on.
package store
