// Package api serves the read-only admin endpoints of the task daemon:
// health, the state of the task queue and the contents of the task archive.
package api
