// Package task manages sequential execution of asynchronous work.
// A Manager owns a FIFO Queue and a Runner that executes exactly one task at a
// time on a single actor goroutine. Tasks carry optional capabilities: a
// multi-device gate, a remote transaction and a persistable snapshot that the
// archive stores so unfinished work survives application restarts.
package task
