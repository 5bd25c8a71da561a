// Package logger sets up the process-wide slog logger and moves loggers and
// log attributes through contexts, so that code running inside a task logs
// with the identity of that task.
package logger
