// Package config loads the settings of the task daemon from defaults, an
// optional YAML file, TASKD_ environment variables and command-line flags,
// in increasing precedence, and validates them before anything starts.
package config
