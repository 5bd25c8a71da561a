// Package archive keeps persistable tasks in a durable store so that they run
// again after a restart.
//
// An Archiver is built in two phases: a Builder collects the store, the decoder
// Registry and the optional RecoveryManager, and Build refuses to produce an
// archiver without them. The archiver subscribes to the task manager's events:
// queued tasks are inserted, checkpoints replace the stored snapshot, and
// completed, skipped or self-cancelled tasks are removed. Failed tasks stay
// archived and are retried after the next restart.
//
// LoadAllTasks decodes every archived encoding. Encodings that fail ordinary
// decoding go through the recovery handlers; those that cannot be recovered
// either are deleted with a logged warning.
package archive
