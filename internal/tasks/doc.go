// Package tasks contains the concrete tasks of the messaging client and the
// decoders and recovery handlers that bring their archived snapshots back.
//
// Every task takes its collaborators from a Services value. Snapshot types
// are frozen: a change to their JSON shape needs a recovery handler for the
// previous shape.
package tasks
