// Package connection holds the per-connection-cycle state that tasks
// synchronize against.
//
// A Controller is created for every connection attempt and discarded when the
// connection closes. Its milestones (connected, CSP authenticated, reflection
// queue dry) are independent Signals so that different waiters can await
// different milestones. Tasks acquire controllers through a Provider, which
// hands out the controller of the current cycle and re-acquires when the one a
// caller held was closed.
package connection
