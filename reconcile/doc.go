// Package reconcile turns provider events into customer and order changes.
//
// Every handler runs inside the caller's unit of work and is safe to apply
// more than once: identifiers are fill-once, metadata is merged, and status
// follows the last applied event.
package reconcile
