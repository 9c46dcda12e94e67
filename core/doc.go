// Package core contains canonical payments domain contracts, entities, and
// configuration. Stores, transports, and reconciliation handlers depend on
// this package; core must not depend on storage or transport adapters.
package core
