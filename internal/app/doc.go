// Package app provides the orchestration layer for lotwatch.
//
// # Overview
//
// This package wires together configuration, the indexer client, the
// lottery store, the signal bus and the consumers. It is the composition
// root: every dependency is created here and handed down.
//
// # Entry Points
//
//   - Run: terminal UI (blocks until the user quits or ctx ends)
//   - RunHeadless: polls without a terminal and logs every snapshot change
//   - DumpOnce: one fetch, printed as JSON
//   - Notify: publishes revalidate or optimistic patch events over NATS
//
// # Data Flow
//
//	┌──────────────┐
//	│   build()    │ Shared wiring
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()           TOML/YAML + .env + LOTWATCH_*
//	       ├─────> ledger.NewClient()      HTTP indexer client
//	       ├─────> signal.NewBus()         focus/visibility/revalidate/optimistic
//	       ├─────> serveMetrics()          optional Prometheus listener
//	       ├─────> signal.NewBridge()      optional NATS relay onto the bus
//	       └─────> syncstore.New()         the lottery store
//
// The store only polls while at least one consumer is started. The UI and
// the headless watcher each register as a consumer and unregister on exit,
// after which the store cancels in-flight work and goes dormant.
//
// # Error Handling
//
// Fatal errors (returned):
//   - invalid configuration
//   - metrics listener cannot bind
//   - NATS configured but unreachable
//
// Indexer failures are never fatal. They surface in the snapshot as a note
// and a failure count while the last good list stays visible.
package app
