// Package syncstore keeps a shared, always-fresh snapshot of remote entities
// for any number of UI consumers.
//
// # Overview
//
// A Store owns one entity kind (lotteries, for example). Consumers attach with
// Start, read with Snapshot and are told about changes through Subscribe. The
// store decides when to talk to the indexer: it polls at the shortest interval
// any consumer asked for (clamped to protective floors), backs off after
// failures, folds bursts of revalidation requests into single fetches, and
// applies optimistic patches locally while the ledger catches up.
//
// # Lifecycle
//
//	stop := store.Start("table", 20*time.Second)  // 0→1: attach signals, fetch now
//	defer stop()                                   // 1→0: cancel fetch, clear timers, detach
//
// A store with no consumers is dormant: no timers, no goroutines, no fetches.
//
// # Scheduling
//
// Exactly one poll timer is armed while active. Its delay is the largest of:
//
//   - the remaining backoff window
//   - the remaining throttle window (including a server Retry-After hint)
//   - the poll interval: max(ForegroundFloor, min requested), or
//     max(BackgroundFloor, that) while hidden
//
// # Single flight
//
// At most one fetch is outstanding. Requests arriving during a fetch set a
// pending flag; when the fetch ends one follow-up fetch runs (unless a backoff
// window just opened, in which case the normal schedule takes over). Every
// fetch carries a generation number; a fetch that was aborted or outlived the
// last consumer is discarded without touching state or backoff.
//
// # Change detection
//
// Each successful fetch is reduced to a structural signature built from the
// Schema's ID and Signature funcs. When it matches the previous one the entity
// slice and Revision are kept, so consumers can skip re-rendering.
//
// # Failures
//
// Errors never reach consumers. Classify sorts them into Canceled (silent),
// RateLimited (HTTP 429/503 or a rate-limit message; steep profile) and
// Transient (everything else; shallow profile). The snapshot exposes a Note,
// LastError and ConsecutiveFailures, and keeps serving the last good list.
//
// # Optimistic patches
//
// DeltaPatch and CreatePatch are applied synchronously under the store lock
// in arrival order. Each idempotency key is remembered in a bounded set, so
// replays are dropped. Patches never trigger a fetch; the next scheduled or
// revalidated fetch replaces the list wholesale with authoritative data, and
// until then the optimistic view may differ from the indexer.
//
// # Concurrency
//
// One mutex guards all mutable state; the published snapshot is swapped
// through an atomic pointer. Listeners run outside that mutex, one delivery
// round at a time, and may call back into the store. Timers come from a
// clockwork.Clock so tests can drive time explicitly.
package syncstore
