// Package registry owns actor creation, lifetime classification,
// resolution, leasing and group disposal.
//
// A [Registry] is an explicit instance injected through construction,
// with no process-wide statics, so every test gets a fresh one.
//
// # Lifecycles
//
//   - [Permanent]: one lazily created singleton, lives until the
//     registry closes
//   - [Feature]: bound to a scope group at registration; disposed when
//     the scope ends
//   - [Leased]: reference counted; created on first [Registry.Lease],
//     disposed exactly when the last lease releases
//
// # Scope teardown
//
// [Registry.EndScope] runs a deterministic protocol: mark the scope
// ending, broadcast an Ending notification carrying a cleanup [Barrier],
// let subscribers register bounded cleanup tasks, wait for them with a
// timeout, then dispose the scope's actors regardless of the outcome and
// broadcast Ended. Concurrent EndScope calls for the same scope share
// one in-flight teardown.
//
// Scope notifications are delivered synchronously: a subscriber callback
// runs within the notification turn, which is what makes
// [Barrier.Add] during the Ending notification race-free.
package registry
