// Package rotation implements zero-downtime credential rotation against
// an external secrets vault.
//
// A rotation drives a client's credential through a strict forward state
// machine:
//
//	initiated -> dual_active -> old_deprecated -> new_active
//
// with failed reachable from any non-terminal state. During dual_active
// both the old and the new credential must be accepted by the
// authentication layer upstream of this engine; the engine's job is to
// track and advertise that window honestly, not to enforce dual
// acceptance itself. The window ends when the configured transition
// period elapses or when a UsageSignal reports the old credential
// quiescent for three consecutive monitoring ticks.
//
// Rotations run synchronously on the calling goroutine. The monitoring
// loop and retry backoff both block via sleep; callers needing
// concurrent rotations for multiple clients run separate invocations on
// separate goroutines. Rotation outcomes are returned as structured
// Results rather than errors so schedulers can inspect the highest state
// reached without recovering from a panic or unwrapping a cause chain.
package rotation
