// Package identity assigns stable pseudonymous identities to client addresses.
//
// Store owns the address -> identity mapping behind a mutex, so the
// check-and-insert in ResolveOrAssign is atomic. Every new assignment marks the
// mapping dirty; a Writer goroutine persists the latest full snapshot to the
// configured backend. Persistence is best-effort: failures are logged and
// counted but never reach the caller, and the in-memory assignment stays valid.
package identity
