// Package grant implements guest access grants: time-windowed,
// permission-scoped authorization issued to non-members such as sitters and
// contractors.
//
// A grant moves through a small monotonic state machine — pending on invite,
// active on acceptance, then expired or revoked, both terminal. Expiry is
// derived at read time from the grant's window rather than flipped by a
// clock: every authorization checkpoint calls DeriveStatus, so a stale
// stored status can never extend access. The optional sweeper only persists
// the derived status for reporting.
package grant
