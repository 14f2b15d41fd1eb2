// Package auth provides caller identity for Hearth Core.
//
// It implements the household membership model the trust core authorises
// against:
//   - Argon2id password and PIN hashing (OWASP 2025 recommendation)
//   - JWT access tokens carrying the caller's household and role
//   - Household-scoped user accounts with a 3-tier role model
//     (guest → member → owner)
//   - A sliding-window attempt limiter shared by login and vault unlock
//
// Every vault or grant mutation reaches its handler only after the JWT
// middleware has resolved the caller's household membership and role, so
// domain packages never re-derive identity themselves.
package auth
