// Package database provides SQLite persistence for Hearth Core.
//
// It wraps database/sql with WAL-mode configuration, restrictive file
// permissions, health checks, and an embedded-migration runner. Migrations
// are SQL files compiled into the binary via go:embed and applied in
// version order, each in its own transaction.
//
// SQLite is deliberate: the trust core ships as a single self-contained
// service and its write volume (settings, grants, audit entries) is tiny.
package database
