// Package memstore provides a durable key-value store for facts a user
// asks to be remembered across sessions, backed by SQLite.
//
// Invariants:
// - Put with an existing key replaces the stored value.
// - Get on a missing key fails with ErrNotFound.
// - Keys returns keys in lexical order.
package memstore
