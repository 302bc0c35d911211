// Package tokens is the persistence collaborator of the session manager: it
// keeps the opaque session token between process runs so the next start can
// restore the session silently.
//
// # Implementations
//
//   - SQLiteStore: local SQLite file (modernc.org/sqlite), schema applied by
//     embedded goose migrations. With a passphrase the token is sealed with
//     AES-GCM under an argon2id-derived key; otherwise it is stored as is.
//   - RedisStore: a single Redis key with optional TTL, for hosts that share
//     one session between processes.
//   - MemoryStore: process-local, for tests and the in-memory backend.
//
// # Contract
//
// Load returns "" and a nil error when nothing is stored; absence is not an
// error. Save overwrites. Clear is idempotent.
package tokens
