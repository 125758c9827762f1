// Package anchorjournal implements the append-only, hash-chained journal that
// stands in for the public host ledger's transaction history.
//
// Every mutating call against the anchor log — authority initialization,
// authority rotation, and each accepted anchor — is recorded here with its
// full argument set, so a third party can reconstruct the entire history by
// scanning the journal. The chain begins with a well-known genesis entry
// whose Hash equals GenesisHash (64 hex zeros); every subsequent entry records
// the SHA-256 of its predecessor, making tampering detectable via Verify.
//
// Three implementations of the Journal interface are provided:
//   - MemoryJournal: in-process, for testing and ephemeral runs.
//   - SQLiteJournal: durable, for single-node deployments.
//   - PostgresJournal: durable, for production.
package anchorjournal
