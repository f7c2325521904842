// Package reindex rebuilds a persisted snapshot with a new embedding model.
//
// Switching embedding models invalidates every stored vector. The reindexer
// re-embeds all documents in batches with retry and backoff, then writes a
// rebuilt snapshot atomically. The old snapshot survives any failure.
package reindex
