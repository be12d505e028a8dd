// Package service ties the feed to the books: it owns the instrument
// registry, applies decoded ITCH events through the router, and queues the
// resulting trades in the outbox.
//
// Reads (Stats, Top, Snapshot, WriteReport) may run concurrently with Run.
package service
