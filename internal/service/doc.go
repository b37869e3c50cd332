// Package service orchestrates the card feed core. CardService owns the
// registry, parking scheduler, event bus and feed composer, applies every
// state transition under a per-card lock, publishes the resulting events and
// hands persistence to the background task runner.
//
// Persistence is best-effort. Store failures are logged and counted but
// never change the in-memory state, which stays authoritative.
package service
