// Package events provides the in-process event bus that drives live card
// updates.
//
// Producers publish named events with a JSON payload. Every subscriber owns a
// bounded queue; when a reader falls behind, the oldest queued event is
// discarded rather than slowing the publisher. In-process handlers can also
// be registered to see every event, for example to persist an audit trail.
//
// The primary components are:
// - Event: a named notification carrying JSON text
// - Bus: the fan-out publisher and subscription registry
// - Subscription: one reader's bounded, ordered queue
// - Stream: a channel view of a subscription that starts with a hydrate
// event and interleaves heartbeats
package events
