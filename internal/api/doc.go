// Package api exposes the card feed over HTTP. Handlers decode and validate
// requests, call the card service, and map service errors to status codes
// with client-safe messages. The stream handler relays bus events to
// clients as server-sent events.
package api
