// Package store defines the persistence collaborators used by the card
// service. The in-memory registry is authoritative; stores receive
// best-effort copies of card state, wake times, chat thread links and an
// append-only lifecycle log. Implementations live under internal/platform.
package store
