// Package domain contains the core entities of the card feed: cards and their
// kind-specific content, altitudes, lifecycle statuses, wake conditions and
// the altimeter progress aggregate. It is independent of any storage or
// delivery mechanism.
package domain
