// Package task manages background job queuing and processing.
// It runs persistence writes (card snapshots, wake times, thread links and
// lifecycle log entries) off the request path so a slow or unavailable
// database never blocks card operations.
package task
