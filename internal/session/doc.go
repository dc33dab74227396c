// Package session keeps conversation sessions between events.
//
// Manager serializes events per participant with a context-aware lock, loads
// the session from an in-memory Cache or the store, and persists it as JSON on
// commit. Sessions idle for longer than the configured TTL are treated as new
// on load but keep their tracked messages. Sweep, which the gateway runs on a
// cron schedule, deletes those messages and then removes the stale session
// from the store. A TTL of zero keeps sessions until the conversation ends.
package session
