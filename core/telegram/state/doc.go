// Package state stores per-user conversation sessions. A session is a phase
// plus a typed scratch record; stores expire idle sessions after a TTL.
package state
