// Package storage provides the durable key-value store backing the
// session, pending and sent-history collections.
//
// Access discipline: each logical key has exactly one writing component,
// so write races are eliminated by convention rather than locking.
package storage

import "context"

// Logical keys. These are the only keys the application writes.
const (
	KeyCurrentSession  = "currentSession"
	KeyPendingSessions = "pendingSessions"
	KeySentSessions    = "sentSessions"
	KeyCurrentUser     = "currentUser"
)

// KV is a durable string key-value store.
type KV interface {
	// Get returns the stored value. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores the value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}
