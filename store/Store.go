/*
File Name:  Store.go

Durable key/value storage for PeerCache (cmd/duhastd/peercache.go): keys are
20-byte NodeIDs, values are bencoded NodeAddr blobs. A DHT contact that
hasn't been seen in a while is worse than no contact at all - it wastes a
query on a dead peer - so entries carry an expiration instead of living
forever.
*/

package store

import (
	"time"
)

// Store is the storage mechanism PeerCache persists peer contacts through.
type Store interface {
	// Set stores the key/value pair with no expiration.
	Set(key []byte, data []byte) error

	// SetExpiring stores the key/value pair and makes it eligible for removal
	// by ExpireKeys once expiration has passed. If key already exists, it is
	// overwritten and the new expiration applies.
	SetExpiring(key []byte, data []byte, expiration time.Time) error

	// Get returns the value for the key if present and not yet expired.
	Get(key []byte) (data []byte, found bool)

	// Delete deletes a key/value pair.
	Delete(key []byte)

	// ExpireKeys sweeps the store and deletes every key whose expiration has
	// passed.
	ExpireKeys()
}
