/*
File Name:  peercache.go

A durable cache of peer contact addresses, backed by the repository's
existing Pogreb-backed key/value Store (store/Pogreb.go) repurposed here for
DHT peer bookkeeping rather than its original warehouse use. Keys are a
peer's 20-byte NodeID; values are its most recently observed NodeAddr, kept
alive by a rolling expiration that's pushed out on every reply so a peer
that's gone quiet ages out of the cache on its own.
*/

package main

import (
	"time"

	"github.com/monoid/duhast/krpc"
	"github.com/monoid/duhast/store"
)

// peerTTL is how long a cached contact survives without being re-confirmed
// by a fresh reply before ExpireKeys is allowed to reclaim it.
const peerTTL = 30 * time.Minute

// PeerCache remembers the last known address for peers this node has talked
// to, persisted across restarts.
type PeerCache struct {
	backing store.Store
}

// OpenPeerCache opens (or creates) the Pogreb database at filename.
func OpenPeerCache(filename string) (*PeerCache, error) {
	db, err := store.NewPogrebStore(filename)
	if err != nil {
		return nil, err
	}
	return &PeerCache{backing: db}, nil
}

// Remember records addr as the last known location of id, refreshing its
// expiration.
func (c *PeerCache) Remember(id krpc.NodeID, addr krpc.NodeAddr) error {
	encoded, err := addr.MarshalBencode()
	if err != nil {
		return err
	}
	return c.backing.SetExpiring(id.Bytes(), encoded, time.Now().Add(peerTTL))
}

// Sweep deletes every cached contact that hasn't been refreshed within its
// TTL. It runs periodically (see sweepPeerCache in cmd/duhastd/main.go)
// rather than on every lookup.
func (c *PeerCache) Sweep() {
	c.backing.ExpireKeys()
}

// Lookup returns the last known address for id, if any.
func (c *PeerCache) Lookup(id krpc.NodeID) (krpc.NodeAddr, bool) {
	data, found := c.backing.Get(id.Bytes())
	if !found {
		return krpc.NodeAddr{}, false
	}
	var addr krpc.NodeAddr
	if err := addr.UnmarshalBencode(data); err != nil {
		return krpc.NodeAddr{}, false
	}
	return addr, true
}

// Forget deletes any cached address for id, e.g. once a peer is declared
// dead in the query queue.
func (c *PeerCache) Forget(id krpc.NodeID) {
	c.backing.Delete(id.Bytes())
}
