/*
File Name:  Pogreb.go

A Store backed by akrylysov/pogreb, an embedded key/value engine. PeerCache
relies on expiration to age out contacts that have gone quiet: each record
is prefixed with an 8-byte big-endian Unix expiration (0 meaning "never"),
checked lazily on Get and swept actively by ExpireKeys via pogreb's item
iterator.
*/

package store

import (
	"encoding/binary"
	"io"
	"log"
	"sync"
	"time"

	"github.com/akrylysov/pogreb"
)

// PogrebStore is a key/value store using Pogreb, with an expiration header
// folded into each stored record.
type PogrebStore struct {
	mutex    *sync.Mutex
	filename string
	db       *pogreb.DB
}

// NewPogrebStore creates a properly initialized Pogreb store, opening
// filename or creating it if absent.
func NewPogrebStore(filename string) (store *PogrebStore, err error) {
	pogreb.SetLogger(log.New(io.Discard, "", 0))

	db, err := pogreb.Open(filename, nil)
	if err != nil {
		return nil, err
	}

	return &PogrebStore{
		mutex:    &sync.Mutex{},
		filename: filename,
		db:       db,
	}, nil
}

// encodeRecord prefixes data with expiresAt as a big-endian Unix timestamp
// (0 meaning no expiration).
func encodeRecord(data []byte, expiresAt int64) []byte {
	record := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(record[:8], uint64(expiresAt))
	copy(record[8:], data)
	return record
}

// decodeRecord splits a stored record back into its expiration and payload.
// Records shorter than the header are treated as unexpiring legacy data.
func decodeRecord(record []byte) (data []byte, expiresAt int64) {
	if len(record) < 8 {
		return record, 0
	}
	return record[8:], int64(binary.BigEndian.Uint64(record[:8]))
}

func expired(expiresAt int64, now time.Time) bool {
	return expiresAt != 0 && now.Unix() >= expiresAt
}

// Set stores the key/value pair with no expiration.
func (store *PogrebStore) Set(key []byte, data []byte) error {
	return store.db.Put(key, encodeRecord(data, 0))
}

// SetExpiring stores the key/value pair, eligible for removal by ExpireKeys
// once expiration has passed.
func (store *PogrebStore) SetExpiring(key []byte, data []byte, expiration time.Time) error {
	return store.db.Put(key, encodeRecord(data, expiration.Unix()))
}

// Get returns the value for the key if present and not yet expired. An
// expired hit is treated as a miss and deleted eagerly.
func (store *PogrebStore) Get(key []byte) (data []byte, found bool) {
	record, err := store.db.Get(key)
	if err != nil || record == nil {
		return nil, false
	}

	data, expiresAt := decodeRecord(record)
	if expired(expiresAt, time.Now()) {
		store.db.Delete(key)
		return nil, false
	}
	return data, true
}

// Delete deletes a key/value pair.
func (store *PogrebStore) Delete(key []byte) {
	store.db.Delete(key)
}

// ExpireKeys sweeps every key in the store and deletes those whose
// expiration has passed, for callers that don't read a given key often
// enough for Get's lazy expiration to reclaim it on its own.
func (store *PogrebStore) ExpireKeys() {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	it := store.db.Items()
	now := time.Now()
	var stale [][]byte

	for {
		key, record, err := it.Next()
		if err == pogreb.ErrIterationDone {
			break
		}
		if err != nil {
			log.Printf("store: iterating pogreb db %s: %v\n", store.filename, err)
			return
		}

		if _, expiresAt := decodeRecord(record); expired(expiresAt, now) {
			stale = append(stale, append([]byte(nil), key...))
		}
	}

	for _, key := range stale {
		if err := store.db.Delete(key); err != nil {
			log.Printf("store: expiring key from %s: %v\n", store.filename, err)
		}
	}
}
