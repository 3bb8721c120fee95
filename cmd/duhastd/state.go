/*
File Name:  state.go

Persists this node's derived identity and known peer addresses across
restarts, bencoded the way the wire protocol itself is - reusing the same
bencode library the codec uses keeps this file free of a second
serialization dependency.
*/

package main

import (
	"io"
	"io/ioutil"
	"log"
	"net"
	"os"

	"github.com/anacrolix/torrent/bencode"

	"github.com/monoid/duhast/bep42"
	"github.com/monoid/duhast/krpc"
)

// DefaultStatePath is the on-disk file this daemon persists its identity and
// peer list to, relative to the working directory it's launched from.
const DefaultStatePath = "duhast.state"

// State is this node's durable identity: its own NodeID and the addresses of
// peers it has learned about, so a restart doesn't start the routing table
// from nothing.
type State struct {
	DhtID krpc.NodeID `bencode:"dht_id"`
	Peers []string    `bencode:"peers"`
}

// LoadState reads and decodes a State from filename.
func LoadState(filename string) (State, error) {
	var st State
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return st, err
	}
	if err := bencode.Unmarshal(data, &st); err != nil {
		return st, err
	}
	return st, nil
}

// NewState derives a fresh identity from rng for the given external address
// and starts with an empty peer list.
func NewState(rng io.Reader, ip net.IP) (State, error) {
	id, err := bep42.DeriveIdentity(ip, rng)
	if err != nil {
		return State{}, err
	}
	return State{DhtID: id, Peers: nil}, nil
}

// Write bencodes st and saves it to filename, creating or truncating it.
func (st State) Write(filename string) error {
	data, err := bencode.Marshal(st)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(filename, data, 0644)
}

// LoadOrCreateState loads filename if it exists, otherwise derives a fresh
// identity and persists it immediately - mirroring main.rs's
// "load if present, else Config::new then write" startup sequence.
func LoadOrCreateState(filename string, rng io.Reader, ip net.IP) (State, error) {
	if _, err := os.Stat(filename); err == nil {
		st, err := LoadState(filename)
		if err != nil {
			return State{}, err
		}
		return st, nil
	} else if !os.IsNotExist(err) {
		return State{}, err
	}

	st, err := NewState(rng, ip)
	if err != nil {
		return State{}, err
	}
	if err := st.Write(filename); err != nil {
		log.Printf("state: failed to persist new identity to %s: %v\n", filename, err)
	}
	return st, nil
}
