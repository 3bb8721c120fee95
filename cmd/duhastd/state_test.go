package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestNewStateDerivesFromRNG(t *testing.T) {
	rng := bytes.NewReader(bytes.Repeat([]byte{0x42}, 20))
	st, err := NewState(rng, net.ParseIP("124.31.75.21"))
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	if st.DhtID[19] != 0x42 {
		t.Fatalf("DhtID[19] = %#x, want 0x42 drawn from rng", st.DhtID[19])
	}
	if st.Peers != nil {
		t.Fatalf("expected empty peer list on a fresh state, got %v", st.Peers)
	}
}

func TestStateWriteAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "duhast.state")

	rng := bytes.NewReader(bytes.Repeat([]byte{0x07}, 20))
	original, err := NewState(rng, net.ParseIP("10.0.0.1"))
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	original.Peers = []string{"10.0.0.2:6881", "10.0.0.3:6881"}

	if err := original.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	loaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if loaded.DhtID != original.DhtID {
		t.Fatalf("DhtID mismatch: got %s, want %s", loaded.DhtID, original.DhtID)
	}
	if len(loaded.Peers) != 2 || loaded.Peers[0] != "10.0.0.2:6881" {
		t.Fatalf("Peers mismatch: got %v", loaded.Peers)
	}
}

func TestLoadOrCreateStateCreatesWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "duhast.state")

	rng := bytes.NewReader(bytes.Repeat([]byte{0x11}, 20))
	st, err := LoadOrCreateState(path, rng, net.ParseIP("192.168.0.26"))
	if err != nil {
		t.Fatalf("LoadOrCreateState: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected state file to be written, stat failed: %v", err)
	}

	reloaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState after create: %v", err)
	}
	if reloaded.DhtID != st.DhtID {
		t.Fatalf("DhtID changed across reload: got %s, want %s", reloaded.DhtID, st.DhtID)
	}
}
