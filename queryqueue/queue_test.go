package queryqueue

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/monoid/duhast/krpc"
)

// fakeSocket records every datagram written to it and optionally fails sends.
type fakeSocket struct {
	mu      sync.Mutex
	sent    [][]byte
	failErr error
}

func (s *fakeSocket) WriteTo(b []byte, addr net.Addr) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return 0, s.failErr
	}
	cp := append([]byte(nil), b...)
	s.sent = append(s.sent, cp)
	return len(b), nil
}

func (s *fakeSocket) last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[len(s.sent)-1]
}

type fakeAddr string

func (a fakeAddr) Network() string { return "udp" }
func (a fakeAddr) String() string  { return string(a) }

// extractToken pulls the "t" field out of an encoded bencoded message the
// crude way, by decoding the envelope with the codec package itself.
func extractToken(t *testing.T, buf []byte) krpc.TransactionToken {
	t.Helper()
	env, err := krpc.DecodeEnvelope(buf)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	return krpc.TransactionToken(env.T)
}

func TestTokenAllocationStartsAtOneAndIncrements(t *testing.T) {
	q := New(time.Second)
	sock := &fakeSocket{}
	peer := fakeAddr("127.0.0.1:6881")

	go func() {
		q.SendMessage(sock, peer, krpc.MethodPing, krpc.PingQuery{})
	}()

	// Give SendMessage time to register and send; then reply so it returns.
	time.Sleep(20 * time.Millisecond)
	tok1 := extractToken(t, sock.last())
	if !bytes.Equal(tok1, []byte{0x00, 0x01}) {
		t.Fatalf("first token = %x, want 0001", []byte(tok1))
	}
	q.GotReply(peer, tok1, []byte("reply1"))

	go func() {
		q.SendMessage(sock, peer, krpc.MethodPing, krpc.PingQuery{})
	}()
	time.Sleep(20 * time.Millisecond)
	tok2 := extractToken(t, sock.last())
	if !bytes.Equal(tok2, []byte{0x00, 0x02}) {
		t.Fatalf("second token = %x, want 0002", []byte(tok2))
	}
	q.GotReply(peer, tok2, []byte("reply2"))
}

func TestSendMessageRoundTrip(t *testing.T) {
	q := New(time.Second)
	sock := &fakeSocket{}
	peer := fakeAddr("127.0.0.1:6881")

	resultCh := make(chan []byte, 1)
	errCh := make(chan error, 1)
	go func() {
		payload, err := q.SendMessage(sock, peer, krpc.MethodPing, krpc.PingQuery{})
		resultCh <- payload
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	token := extractToken(t, sock.last())
	q.GotReply(peer, token, []byte("pong-bytes"))

	select {
	case payload := <-resultCh:
		if string(payload) != "pong-bytes" {
			t.Fatalf("payload = %q, want pong-bytes", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("SendMessage did not return after GotReply")
	}
	if err := <-errCh; err != nil {
		t.Fatalf("SendMessage error: %v", err)
	}
}

func TestSendMessageTimeout(t *testing.T) {
	q := New(time.Second)
	sock := &fakeSocket{}
	peer := fakeAddr("127.0.0.1:6881")

	start := time.Now()
	_, err := q.SendMessage(sock, peer, krpc.MethodPing, krpc.PingQuery{})
	elapsed := time.Since(start)

	var qerr *Error
	if !errors.As(err, &qerr) || qerr.Kind != Timeout {
		t.Fatalf("err = %v, want Timeout", err)
	}
	if elapsed < time.Second || elapsed > 1100*time.Millisecond {
		t.Fatalf("elapsed = %v, want within [1.0s, 1.1s]", elapsed)
	}

	// Waiter slot must have been freed: a late GotReply for the same token
	// finds nothing to deliver to and must not panic.
	q.GotReply(peer, krpc.TransactionToken{0x00, 0x01}, []byte("late"))
}

func TestSendMessageIOErrorNeverRegistersWaiter(t *testing.T) {
	q := New(time.Second)
	sock := &fakeSocket{failErr: errors.New("network unreachable")}
	peer := fakeAddr("127.0.0.1:6881")

	_, err := q.SendMessage(sock, peer, krpc.MethodPing, krpc.PingQuery{})

	var qerr *Error
	if !errors.As(err, &qerr) || qerr.Kind != IOError {
		t.Fatalf("err = %v, want IOError", err)
	}

	q.mu.Lock()
	waiting := len(q.peers[peer.String()].waiting)
	q.mu.Unlock()
	if waiting != 0 {
		t.Fatalf("failed send left %d waiter(s) registered, want 0", waiting)
	}

	// A subsequent call on a working socket still completes: the failed send
	// consumed token 1 (so this call gets token 2) but left no dangling waiter.
	sock.failErr = nil
	resultCh := make(chan []byte, 1)
	go func() {
		payload, _ := q.SendMessage(sock, peer, krpc.MethodPing, krpc.PingQuery{})
		resultCh <- payload
	}()
	time.Sleep(20 * time.Millisecond)
	token := extractToken(t, sock.last())
	q.GotReply(peer, token, []byte("ok"))
	if payload := <-resultCh; string(payload) != "ok" {
		t.Fatalf("payload = %q, want ok", payload)
	}
}

func TestGotReplyDropsLateOrStrayReply(t *testing.T) {
	q := New(time.Second)
	peer := fakeAddr("127.0.0.1:6881")

	// No query was ever sent to this peer; GotReply must not panic or block.
	q.GotReply(peer, krpc.TransactionToken{0x00, 0x01}, []byte("stray"))
}

func TestCollisionAbandonsOldWaiterByIdentity(t *testing.T) {
	// Simulates a token wraparound collision: two distinct waiters occupy the
	// same map slot at different times, and an expiry for the first must not
	// evict the second.
	q := New(50 * time.Millisecond)
	sock := &fakeSocket{}
	peer := fakeAddr("127.0.0.1:6881")

	firstDone := make(chan struct{})
	go func() {
		q.SendMessage(sock, peer, krpc.MethodPing, krpc.PingQuery{})
		close(firstDone)
	}()
	time.Sleep(10 * time.Millisecond)

	// Manually force a second waiter into the same slot under the peer's
	// queue lock, mimicking what a counter wraparound would produce, then
	// confirm the first query's expiry doesn't delete the second's entry.
	q.mu.Lock()
	pq := q.peers[peer.String()]
	firstWaiter := pq.waiting["\x00\x01"]
	secondWaiter := &waiter{ch: make(chan []byte, 1)}
	pq.waiting["\x00\x01"] = secondWaiter
	q.mu.Unlock()

	q.expire(peer.String(), "\x00\x01", firstWaiter)

	q.mu.Lock()
	cur, ok := pq.waiting["\x00\x01"]
	q.mu.Unlock()
	if !ok || cur != secondWaiter {
		t.Fatalf("expire evicted the wrong waiter")
	}

	secondWaiter.ch <- []byte("second-reply")
	<-firstDone
}

func TestConcurrentSendAndReplyNoCrossDelivery(t *testing.T) {
	q := New(2 * time.Second)
	sock := &fakeSocket{}
	peer := fakeAddr("127.0.0.1:6881")

	const n = 20
	results := make([]string, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			payload, err := q.SendMessage(sock, peer, krpc.MethodPing, krpc.PingQuery{})
			if err != nil {
				t.Errorf("SendMessage[%d]: %v", i, err)
				return
			}
			results[i] = string(payload)
		}(i)
	}

	// Drain whatever has been sent so far and reply to each token with a
	// payload that echoes the token itself, so cross-delivery is detectable.
	delivered := make(map[string]bool)
	deadline := time.Now().Add(2 * time.Second)
	for len(delivered) < n && time.Now().Before(deadline) {
		sock.mu.Lock()
		pending := append([][]byte(nil), sock.sent...)
		sock.mu.Unlock()
		for _, buf := range pending {
			env, err := krpc.DecodeEnvelope(buf)
			if err != nil {
				continue
			}
			tok := string(env.T)
			if delivered[tok] {
				continue
			}
			delivered[tok] = true
			q.GotReply(peer, krpc.TransactionToken(env.T), []byte(tok))
		}
		time.Sleep(time.Millisecond)
	}

	wg.Wait()
	seen := make(map[string]int)
	for i, got := range results {
		if got == "" {
			t.Fatalf("result[%d] never delivered", i)
		}
		if j, dup := seen[got]; dup {
			t.Fatalf("result[%d] and result[%d] both received the reply for token %x", j, i, got)
		}
		seen[got] = i
	}
}

func TestDeclareDeadRemovesPeerQueue(t *testing.T) {
	q := New(time.Second)
	sock := &fakeSocket{}
	peer := fakeAddr("127.0.0.1:6881")

	go func() {
		q.SendMessage(sock, peer, krpc.MethodPing, krpc.PingQuery{})
	}()
	time.Sleep(20 * time.Millisecond)

	q.DeclareDead(peer)

	q.mu.Lock()
	_, exists := q.peers[peer.String()]
	q.mu.Unlock()
	if exists {
		t.Fatalf("peer queue still present after DeclareDead")
	}

	// A fresh query to the same peer starts its counter back at 1.
	go func() {
		q.SendMessage(sock, peer, krpc.MethodPing, krpc.PingQuery{})
	}()
	time.Sleep(20 * time.Millisecond)
	tok := extractToken(t, sock.last())
	if !bytes.Equal(tok, []byte{0x00, 0x01}) {
		t.Fatalf("token after declare_dead = %x, want 0001", []byte(tok))
	}
	q.GotReply(peer, tok, []byte("ok"))
}
