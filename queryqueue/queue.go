/*
File Name:  queue.go

Turns a fire-and-forget UDP transport into a request/reply RPC: allocates a
per-peer transaction token, sends the query, and correlates the matching
reply (or times it out) for the caller.

The mutex guards only map operations and is always released before a
channel receive or a socket write, so no critical section ever blocks on
I/O.
*/

package queryqueue

import (
	"encoding/binary"
	"log"
	"net"
	"sync"
	"time"

	"github.com/monoid/duhast/krpc"
)

// Socket is the minimal sending surface Queue needs from a UDP transport.
// *net.UDPConn satisfies it; tests substitute a fake.
type Socket interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
}

// waiter is a one-shot handoff: whoever calls gotReply first sends exactly
// once and the channel is never touched again.
type waiter struct {
	ch chan []byte
}

// perPeerQueue owns one peer's rolling transaction counter and its
// outstanding replies. It is created lazily and never torn down implicitly:
// destroying it would reset the counter and risk reusing a token against a
// query that's still in flight.
type perPeerQueue struct {
	nextID  uint16
	waiting map[string]*waiter
}

func newPerPeerQueue() *perPeerQueue {
	return &perPeerQueue{waiting: make(map[string]*waiter)}
}

// allocate returns the next transaction token for this peer: a pre-incremented
// 16-bit counter encoded big-endian, so the first token issued is 0x0001.
// Wrapping at 2^16 is permitted; a collision with a still-outstanding token
// is resolved by silently overwriting the map slot (see Queue.SendMessage).
func (q *perPeerQueue) allocate() krpc.TransactionToken {
	q.nextID++
	token := make(krpc.TransactionToken, 2)
	binary.BigEndian.PutUint16(token, q.nextID)
	return token
}

// Queue is the process-wide registry of PerPeerQueues, one per remote
// address, guarded by a single mutex. The mutex is held only across map
// lookups/inserts/removals, never across a channel receive or a socket
// write - an async mutex would be a pessimization here since no critical
// section ever suspends.
type Queue struct {
	timeout time.Duration

	mu    sync.Mutex
	peers map[string]*perPeerQueue
}

// New creates a Queue that waits up to timeout for each reply.
func New(timeout time.Duration) *Queue {
	return &Queue{timeout: timeout, peers: make(map[string]*perPeerQueue)}
}

func (q *Queue) peerQueue(key string) *perPeerQueue {
	pq, ok := q.peers[key]
	if !ok {
		pq = newPerPeerQueue()
		q.peers[key] = pq
	}
	return pq
}

// SendMessage allocates a fresh transaction token for peer, encodes and sends
// the query, then waits for the matching reply or the queue's configured
// timeout, whichever comes first. On a socket send failure it returns an Io
// error and never registers a waiter. On timeout it returns a Timeout error
// and the waiter slot is freed.
func (q *Queue) SendMessage(socket Socket, peer net.Addr, method string, args interface{}) ([]byte, error) {
	key := peer.String()

	q.mu.Lock()
	token := q.peerQueue(key).allocate()
	q.mu.Unlock()

	buf, err := krpc.EncodeQuery(token, method, args)
	if err != nil {
		return nil, err
	}

	if _, err := socket.WriteTo(buf, peer); err != nil {
		return nil, &Error{Kind: IOError, Err: err}
	}

	w := &waiter{ch: make(chan []byte, 1)}
	tokenKey := string(token)

	q.mu.Lock()
	q.peerQueue(key).waiting[tokenKey] = w
	q.mu.Unlock()

	timer := time.NewTimer(q.timeout)
	defer timer.Stop()

	select {
	case payload := <-w.ch:
		return payload, nil
	case <-timer.C:
		q.expire(key, tokenKey, w)
		return nil, &Error{Kind: Timeout}
	}
}

// expire removes w from the peer's waiting map, but only if it is still the
// registered waiter for that token - a later query that reused the same
// (wrapped) token must not be evicted by a stale timer.
func (q *Queue) expire(peerKey, tokenKey string, w *waiter) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pq, ok := q.peers[peerKey]
	if !ok {
		return
	}
	if cur, ok := pq.waiting[tokenKey]; ok && cur == w {
		delete(pq.waiting, tokenKey)
	}
}

// GotReply delivers a decoded reply's raw bytes to the waiter registered for
// (peer, token), if any. It never blocks: the channel is buffered so delivery
// always succeeds once, and if no waiter is registered the reply is logged
// and dropped as late or stray.
func (q *Queue) GotReply(peer net.Addr, token krpc.TransactionToken, payload []byte) {
	key := peer.String()
	tokenKey := string(token)

	q.mu.Lock()
	pq, ok := q.peers[key]
	var w *waiter
	if ok {
		w, ok = pq.waiting[tokenKey]
		if ok {
			delete(pq.waiting, tokenKey)
		}
	}
	q.mu.Unlock()

	if !ok {
		log.Printf("queryqueue: GotReply dropped late/stray reply from %s token %x\n", peer, []byte(token))
		return
	}

	w.ch <- payload
}

// DeclareDead removes the entire per-peer queue for peer. Any Waiters still
// outstanding for that peer are not notified; they time out naturally. Call
// this only once the caller is certain no more replies from peer are in
// flight, since it resets the peer's transaction counter back to zero.
func (q *Queue) DeclareDead(peer net.Addr) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.peers, peer.String())
}
