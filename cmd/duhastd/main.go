/*
File Name:  main.go

duhastd is a minimal runnable host for the DHT core: it derives (or loads) a
node identity, binds a UDP socket, and demonstrates a full send/receive round
trip by issuing a find_node query against each configured seed peer. It
follows the usual daemon shape: load config, open stores, log startup, run.
*/

package main

import (
	"log"
	"net"
	"time"

	"github.com/monoid/duhast/krpc"
	"github.com/monoid/duhast/queryqueue"
)

const defaultConfigPath = "duhastd.yaml"

func main() {
	cfg, err := LoadConfig(defaultConfigPath)
	if err != nil {
		log.Fatalf("duhastd: loading config: %v\n", err)
	}

	rng, err := newChaChaRNG()
	if err != nil {
		log.Fatalf("duhastd: seeding RNG: %v\n", err)
	}

	listenAddr, err := net.ResolveUDPAddr("udp", cfg.Listen)
	if err != nil {
		log.Fatalf("duhastd: resolving listen address %q: %v\n", cfg.Listen, err)
	}

	st, err := LoadOrCreateState(cfg.StatePath, rng, listenAddr.IP)
	if err != nil {
		log.Fatalf("duhastd: loading state: %v\n", err)
	}
	log.Printf("duhastd: node id %s\n", st.DhtID)

	cache, err := OpenPeerCache(cfg.StatePath + ".peers.db")
	if err != nil {
		log.Fatalf("duhastd: opening peer cache: %v\n", err)
	}

	conn, err := net.ListenUDP("udp", listenAddr)
	if err != nil {
		log.Fatalf("duhastd: binding %s: %v\n", cfg.Listen, err)
	}
	defer conn.Close()

	queue := queryqueue.New(time.Duration(cfg.QueryTimeout))
	go receiveLoop(conn, queue)
	go sweepPeerCache(cache)

	for _, seed := range cfg.SeedPeers {
		bootstrap(conn, queue, cache, st.DhtID, seed)
	}

	select {}
}

// sweepPeerCache periodically reclaims cached contacts that have aged past
// their TTL without a fresh reply renewing them.
func sweepPeerCache(cache *PeerCache) {
	ticker := time.NewTicker(peerTTL)
	defer ticker.Stop()
	for range ticker.C {
		cache.Sweep()
	}
}

// receiveLoop reads incoming datagrams, routes replies to the query queue by
// transaction token, and answers queries this node receives from peers.
func receiveLoop(conn *net.UDPConn, queue *queryqueue.Queue) {
	buf := make([]byte, 1<<16)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			log.Printf("duhastd: read error: %v\n", err)
			continue
		}
		payload := append([]byte(nil), buf[:n]...)

		env, err := krpc.DecodeEnvelope(payload)
		if err != nil {
			log.Printf("duhastd: malformed datagram from %s: %v\n", addr, err)
			continue
		}

		switch env.Y {
		case krpc.KindResponse, krpc.KindError:
			queue.GotReply(addr, krpc.TransactionToken(env.T), payload)
		case krpc.KindQuery:
			handleQuery(conn, env, addr)
		}
	}
}

// handleQuery answers the subset of incoming queries this node can serve
// without a routing table: ping only. find_node/get_peers/announce_peer
// require the routing table collaborator this core does not own, so they
// are logged and ignored.
func handleQuery(conn *net.UDPConn, env krpc.IncomingEnvelope, addr *net.UDPAddr) {
	q, err := krpc.DecodeQuery(env)
	if err != nil {
		log.Printf("duhastd: bad query from %s: %v\n", addr, err)
		return
	}

	if q.Method != krpc.MethodPing {
		log.Printf("duhastd: ignoring unsupported query %q from %s (no routing table wired)\n", q.Method, addr)
		return
	}

	reply, err := krpc.EncodeResponse(krpc.TransactionToken(env.T), krpc.PingResponse{ID: q.Ping.ID})
	if err != nil {
		log.Printf("duhastd: encoding ping response: %v\n", err)
		return
	}
	if _, err := conn.WriteToUDP(reply, addr); err != nil {
		log.Printf("duhastd: replying to %s: %v\n", addr, err)
	}
}

// bootstrap issues a single find_node(self) query at seed, the same
// handshake the reference client performed against its one hardcoded peer,
// and caches the peer's address on a successful reply.
func bootstrap(conn *net.UDPConn, queue *queryqueue.Queue, cache *PeerCache, selfID krpc.NodeID, seed string) {
	addr, err := net.ResolveUDPAddr("udp", seed)
	if err != nil {
		log.Printf("duhastd: bad seed address %q: %v\n", seed, err)
		return
	}

	args := krpc.FindNodeQuery{ID: selfID, Target: selfID}
	payload, err := queue.SendMessage(conn, addr, krpc.MethodFindNode, args)
	if err != nil {
		log.Printf("duhastd: find_node to %s failed: %v\n", seed, err)
		return
	}

	msg, err := krpc.DecodeMessage[krpc.FindNodeResponse](payload)
	if err != nil {
		log.Printf("duhastd: decoding find_node response from %s: %v\n", seed, err)
		return
	}
	if msg.E != nil {
		log.Printf("duhastd: %s returned error %d: %s\n", seed, msg.E.Code, msg.E.Message)
		return
	}

	log.Printf("duhastd: %s replied with %d compact nodes\n", seed, msg.R.Nodes.Len())
	if err := cache.Remember(msg.R.ID, mustNodeAddr(addr)); err != nil {
		log.Printf("duhastd: caching peer %s: %v\n", seed, err)
	}
}

func mustNodeAddr(addr *net.UDPAddr) krpc.NodeAddr {
	port := addr.Port
	na, err := krpc.NewNodeAddr(addr.IP, uint16(port))
	if err != nil {
		// addr came from a successfully resolved UDP address; this only
		// fails for non-IPv4 addresses, which this core does not yet cache.
		return krpc.NodeAddr{}
	}
	return na
}
