/*
File Name:  compact.go

The compact binary packings BEP-5 uses inside query/response bodies:
NodeAddr (an IPv4 peer contact) and CompactNode (an IPv4 node contact, as
returned by find_node/get_peers). Both are carried over the wire as bencode
byte-strings, never as dicts.
*/

package krpc

import (
	"encoding/binary"
	"net"
	"strconv"
)

// NodeAddrLen is the packed size of a NodeAddr: 4 bytes IPv4 + 2 bytes port.
const NodeAddrLen = 6

// NodeAddr is a compact (IPv4, port) pair as used in get_peers' "values" list.
// The port is big-endian (network order), per BEP-5 and BEP-42's companion
// specification.
type NodeAddr struct {
	IP   [4]byte
	Port uint16
}

// NewNodeAddr builds a NodeAddr from a net.IP (must be, or be convertible to, IPv4) and a port.
func NewNodeAddr(ip net.IP, port uint16) (addr NodeAddr, err error) {
	v4 := ip.To4()
	if v4 == nil {
		return addr, &CodecError{Kind: Malformed, Msg: "NodeAddr requires an IPv4 address"}
	}
	copy(addr.IP[:], v4)
	addr.Port = port
	return addr, nil
}

func (a NodeAddr) udpAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IP(a.IP[:]), Port: int(a.Port)}
}

// String renders the address as "ip:port".
func (a NodeAddr) String() string {
	return a.udpAddr().String()
}

func (a NodeAddr) marshalInto(dst []byte) []byte {
	dst = append(dst, a.IP[:]...)
	var portBuf [2]byte
	binary.BigEndian.PutUint16(portBuf[:], a.Port)
	return append(dst, portBuf[:]...)
}

func nodeAddrFromBytes(b []byte) (addr NodeAddr, err error) {
	if len(b) != NodeAddrLen {
		return addr, &CodecError{Kind: BadLength, Msg: "node addr must be 6 bytes, got " + strconv.Itoa(len(b))}
	}
	copy(addr.IP[:], b[0:4])
	addr.Port = binary.BigEndian.Uint16(b[4:6])
	return addr, nil
}

// MarshalBencode implements bencode.Marshaler.
func (a NodeAddr) MarshalBencode() ([]byte, error) {
	var packed [NodeAddrLen]byte
	a.marshalInto(packed[:0])
	return appendByteString(nil, packed[:]), nil
}

// UnmarshalBencode implements bencode.Unmarshaler.
func (a *NodeAddr) UnmarshalBencode(b []byte) error {
	raw, err := parseByteString(b)
	if err != nil {
		return err
	}
	parsed, err := nodeAddrFromBytes(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// CompactNodeLen is the packed size of a CompactNode: 20-byte id + 4-byte IPv4 + 2-byte port.
const CompactNodeLen = NodeIDLen + NodeAddrLen

// CompactNode is a single (NodeID, IPv4, port) entry as found inside a
// CompactNodesList. Per the resolution of the port-endianness ambiguity
// (see DESIGN.md), its port is encoded big-endian, matching NodeAddr and
// BEP-5 generally, NOT the little-endian field the reference source used.
type CompactNode struct {
	ID   NodeID
	Addr NodeAddr
}

func compactNodeFromBytes(b []byte) (node CompactNode, err error) {
	if len(b) != CompactNodeLen {
		return node, &CodecError{Kind: BadLength, Msg: "compact node must be 26 bytes, got " + strconv.Itoa(len(b))}
	}
	copy(node.ID[:], b[:NodeIDLen])
	addr, err := nodeAddrFromBytes(b[NodeIDLen:])
	if err != nil {
		return node, err
	}
	node.Addr = addr
	return node, nil
}

func (n CompactNode) marshalInto(dst []byte) []byte {
	dst = append(dst, n.ID[:]...)
	return n.Addr.marshalInto(dst)
}

// CompactNodesList is a concatenation of zero or more 26-byte CompactNode
// blobs, carried as a single bencode byte-string. The raw bytes are kept
// verbatim (copied out of the decoder's buffer) and only unpacked into CompactNode
// values on demand via Nodes, so a caller that only wants to forward the
// blob never pays for parsing it.
type CompactNodesList struct {
	raw []byte
}

// NewCompactNodesList packs the given nodes into a CompactNodesList.
func NewCompactNodesList(nodes ...CompactNode) CompactNodesList {
	raw := make([]byte, 0, len(nodes)*CompactNodeLen)
	for _, n := range nodes {
		raw = n.marshalInto(raw)
	}
	return CompactNodesList{raw: raw}
}

// Len returns the number of packed CompactNode entries.
func (l CompactNodesList) Len() int {
	return len(l.raw) / CompactNodeLen
}

// Nodes unpacks every CompactNode entry. The backing list is already known to
// be a multiple of CompactNodeLen bytes (enforced at decode time), so this
// never fails.
func (l CompactNodesList) Nodes() []CompactNode {
	nodes := make([]CompactNode, 0, l.Len())
	for off := 0; off+CompactNodeLen <= len(l.raw); off += CompactNodeLen {
		node, _ := compactNodeFromBytes(l.raw[off : off+CompactNodeLen])
		nodes = append(nodes, node)
	}
	return nodes
}

// MarshalBencode implements bencode.Marshaler.
func (l CompactNodesList) MarshalBencode() ([]byte, error) {
	return appendByteString(nil, l.raw), nil
}

// UnmarshalBencode implements bencode.Unmarshaler. The length MUST be a
// multiple of CompactNodeLen, or decoding fails with BadLength.
func (l *CompactNodesList) UnmarshalBencode(b []byte) error {
	raw, err := parseByteString(b)
	if err != nil {
		return err
	}
	if len(raw)%CompactNodeLen != 0 {
		return &CodecError{Kind: BadLength, Msg: "compact nodes list length " + strconv.Itoa(len(raw)) + " is not a multiple of " + strconv.Itoa(CompactNodeLen)}
	}
	l.raw = append([]byte(nil), raw...)
	return nil
}
