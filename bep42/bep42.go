/*
File Name:  bep42.go

BEP-42 node ID derivation: ties a node's 160-bit identity to its externally
observed IP address, using a CRC32C checksum of the masked address bytes to
make Sybil attacks against a target ID region considerably more expensive.
https://www.bittorrent.org/beps/bep_0042.html
*/

package bep42

import (
	"hash/crc32"
	"io"
	"net"

	"github.com/monoid/duhast/krpc"
)

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

var ipv4Mask = [4]byte{0x03, 0x0f, 0x3f, 0xff}
var ipv6Mask = [16]byte{0x01, 0x03, 0x07, 0x0f, 0x1f, 0x3f, 0x7f, 0xff}

// maskedCRC computes the CRC32C of the IP's octets, masked per BEP-42 and
// with the 3-bit salt r folded into the high bits of the first masked byte.
// ip must already be the raw 4 or 16 byte form (net.IP.To4()/To16()).
func maskedCRC(ip net.IP, r byte) uint32 {
	r &= 0x07

	var masked []byte
	if v4 := ip.To4(); v4 != nil {
		var buf [4]byte
		for i, b := range ipv4Mask {
			buf[i] = b & v4[i]
		}
		masked = buf[:]
	} else {
		v6 := ip.To16()
		var buf [16]byte
		for i, b := range ipv6Mask {
			buf[i] = b & v6[i]
		}
		masked = buf[:]
	}

	masked[0] |= r << 5

	return crc32.Checksum(masked, castagnoliTable)
}

// DeriveIdentity generates a BEP-42-conformant NodeID for the given external
// IP address. rng supplies the 20 bytes of randomness the algorithm wastes
// across its 21 constrained bits - typically crypto/rand.Reader, or a seeded
// stream cipher when determinism across runs is wanted.
func DeriveIdentity(ip net.IP, rng io.Reader) (id krpc.NodeID, err error) {
	var candidate [krpc.NodeIDLen]byte
	if _, err := io.ReadFull(rng, candidate[:]); err != nil {
		return id, err
	}

	r := candidate[19]
	crc := maskedCRC(ip, r)

	id[0] = byte(crc >> 24)
	id[1] = byte(crc >> 16)
	id[2] = byte(crc>>8)&0xf8 | candidate[2]&0x07
	copy(id[3:19], candidate[3:19])
	id[19] = candidate[19]

	return id, nil
}
