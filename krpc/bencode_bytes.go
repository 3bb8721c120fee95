/*
File Name:  bencode_bytes.go

Hand-rolled parsing/emission of the single bencode value kind the wire types
in this package care about: the byte-string ("<len>:<bytes>"). The
anacrolix/torrent/bencode library handles dictionaries, integers and lists
for us via struct tags, but the byte-string backed fields (NodeID, Token,
TransactionToken, CompactNodesList, NodeAddr) implement bencode.Marshaler /
bencode.Unmarshaler directly. The decoder hands each Unmarshaler a scratch
buffer that it reuses for the next value, so those types copy the bytes
they keep rather than aliasing it.
*/

package krpc

import (
	"bytes"
	"strconv"
)

// parseByteString parses a single bencode byte-string value out of b, which must
// contain exactly that one encoded value (the contract of bencode.Unmarshaler).
// The returned slice aliases b - no copy is made.
func parseByteString(b []byte) (value []byte, err error) {
	sep := bytes.IndexByte(b, ':')
	if sep <= 0 {
		return nil, &CodecError{Kind: Malformed, Msg: "not a bencode byte-string"}
	}

	n, convErr := strconv.Atoi(string(b[:sep]))
	if convErr != nil || n < 0 {
		return nil, &CodecError{Kind: Malformed, Msg: "invalid bencode string length prefix"}
	}

	start := sep + 1
	if start+n != len(b) {
		return nil, &CodecError{Kind: Malformed, Msg: "bencode string length mismatch"}
	}

	return b[start : start+n], nil
}

// appendByteString appends the bencode encoding of value ("<len>:<bytes>") to dst.
func appendByteString(dst []byte, value []byte) []byte {
	dst = strconv.AppendInt(dst, int64(len(value)), 10)
	dst = append(dst, ':')
	dst = append(dst, value...)
	return dst
}
