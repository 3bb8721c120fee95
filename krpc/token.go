/*
File Name:  token.go

Opaque byte-string credentials. Both Token and TransactionToken are plain
byte slices on the wire; they exist as distinct Go types only so the codec
and the query queue can't accidentally swap a get_peers token for a
transaction id.
*/

package krpc

// Token is the opaque credential a remote node hands back in a get_peers
// response, to be echoed verbatim in a following announce_peer.
type Token []byte

// MarshalBencode implements bencode.Marshaler.
func (t Token) MarshalBencode() ([]byte, error) {
	return appendByteString(nil, t), nil
}

// UnmarshalBencode implements bencode.Unmarshaler. The decoder reuses b for
// the next value it decodes, so the Token keeps its own copy of the bytes.
func (t *Token) UnmarshalBencode(b []byte) error {
	raw, err := parseByteString(b)
	if err != nil {
		return err
	}
	*t = Token(append([]byte(nil), raw...))
	return nil
}

// TransactionToken is the short client-chosen correlator ("t") echoed
// unmodified by the responder. This implementation always issues two-byte
// big-endian counters, but the type is treated as wholly opaque: byte
// equality, never numeric comparison, is how replies get matched to queries.
type TransactionToken []byte

// MarshalBencode implements bencode.Marshaler.
func (t TransactionToken) MarshalBencode() ([]byte, error) {
	return appendByteString(nil, t), nil
}

// UnmarshalBencode implements bencode.Unmarshaler. As with Token, the result
// is a copy, independent of the decoder's buffer.
func (t *TransactionToken) UnmarshalBencode(b []byte) error {
	raw, err := parseByteString(b)
	if err != nil {
		return err
	}
	*t = TransactionToken(append([]byte(nil), raw...))
	return nil
}

// Clone returns an owned copy, safe to retain beyond the buffer it was
// decoded from.
func (t TransactionToken) Clone() TransactionToken {
	out := make(TransactionToken, len(t))
	copy(out, t)
	return out
}

// Equal compares two tokens by byte content.
func (t TransactionToken) Equal(other TransactionToken) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if t[i] != other[i] {
			return false
		}
	}
	return true
}
