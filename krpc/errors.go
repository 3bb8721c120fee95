/*
File Name:  errors.go
*/

package krpc

// CodecErrorKind enumerates the ways a wire message can fail to decode.
type CodecErrorKind int

const (
	// Malformed indicates the input was not valid bencode, or violated a
	// structural expectation the bencode grammar itself doesn't capture.
	Malformed CodecErrorKind = iota

	// BadLength indicates a fixed-width field (NodeID, NodeAddr, a
	// CompactNodesList blob) had the wrong size.
	BadLength

	// UnknownKind indicates the envelope's "y" discriminator was not one of
	// "q", "r", "e".
	UnknownKind

	// UnknownQuery indicates the envelope's "q" field named a query type this
	// package does not know how to decode the "a" dict into.
	UnknownQuery
)

func (k CodecErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case BadLength:
		return "bad length"
	case UnknownKind:
		return "unknown kind"
	case UnknownQuery:
		return "unknown query"
	default:
		return "unknown codec error"
	}
}

// CodecError is returned by every decode/encode operation in this package.
type CodecError struct {
	Kind CodecErrorKind
	Msg  string
}

func (e *CodecError) Error() string {
	if e.Msg == "" {
		return "krpc: " + e.Kind.String()
	}
	return "krpc: " + e.Kind.String() + ": " + e.Msg
}

// Is allows errors.Is(err, krpc.ErrBadLength) style comparisons by kind, ignoring
// the message text - two CodecErrors are equivalent if their Kind matches.
func (e *CodecError) Is(target error) bool {
	other, ok := target.(*CodecError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Sentinel errors for errors.Is comparisons against each CodecErrorKind.
var (
	ErrMalformed    = &CodecError{Kind: Malformed}
	ErrBadLength    = &CodecError{Kind: BadLength}
	ErrUnknownKind  = &CodecError{Kind: UnknownKind}
	ErrUnknownQuery = &CodecError{Kind: UnknownQuery}
)
