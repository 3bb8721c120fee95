/*
File Name:  codec.go

The bencoded DHT envelope and the two-phase decode protocol: a shallow parse
that exposes only "t" and "y" for routing, followed by a full parse into the
concrete query or response type once the caller knows what it's expecting.
*/

package krpc

import (
	"github.com/anacrolix/torrent/bencode"
)

func bencodeMarshal(v interface{}) ([]byte, error) {
	return bencode.Marshal(v)
}

func bencodeUnmarshal(b []byte, v interface{}) error {
	return bencode.Unmarshal(b, v)
}

// IncomingEnvelope is a shallow-parsed view of a datagram: enough to route it
// by transaction token before committing to a response type. The embedded
// byte slices are copies and do not alias the buffer IncomingEnvelope was
// decoded from.
type IncomingEnvelope struct {
	T TransactionToken `bencode:"t"`
	Y string           `bencode:"y"`

	// Q is set only when Y == KindQuery.
	Q string `bencode:"q,omitempty"`

	// A, R and E hold the still-encoded argument/response/error dicts, deferred
	// until the caller knows which concrete type to decode them into. Unused
	// dictionary keys elsewhere in the envelope are ignored automatically by
	// the underlying struct-tag decoder, satisfying the forward-compatibility
	// requirement.
	A bencode.Bytes `bencode:"a,omitempty"`
	R bencode.Bytes `bencode:"r,omitempty"`
	E bencode.Bytes `bencode:"e,omitempty"`
}

// DecodeEnvelope performs the shallow parse: decode just enough of buf to read
// the transaction token and message kind.
func DecodeEnvelope(buf []byte) (env IncomingEnvelope, err error) {
	if err := bencodeUnmarshal(buf, &env); err != nil {
		return env, &CodecError{Kind: Malformed, Msg: "envelope: " + err.Error()}
	}

	switch env.Y {
	case KindQuery, KindResponse, KindError:
	default:
		return env, &CodecError{Kind: UnknownKind, Msg: "y=" + env.Y}
	}

	return env, nil
}

// DecodedQuery is the result of fully decoding a query envelope: exactly one
// of the typed fields is non-nil, selected by Method.
type DecodedQuery struct {
	Method       string
	Ping         *PingQuery
	FindNode     *FindNodeQuery
	GetPeers     *GetPeersQuery
	AnnouncePeer *AnnouncePeerQuery
}

// DecodeQuery fully parses a query envelope (y == "q") previously identified
// by DecodeEnvelope, dispatching on the "q" method name.
func DecodeQuery(env IncomingEnvelope) (q DecodedQuery, err error) {
	q.Method = env.Q

	switch env.Q {
	case MethodPing:
		q.Ping = new(PingQuery)
		err = bencodeUnmarshal(env.A, q.Ping)
	case MethodFindNode:
		q.FindNode = new(FindNodeQuery)
		err = bencodeUnmarshal(env.A, q.FindNode)
	case MethodGetPeers:
		q.GetPeers = new(GetPeersQuery)
		err = bencodeUnmarshal(env.A, q.GetPeers)
	case MethodAnnouncePeer:
		q.AnnouncePeer = new(AnnouncePeerQuery)
		err = bencodeUnmarshal(env.A, q.AnnouncePeer)
	default:
		return q, &CodecError{Kind: UnknownQuery, Msg: "q=" + env.Q}
	}

	if err != nil {
		return q, &CodecError{Kind: Malformed, Msg: "query args: " + err.Error()}
	}
	return q, nil
}

// Message is the fully decoded form of a reply datagram once the caller
// knows the expected response type R, per the two-phase decode protocol:
// DecodeEnvelope routes by transaction token to find out what was asked for,
// then DecodeMessage[R] parses the same bytes into the concrete type.
type Message[R any] struct {
	T TransactionToken
	R *R
	E *ErrorInfo
}

// DecodeMessage fully parses buf as a response or error envelope with the
// given response type R. Both R and E may be inspected on the caller's own
// Message; the codec does not resolve whether an error or a success arrived,
// since IncomingEnvelope.Y already told the caller that.
func DecodeMessage[R any](buf []byte) (msg Message[R], err error) {
	var full struct {
		T TransactionToken `bencode:"t"`
		Y string           `bencode:"y"`
		R *R               `bencode:"r,omitempty"`
		E *ErrorInfo       `bencode:"e,omitempty"`
	}

	if err := bencodeUnmarshal(buf, &full); err != nil {
		return msg, &CodecError{Kind: Malformed, Msg: "message: " + err.Error()}
	}

	switch full.Y {
	case KindResponse:
		if full.R == nil {
			return msg, &CodecError{Kind: Malformed, Msg: "y=r but no r dict present"}
		}
	case KindError:
		if full.E == nil {
			return msg, &CodecError{Kind: Malformed, Msg: "y=e but no e list present"}
		}
	default:
		return msg, &CodecError{Kind: UnknownKind, Msg: "y=" + full.Y}
	}

	msg.T = full.T
	msg.R = full.R
	msg.E = full.E
	return msg, nil
}

// outgoingQuery is the canonical envelope shape for an encoded query.
type outgoingQuery struct {
	A interface{}      `bencode:"a"`
	Q string           `bencode:"q"`
	T TransactionToken `bencode:"t"`
	Y string           `bencode:"y"`
}

// outgoingResponse is the canonical envelope shape for an encoded response.
type outgoingResponse struct {
	R interface{}      `bencode:"r"`
	T TransactionToken `bencode:"t"`
	Y string           `bencode:"y"`
}

// outgoingError is the canonical envelope shape for an encoded error.
type outgoingError struct {
	E ErrorInfo        `bencode:"e"`
	T TransactionToken `bencode:"t"`
	Y string           `bencode:"y"`
}

// EncodeQuery produces the canonical bencoded bytes for a query with the
// given transaction token. args is the query's argument dict: a PingQuery,
// FindNodeQuery, GetPeersQuery or AnnouncePeerQuery, or a pointer to one.
func EncodeQuery(t TransactionToken, method string, args interface{}) ([]byte, error) {
	return bencodeMarshal(outgoingQuery{A: args, Q: method, T: t, Y: KindQuery})
}

// EncodeResponse produces the canonical bencoded bytes for a response with
// the given transaction token, echoing it verbatim as required by the
// wire protocol.
func EncodeResponse(t TransactionToken, r interface{}) ([]byte, error) {
	return bencodeMarshal(outgoingResponse{R: r, T: t, Y: KindResponse})
}

// EncodeError produces the canonical bencoded bytes for an error reply.
func EncodeError(t TransactionToken, code int, message string) ([]byte, error) {
	return bencodeMarshal(outgoingError{E: ErrorInfo{Code: code, Message: message}, T: t, Y: KindError})
}
