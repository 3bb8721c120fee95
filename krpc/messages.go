/*
File Name:  messages.go

The four Mainline DHT queries and their responses, narrowed to exactly the
four query/response pairs this core supports.
*/

package krpc

// Query method names, as carried in the envelope's "q" field.
const (
	MethodPing         = "ping"
	MethodFindNode     = "find_node"
	MethodGetPeers     = "get_peers"
	MethodAnnouncePeer = "announce_peer"
)

// Envelope discriminators, as carried in the "y" field.
const (
	KindQuery    = "q"
	KindResponse = "r"
	KindError    = "e"
)

// PingQuery is the argument dict of a ping query.
type PingQuery struct {
	ID NodeID `bencode:"id"`
}

// FindNodeQuery is the argument dict of a find_node query.
type FindNodeQuery struct {
	ID     NodeID `bencode:"id"`
	Target NodeID `bencode:"target"`
}

// GetPeersQuery is the argument dict of a get_peers query.
type GetPeersQuery struct {
	ID       NodeID `bencode:"id"`
	InfoHash NodeID `bencode:"info_hash"`
}

// AnnouncePeerQuery is the argument dict of an announce_peer query.
type AnnouncePeerQuery struct {
	ID          NodeID `bencode:"id"`
	InfoHash    NodeID `bencode:"info_hash"`
	Token       Token  `bencode:"token"`
	Port        uint16 `bencode:"port"`
	ImpliedPort uint8  `bencode:"implied_port"`
}

// PingResponse is the "r" dict returned for a ping query.
type PingResponse struct {
	ID NodeID `bencode:"id"`
}

// FindNodeResponse is the "r" dict returned for a find_node query.
type FindNodeResponse struct {
	ID    NodeID           `bencode:"id"`
	Nodes CompactNodesList `bencode:"nodes"`
}

// GetPeersResponse is the "r" dict returned for a get_peers query. At least
// one of Values/Nodes is typically present, but the codec accepts either,
// both, or neither.
type GetPeersResponse struct {
	ID     NodeID            `bencode:"id"`
	Token  Token             `bencode:"token"`
	Values []NodeAddr        `bencode:"values,omitempty"`
	Nodes  *CompactNodesList `bencode:"nodes,omitempty"`
}

// AnnouncePeerResponse is the "r" dict returned for an announce_peer query.
type AnnouncePeerResponse struct {
	ID NodeID `bencode:"id"`
}

// ErrorInfo is the 2-element [code, message] list carried in an "e" envelope.
type ErrorInfo struct {
	Code    int
	Message string
}

// Standard BEP-5 error codes.
const (
	ErrorGeneric       = 201
	ErrorServer        = 202
	ErrorProtocol      = 203
	ErrorMethodUnknown = 204
)

// MarshalBencode implements bencode.Marshaler, encoding as a 2-element list.
func (e ErrorInfo) MarshalBencode() ([]byte, error) {
	return bencodeMarshal([]interface{}{e.Code, e.Message})
}

// UnmarshalBencode implements bencode.Unmarshaler, decoding a 2-element list.
func (e *ErrorInfo) UnmarshalBencode(b []byte) error {
	var decoded interface{}
	if err := bencodeUnmarshal(b, &decoded); err != nil {
		return &CodecError{Kind: Malformed, Msg: "error list: " + err.Error()}
	}
	fields, ok := decoded.([]interface{})
	if !ok || len(fields) != 2 {
		return &CodecError{Kind: Malformed, Msg: "error list must have exactly 2 elements"}
	}

	code, ok := fields[0].(int64)
	if !ok {
		return &CodecError{Kind: Malformed, Msg: "error list: code is not an integer"}
	}
	msg, ok := fields[1].(string)
	if !ok {
		return &CodecError{Kind: Malformed, Msg: "error list: message is not a string"}
	}

	e.Code = int(code)
	e.Message = msg
	return nil
}
