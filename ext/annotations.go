// Package ext holds the annotation value constants and naming aliases
// a caller uses when tagging spans, the same way ddtrace/ext holds
// well-known tag/type name constants.
package ext

// Event annotation values. These are the conventional Zipkin v1
// single-word event names; any other string is a user annotation.
const (
	ClientSend   = "cs"
	ClientRecv   = "cr"
	ServerSend   = "ss"
	ServerRecv   = "sr"
	WireSend     = "ws"
	WireRecv     = "wr"
	EventError   = "error"
	EventAsync   = "async"
	EventTimeout = "timeout"
)

// Binary annotation keys carrying peer endpoints.
const (
	BinaryAnnotationClientAddr = "ca"
	BinaryAnnotationServerAddr = "sa"
	// BinaryAnnotationLocalComponent marks the "lc" tag start_span adds
	// when its Local option is set.
	BinaryAnnotationLocalComponent = "lc"
)

// aliasToValue is the client-side annotation-type expansion table:
// long-hand names the client API accepts are rewritten to their
// two-letter wire values before being sent to the aggregator.
var aliasToValue = map[string]string{
	"client_send": ClientSend,
	"client_recv": ClientRecv,
	"server_send": ServerSend,
	"server_recv": ServerRecv,
	"wire_send":   WireSend,
	"wire_recv":   WireRecv,
}

// ResolveAlias rewrites a long-hand annotation name to its two-letter
// wire value; any name not in the alias table is returned unchanged, on
// the assumption that it's an ordinary user annotation value rather
// than a recognized alias.
func ResolveAlias(name string) string {
	if v, ok := aliasToValue[name]; ok {
		return v
	}
	return name
}
