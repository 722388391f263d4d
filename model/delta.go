package model

// DeltaKind tags which mutation a Delta carries.
type DeltaKind int

const (
	// DeltaAnnotate prepends an event annotation.
	DeltaAnnotate DeltaKind = iota
	// DeltaBinaryAnnotate prepends a typed tag.
	DeltaBinaryAnnotate
	// DeltaName renames the span.
	DeltaName
	// DeltaAsync marks the trace async and adds an "async" event
	// annotation to the root span.
	DeltaAsync
)

// Delta is the value the client API's annotation helpers produce and the
// aggregator applies: a span rename, the async flag, an event annotation,
// or a typed binary tag, each optionally carrying an endpoint override.
type Delta struct {
	Kind DeltaKind

	// DeltaAnnotate / DeltaAsync
	Value    string
	Endpoint *Endpoint

	// DeltaBinaryAnnotate
	Key       string
	BinValue  any
	BinType   BinaryAnnotationType

	// DeltaName
	Name string
}

// Annotate builds a DeltaAnnotate delta. An omitted endpoint defaults to
// the aggregator's configured local endpoint when applied.
func Annotate(value string, endpoint *Endpoint) Delta {
	return Delta{Kind: DeltaAnnotate, Value: value, Endpoint: endpoint}
}

// BinaryAnnotate builds a DeltaBinaryAnnotate delta. Applying a delta
// whose Type is not ValidType is a silent no-op.
func BinaryAnnotate(t BinaryAnnotationType, key string, value any, endpoint *Endpoint) Delta {
	return Delta{Kind: DeltaBinaryAnnotate, Key: key, BinValue: value, BinType: t, Endpoint: endpoint}
}

// Name builds a DeltaName delta.
func Name(name string) Delta {
	return Delta{Kind: DeltaName, Name: name}
}

// AsyncFlag builds a DeltaAsync delta.
func AsyncFlag() Delta {
	return Delta{Kind: DeltaAsync, Value: "async"}
}
