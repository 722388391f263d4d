package model

import (
	"encoding/base64"
	"net"
	"sort"

	"github.com/ztrace-go/ztrace/wire"
)

// Convert turns every span in t into its wire.Span form. t must already
// have EndTimestamp set (by finish or the timeout policy) before calling
// Convert: unfinished spans use it as their end.
func (t *TraceState) Convert() []wire.Span {
	out := make([]wire.Span, 0, len(t.Spans))
	for _, sp := range t.Spans {
		out = append(out, convertSpan(t, sp))
	}
	// Deterministic ordering for tests/golden output: root first, then by
	// span id hex. The wire format itself doesn't care about span order.
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID == t.RootSpanID.String() && out[j].ID != out[i].ID {
			return true
		}
		if out[j].ID == t.RootSpanID.String() && out[j].ID != out[i].ID {
			return false
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func convertSpan(t *TraceState, sp *SpanInfo) wire.Span {
	end := sp.End
	if end == nil {
		end = t.EndTimestamp
	}

	ws := wire.Span{
		TraceID:   t.TraceID.String(),
		ID:        sp.ID.String(),
		Name:      sp.Name,
		Timestamp: sp.Start.ToAbsoluteMicros(),
		Debug:     t.Debug,
	}
	if !sp.ParentID.IsRoot() {
		ws.ParentID = sp.ParentID.String()
	}
	if !sp.Shared && end != nil {
		d := sp.Start.DurationMicros(*end)
		ws.Duration = &d
	}

	anns := append([]Annotation(nil), sp.Annotations...)
	sort.SliceStable(anns, func(i, j int) bool { return anns[i].Timestamp.Before(anns[j].Timestamp) })
	for _, a := range anns {
		ws.Annotations = append(ws.Annotations, wire.Annotation{
			Timestamp: a.Timestamp.ToAbsoluteMicros(),
			Value:     a.Value,
			Endpoint:  convertEndpoint(a.Endpoint),
		})
	}

	bins := append([]BinaryAnnotation(nil), sp.BinaryAnnotations...)
	for _, b := range bins {
		ws.BinaryAnnotations = append(ws.BinaryAnnotations, wire.BinaryAnnotation{
			Key:      b.Key,
			Value:    convertBinaryValue(b.Type, b.Value),
			Type:     binaryTypeName(b.Type),
			Endpoint: convertEndpoint(b.Endpoint),
		})
	}

	return ws
}

func binaryTypeName(t BinaryAnnotationType) string {
	switch t {
	case BinaryString:
		return "" // string is the default type and is omitted from the wire form
	case BinaryBool:
		return "bool"
	case BinaryInt16:
		return "i16"
	case BinaryInt32:
		return "i32"
	case BinaryInt64:
		return "i64"
	case BinaryDouble:
		return "double"
	case BinaryBytes:
		return "bytes"
	default:
		return ""
	}
}

func convertBinaryValue(t BinaryAnnotationType, v any) any {
	// bool/integer/string values round-trip as-is through encoding/json;
	// BinaryBytes is base64-encoded here so callers can pass a raw []byte
	// through Tag without doing the encoding themselves.
	if t == BinaryBytes {
		if b, ok := v.([]byte); ok {
			return base64.StdEncoding.EncodeToString(b)
		}
	}
	return v
}

// convertEndpoint resolves a Hostname-only endpoint to an IP at
// conversion time: v4 addresses are preferred over v6. Missing
// service_name renders as "", missing port as 0.
func convertEndpoint(e *Endpoint) *wire.Endpoint {
	if e == nil {
		return nil
	}
	we := &wire.Endpoint{ServiceName: e.ServiceName, Port: e.Port}
	if e.HasIPv4 {
		we.IPv4 = net.IP(e.IPv4[:]).String()
	}
	if e.HasIPv6 {
		we.IPv6 = net.IP(e.IPv6[:]).String()
	}
	if !e.HasIPv4 && !e.HasIPv6 && e.Hostname != "" {
		if ips, err := net.LookupIP(e.Hostname); err == nil {
			for _, ip := range ips {
				if v4 := ip.To4(); v4 != nil {
					we.IPv4 = v4.String()
					break
				}
			}
			if we.IPv4 == "" {
				for _, ip := range ips {
					if v4 := ip.To4(); v4 == nil {
						we.IPv6 = ip.String()
						break
					}
				}
			}
		}
	}
	return we
}
