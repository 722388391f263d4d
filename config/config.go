// Package config holds the handful of keys the core itself recognizes:
// system_id (default service name), ip/port (default local endpoint),
// reporter, debug_context, and the default ttl. Per-trace ttl/reporter
// overrides are start options of the ztrace package, not Config fields.
// Environment-variable resolution and local-interface discovery are
// pluggable concerns; this package ships minimal, real default
// implementations of both so the library works out of the box.
package config

import (
	"net"
	"time"

	"github.com/ztrace-go/ztrace/internal/env"
	"github.com/ztrace-go/ztrace/model"
)

// DebugContextPolicy selects how the task-local context API reacts to a
// missing ambient Id.
type DebugContextPolicy int

const (
	// Silent returns the ignore sentinel with no side effect.
	Silent DebugContextPolicy = iota
	// Warn logs once (with a stack trace) and returns the ignore sentinel.
	Warn
	// Raise panics; only appropriate for tests/strict environments.
	Raise
)

// DefaultTTL is the default idle window: 30 seconds of inactivity
// before an aggregator force-closes its trace.
const DefaultTTL = 30 * time.Second

// Config is the core's resolved configuration.
type Config struct {
	SystemID     string
	Endpoint     model.Endpoint
	Reporter     model.Reporter
	DebugContext DebugContextPolicy
	DefaultTTL   time.Duration
}

// Default returns a Config with the default TTL and a best-effort
// auto-discovered local endpoint; Reporter is nil (callers must supply
// one, or sampled traces are silently dropped on termination).
func Default() Config {
	return Config{
		Endpoint:     discoverEndpoint(),
		DebugContext: Silent,
		DefaultTTL:   DefaultTTL,
	}
}

func discoverEndpoint() model.Endpoint {
	ip, ok := DiscoverLocalIPv4()
	e := model.Endpoint{}
	if ok {
		e.HasIPv4 = true
		e.IPv4 = ip
	}
	return e
}

// DiscoverLocalIPv4 returns the first non-loopback IPv4 address bound to
// any local interface, falling back to 127.0.0.1. This is a minimal
// default for the interface-discovery collaborator; it is not meant to
// handle multi-homed routing policy.
func DiscoverLocalIPv4() (addr [4]byte, ok bool) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return loopback4(), true
	}
	for _, a := range addrs {
		ipNet, isNet := a.(*net.IPNet)
		if !isNet || ipNet.IP.IsLoopback() {
			continue
		}
		v4 := ipNet.IP.To4()
		if v4 == nil {
			continue
		}
		var out [4]byte
		copy(out[:], v4)
		return out, true
	}
	return loopback4(), true
}

func loopback4() [4]byte { return [4]byte{127, 0, 0, 1} }

// FromEnv overlays ZTRACE_SERVICE / ZTRACE_IP / ZTRACE_PORT /
// ZTRACE_DEBUG_CONTEXT onto base, leaving fields whose env var is unset
// untouched.
func FromEnv(base Config) Config {
	if v := env.Getenv("ZTRACE_SERVICE"); v != "" {
		base.SystemID = v
		base.Endpoint.ServiceName = v
	}
	if v := env.Getenv("ZTRACE_IP"); v != "" {
		if ip := net.ParseIP(v); ip != nil {
			if v4 := ip.To4(); v4 != nil {
				base.Endpoint.HasIPv4 = true
				copy(base.Endpoint.IPv4[:], v4)
			} else {
				base.Endpoint.HasIPv6 = true
				copy(base.Endpoint.IPv6[:], ip.To16())
			}
		}
	}
	if v := env.Getenv("ZTRACE_PORT"); v != "" {
		if p, ok := parsePort(v); ok {
			base.Endpoint.Port = p
		}
	}
	switch env.Getenv("ZTRACE_DEBUG_CONTEXT") {
	case "warn":
		base.DebugContext = Warn
	case "raise":
		base.DebugContext = Raise
	case "silent":
		base.DebugContext = Silent
	}
	return base
}

func parsePort(s string) (uint16, bool) {
	var n uint16
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint16(c-'0')
	}
	return n, true
}
