// Package gateway implements the SMPP server: the TCP listener, the
// per-connection session state machine, and the submit pipeline that
// classifies destinations through the HLR resolver and emits delivery
// receipts.
package gateway

import (
	"context"

	"github.com/smppware/hlrgate/pkg/hlr"
)

// RecordCache is the subset of the cache backend the gateway needs beyond
// what the resolver already holds: liveness probing for the healthcheck.
type RecordCache interface {
	hlr.Cache
	Ping(ctx context.Context) error
	Close() error
}

// Services bundles the shared dependencies injected into the server and
// its sessions. There are no package-level singletons; everything a
// session touches arrives through this struct.
type Services struct {
	// Resolver answers destination classification.
	Resolver *hlr.Resolver

	// Cache is the record cache backend (Redis in production, memory in
	// tests).
	Cache RecordCache

	// Recorder drains fresh lookups to the store. Nil when persistence
	// is disabled; Close is the owner's job, not the server's.
	Recorder hlr.Recorder
}
