package logger

import "context"

// Well-known field keys used across the gateway's log output.
const (
	KeyClient    = "client"
	KeySystemID  = "system_id"
	KeyMSISDN    = "msisdn"
	KeyMessageID = "message_id"
	KeySequence  = "sequence"
)

// LogContext carries session-scoped fields that should accompany every log
// line emitted while handling a PDU.
type LogContext struct {
	// Client is the peer address (host:port) of the SMPP session.
	Client string

	// SystemID is the bound system_id, empty before a successful bind.
	SystemID string

	// MSISDN is the destination number of the message being processed.
	MSISDN string

	// MessageID is the message id allocated for the current submit_sm.
	MessageID string
}

type logContextKey struct{}

// WithContext returns a context carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey{}, lc)
}

// FromContext extracts the LogContext, or nil if none is attached.
func FromContext(ctx context.Context) *LogContext {
	lc, _ := ctx.Value(logContextKey{}).(*LogContext)
	return lc
}

// appendContextFields prepends LogContext fields so they appear first in
// output.
func appendContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	ctxArgs := make([]any, 0, 8+len(args))
	if lc.Client != "" {
		ctxArgs = append(ctxArgs, KeyClient, lc.Client)
	}
	if lc.SystemID != "" {
		ctxArgs = append(ctxArgs, KeySystemID, lc.SystemID)
	}
	if lc.MSISDN != "" {
		ctxArgs = append(ctxArgs, KeyMSISDN, lc.MSISDN)
	}
	if lc.MessageID != "" {
		ctxArgs = append(ctxArgs, KeyMessageID, lc.MessageID)
	}
	return append(ctxArgs, args...)
}
