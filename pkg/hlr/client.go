package hlr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/smppware/hlrgate/internal/logger"
	"github.com/smppware/hlrgate/pkg/metrics"
)

// ErrTimeout reports that the HLR provider did not answer within the
// configured deadline.
var ErrTimeout = errors.New("hlr request timed out")

// TransportError reports a non-timeout failure talking to the HLR provider:
// connection refused, TLS failure, a non-2xx status, or an unparseable body.
type TransportError struct {
	// StatusCode is the HTTP status, or 0 if no response was received.
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("hlr request failed: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("hlr request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ClientConfig configures the HLR provider client.
type ClientConfig struct {
	// BaseURL is the provider endpoint without trailing slash.
	BaseURL string

	// APIKey and APISecret are path segments of the lookup URL.
	APIKey    string
	APISecret string

	// Timeout bounds the whole request including body read.
	Timeout time.Duration
}

// Client performs raw lookups against the HLR provider over HTTP.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient builds a provider client. The transport keeps a generous pool
// of warm connections to the provider: under burst load every submit
// handler hits the same host, and a cold TLS handshake costs more than the
// lookup itself.
func NewClient(cfg ClientConfig) *Client {
	transport := &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		MaxConnsPerHost:     500,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

// lookupURL builds {base}/{api_key}/{api_secret}/{msisdn}.
func (c *Client) lookupURL(msisdn string) string {
	return fmt.Sprintf("%s/%s/%s/%s",
		c.cfg.BaseURL,
		url.PathEscape(c.cfg.APIKey),
		url.PathEscape(c.cfg.APISecret),
		url.PathEscape(msisdn))
}

// Lookup queries the provider for one MSISDN and returns the stamped record
// along with the observed request latency. The provider keys its response
// object by the queried number; an answer that carries no entry for the
// number yields the synthesized empty record, which classifies as invalid.
//
// Errors are split into ErrTimeout and *TransportError so the resolver can
// label them. No record is returned alongside an error. On success the
// request counter is labeled with the record's classification.
func (c *Client) Lookup(ctx context.Context, msisdn string) (Record, time.Duration, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.lookupURL(msisdn), nil)
	if err != nil {
		return nil, 0, &TransportError{Err: err}
	}

	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	metrics.HLRLatency.Observe(elapsed.Seconds())

	if err != nil {
		if isTimeout(err) {
			metrics.HLRRequests.WithLabelValues(metrics.ResultTimeout).Inc()
			logger.WarnCtx(ctx, "hlr request timed out",
				logger.KeyMSISDN, msisdn, "elapsed", elapsed)
			return nil, elapsed, fmt.Errorf("%w after %s", ErrTimeout, elapsed.Round(time.Millisecond))
		}
		metrics.HLRRequests.WithLabelValues(metrics.ResultError).Inc()
		return nil, elapsed, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		metrics.HLRRequests.WithLabelValues(metrics.ResultError).Inc()
		return nil, elapsed, &TransportError{
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	var payload map[string]Record
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		metrics.HLRRequests.WithLabelValues(metrics.ResultError).Inc()
		return nil, elapsed, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	rec := payload[msisdn]
	if len(rec) == 0 {
		rec = EmptyRecord(msisdn)
	}
	class := rec.Stamp()

	metrics.HLRRequests.WithLabelValues(class).Inc()
	logger.DebugCtx(ctx, "hlr lookup completed",
		logger.KeyMSISDN, msisdn,
		"classification", class,
		"elapsed", elapsed)
	return rec, elapsed, nil
}

// isTimeout covers both the per-request context deadline and timeouts
// surfaced by the transport.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
