// Package waf orchestrates the three WAF engine operations over one-shot
// mTLS connections, gated by the process-wide circuit breaker. Every runtime
// failure is absorbed into a fail-open result; only construction can fail.
package waf

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/netshield/wafclient/internal/breaker"
	"github.com/netshield/wafclient/internal/credentials"
	"github.com/netshield/wafclient/internal/endpoint"
	"github.com/netshield/wafclient/internal/observability"
	"github.com/netshield/wafclient/internal/protocol"
	"github.com/netshield/wafclient/internal/transport"
)

// emptyKeyPlaceholder substitutes a caller-supplied block-list key that is
// empty, so the engine never sees a zero-length key.
const emptyKeyPlaceholder = "unknown"

// Options configures a Client. Host and Port, when set, override anything
// resolved from ConnectString.
type Options struct {
	Host          string
	Port          int
	ConnectString string
	Credentials   credentials.Set

	// Logger defaults to a no-op logger when nil.
	Logger *zerolog.Logger
}

type dialFunc func(endpoint.Endpoint, credentials.Set) (*transport.Conn, error)

// Client issues analyze, check-block, and tier-limits operations. Operations
// on one instance are strictly sequential; separate instances may run in
// parallel and share the process-wide breaker.
type Client struct {
	ep    endpoint.Endpoint
	creds credentials.Set
	brk   *breaker.Breaker
	log   zerolog.Logger

	dial dialFunc
	conn *transport.Conn
}

// New validates the credential material and resolves the endpoint. This is
// the only place an error reaches the caller; everything after construction
// fails open.
func New(opts Options) (*Client, error) {
	if err := opts.Credentials.Validate(); err != nil {
		return nil, err
	}

	ep := endpoint.Default()
	if resolved, ok := endpoint.Resolve(opts.ConnectString); ok {
		ep = resolved
	}
	if opts.Host != "" {
		ep.Host = opts.Host
	}
	if opts.Port >= 1 && opts.Port <= 65535 {
		ep.Port = opts.Port
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	observability.RegisterMetrics()

	return &Client{
		ep:    ep,
		creds: opts.Credentials,
		brk:   breaker.Shared(),
		log:   logger,
		dial:  transport.Dial,
	}, nil
}

// Endpoint returns the resolved engine endpoint.
func (c *Client) Endpoint() endpoint.Endpoint {
	return c.ep
}

// Analyze submits request metadata and returns the engine's verdict. On any
// failure the verdict is allow with a diagnostic reason.
func (c *Client) Analyze(payload map[string]any) Verdict {
	body, err := c.do("analyze", protocol.MsgAnalyze, payload)
	if err != nil {
		return failOpenVerdict(err.Error())
	}
	return verdictFromBody(body)
}

// CheckBlock looks up a standalone block-list entry. On any failure the
// status is not-blocked with a diagnostic reason.
func (c *Client) CheckBlock(key string) BlockStatus {
	if key == "" {
		key = emptyKeyPlaceholder
	}
	body, err := c.do("check_block", protocol.MsgCheckBlock, map[string]any{"key": key})
	if err != nil {
		return BlockStatus{Blocked: false, Error: err.Error()}
	}
	return blockStatusFromBody(body)
}

// TierLimits asks the engine for the advisory connection limit of the
// current tier. The second return is false whenever the value could not be
// obtained.
func (c *Client) TierLimits() (int, bool) {
	body, err := c.do("tier_limits", protocol.MsgTierLimits, map[string]any{})
	if err != nil {
		return 0, false
	}
	n, ok := body["connection_limit"].(float64)
	if !ok {
		return 0, false
	}
	return int(n), true
}

// Close tears down any connection left open by an interrupted operation.
// Idempotent.
func (c *Client) Close() error {
	err := c.conn.Close()
	c.conn = nil
	return err
}

// do runs the shared operation template: breaker gate, connect, one request
// frame out, one response frame in, tag check, breaker update, disconnect.
func (c *Client) do(op string, req protocol.MsgType, body any) (map[string]any, error) {
	start := time.Now()

	if !c.brk.Allow() {
		observability.RecordOperation(op, "cooldown", time.Since(start))
		c.log.Debug().Str("op", op).Msg("breaker open, skipping engine")
		return nil, fmt.Errorf("waf %s: unavailable (cooldown)", op)
	}

	res, err := c.attempt(req, body)
	if err != nil {
		if c.brk.Failure() {
			observability.RecordBreakerOpen()
			c.log.Warn().Str("op", op).Err(err).
				Msg("waf engine unreachable, breaker open")
		} else {
			c.log.Debug().Str("op", op).Err(err).Msg("waf operation failed")
		}
		observability.RecordOperation(op, "fail_open", time.Since(start))
		return nil, fmt.Errorf("waf %s: %w", op, err)
	}

	c.brk.Success()
	observability.RecordOperation(op, "ok", time.Since(start))
	return res, nil
}

func (c *Client) attempt(req protocol.MsgType, body any) (map[string]any, error) {
	conn, err := c.dial(c.ep, c.creds)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	defer func() {
		_ = conn.Close()
		c.conn = nil
	}()

	data, err := protocol.Encode(req, body)
	if err != nil {
		return nil, err
	}
	if err := conn.Send(data); err != nil {
		return nil, err
	}
	fr, err := conn.Recv()
	if err != nil {
		return nil, err
	}
	if fr.Type != req.Response() {
		return nil, fmt.Errorf("%w: got 0x%02x, want 0x%02x",
			protocol.ErrUnexpectedType, byte(fr.Type), byte(req.Response()))
	}
	return fr.Body, nil
}
