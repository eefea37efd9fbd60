// Package wafclient submits HTTP request metadata to a remote WAF engine
// over mutually-authenticated TLS and interprets the binary-framed verdict.
//
// The client is built to fail open: the engine being slow, down, or
// misbehaving never breaks the caller's own service. Every runtime failure
// is absorbed into an allow / not-blocked result carrying a diagnostic
// reason, and a process-wide circuit breaker stops repeated futile
// connection attempts during an outage.
//
//	creds, err := wafclient.LoadCredentials("/etc/waf/creds.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := wafclient.New(wafclient.Config{Credentials: creds})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	verdict := client.AnalyzeRequest(req)
//	if verdict.Blocked() {
//	    http.Error(w, "forbidden", http.StatusForbidden)
//	    return
//	}
//
// Each operation opens one fresh connection, exchanges exactly one request
// and one response frame, and disconnects. There is no pooling by design.
package wafclient

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/netshield/wafclient/internal/credentials"
	"github.com/netshield/wafclient/internal/httpsnap"
	"github.com/netshield/wafclient/internal/waf"
)

// Credentials is the PEM material for the mutual-TLS handshake.
type Credentials = credentials.Set

// InlineCredentials is credential material supplied directly instead of via
// a file.
type InlineCredentials = credentials.Inline

// Verdict is the engine's answer to an analyze operation.
type Verdict = waf.Verdict

// BlockStatus is the engine's answer to a block-list lookup.
type BlockStatus = waf.BlockStatus

// Snapshot is a transport-agnostic description of one HTTP request.
type Snapshot = httpsnap.Snapshot

// Config configures a Client. Host and Port, when set, override anything
// resolved from ConnectString; ConnectString falls back to the hint carried
// by the credential source; everything else defaults.
type Config struct {
	Host          string
	Port          int
	ConnectString string
	Credentials   Credentials

	// Logger defaults to a no-op logger when nil.
	Logger *zerolog.Logger
}

// LoadCredentials reads a JSON credential file. When the file carries a
// connection-string hint it is returned through CredentialsWithHint; this
// helper discards it for callers that configure the endpoint themselves.
func LoadCredentials(path string) (Credentials, error) {
	set, _, err := credentials.Load(path)
	return set, err
}

// CredentialsWithHint reads a JSON credential file and also returns the
// optional connection-string hint embedded in it.
func CredentialsWithHint(path string) (Credentials, string, error) {
	return credentials.Load(path)
}

// InlineToCredentials normalizes inline PEM material.
func InlineToCredentials(rec InlineCredentials) (Credentials, string, error) {
	return credentials.FromInline(rec)
}

// Client is the public WAF verdict client. Operations on one instance are
// sequential; instances are cheap and share one process-wide breaker.
type Client struct {
	inner *waf.Client
}

// New validates the configuration and resolves the engine endpoint. This is
// the only call in the package that surfaces an error for the WAF setup;
// all operations after it fail open.
func New(cfg Config) (*Client, error) {
	inner, err := waf.New(waf.Options{
		Host:          cfg.Host,
		Port:          cfg.Port,
		ConnectString: cfg.ConnectString,
		Credentials:   cfg.Credentials,
		Logger:        cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Client{inner: inner}, nil
}

// Analyze submits a prepared payload record and returns the verdict.
func (c *Client) Analyze(payload map[string]any) Verdict {
	return c.inner.Analyze(payload)
}

// AnalyzeSnapshot shapes a Snapshot into the analyze payload and submits it.
func (c *Client) AnalyzeSnapshot(snap Snapshot) Verdict {
	return c.inner.Analyze(snap.Payload())
}

// AnalyzeRequest captures and submits a live HTTP request. The request body
// is consumed up to the inline limit; snapshot first if the handler still
// needs it.
func (c *Client) AnalyzeRequest(r *http.Request) Verdict {
	return c.AnalyzeSnapshot(httpsnap.FromRequest(r))
}

// CheckBlock looks up a standalone block-list key.
func (c *Client) CheckBlock(key string) BlockStatus {
	return c.inner.CheckBlock(key)
}

// TierLimits returns the advisory connection limit for the current tier,
// or false when it could not be obtained.
func (c *Client) TierLimits() (int, bool) {
	return c.inner.TierLimits()
}

// Close releases any connection left behind by an interrupted operation.
// Idempotent.
func (c *Client) Close() error {
	return c.inner.Close()
}
