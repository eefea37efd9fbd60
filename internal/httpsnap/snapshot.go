// Package httpsnap shapes a generic HTTP request description into the
// analyze payload the WAF engine consumes.
package httpsnap

import (
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxInlineBody bounds how much request body travels inline in the payload.
// Larger bodies are truncated; the declared size keeps the true length.
const MaxInlineBody = 64 * 1024

// Snapshot is a transport-agnostic description of one inbound HTTP request.
type Snapshot struct {
	Method     string
	URL        string
	Host       string
	RemoteAddr string
	UserAgent  string
	RequestID  string
	Headers    http.Header
	Body       []byte

	// BodySize is the declared body size when known; zero means derive it
	// from len(Body).
	BodySize int64
}

// FromRequest captures a Snapshot from a live request. The body is read up
// to MaxInlineBody+1 bytes and is not restored on the request; callers that
// still need it should snapshot before consuming it.
func FromRequest(r *http.Request) Snapshot {
	snap := Snapshot{
		Method:     r.Method,
		URL:        r.URL.RequestURI(),
		Host:       r.Host,
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		Headers:    r.Header,
		BodySize:   r.ContentLength,
	}
	if r.Body != nil {
		body, _ := io.ReadAll(io.LimitReader(r.Body, MaxInlineBody+1))
		snap.Body = body
	}
	return snap
}

// Payload renders the analyze request body. Binary bodies are base64-shifted
// into body_b64 so the payload stays valid UTF-8 JSON; oversized bodies are
// truncated with the declared size preserved in body_size.
func (s Snapshot) Payload() map[string]any {
	requestID := s.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	payload := map[string]any{
		"method":      s.Method,
		"uri":         s.URL,
		"remote_addr": ClientIP(s.Headers, s.RemoteAddr),
		"host":        s.Host,
		"headers":     flattenHeaders(s.Headers),
		"user_agent":  s.UserAgent,
		"request_id":  requestID,
	}

	body := s.Body
	size := s.BodySize
	if size <= 0 {
		size = int64(len(body))
	}
	if len(body) > MaxInlineBody {
		body = body[:MaxInlineBody]
	}
	if size > 0 {
		payload["body_size"] = size
	}
	if len(body) > 0 {
		if utf8.Valid(body) {
			payload["body"] = string(body)
		} else {
			payload["body_b64"] = base64.StdEncoding.EncodeToString(body)
		}
	}
	return payload
}

// ClientIP resolves the originating client address: X-Forwarded-For (first
// value), then X-Real-IP, then a Forwarded "for=" token, then the raw remote
// address, then loopback.
func ClientIP(headers http.Header, remoteAddr string) string {
	if v := headerValue(headers, "X-Forwarded-For"); v != "" {
		first, _, _ := strings.Cut(v, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if v := headerValue(headers, "X-Real-IP"); v != "" {
		return v
	}
	if v := forwardedFor(headerValue(headers, "Forwarded")); v != "" {
		return v
	}
	if remoteAddr != "" {
		if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
			return host
		}
		return remoteAddr
	}
	return "127.0.0.1"
}

func headerValue(headers http.Header, name string) string {
	if headers == nil {
		return ""
	}
	return strings.TrimSpace(headers.Get(name))
}

// forwardedFor extracts the for= token from an RFC 7239 Forwarded value.
func forwardedFor(v string) string {
	for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ';' || r == ',' }) {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "for") {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		value = strings.TrimPrefix(value, "[")
		if i := strings.IndexByte(value, ']'); i >= 0 {
			value = value[:i]
		}
		if value != "" {
			return value
		}
	}
	return ""
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for name, values := range headers {
		flat[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	return flat
}
