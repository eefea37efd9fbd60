// Package credentials loads and normalizes the PEM material used for the
// mutual-TLS handshake with the WAF engine.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrMissingClientPair = errors.New("credentials: client certificate and key are required")
	ErrMissingCA         = errors.New("credentials: ca certificate is required")
)

// Set holds the three PEM blobs for one client. Immutable once built and
// never logged.
type Set struct {
	ClientCertPEM string
	ClientKeyPEM  string
	CAPEM         string
}

// Validate checks the invariants a connection attempt relies on.
func (s Set) Validate() error {
	if strings.TrimSpace(s.CAPEM) == "" {
		return ErrMissingCA
	}
	if strings.TrimSpace(s.ClientCertPEM) == "" || strings.TrimSpace(s.ClientKeyPEM) == "" {
		return ErrMissingClientPair
	}
	return nil
}

// Inline is credential material supplied directly by the caller instead of
// a file. ConnectString is an optional endpoint hint distributed alongside
// the certificates.
type Inline struct {
	ClientCertPEM string `json:"client_cert_pem"`
	ClientKeyPEM  string `json:"client_key_pem"`
	CAPEM         string `json:"ca_pem"`
	ConnectString string `json:"connection_string,omitempty"`
}

// FromInline normalizes an inline record into a Set plus the optional
// connection-string hint.
func FromInline(rec Inline) (Set, string, error) {
	set := Set{
		ClientCertPEM: NormalizePEM(rec.ClientCertPEM),
		ClientKeyPEM:  NormalizePEM(rec.ClientKeyPEM),
		CAPEM:         NormalizePEM(rec.CAPEM),
	}
	if err := set.Validate(); err != nil {
		return Set{}, "", err
	}
	return set, strings.TrimSpace(rec.ConnectString), nil
}

// Load reads a JSON credential file and returns the normalized Set plus the
// optional connection-string hint.
func Load(path string) (Set, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Set{}, "", fmt.Errorf("credentials: read %s: %w", path, err)
	}
	var rec Inline
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Set{}, "", fmt.Errorf("credentials: parse %s: %w", path, err)
	}
	return FromInline(rec)
}

// NormalizePEM unescapes literal "\n" sequences, trims surrounding
// whitespace, and enforces a single trailing newline. Configuration systems
// routinely flatten PEM blocks onto one line; TLS stacks want them back.
func NormalizePEM(s string) string {
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return s + "\n"
}
