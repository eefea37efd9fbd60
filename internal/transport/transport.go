// Package transport manages one-shot mutually-authenticated connections to
// the WAF engine. Each logical operation opens a fresh connection and closes
// it before returning; there is deliberately no pooling or reuse.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/netshield/wafclient/internal/credentials"
	"github.com/netshield/wafclient/internal/endpoint"
	"github.com/netshield/wafclient/internal/protocol"
)

// IOTimeout bounds the connect, the handshake, and the single
// request/response round trip.
const IOTimeout = 2000 * time.Millisecond

var (
	ErrConnect    = errors.New("transport: connect failed")
	ErrShortWrite = errors.New("transport: short write")
)

// Conn is one live connection plus its frame decoder. Owned by exactly one
// client for one operation; the owner that opened it closes it on every
// exit path.
type Conn struct {
	conn net.Conn
	dec  *protocol.Decoder
	eof  bool
}

// Dial opens a TCP connection to ep and completes a mutual-TLS handshake
// using the supplied credential material. The peer certificate must chain to
// the supplied CA and match ep's host. The key pair and CA live only in the
// tls.Config; nothing touches the filesystem, so there is no ephemeral
// artifact to clean up afterward.
func Dial(ep endpoint.Endpoint, creds credentials.Set) (*Conn, error) {
	tlsCfg, err := clientTLSConfig(creds, ep.Host)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}

	dialer := net.Dialer{Timeout: IOTimeout}
	rawConn, err := dialer.Dial("tcp", ep.Addr())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}

	conn := tls.Client(rawConn, tlsCfg)
	// One absolute deadline covers handshake completion plus the full
	// request/response round trip.
	if err := conn.SetDeadline(time.Now().Add(IOTimeout)); err != nil {
		_ = rawConn.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	if err := conn.Handshake(); err != nil {
		_ = rawConn.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}

	return &Conn{conn: conn, dec: protocol.NewDecoder(conn)}, nil
}

func clientTLSConfig(creds credentials.Set, serverName string) (*tls.Config, error) {
	cert, err := tls.X509KeyPair([]byte(creds.ClientCertPEM), []byte(creds.ClientKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("load client key pair: %w", err)
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM([]byte(creds.CAPEM)); !ok {
		return nil, errors.New("parse ca certificate")
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		ServerName:   serverName,
	}, nil
}

// Send writes one encoded frame.
func (c *Conn) Send(frame []byte) error {
	n, err := c.conn.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return ErrShortWrite
	}
	return nil
}

// Recv reads one frame. An end-of-stream before a complete frame marks the
// connection as no longer usable.
func (c *Conn) Recv() (protocol.Frame, error) {
	fr, err := c.dec.Next()
	if err != nil {
		if errors.Is(err, protocol.ErrShortFrame) {
			c.eof = true
		}
		return protocol.Frame{}, err
	}
	return fr, nil
}

// Connected reports whether the transport handle is open and has not
// observed end-of-stream.
func (c *Conn) Connected() bool {
	return c != nil && c.conn != nil && !c.eof
}

// Close tears down the transport handle and discards buffered bytes. Safe to
// call any number of times.
func (c *Conn) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.dec = nil
	return err
}
