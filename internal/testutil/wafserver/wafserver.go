// Package wafserver runs a throwaway WAF engine endpoint for tests: an mTLS
// listener that answers the frame protocol according to a test-supplied
// handler.
package wafserver

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"strconv"
	"testing"

	"github.com/netshield/wafclient/internal/credentials"
	"github.com/netshield/wafclient/internal/endpoint"
	"github.com/netshield/wafclient/internal/protocol"
	"github.com/netshield/wafclient/internal/testutil/tlstest"
)

// Handler maps one decoded request frame to a response tag and body.
type Handler func(fr protocol.Frame) (protocol.MsgType, any)

// Echo answers every request with its matching response tag and the given
// body.
func Echo(body map[string]any) Handler {
	return func(fr protocol.Frame) (protocol.MsgType, any) {
		return fr.Type.Response(), body
	}
}

type Server struct {
	ln   net.Listener
	port int

	// Received collects the request frames the server decoded, in order.
	Received chan protocol.Frame
}

// Start listens on a loopback port and serves handler until the test ends.
// It returns the server plus a credential Set that the listener accepts.
func Start(t testing.TB, handler Handler) (*Server, credentials.Set) {
	t.Helper()

	ca := tlstest.NewAuthority(t, "wafserver-test-ca")
	serverCert, serverKey := ca.IssueServerCert(t, "waf-engine", []string{"localhost"}, []net.IP{net.IPv4(127, 0, 0, 1)})
	clientCert, clientKey := ca.IssueClientCert(t, "waf-client")

	cert, err := tls.X509KeyPair(serverCert, serverKey)
	if err != nil {
		t.Fatalf("server key pair: %v", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(ca.CAPEM()) {
		t.Fatalf("append ca")
	}
	tlsCfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
	}

	ln, err := tls.Listen("tcp", "127.0.0.1:0", tlsCfg)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	srv := &Server{
		ln:       ln,
		port:     port,
		Received: make(chan protocol.Frame, 16),
	}
	go srv.serve(handler)
	t.Cleanup(func() { _ = ln.Close() })

	creds := credentials.Set{
		ClientCertPEM: string(clientCert),
		ClientKeyPEM:  string(clientKey),
		CAPEM:         string(ca.CAPEM()),
	}
	return srv, creds
}

// Endpoint returns the dialable endpoint of the listener.
func (s *Server) Endpoint() endpoint.Endpoint {
	return endpoint.Endpoint{Host: "127.0.0.1", Port: s.port}
}

// Close stops accepting connections.
func (s *Server) Close() {
	_ = s.ln.Close()
}

func (s *Server) serve(handler Handler) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn, handler)
	}
}

func (s *Server) handle(conn net.Conn, handler Handler) {
	defer conn.Close()
	fr, err := protocol.NewDecoder(conn).Next()
	if err != nil {
		return
	}
	select {
	case s.Received <- fr:
	default:
	}
	typ, body := handler(fr)
	out, err := protocol.Encode(typ, body)
	if err != nil {
		return
	}
	_, _ = conn.Write(out)
}
