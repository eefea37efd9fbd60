package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strconv"
	"testing"

	"github.com/netshield/wafclient/internal/credentials"
	"github.com/netshield/wafclient/internal/endpoint"
	"github.com/netshield/wafclient/internal/protocol"
	"github.com/netshield/wafclient/internal/testutil/tlstest"
	"github.com/netshield/wafclient/internal/testutil/wafserver"
)

func TestDialSendRecv(t *testing.T) {
	srv, creds := wafserver.Start(t, wafserver.Echo(map[string]any{"blocked": false}))

	conn, err := Dial(srv.Endpoint(), creds)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if !conn.Connected() {
		t.Fatalf("expected connected")
	}

	req, err := protocol.Encode(protocol.MsgCheckBlock, map[string]any{"key": "k"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.Send(req); err != nil {
		t.Fatalf("send: %v", err)
	}
	fr, err := conn.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if fr.Type != protocol.MsgCheckBlock.Response() {
		t.Fatalf("type 0x%02x", fr.Type)
	}
	if fr.Body["blocked"] != false {
		t.Fatalf("body %v", fr.Body)
	}
}

func TestDialRefused(t *testing.T) {
	srv, creds := wafserver.Start(t, wafserver.Echo(nil))
	ep := srv.Endpoint()
	srv.Close()

	if _, err := Dial(ep, creds); !errors.Is(err, ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
}

func TestDialRejectsUntrustedPeer(t *testing.T) {
	srv, _ := wafserver.Start(t, wafserver.Echo(nil))

	// Credentials rooted in a CA the server does not chain to: handshake
	// must fail peer verification.
	other := tlstest.NewAuthority(t, "other-ca")
	cert, key := other.IssueClientCert(t, "client")
	bad := credentials.Set{
		ClientCertPEM: string(cert),
		ClientKeyPEM:  string(key),
		CAPEM:         string(other.CAPEM()),
	}
	if _, err := Dial(srv.Endpoint(), bad); !errors.Is(err, ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
}

func TestDialVerifiesHostname(t *testing.T) {
	// Server certificate names only "elsewhere.example": dialing the
	// loopback address must fail hostname verification.
	ln, creds := listenerWithCert(t, "elsewhere.example", nil)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// First read drives the server side of the handshake.
		buf := make([]byte, 1)
		_, _ = conn.Read(buf)
		_ = conn.Close()
	}()

	if _, err := Dial(listenerEndpoint(t, ln), creds); !errors.Is(err, ErrConnect) {
		t.Fatalf("expected hostname verification failure, got %v", err)
	}
}

func TestDialBadCredentialMaterial(t *testing.T) {
	srv, creds := wafserver.Start(t, wafserver.Echo(nil))
	bad := creds
	bad.ClientKeyPEM = "not pem"
	if _, err := Dial(srv.Endpoint(), bad); !errors.Is(err, ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	srv, creds := wafserver.Start(t, wafserver.Echo(nil))
	conn, err := Dial(srv.Endpoint(), creds)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if conn.Connected() {
		t.Fatalf("closed conn reports connected")
	}
	var nilConn *Conn
	if err := nilConn.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func TestRecvOnClosedPeer(t *testing.T) {
	// A server that hangs up without replying must surface a short-read
	// error and leave the connection unusable.
	ln, creds := listenerWithCert(t, "localhost", []net.IP{net.IPv4(127, 0, 0, 1)})
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// Drain the request, then hang up without answering.
		buf := make([]byte, 64)
		_, _ = conn.Read(buf)
		_ = conn.Close()
	}()

	conn, err := Dial(listenerEndpoint(t, ln), creds)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req, err := protocol.Encode(protocol.MsgTierLimits, map[string]any{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_ = conn.Send(req)

	if _, err := conn.Recv(); !errors.Is(err, protocol.ErrShortFrame) {
		t.Fatalf("expected ErrShortFrame, got %v", err)
	}
	if conn.Connected() {
		t.Fatalf("eof conn reports connected")
	}
}

// listenerWithCert starts a bare mTLS listener whose server certificate
// carries the given names, and returns client credentials the listener
// accepts.
func listenerWithCert(t *testing.T, dnsName string, ips []net.IP) (net.Listener, credentials.Set) {
	t.Helper()

	ca := tlstest.NewAuthority(t, "transport-test-ca")
	serverCert, serverKey := ca.IssueServerCert(t, dnsName, []string{dnsName}, ips)
	clientCert, clientKey := ca.IssueClientCert(t, "client")

	cert, err := tls.X509KeyPair(serverCert, serverKey)
	if err != nil {
		t.Fatalf("server key pair: %v", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(ca.CAPEM()) {
		t.Fatalf("append ca")
	}
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
	})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return ln, credentials.Set{
		ClientCertPEM: string(clientCert),
		ClientKeyPEM:  string(clientKey),
		CAPEM:         string(ca.CAPEM()),
	}
}

func listenerEndpoint(t *testing.T, ln net.Listener) endpoint.Endpoint {
	t.Helper()
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return endpoint.Endpoint{Host: host, Port: port}
}
