package wafclient

import (
	"net/http/httptest"
	"testing"

	"github.com/netshield/wafclient/internal/testutil/wafserver"
)

func TestEndToEndAnalyzeRequest(t *testing.T) {
	srv, creds := wafserver.Start(t, wafserver.Echo(map[string]any{
		"action":  "block",
		"score":   91,
		"message": "sql injection",
	}))
	client, err := New(Config{
		Host:        srv.Endpoint().Host,
		Port:        srv.Endpoint().Port,
		Credentials: creds,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer client.Close()

	req := httptest.NewRequest("GET", "http://app.example/admin?id=1%20OR%201", nil)
	req.Header.Set("X-Forwarded-For", "9.9.9.9")

	v := client.AnalyzeRequest(req)
	if !v.Blocked() || v.Score != 91 || v.Message != "sql injection" {
		t.Fatalf("verdict: %+v", v)
	}

	sent := <-srv.Received
	if sent.Body["remote_addr"] != "9.9.9.9" {
		t.Fatalf("payload remote_addr: %v", sent.Body["remote_addr"])
	}
	if sent.Body["uri"] != "/admin?id=1%20OR%201" {
		t.Fatalf("payload uri: %v", sent.Body["uri"])
	}
}

func TestConstructionRejectsEmptyCredentials(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected configuration error")
	}
}

func TestCheckBlockRoundTrip(t *testing.T) {
	srv, creds := wafserver.Start(t, wafserver.Echo(map[string]any{"blocked": true}))
	client, err := New(Config{
		Host:        srv.Endpoint().Host,
		Port:        srv.Endpoint().Port,
		Credentials: creds,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer client.Close()

	if st := client.CheckBlock("tenant-4"); !st.Blocked {
		t.Fatalf("status: %+v", st)
	}
}
