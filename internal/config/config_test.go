package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wafcli.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
credentials_file = "/etc/waf/creds.json"
connect_string = "tls://waf.internal:9443"
host = "override.example"
port = 7000
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CredentialsFile != "/etc/waf/creds.json" {
		t.Fatalf("credentials_file: %q", cfg.CredentialsFile)
	}
	if cfg.Host != "override.example" || cfg.Port != 7000 {
		t.Fatalf("overrides: %+v", cfg)
	}
	if cfg.ConnectString != "tls://waf.internal:9443" {
		t.Fatalf("connect_string: %q", cfg.ConnectString)
	}
}

func TestLoadRequiresCredentialsFile(t *testing.T) {
	path := writeConfig(t, `host = "waf.internal"`)
	if _, err := Load(path); !errors.Is(err, ErrCredentialsFileRequired) {
		t.Fatalf("expected ErrCredentialsFileRequired, got %v", err)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	path := writeConfig(t, `
credentials_file = "/etc/waf/creds.json"
port = 70000
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected port range error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
