package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "phishwatch.toml")
	content := `
[backend]
base_url = "https://sim.example.com"
token_env = "PHISHWATCH_TOKEN"

[transcripts]
dir = "/tmp/pw-runs"

[relay]
enabled = true
url = "nats://relay:4222"
subject_prefix = "training"

[catalog]
path = "scenarios.yaml"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Backend.BaseURL != "https://sim.example.com" {
		t.Errorf("base_url = %q", cfg.Backend.BaseURL)
	}
	if cfg.Transcripts.Dir != "/tmp/pw-runs" {
		t.Errorf("transcripts dir = %q", cfg.Transcripts.Dir)
	}
	if !cfg.Relay.Enabled || cfg.Relay.SubjectPrefix != "training" {
		t.Errorf("relay = %+v", cfg.Relay)
	}
	if cfg.Catalog.Path != "scenarios.yaml" {
		t.Errorf("catalog path = %q", cfg.Catalog.Path)
	}
}

func TestDefaultsSurviveSparseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "phishwatch.toml")
	if err := os.WriteFile(path, []byte("[backend]\nbase_url = \"http://other:9000\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Backend.BaseURL != "http://other:9000" {
		t.Errorf("base_url = %q", cfg.Backend.BaseURL)
	}
	if cfg.Relay.URL != "nats://127.0.0.1:4222" {
		t.Errorf("relay url default lost: %q", cfg.Relay.URL)
	}
	if cfg.Relay.SubjectPrefix != "phishwatch" {
		t.Errorf("subject prefix default lost: %q", cfg.Relay.SubjectPrefix)
	}
}

func TestGetToken(t *testing.T) {
	cfg := New()
	if got := cfg.GetToken(); got != "" {
		t.Errorf("token without env config = %q", got)
	}

	cfg.Backend.TokenEnv = "PHISHWATCH_TEST_TOKEN"
	t.Setenv("PHISHWATCH_TEST_TOKEN", "secret")
	if got := cfg.GetToken(); got != "secret" {
		t.Errorf("token = %q, want secret", got)
	}
}

func TestLoadFileBadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("[backend\nbase_url"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}
