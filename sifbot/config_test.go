package sifbot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `[log]
level = 0
format = "text"
add_source = true

[db]
host = "localhost"
port = 27017
database = "sifbot"

[spaces]
key = "spaces-key"
secret = "spaces-secret"
region = "nyc3"
bucket = "cards"
cardroot = "cards"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.DB.Host != "localhost" || cfg.DB.Port != 27017 || cfg.DB.Database != "sifbot" {
		t.Errorf("DB config = %+v, want the fixture values", cfg.DB)
	}
	if cfg.Spaces.Bucket != "cards" || cfg.Spaces.Region != "nyc3" {
		t.Errorf("Spaces config = %+v, want the fixture values", cfg.Spaces)
	}
	if !cfg.Log.AddSource {
		t.Errorf("Log.AddSource = false, want true")
	}
}

func TestLoadConfig_missingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Errorf("LoadConfig() error = nil, want error")
	}
}
