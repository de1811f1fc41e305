package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const sampleConfig = `
venues:
  - name: bitvavo
    kind: websocket
    host: ws.bitvavo.com
    port: "443"
    market: BTC-EUR
  - name: pix
    kind: tcp
    host: pix.example.com
    port: "5201"
    market: ETH-EUR
publish:
  symbol: AGGREGATE
  period: 25ms
  levels: 50
logging:
  level: debug
  format: json
`

func TestLoadPopulatesFieldsAndDefaults(t *testing.T) {
	t.Parallel()
	path := writeTestConfig(t, sampleConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Venues) != 2 {
		t.Fatalf("len(Venues) = %d, want 2", len(cfg.Venues))
	}
	if cfg.Venues[0].Kind != "websocket" || cfg.Venues[1].Kind != "tcp" {
		t.Errorf("venue kinds = %q, %q", cfg.Venues[0].Kind, cfg.Venues[1].Kind)
	}
	if cfg.Venues[0].ConnectTimeout != 5*time.Second {
		t.Errorf("ConnectTimeout default = %v, want 5s", cfg.Venues[0].ConnectTimeout)
	}
	if cfg.Venues[0].MaxReconnectAttempts != 10 {
		t.Errorf("MaxReconnectAttempts default = %d, want 10", cfg.Venues[0].MaxReconnectAttempts)
	}
	if cfg.Publish.Symbol != "AGGREGATE" || cfg.Publish.Levels != 50 {
		t.Errorf("Publish = %+v", cfg.Publish)
	}
	if cfg.Publish.Period != 25*time.Millisecond {
		t.Errorf("Publish.Period = %v, want 25ms", cfg.Publish.Period)
	}
}

func TestLoadAppliesPublishDefaultsWhenAbsent(t *testing.T) {
	t.Parallel()
	path := writeTestConfig(t, `
venues:
  - name: bitvavo
    kind: websocket
    host: h
    port: "443"
    market: BTC-EUR
publish:
  symbol: BTC-EUR
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Publish.Levels != 80 {
		t.Errorf("Publish.Levels default = %d, want 80", cfg.Publish.Levels)
	}
	if cfg.Publish.Period != 20*time.Millisecond {
		t.Errorf("Publish.Period default = %v, want 20ms", cfg.Publish.Period)
	}
}

func TestValidateRejectsMissingVenues(t *testing.T) {
	t.Parallel()
	cfg := &Config{Publish: PublishConfig{Symbol: "X", Levels: 1}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty venues")
	}
}

func TestValidateRejectsBadKind(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Venues:  []VenueConfig{{Name: "v", Kind: "carrier-pigeon", Host: "h", Port: "1", Market: "M"}},
		Publish: PublishConfig{Symbol: "X", Levels: 1},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid kind")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Venues:  []VenueConfig{{Name: "v", Kind: "tcp", Host: "h", Port: "1", Market: "M"}},
		Publish: PublishConfig{Symbol: "X", Levels: 10},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
